package client

import (
	"context"
	"net/http"

	"github.com/diwise/datastore-client/pkg/datastore"
	"github.com/diwise/datastore-client/pkg/datastore/auth"
	"github.com/diwise/datastore-client/pkg/datastore/codec"
	dserrors "github.com/diwise/datastore-client/pkg/datastore/errors"
	"github.com/diwise/datastore-client/pkg/datastore/transport"
	"github.com/diwise/datastore-client/pkg/datastore/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Client exposes the primitive document operations against one project.
// A Client holds no mutable state after construction and is safe for
// concurrent use; coordination of conflicting mutations to the same key is
// the store's responsibility, not this layer's.
type Client interface {
	Insert(ctx context.Context, value datastore.Storable) error
	Upsert(ctx context.Context, value datastore.Storable) error
	Update(ctx context.Context, value datastore.Storable) error
	DeleteEntity(ctx context.Context, kind, name string) error
	LookupEntity(ctx context.Context, kind, name string) (*types.Entity, error)
	QueryEntities(ctx context.Context, kind string) ([]types.Entity, error)
	ProjectID() string
}

const (
	TraceAttributeEntityKind string = "entity-kind"
	TraceAttributeEntityName string = "entity-name"
	TraceAttributeProjectID  string = "project-id"
)

var tracer = otel.Tracer("datastore-client")

func Endpoint(endpoint string) func(*storeClient) {
	return func(c *storeClient) {
		c.endpoint = endpoint
	}
}

func HTTPClient(httpClient *http.Client) func(*storeClient) {
	return func(c *storeClient) {
		c.httpClient = httpClient
	}
}

// WithTransport replaces the HTTP transport entirely. Endpoint and
// HTTPClient options are ignored when this option is used.
func WithTransport(t transport.Transport) func(*storeClient) {
	return func(c *storeClient) {
		c.transport = t
	}
}

// New discovers credentials automatically from the environment. See
// auth.Default for details on the discovery rules.
func New(ctx context.Context) (Client, error) {
	return NewWithAuthenticator(ctx, auth.Default())
}

// NewWithAuthenticator resolves an identity through the provided
// authenticator and constructs a client from it.
func NewWithAuthenticator(ctx context.Context, authenticator auth.Authenticator, options ...func(*storeClient)) (Client, error) {
	identity, err := authenticator.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	return NewWithIdentity(ctx, identity, options...)
}

// NewWithIdentity constructs a client from an explicit credential and
// project id bundle.
func NewWithIdentity(ctx context.Context, identity auth.Identity, options ...func(*storeClient)) (Client, error) {
	c := &storeClient{
		projectID: identity.ProjectID,
		endpoint:  transport.DefaultEndpoint,
	}

	for _, option := range options {
		option(c)
	}

	if c.transport == nil {
		if c.httpClient != nil {
			c.transport = transport.New(identity.Token, transport.Endpoint(c.endpoint), transport.HTTPClient(c.httpClient))
		} else {
			c.transport = transport.New(identity.Token, transport.Endpoint(c.endpoint))
		}
	}

	return c, nil
}

type storeClient struct {
	transport  transport.Transport
	projectID  string
	endpoint   string
	httpClient *http.Client
}

func (c storeClient) ProjectID() string {
	return c.projectID
}

func (c storeClient) Insert(ctx context.Context, value datastore.Storable) error {
	return c.mutate(ctx, "insert", value, func(entity *types.Entity) types.Mutation {
		return types.Mutation{Insert: entity}
	})
}

func (c storeClient) Upsert(ctx context.Context, value datastore.Storable) error {
	return c.mutate(ctx, "upsert", value, func(entity *types.Entity) types.Mutation {
		return types.Mutation{Upsert: entity}
	})
}

func (c storeClient) Update(ctx context.Context, value datastore.Storable) error {
	return c.mutate(ctx, "update", value, func(entity *types.Entity) types.Mutation {
		return types.Mutation{Update: entity}
	})
}

func (c storeClient) mutate(ctx context.Context, operation string, value datastore.Storable, mutation func(*types.Entity) types.Mutation) error {
	var err error

	kind := value.EntityKind()
	name := value.EntityName()

	ctx, span := tracer.Start(ctx, operation+"-entity",
		trace.WithAttributes(attribute.String(TraceAttributeProjectID, c.projectID)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityKind, kind)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityName, name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	properties, err := codec.EncodeEntity(value)
	if err != nil {
		err = dserrors.NewSerializationError(err)
		return err
	}

	entity := &types.Entity{
		Key:        types.NewKey(kind, name),
		Properties: properties,
	}

	req := &types.CommitRequest{
		Mode:      types.NonTransactional,
		Mutations: []types.Mutation{mutation(entity)},
	}

	_, err = c.transport.Commit(ctx, c.projectID, req)
	return err
}

// DeleteEntity removes the document addressed by kind and name. Deleting a
// key that does not exist is not an error.
func (c storeClient) DeleteEntity(ctx context.Context, kind, name string) error {
	var err error

	ctx, span := tracer.Start(ctx, "delete-entity",
		trace.WithAttributes(attribute.String(TraceAttributeProjectID, c.projectID)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityKind, kind)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityName, name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	req := &types.CommitRequest{
		Mode: types.NonTransactional,
		Mutations: []types.Mutation{
			{Delete: types.NewKey(kind, name)},
		},
	}

	_, err = c.transport.Commit(ctx, c.projectID, req)
	return err
}

// LookupEntity fetches the document addressed by kind and name.
func (c storeClient) LookupEntity(ctx context.Context, kind, name string) (*types.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "lookup-entity",
		trace.WithAttributes(attribute.String(TraceAttributeProjectID, c.projectID)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityKind, kind)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityName, name)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	req := &types.LookupRequest{
		Keys: []types.Key{*types.NewKey(kind, name)},
	}

	response, err := c.transport.Lookup(ctx, c.projectID, req)
	if err != nil {
		return nil, err
	}

	if len(response.Found) == 0 {
		if len(response.Missing) > 0 {
			err = dserrors.NewNotFoundError("no document with name \"" + name + "\" in kind \"" + kind + "\"")
			return nil, err
		}

		log := logging.GetFromContext(ctx)
		log.Warn("store response contained neither found nor missing results", "kind", kind, "name", name)

		err = dserrors.NewNoPayloadError("store response contained neither found nor missing results")
		return nil, err
	}

	entity := response.Found[0].Entity
	if entity.Properties == nil {
		log := logging.GetFromContext(ctx)
		log.Warn("found result carried no entity payload", "kind", kind, "name", name)

		err = dserrors.NewNoPayloadError("found result carried no entity payload")
		return nil, err
	}

	return &entity, nil
}

// QueryEntities returns a single page with all documents of one kind.
func (c storeClient) QueryEntities(ctx context.Context, kind string) ([]types.Entity, error) {
	var err error

	ctx, span := tracer.Start(ctx, "query-entities",
		trace.WithAttributes(attribute.String(TraceAttributeProjectID, c.projectID)),
		trace.WithAttributes(attribute.String(TraceAttributeEntityKind, kind)),
	)
	defer func() { tracing.RecordAnyErrorAndEndSpan(err, span) }()

	req := &types.RunQueryRequest{
		PartitionID: &types.PartitionID{ProjectID: c.projectID},
		Query: &types.Query{
			Kind: []types.KindExpression{{Name: kind}},
		},
	}

	response, err := c.transport.RunQuery(ctx, c.projectID, req)
	if err != nil {
		return nil, err
	}

	if response.Batch == nil {
		log := logging.GetFromContext(ctx)
		log.Warn("store response contained no result batch", "kind", kind)

		err = dserrors.NewNoPayloadError("store response contained no result batch")
		return nil, err
	}

	entities := make([]types.Entity, 0, len(response.Batch.EntityResults))
	for _, result := range response.Batch.EntityResults {
		entities = append(entities, result.Entity)
	}

	return entities, nil
}
