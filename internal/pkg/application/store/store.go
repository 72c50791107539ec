package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/diwise/datastore-client/internal/pkg/infrastructure/storage"
	"github.com/diwise/datastore-client/pkg/datastore/types"
	"github.com/diwise/service-chassis/pkg/infrastructure/o11y/logging"
	"github.com/google/uuid"
)

// EntityStore implements the store side semantics of the commit, lookup
// and query operations on top of a storage backend.
type EntityStore interface {
	Commit(ctx context.Context, projectID string, req *types.CommitRequest) (*types.CommitResponse, error)
	Lookup(ctx context.Context, projectID string, req *types.LookupRequest) (*types.LookupResponse, error)
	RunQuery(ctx context.Context, projectID string, req *types.RunQueryRequest) (*types.RunQueryResponse, error)
}

func New(backend storage.Storage) EntityStore {
	return &entityStore{backend: backend}
}

type entityStore struct {
	backend storage.Storage
}

func (s *entityStore) Commit(ctx context.Context, projectID string, req *types.CommitRequest) (*types.CommitResponse, error) {
	if req.Mode != types.NonTransactional {
		return nil, NewBadRequestError(fmt.Sprintf("unsupported commit mode \"%s\"", req.Mode))
	}

	results := make([]types.MutationResult, 0, len(req.Mutations))

	for _, mutation := range req.Mutations {
		result, err := s.apply(ctx, projectID, mutation)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}

	return &types.CommitResponse{
		MutationResults: results,
		IndexUpdates:    len(results),
	}, nil
}

func (s *entityStore) apply(ctx context.Context, projectID string, mutation types.Mutation) (types.MutationResult, error) {
	log := logging.GetFromContext(ctx)
	version := strconv.FormatInt(time.Now().UnixMicro(), 10)

	if mutation.Delete != nil {
		if mutation.Insert != nil || mutation.Update != nil || mutation.Upsert != nil {
			return types.MutationResult{}, NewBadRequestError("a mutation must carry exactly one operation")
		}

		kind, name, err := keyParts(mutation.Delete)
		if err != nil {
			return types.MutationResult{}, err
		}

		// deleting a nonexistent entity is not an error
		err = s.backend.Delete(ctx, projectID, kind, name)
		if err != nil {
			return types.MutationResult{}, err
		}

		log.Debug("deleted entity", "kind", kind, "name", name)
		return types.MutationResult{Key: mutation.Delete, Version: version}, nil
	}

	entity, op, err := singleWriteOp(mutation)
	if err != nil {
		return types.MutationResult{}, err
	}

	if entity.Key == nil || len(entity.Key.Path) != 1 {
		return types.MutationResult{}, NewBadRequestError("entity keys must have exactly one path element")
	}

	kind := entity.Key.Path[0].Kind
	name := entity.Key.Path[0].Name

	if kind == "" {
		return types.MutationResult{}, NewBadRequestError("entity keys must specify a kind")
	}

	// incomplete keys get a name allocated on insert and upsert
	if name == "" {
		if op == "update" {
			return types.MutationResult{}, NewBadRequestError("update requires a complete key")
		}
		name = uuid.NewString()
		entity.Key.Path[0].Name = name
	}

	_, getErr := s.backend.Get(ctx, projectID, kind, name)
	exists := getErr == nil

	if !exists && !errors.Is(getErr, storage.ErrNotExist) {
		return types.MutationResult{}, getErr
	}

	if op == "insert" && exists {
		return types.MutationResult{}, NewAlreadyExistsError(kind, name)
	}

	if op == "update" && !exists {
		return types.MutationResult{}, NewNotFoundError(kind, name)
	}

	body, err := json.Marshal(entity)
	if err != nil {
		return types.MutationResult{}, NewBadRequestError(fmt.Sprintf("unable to marshal entity: %s", err.Error()))
	}

	err = s.backend.Put(ctx, projectID, kind, name, body)
	if err != nil {
		return types.MutationResult{}, err
	}

	log.Debug("stored entity", "op", op, "kind", kind, "name", name)

	return types.MutationResult{Key: entity.Key, Version: version}, nil
}

func (s *entityStore) Lookup(ctx context.Context, projectID string, req *types.LookupRequest) (*types.LookupResponse, error) {
	response := &types.LookupResponse{
		Found:   []types.EntityResult{},
		Missing: []types.EntityResult{},
	}

	for i := range req.Keys {
		key := req.Keys[i]

		kind, name, err := keyParts(&key)
		if err != nil {
			return nil, err
		}

		body, err := s.backend.Get(ctx, projectID, kind, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotExist) {
				response.Missing = append(response.Missing, types.EntityResult{
					Entity: types.Entity{Key: &key},
				})
				continue
			}
			return nil, err
		}

		entity := types.Entity{}
		err = json.Unmarshal(body, &entity)
		if err != nil {
			return nil, fmt.Errorf("stored entity is corrupt: %w", err)
		}

		response.Found = append(response.Found, types.EntityResult{Entity: entity})
	}

	return response, nil
}

func (s *entityStore) RunQuery(ctx context.Context, projectID string, req *types.RunQueryRequest) (*types.RunQueryResponse, error) {
	if req.Query == nil || len(req.Query.Kind) != 1 {
		return nil, NewBadRequestError("queries must specify exactly one kind")
	}

	kind := req.Query.Kind[0].Name

	bodies, err := s.backend.ListKind(ctx, projectID, kind)
	if err != nil {
		return nil, err
	}

	results := make([]types.EntityResult, 0, len(bodies))

	for _, body := range bodies {
		entity := types.Entity{}
		err = json.Unmarshal(body, &entity)
		if err != nil {
			return nil, fmt.Errorf("stored entity is corrupt: %w", err)
		}
		results = append(results, types.EntityResult{Entity: entity})

		if req.Query.Limit != nil && len(results) == int(*req.Query.Limit) {
			break
		}
	}

	return &types.RunQueryResponse{
		Batch: &types.QueryResultBatch{
			EntityResults: results,
			MoreResults:   "NO_MORE_RESULTS",
		},
	}, nil
}

func singleWriteOp(mutation types.Mutation) (*types.Entity, string, error) {
	count := 0
	var entity *types.Entity
	op := ""

	if mutation.Insert != nil {
		count, entity, op = count+1, mutation.Insert, "insert"
	}
	if mutation.Update != nil {
		count, entity, op = count+1, mutation.Update, "update"
	}
	if mutation.Upsert != nil {
		count, entity, op = count+1, mutation.Upsert, "upsert"
	}

	if count != 1 {
		return nil, "", NewBadRequestError("a mutation must carry exactly one operation")
	}

	return entity, op, nil
}

func keyParts(key *types.Key) (string, string, error) {
	if key == nil || len(key.Path) != 1 {
		return "", "", NewBadRequestError("keys must have exactly one path element")
	}

	if key.Path[0].Kind == "" || key.Path[0].Name == "" {
		return "", "", NewBadRequestError("keys must specify both kind and name")
	}

	return key.Path[0].Kind, key.Path[0].Name, nil
}
