package client

import (
	"context"
	"fmt"

	"github.com/diwise/datastore-client/pkg/datastore"
	"github.com/diwise/datastore-client/pkg/datastore/codec"
	dserrors "github.com/diwise/datastore-client/pkg/datastore/errors"
)

// Get fetches the document named name of T's kind and decodes it.
func Get[T datastore.Storable](ctx context.Context, c Client, name string) (T, error) {
	var result T

	entity, err := c.LookupEntity(ctx, datastore.Kind[T](), name)
	if err != nil {
		return result, err
	}

	err = codec.DecodeEntity(entity, &result)
	if err != nil {
		return result, dserrors.NewDeserializationError(err)
	}

	return result, nil
}

// List returns all documents of T's kind, decoded. The whole call fails on
// the first document that cannot be decoded; nothing is silently dropped.
func List[T datastore.Storable](ctx context.Context, c Client) ([]T, error) {
	kind := datastore.Kind[T]()

	entities, err := c.QueryEntities(ctx, kind)
	if err != nil {
		return nil, err
	}

	result := make([]T, 0, len(entities))

	for _, entity := range entities {
		var value T
		err = codec.DecodeEntity(&entity, &value)
		if err != nil {
			return nil, dserrors.NewDeserializationError(
				fmt.Errorf("document \"%s\" of kind \"%s\": %w", entity.Name(), kind, err),
			)
		}
		result = append(result, value)
	}

	return result, nil
}

// Delete removes the document named name of T's kind. Deleting a name that
// does not exist is not an error.
func Delete[T datastore.Storable](ctx context.Context, c Client, name string) error {
	return c.DeleteEntity(ctx, datastore.Kind[T](), name)
}
