package store

import (
	"context"
	"testing"

	"github.com/diwise/datastore-client/internal/pkg/infrastructure/storage"
	"github.com/diwise/datastore-client/pkg/datastore/types"
	"github.com/matryer/is"
)

func widgetEntity(name string, count int64) *types.Entity {
	return &types.Entity{
		Key: types.NewKey("Widget", name),
		Properties: map[string]types.Value{
			"name":  types.NewStringValue(name),
			"count": types.NewIntegerValue(count),
		},
	}
}

func commitOne(ctx context.Context, s EntityStore, mutation types.Mutation) error {
	_, err := s.Commit(ctx, "testproject", &types.CommitRequest{
		Mode:      types.NonTransactional,
		Mutations: []types.Mutation{mutation},
	})
	return err
}

func setupStore() (context.Context, EntityStore) {
	return context.Background(), New(storage.NewMemory())
}

func TestInsertThenLookup(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Insert: widgetEntity("a", 3)})
	is.NoErr(err)

	response, err := s.Lookup(ctx, "testproject", &types.LookupRequest{
		Keys: []types.Key{*types.NewKey("Widget", "a")},
	})
	is.NoErr(err)
	is.Equal(len(response.Found), 1)
	is.Equal(len(response.Missing), 0)
	is.Equal(*response.Found[0].Entity.Properties["count"].IntegerValue, "3")
}

func TestInsertConflict(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Insert: widgetEntity("a", 3)})
	is.NoErr(err)

	err = commitOne(ctx, s, types.Mutation{Insert: widgetEntity("a", 4)})
	_, isConflict := err.(AlreadyExistsError)
	is.True(isConflict)
}

func TestUpdateWithoutPriorInsert(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Update: widgetEntity("a", 3)})
	_, isNotFound := err.(NotFoundError)
	is.True(isNotFound)
}

func TestUpsertThenUpdate(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Upsert: widgetEntity("a", 3)})
	is.NoErr(err)

	err = commitOne(ctx, s, types.Mutation{Update: widgetEntity("a", 4)})
	is.NoErr(err)

	response, err := s.Lookup(ctx, "testproject", &types.LookupRequest{
		Keys: []types.Key{*types.NewKey("Widget", "a")},
	})
	is.NoErr(err)
	is.Equal(*response.Found[0].Entity.Properties["count"].IntegerValue, "4")
}

func TestDeleteIsIdempotent(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Insert: widgetEntity("a", 3)})
	is.NoErr(err)

	err = commitOne(ctx, s, types.Mutation{Delete: types.NewKey("Widget", "a")})
	is.NoErr(err)

	// deleting an entity that no longer exists still succeeds
	err = commitOne(ctx, s, types.Mutation{Delete: types.NewKey("Widget", "a")})
	is.NoErr(err)

	response, err := s.Lookup(ctx, "testproject", &types.LookupRequest{
		Keys: []types.Key{*types.NewKey("Widget", "a")},
	})
	is.NoErr(err)
	is.Equal(len(response.Found), 0)
	is.Equal(len(response.Missing), 1)
}

func TestInsertAllocatesNameForIncompleteKeys(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	entity := widgetEntity("", 3)

	response, err := s.Commit(ctx, "testproject", &types.CommitRequest{
		Mode:      types.NonTransactional,
		Mutations: []types.Mutation{{Insert: entity}},
	})
	is.NoErr(err)
	is.Equal(len(response.MutationResults), 1)
	is.True(response.MutationResults[0].Key.Path[0].Name != "")
}

func TestQueryReturnsAllEntitiesOfOneKind(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	names := []string{"a", "b", "c"}
	for i, name := range names {
		err := commitOne(ctx, s, types.Mutation{Insert: widgetEntity(name, int64(i))})
		is.NoErr(err)
	}

	err := commitOne(ctx, s, types.Mutation{Insert: &types.Entity{
		Key:        types.NewKey("Gadget", "x"),
		Properties: map[string]types.Value{"name": types.NewStringValue("x")},
	}})
	is.NoErr(err)

	response, err := s.RunQuery(ctx, "testproject", &types.RunQueryRequest{
		Query: &types.Query{Kind: []types.KindExpression{{Name: "Widget"}}},
	})
	is.NoErr(err)
	is.True(response.Batch != nil)
	is.Equal(len(response.Batch.EntityResults), len(names))
	is.Equal(response.Batch.MoreResults, "NO_MORE_RESULTS")
}

func TestCommitRejectsTransactionalMode(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	_, err := s.Commit(ctx, "testproject", &types.CommitRequest{
		Mode:      "TRANSACTIONAL",
		Mutations: []types.Mutation{{Insert: widgetEntity("a", 3)}},
	})
	_, isBadRequest := err.(BadRequestError)
	is.True(isBadRequest)
}

func TestCommitRejectsMutationsWithMultipleOperations(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{
		Insert: widgetEntity("a", 3),
		Upsert: widgetEntity("a", 3),
	})
	_, isBadRequest := err.(BadRequestError)
	is.True(isBadRequest)
}

func TestProjectsAreIsolated(t *testing.T) {
	is := is.New(t)
	ctx, s := setupStore()

	err := commitOne(ctx, s, types.Mutation{Insert: widgetEntity("a", 3)})
	is.NoErr(err)

	response, err := s.Lookup(ctx, "otherproject", &types.LookupRequest{
		Keys: []types.Key{*types.NewKey("Widget", "a")},
	})
	is.NoErr(err)
	is.Equal(len(response.Found), 0)
	is.Equal(len(response.Missing), 1)
}
