package main

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/datastore-client/internal/pkg/application/store"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/router"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/storage"
	api "github.com/diwise/datastore-client/internal/pkg/presentation/api/datastore"
	"github.com/diwise/datastore-client/pkg/datastore/auth"
	"github.com/diwise/datastore-client/pkg/datastore/client"
	dserrors "github.com/diwise/datastore-client/pkg/datastore/errors"

	"github.com/matryer/is"
)

type Widget struct {
	Name  string `datastore:"name"`
	Count int64  `datastore:"count"`
}

func (w Widget) EntityKind() string { return "Widget" }
func (w Widget) EntityName() string { return w.Name }

func setupEmulator(t *testing.T) (*is.I, context.Context, client.Client) {
	is := is.New(t)
	ctx := context.Background()

	app := store.New(storage.NewMemory())
	r := router.New(appName)

	err := api.RegisterHandlers(ctx, r, app, strings.NewReader(defaultPolicy))
	is.NoErr(err)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	c, err := client.NewWithIdentity(ctx,
		auth.Identity{ProjectID: "testproject"},
		client.Endpoint(ts.URL),
	)
	is.NoErr(err)

	return is, ctx, c
}

func TestInsertThenGetRoundTrips(t *testing.T) {
	is, ctx, c := setupEmulator(t)

	err := c.Insert(ctx, Widget{Name: "a", Count: 3})
	is.NoErr(err)

	w, err := client.Get[Widget](ctx, c, "a")
	is.NoErr(err)
	is.Equal(w, Widget{Name: "a", Count: 3})
}

func TestSecondInsertWithSameNameConflicts(t *testing.T) {
	is, ctx, c := setupEmulator(t)

	err := c.Insert(ctx, Widget{Name: "a", Count: 3})
	is.NoErr(err)

	err = c.Insert(ctx, Widget{Name: "a", Count: 4})
	is.True(errors.Is(err, dserrors.ErrAlreadyExists))
}

func TestUpdateRequiresPriorInsert(t *testing.T) {
	is, ctx, c := setupEmulator(t)

	err := c.Update(ctx, Widget{Name: "a", Count: 3})
	is.True(errors.Is(err, dserrors.ErrNotFound))

	err = c.Insert(ctx, Widget{Name: "a", Count: 3})
	is.NoErr(err)

	err = c.Update(ctx, Widget{Name: "a", Count: 4})
	is.NoErr(err)

	w, err := client.Get[Widget](ctx, c, "a")
	is.NoErr(err)
	is.Equal(w.Count, int64(4))
}

func TestDeleteIsIdempotent(t *testing.T) {
	is, ctx, c := setupEmulator(t)

	err := c.Insert(ctx, Widget{Name: "a", Count: 3})
	is.NoErr(err)

	err = client.Delete[Widget](ctx, c, "a")
	is.NoErr(err)

	err = client.Delete[Widget](ctx, c, "a")
	is.NoErr(err)

	_, err = client.Get[Widget](ctx, c, "a")
	is.True(errors.Is(err, dserrors.ErrNotFound))
}

func TestListReturnsEverythingOfOneKind(t *testing.T) {
	is, ctx, c := setupEmulator(t)

	const count = 5

	for i := 0; i < count; i++ {
		err := c.Insert(ctx, Widget{Name: fmt.Sprintf("widget-%d", i), Count: int64(i)})
		is.NoErr(err)
	}

	widgets, err := client.List[Widget](ctx, c)
	is.NoErr(err)
	is.Equal(len(widgets), count)
}
