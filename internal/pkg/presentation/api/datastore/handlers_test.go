package datastore

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/diwise/datastore-client/internal/pkg/application/store"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/router"
	"github.com/diwise/datastore-client/internal/pkg/infrastructure/storage"
	"github.com/matryer/is"
)

const allowAllPolicy string = `package datastore.authz

default allow = true
`

const tokenPolicy string = `package datastore.authz

default allow = false

allow {
	input.token == "sesame"
}
`

const commitBody string = `{"mode":"NON_TRANSACTIONAL","mutations":[{"insert":{"key":{"path":[{"kind":"Widget","name":"a"}]},"properties":{"count":{"integerValue":"3"},"name":{"stringValue":"a"}}}}]}`

func setupTest(t *testing.T, policy string) (*is.I, *httptest.Server) {
	is := is.New(t)

	app := store.New(storage.NewMemory())
	r := router.New("datastore-emulator")

	err := RegisterHandlers(context.Background(), r, app, strings.NewReader(policy))
	is.NoErr(err)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)

	return is, ts
}

func newTestRequest(is *is.I, ts *httptest.Server, path, token string, body io.Reader) *http.Response {
	req, _ := http.NewRequest(http.MethodPost, ts.URL+path, body)
	req.Header.Add("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	resp.Body.Close()

	return resp
}

func TestCommit(t *testing.T) {
	is, ts := setupTest(t, allowAllPolicy)

	resp := newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestCommitConflictReturnsConflict(t *testing.T) {
	is, ts := setupTest(t, allowAllPolicy)

	resp := newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusOK)

	resp = newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusConflict)
}

func TestCommitWithBadPayloadReturnsBadRequest(t *testing.T) {
	is, ts := setupTest(t, allowAllPolicy)

	resp := newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString("this is not my json"))
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestLookup(t *testing.T) {
	is, ts := setupTest(t, allowAllPolicy)

	resp := newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusOK)

	lookupBody := `{"keys":[{"path":[{"kind":"Widget","name":"a"}]}]}`
	resp = newTestRequest(is, ts, "/v1/projects/testproject:lookup", "", bytes.NewBufferString(lookupBody))
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestRunQuery(t *testing.T) {
	is, ts := setupTest(t, allowAllPolicy)

	queryBody := `{"query":{"kind":[{"name":"Widget"}]}}`
	resp := newTestRequest(is, ts, "/v1/projects/testproject:runQuery", "", bytes.NewBufferString(queryBody))
	is.Equal(resp.StatusCode, http.StatusOK)
}

func TestRequestsWithoutValidTokenAreRejected(t *testing.T) {
	is, ts := setupTest(t, tokenPolicy)

	resp := newTestRequest(is, ts, "/v1/projects/testproject:commit", "", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusUnauthorized)

	resp = newTestRequest(is, ts, "/v1/projects/testproject:commit", "wrong", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusUnauthorized)

	resp = newTestRequest(is, ts, "/v1/projects/testproject:commit", "sesame", bytes.NewBufferString(commitBody))
	is.Equal(resp.StatusCode, http.StatusOK)
}
