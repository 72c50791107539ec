package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/diwise/datastore-client/pkg/datastore/errors"
	"github.com/diwise/datastore-client/pkg/datastore/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultEndpoint is the public endpoint of the hosted store.
const DefaultEndpoint string = "https://datastore.googleapis.com"

// Transport executes exactly one request against the store and returns one
// typed response or an error. Connection setup and auth header injection
// live here, retry and backoff do not.
type Transport interface {
	Commit(ctx context.Context, projectID string, req *types.CommitRequest) (*types.CommitResponse, error)
	Lookup(ctx context.Context, projectID string, req *types.LookupRequest) (*types.LookupResponse, error)
	RunQuery(ctx context.Context, projectID string, req *types.RunQueryRequest) (*types.RunQueryResponse, error)
}

func Endpoint(endpoint string) func(*httpTransport) {
	return func(t *httpTransport) {
		t.endpoint = endpoint
	}
}

func HTTPClient(client *http.Client) func(*httpTransport) {
	return func(t *httpTransport) {
		t.httpClient = client
	}
}

// New creates an HTTP transport against the store's v1 REST protocol. The
// token is injected as a bearer credential on every request; an empty token
// sends no Authorization header, for use against local emulators.
func New(token string, options ...func(*httpTransport)) Transport {
	t := &httpTransport{
		endpoint: DefaultEndpoint,
		token:    token,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}

	for _, option := range options {
		option(t)
	}

	return t
}

type httpTransport struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func (t *httpTransport) Commit(ctx context.Context, projectID string, req *types.CommitRequest) (*types.CommitResponse, error) {
	response := &types.CommitResponse{}
	err := t.call(ctx, projectID, "commit", req, response)
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (t *httpTransport) Lookup(ctx context.Context, projectID string, req *types.LookupRequest) (*types.LookupResponse, error) {
	response := &types.LookupResponse{}
	err := t.call(ctx, projectID, "lookup", req, response)
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (t *httpTransport) RunQuery(ctx context.Context, projectID string, req *types.RunQueryRequest) (*types.RunQueryResponse, error) {
	response := &types.RunQueryResponse{}
	err := t.call(ctx, projectID, "runQuery", req, response)
	if err != nil {
		return nil, err
	}
	return response, nil
}

func (t *httpTransport) call(ctx context.Context, projectID, method string, body, result any) error {
	requestBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/projects/%s:%s", t.endpoint, projectID, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")
	if t.token != "" {
		req.Header.Add("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.NewErrorFromStatus(resp.StatusCode, respBody)
	}

	if resp.StatusCode != http.StatusOK {
		return errors.NewDatabaseResponseError(types.Status{
			Code:    resp.StatusCode,
			Message: fmt.Sprintf("unexpected response code %d", resp.StatusCode),
		})
	}

	err = json.Unmarshal(respBody, result)
	if err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return nil
}
