package errors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/matryer/is"
)

func TestMapsConflictToAlreadyExists(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromStatus(http.StatusConflict, []byte(`{"error":{"code":409,"message":"entity already exists","status":"ALREADY_EXISTS"}}`))
	is.True(errors.Is(err, ErrAlreadyExists))
	is.Equal(err.Error(), "entity already exists")
}

func TestMapsMissingEntityToNotFound(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromStatus(http.StatusNotFound, []byte(`{"error":{"code":404,"message":"no such entity","status":"NOT_FOUND"}}`))
	is.True(errors.Is(err, ErrNotFound))
}

func TestPassesOtherStatusesThroughVerbatim(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromStatus(http.StatusTooManyRequests, []byte(`{"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}`))
	is.True(errors.Is(err, ErrDatabaseResponse))
	is.Equal(err.Error(), "store returned \"RESOURCE_EXHAUSTED\" [code: 429]: quota exceeded")
}

func TestHandlesNonJSONBodies(t *testing.T) {
	is := is.New(t)

	err := NewErrorFromStatus(http.StatusBadGateway, []byte("upstream exploded"))
	is.True(errors.Is(err, ErrDatabaseResponse))
}
