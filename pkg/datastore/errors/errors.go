package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/diwise/datastore-client/pkg/datastore/types"
)

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrNotFound = fmt.Errorf("not found")
var ErrNoPayload = fmt.Errorf("no payload")
var ErrSerialization = fmt.Errorf("serialization error")
var ErrDeserialization = fmt.Errorf("deserialization error")
var ErrDatabaseResponse = fmt.Errorf("database response error")

type dsError struct {
	msg    string
	target error
}

func (e dsError) Error() string        { return e.msg }
func (e dsError) Is(target error) bool { return target == e.target }

func NewAlreadyExistsError(msg string) error {
	return &dsError{
		msg:    msg,
		target: ErrAlreadyExists,
	}
}

func NewNotFoundError(msg string) error {
	return &dsError{
		msg:    msg,
		target: ErrNotFound,
	}
}

func NewNoPayloadError(msg string) error {
	return &dsError{
		msg:    msg,
		target: ErrNoPayload,
	}
}

func NewSerializationError(inner error) error {
	return &dsError{
		msg:    fmt.Sprintf("failed to encode value: %s", inner.Error()),
		target: ErrSerialization,
	}
}

func NewDeserializationError(inner error) error {
	return &dsError{
		msg:    fmt.Sprintf("failed to decode entity: %s", inner.Error()),
		target: ErrDeserialization,
	}
}

// NewDatabaseResponseError wraps a request level failure reported by the
// store. The status is passed through verbatim, not reinterpreted.
func NewDatabaseResponseError(status types.Status) error {
	return &dsError{
		msg:    fmt.Sprintf("store returned \"%s\" [code: %d]: %s", status.Status, status.Code, status.Message),
		target: ErrDatabaseResponse,
	}
}

// NewErrorFromStatus maps a non 2xx response body from the store into this
// package's error taxonomy. Conflict signals become ErrAlreadyExists or
// ErrNotFound so that callers can tell deterministic failures from ones
// that may be transient.
func NewErrorFromStatus(code int, body []byte) error {
	envelope := &types.ErrorBody{}

	err := json.Unmarshal(body, envelope)
	if err != nil {
		return NewDatabaseResponseError(types.Status{
			Code:    code,
			Message: string(body),
		})
	}

	if code == http.StatusConflict || envelope.Error.Status == "ALREADY_EXISTS" {
		return NewAlreadyExistsError(envelope.Error.Message)
	}

	if code == http.StatusNotFound || envelope.Error.Status == "NOT_FOUND" {
		return NewNotFoundError(envelope.Error.Message)
	}

	return NewDatabaseResponseError(envelope.Error)
}
