package types

import (
	"strconv"
	"time"
)

// NonTransactional is the commit mode used for every mutation issued by this
// library. Each mutation commits independently with no cross-document
// atomicity. Transactional commits are a future extension point.
const NonTransactional string = "NON_TRANSACTIONAL"

// NullValue is the wire representation of an explicit null property.
const NullValue string = "NULL_VALUE"

// Value is the closed union used by the store to represent all document
// field values. Exactly one of the value fields is set.
type Value struct {
	NullValue      *string     `json:"nullValue,omitempty"`
	BooleanValue   *bool       `json:"booleanValue,omitempty"`
	IntegerValue   *string     `json:"integerValue,omitempty"`
	DoubleValue    *float64    `json:"doubleValue,omitempty"`
	StringValue    *string     `json:"stringValue,omitempty"`
	TimestampValue *string     `json:"timestampValue,omitempty"`
	ArrayValue     *ArrayValue `json:"arrayValue,omitempty"`
	EntityValue    *Entity     `json:"entityValue,omitempty"`
}

type ArrayValue struct {
	Values []Value `json:"values,omitempty"`
}

// Entity is a property bag addressed by a key. Nested entities carry no key.
type Entity struct {
	Key        *Key             `json:"key,omitempty"`
	Properties map[string]Value `json:"properties,omitempty"`
}

// Kind returns the kind of the first path element, or "" for nested entities.
func (e Entity) Kind() string {
	if e.Key == nil || len(e.Key.Path) == 0 {
		return ""
	}
	return e.Key.Path[0].Kind
}

// Name returns the name of the first path element, or "" for nested entities.
func (e Entity) Name() string {
	if e.Key == nil || len(e.Key.Path) == 0 {
		return ""
	}
	return e.Key.Path[0].Name
}

type Key struct {
	PartitionID *PartitionID  `json:"partitionId,omitempty"`
	Path        []PathElement `json:"path"`
}

// NewKey creates a single element key path from a kind and a name.
func NewKey(kind, name string) *Key {
	return &Key{
		Path: []PathElement{{Kind: kind, Name: name}},
	}
}

type PartitionID struct {
	ProjectID string `json:"projectId,omitempty"`
}

type PathElement struct {
	Kind string `json:"kind"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
}

// Mutation carries exactly one of the four write operations for one entity.
type Mutation struct {
	Insert *Entity `json:"insert,omitempty"`
	Update *Entity `json:"update,omitempty"`
	Upsert *Entity `json:"upsert,omitempty"`
	Delete *Key    `json:"delete,omitempty"`
}

type CommitRequest struct {
	Mode      string     `json:"mode"`
	Mutations []Mutation `json:"mutations"`
}

type CommitResponse struct {
	MutationResults []MutationResult `json:"mutationResults,omitempty"`
	IndexUpdates    int              `json:"indexUpdates,omitempty"`
}

type MutationResult struct {
	Key              *Key   `json:"key,omitempty"`
	Version          string `json:"version,omitempty"`
	ConflictDetected bool   `json:"conflictDetected,omitempty"`
}

type LookupRequest struct {
	Keys []Key `json:"keys"`
}

type LookupResponse struct {
	Found   []EntityResult `json:"found,omitempty"`
	Missing []EntityResult `json:"missing,omitempty"`
}

type EntityResult struct {
	Entity  Entity `json:"entity"`
	Version string `json:"version,omitempty"`
}

type RunQueryRequest struct {
	PartitionID *PartitionID `json:"partitionId,omitempty"`
	Query       *Query       `json:"query"`
}

type Query struct {
	Kind  []KindExpression `json:"kind"`
	Limit *int32           `json:"limit,omitempty"`
}

type KindExpression struct {
	Name string `json:"name"`
}

type RunQueryResponse struct {
	Batch *QueryResultBatch `json:"batch,omitempty"`
}

type QueryResultBatch struct {
	EntityResults []EntityResult `json:"entityResults,omitempty"`
	MoreResults   string         `json:"moreResults,omitempty"`
}

// Status carries the request level failure reported by the store, verbatim.
type Status struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ErrorBody is the envelope the store wraps a Status in on failed requests.
type ErrorBody struct {
	Error Status `json:"error"`
}

// NewNullValue is a convenience function for creating explicit null values
func NewNullValue() Value {
	nv := NullValue
	return Value{NullValue: &nv}
}

func NewBooleanValue(value bool) Value {
	return Value{BooleanValue: &value}
}

// NewIntegerValue creates an integer value in the store's decimal string
// representation
func NewIntegerValue(value int64) Value {
	s := strconv.FormatInt(value, 10)
	return Value{IntegerValue: &s}
}

func NewDoubleValue(value float64) Value {
	return Value{DoubleValue: &value}
}

func NewStringValue(value string) Value {
	return Value{StringValue: &value}
}

// NewTimestampValue creates a timestamp value from a UTC time stamp
func NewTimestampValue(value time.Time) Value {
	s := value.UTC().Format(time.RFC3339Nano)
	return Value{TimestampValue: &s}
}

func NewArrayValue(values []Value) Value {
	return Value{ArrayValue: &ArrayValue{Values: values}}
}

func NewEntityValue(properties map[string]Value) Value {
	return Value{EntityValue: &Entity{Properties: properties}}
}
