package datastore

// Storable is the capability a type must implement to be stored as a
// document. The kind identifies the type and is constant across instances,
// the name identifies the instance within the kind. Both must be
// deterministic and side effect free.
//
// EntityKind must be callable on a zero value, since it is used for type
// level key derivation where no instance exists.
type Storable interface {
	EntityKind() string
	EntityName() string
}

// Kind returns the kind of T without requiring an instance.
func Kind[T Storable]() string {
	var zero T
	return zero.EntityKind()
}
