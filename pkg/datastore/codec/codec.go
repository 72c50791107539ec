package codec

import (
	"errors"
	"reflect"
	"strings"
	"time"
)

var ErrUnsupportedShape = errors.New("unsupported shape: expecting struct or map like input")
var ErrUnsupportedType = errors.New("unsupported type")
var ErrMissingField = errors.New("missing field")
var ErrTypeMismatch = errors.New("type mismatch")
var ErrMalformed = errors.New("malformed property value")

const tagName = "datastore"

var timeType = reflect.TypeOf(time.Time{})

type fieldInfo struct {
	name      string
	omitEmpty bool
}

// parseField resolves the property name for a struct field from its
// datastore tag, falling back to the field name. The second return value
// is false for fields that should be skipped.
func parseField(f reflect.StructField) (fieldInfo, bool) {
	if f.PkgPath != "" {
		return fieldInfo{}, false
	}

	tag := f.Tag.Get(tagName)
	if tag == "-" {
		return fieldInfo{}, false
	}

	name, opts, _ := strings.Cut(tag, ",")
	if name == "" {
		name = f.Name
	}

	return fieldInfo{
		name:      name,
		omitEmpty: strings.Contains(opts, "omitempty"),
	}, true
}
