package codec

import (
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/diwise/datastore-client/pkg/datastore/types"
)

// EncodeEntity converts a struct or string keyed map into the property bag
// that forms a document root. The store requires a field/value bag at the
// root, so any other shape is rejected with ErrUnsupportedShape.
func EncodeEntity(value any) (map[string]types.Value, error) {
	rv := reflect.ValueOf(value)

	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, ErrUnsupportedShape
		}
		rv = rv.Elem()
	}

	switch rv.Kind() {
	case reflect.Struct:
		if rv.Type() == timeType {
			return nil, ErrUnsupportedShape
		}
		return encodeStruct(rv)
	case reflect.Map:
		return encodeMap(rv)
	default:
		return nil, ErrUnsupportedShape
	}
}

// EncodeValue converts a single value into the store's value union.
func EncodeValue(value any) (types.Value, error) {
	return encodeValue(reflect.ValueOf(value))
}

func encodeValue(rv reflect.Value) (types.Value, error) {
	if !rv.IsValid() {
		return types.NewNullValue(), nil
	}

	// absent optionals encode as explicit nulls, not as field omissions
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return types.NewNullValue(), nil
		}
		rv = rv.Elem()
	}

	if rv.Type() == timeType {
		return types.NewTimestampValue(rv.Interface().(time.Time)), nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		return types.NewBooleanValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return types.NewIntegerValue(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return types.Value{}, fmt.Errorf("%w: unsigned value %d overflows the integer property range", ErrUnsupportedType, u)
		}
		return types.NewIntegerValue(int64(u)), nil
	case reflect.Float32, reflect.Float64:
		return types.NewDoubleValue(rv.Float()), nil
	case reflect.String:
		return types.NewStringValue(rv.String()), nil
	case reflect.Slice:
		if rv.IsNil() {
			return types.NewNullValue(), nil
		}
		return encodeList(rv)
	case reflect.Array:
		return encodeList(rv)
	case reflect.Map:
		if rv.IsNil() {
			return types.NewNullValue(), nil
		}
		properties, err := encodeMap(rv)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewEntityValue(properties), nil
	case reflect.Struct:
		properties, err := encodeStruct(rv)
		if err != nil {
			return types.Value{}, err
		}
		return types.NewEntityValue(properties), nil
	default:
		return types.Value{}, fmt.Errorf("%w: %s has no property representation", ErrUnsupportedType, rv.Type())
	}
}

func encodeStruct(rv reflect.Value) (map[string]types.Value, error) {
	t := rv.Type()
	properties := make(map[string]types.Value, t.NumField())

	for i := 0; i < t.NumField(); i++ {
		field, ok := parseField(t.Field(i))
		if !ok {
			continue
		}

		v, err := encodeValue(rv.Field(i))
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.name, err)
		}

		properties[field.name] = v
	}

	return properties, nil
}

func encodeMap(rv reflect.Value) (map[string]types.Value, error) {
	if rv.Type().Key().Kind() != reflect.String {
		return nil, fmt.Errorf("%w: map keys must be strings", ErrUnsupportedType)
	}

	properties := make(map[string]types.Value, rv.Len())

	iter := rv.MapRange()
	for iter.Next() {
		v, err := encodeValue(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", iter.Key().String(), err)
		}
		properties[iter.Key().String()] = v
	}

	return properties, nil
}

func encodeList(rv reflect.Value) (types.Value, error) {
	values := make([]types.Value, 0, rv.Len())

	for i := 0; i < rv.Len(); i++ {
		v, err := encodeValue(rv.Index(i))
		if err != nil {
			return types.Value{}, fmt.Errorf("index %d: %w", i, err)
		}
		values = append(values, v)
	}

	return types.NewArrayValue(values), nil
}
