package codec

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/diwise/datastore-client/pkg/datastore/types"
)

// DecodeEntity reconstructs a value of the target's type from a returned
// entity. The target must be a non nil pointer to a struct or a string
// keyed map. The store is schemaless, so every field is checked against
// what the target type expects at that position.
func DecodeEntity(entity *types.Entity, target any) error {
	if entity == nil {
		return fmt.Errorf("%w: nil entity", ErrMalformed)
	}

	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return fmt.Errorf("%w: decode target must be a non nil pointer", ErrUnsupportedShape)
	}
	rv = rv.Elem()

	switch rv.Kind() {
	case reflect.Struct:
		if rv.Type() == timeType {
			return fmt.Errorf("%w: expecting struct or map like target", ErrUnsupportedShape)
		}
		return decodeStruct(entity.Properties, rv)
	case reflect.Map:
		return decodeMap(entity.Properties, rv)
	default:
		return fmt.Errorf("%w: expecting struct or map like target", ErrUnsupportedShape)
	}
}

func decodeStruct(properties map[string]types.Value, rv reflect.Value) error {
	t := rv.Type()

	for i := 0; i < t.NumField(); i++ {
		field, ok := parseField(t.Field(i))
		if !ok {
			continue
		}

		pv, present := properties[field.name]
		if !present {
			// pointers are the optional markers, absent means nil
			if t.Field(i).Type.Kind() == reflect.Pointer {
				rv.Field(i).Set(reflect.Zero(t.Field(i).Type))
				continue
			}
			if field.omitEmpty {
				continue
			}
			return fmt.Errorf("%w: %s", ErrMissingField, field.name)
		}

		if err := decodeValue(pv, rv.Field(i)); err != nil {
			return fmt.Errorf("field %s: %w", field.name, err)
		}
	}

	return nil
}

func decodeMap(properties map[string]types.Value, rv reflect.Value) error {
	if rv.Type().Key().Kind() != reflect.String {
		return fmt.Errorf("%w: map keys must be strings", ErrUnsupportedShape)
	}

	if rv.IsNil() {
		rv.Set(reflect.MakeMapWithSize(rv.Type(), len(properties)))
	}

	for name, pv := range properties {
		ev := reflect.New(rv.Type().Elem()).Elem()
		if err := decodeValue(pv, ev); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		rv.SetMapIndex(reflect.ValueOf(name).Convert(rv.Type().Key()), ev)
	}

	return nil
}

func decodeValue(pv types.Value, rv reflect.Value) error {
	if rv.Kind() == reflect.Pointer {
		if pv.NullValue != nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if rv.IsNil() {
			rv.Set(reflect.New(rv.Type().Elem()))
		}
		return decodeValue(pv, rv.Elem())
	}

	if rv.Kind() == reflect.Interface && rv.NumMethod() == 0 {
		v, err := decodeAny(pv)
		if err != nil {
			return err
		}
		if v == nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		rv.Set(reflect.ValueOf(v))
		return nil
	}

	if rv.Type() == timeType {
		if pv.TimestampValue == nil {
			return fmt.Errorf("%w: expecting a timestamp value", ErrTypeMismatch)
		}
		ts, err := time.Parse(time.RFC3339Nano, *pv.TimestampValue)
		if err != nil {
			return fmt.Errorf("%w: invalid timestamp %q", ErrMalformed, *pv.TimestampValue)
		}
		rv.Set(reflect.ValueOf(ts))
		return nil
	}

	switch rv.Kind() {
	case reflect.Bool:
		if pv.BooleanValue == nil {
			return fmt.Errorf("%w: expecting a boolean value", ErrTypeMismatch)
		}
		rv.SetBool(*pv.BooleanValue)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := integerValue(pv)
		if err != nil {
			return err
		}
		if rv.OverflowInt(n) {
			return fmt.Errorf("%w: %d overflows %s", ErrMalformed, n, rv.Type())
		}
		rv.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := integerValue(pv)
		if err != nil {
			return err
		}
		if n < 0 || rv.OverflowUint(uint64(n)) {
			return fmt.Errorf("%w: %d overflows %s", ErrMalformed, n, rv.Type())
		}
		rv.SetUint(uint64(n))
	case reflect.Float32, reflect.Float64:
		if pv.DoubleValue == nil {
			return fmt.Errorf("%w: expecting a double value", ErrTypeMismatch)
		}
		rv.SetFloat(*pv.DoubleValue)
	case reflect.String:
		if pv.StringValue == nil {
			return fmt.Errorf("%w: expecting a string value", ErrTypeMismatch)
		}
		rv.SetString(*pv.StringValue)
	case reflect.Slice:
		if pv.NullValue != nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if pv.ArrayValue == nil {
			return fmt.Errorf("%w: expecting a list value", ErrTypeMismatch)
		}
		return decodeList(pv.ArrayValue.Values, rv)
	case reflect.Array:
		if pv.ArrayValue == nil {
			return fmt.Errorf("%w: expecting a list value", ErrTypeMismatch)
		}
		return decodeArray(pv.ArrayValue.Values, rv)
	case reflect.Map:
		if pv.NullValue != nil {
			rv.Set(reflect.Zero(rv.Type()))
			return nil
		}
		if pv.EntityValue == nil {
			return fmt.Errorf("%w: expecting an entity value", ErrTypeMismatch)
		}
		return decodeMap(pv.EntityValue.Properties, rv)
	case reflect.Struct:
		if pv.EntityValue == nil {
			return fmt.Errorf("%w: expecting an entity value", ErrTypeMismatch)
		}
		return decodeStruct(pv.EntityValue.Properties, rv)
	default:
		return fmt.Errorf("%w: cannot decode into %s", ErrUnsupportedType, rv.Type())
	}

	return nil
}

func decodeList(values []types.Value, rv reflect.Value) error {
	out := reflect.MakeSlice(rv.Type(), len(values), len(values))

	for i, ev := range values {
		// an entry that should be entity shaped but is a scalar makes the
		// whole list structurally invalid
		if expectsEntity(rv.Type().Elem()) && ev.EntityValue == nil && ev.NullValue == nil {
			return fmt.Errorf("%w: list entry %d is not entity shaped", ErrMalformed, i)
		}
		if err := decodeValue(ev, out.Index(i)); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}

	rv.Set(out)
	return nil
}

func decodeArray(values []types.Value, rv reflect.Value) error {
	if len(values) != rv.Len() {
		return fmt.Errorf("%w: expecting %d list entries, got %d", ErrMalformed, rv.Len(), len(values))
	}

	for i, ev := range values {
		if expectsEntity(rv.Type().Elem()) && ev.EntityValue == nil && ev.NullValue == nil {
			return fmt.Errorf("%w: list entry %d is not entity shaped", ErrMalformed, i)
		}
		if err := decodeValue(ev, rv.Index(i)); err != nil {
			return fmt.Errorf("index %d: %w", i, err)
		}
	}

	return nil
}

func expectsEntity(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == timeType {
		return false
	}
	return t.Kind() == reflect.Struct || t.Kind() == reflect.Map
}

func integerValue(pv types.Value) (int64, error) {
	if pv.IntegerValue == nil {
		return 0, fmt.Errorf("%w: expecting an integer value", ErrTypeMismatch)
	}

	n, err := strconv.ParseInt(*pv.IntegerValue, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid integer %q", ErrMalformed, *pv.IntegerValue)
	}

	return n, nil
}

func decodeAny(pv types.Value) (any, error) {
	switch {
	case pv.NullValue != nil:
		return nil, nil
	case pv.BooleanValue != nil:
		return *pv.BooleanValue, nil
	case pv.IntegerValue != nil:
		n, err := integerValue(pv)
		if err != nil {
			return nil, err
		}
		return n, nil
	case pv.DoubleValue != nil:
		return *pv.DoubleValue, nil
	case pv.StringValue != nil:
		return *pv.StringValue, nil
	case pv.TimestampValue != nil:
		ts, err := time.Parse(time.RFC3339Nano, *pv.TimestampValue)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid timestamp %q", ErrMalformed, *pv.TimestampValue)
		}
		return ts, nil
	case pv.ArrayValue != nil:
		out := make([]any, 0, len(pv.ArrayValue.Values))
		for i, ev := range pv.ArrayValue.Values {
			v, err := decodeAny(ev)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, v)
		}
		return out, nil
	case pv.EntityValue != nil:
		out := make(map[string]any, len(pv.EntityValue.Properties))
		for k, ev := range pv.EntityValue.Properties {
			v, err := decodeAny(ev)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", k, err)
			}
			out[k] = v
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: value has no variant set", ErrMalformed)
	}
}
