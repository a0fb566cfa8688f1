package wire

import (
	"fmt"
)

// Encode accepts values both as the exact types the decoder produces and as
// the loose types callers naturally build by hand (untyped ints, strings
// for byte fields, typed slices). These helpers do the narrowing.

func toInt64(v interface{}) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int32:
		return int64(t), nil
	case int:
		return int64(t), nil
	case int16:
		return int64(t), nil
	case int8:
		return int64(t), nil
	default:
		return 0, fmt.Errorf("expected signed integer, got %T", v)
	}
}

func toUint64(v interface{}) (uint64, error) {
	switch t := v.(type) {
	case uint64:
		return t, nil
	case uint32:
		return uint64(t), nil
	case uint:
		return uint64(t), nil
	case uint16:
		return uint64(t), nil
	case uint8:
		return uint64(t), nil
	case int64:
		if t < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", t)
		}
		return uint64(t), nil
	case int:
		if t < 0 {
			return 0, fmt.Errorf("negative value %d for unsigned field", t)
		}
		return uint64(t), nil
	default:
		return 0, fmt.Errorf("expected unsigned integer, got %T", v)
	}
}

func toBytes(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case []byte:
		return t, nil
	case string:
		return []byte(t), nil
	default:
		return nil, fmt.Errorf("expected bytes or string, got %T", v)
	}
}

// toSlice widens the common typed slices into []interface{} so repeated
// fields can be fed either form.
func toSlice(v interface{}) ([]interface{}, error) {
	switch t := v.(type) {
	case []interface{}:
		return t, nil
	case []int32:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []int64:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []uint32:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []uint64:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []bool:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []string:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case [][]byte:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i, el := range t {
			out[i] = el
		}
		return out, nil
	default:
		return nil, fmt.Errorf("repeated field value must be a slice, got %T", v)
	}
}
