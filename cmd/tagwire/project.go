package main

import (
	"encoding/base64"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tagwire/tagwire/registry"
	"github.com/tagwire/tagwire/schema"
)

// project converts a decoded message value into a JSON-friendly form: enum
// ordinals become their declared names, byte sequences become strings when
// they hold valid UTF-8 and base64 otherwise.
func project(value map[string]interface{}, desc *schema.Descriptor, reg *registry.Registry) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(value))
	for _, field := range desc.Fields {
		v, ok := value[field.Name]
		if !ok {
			continue
		}
		p, err := projectValue(v, &field.Type, reg)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", field.Name, err)
		}
		out[field.Name] = p
	}
	return out, nil
}

func projectValue(v interface{}, t *schema.Type, reg *registry.Registry) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case schema.KindEnum:
		ordinal, ok := v.(int32)
		if !ok {
			return nil, fmt.Errorf("enum value is %T", v)
		}
		if t.Enum != "" {
			if e, err := reg.Enum(t.Enum); err == nil {
				if name := e.NameByNumber(ordinal); name != "" {
					return name, nil
				}
			}
		}
		return ordinal, nil
	case schema.KindBytes:
		data, ok := v.([]byte)
		if !ok {
			return nil, fmt.Errorf("bytes value is %T", v)
		}
		if utf8.Valid(data) {
			return string(data), nil
		}
		return base64.StdEncoding.EncodeToString(data), nil
	case schema.KindMessage:
		nested, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("message value is %T", v)
		}
		desc, err := reg.Descriptor(t.Message)
		if err != nil {
			return nil, err
		}
		return project(nested, desc, reg)
	case schema.KindRepeated:
		elems, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("repeated value is %T", v)
		}
		out := make([]interface{}, len(elems))
		for i, el := range elems {
			p, err := projectValue(el, t.Elem, reg)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	default:
		return v, nil
	}
}

// unproject converts a JSON-decoded map into the value shapes the encoder
// accepts: JSON numbers back to integers, enum names back to ordinals,
// strings back to byte sequences.
func unproject(value map[string]interface{}, desc *schema.Descriptor, reg *registry.Registry) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(value))
	for name, v := range value {
		field := desc.FieldByName(name)
		if field == nil {
			return nil, fmt.Errorf("field %s not in message %s", name, desc.Name)
		}
		u, err := unprojectValue(v, &field.Type, reg)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		out[name] = u
	}
	return out, nil
}

func unprojectValue(v interface{}, t *schema.Type, reg *registry.Registry) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch t.Kind {
	case schema.KindSint:
		return jsonInt(v)
	case schema.KindUint:
		n, err := jsonInt(v)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			return nil, fmt.Errorf("negative value %d for unsigned field", n)
		}
		return uint64(n), nil
	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil
	case schema.KindEnum:
		if name, ok := v.(string); ok {
			if t.Enum == "" {
				return nil, fmt.Errorf("enum name %q given for unnamed enum type", name)
			}
			e, err := reg.Enum(t.Enum)
			if err != nil {
				return nil, err
			}
			ordinal, ok := e.NumberByName(name)
			if !ok {
				return nil, fmt.Errorf("enum %s has no value %q", t.Enum, name)
			}
			return ordinal, nil
		}
		n, err := jsonInt(v)
		if err != nil {
			return nil, err
		}
		return int32(n), nil
	case schema.KindBytes:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		return []byte(s), nil
	case schema.KindMessage:
		nested, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", v)
		}
		desc, err := reg.Descriptor(t.Message)
		if err != nil {
			return nil, err
		}
		return unproject(nested, desc, reg)
	case schema.KindRepeated:
		elems, ok := v.([]interface{})
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", v)
		}
		out := make([]interface{}, len(elems))
		for i, el := range elems {
			u, err := unprojectValue(el, t.Elem, reg)
			if err != nil {
				return nil, err
			}
			out[i] = u
		}
		return out, nil
	default:
		return nil, fmt.Errorf("no rule for kind %q", t.Kind)
	}
}

func jsonInt(v interface{}) (int64, error) {
	f, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("expected number, got %T", v)
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("non-integer numeric %v for integer field", f)
	}
	return int64(f), nil
}
