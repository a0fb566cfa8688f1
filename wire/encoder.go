package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tagwire/tagwire/schema"
)

// Encoder walks a message value in descriptor order and emits wire bytes to
// a sink. Anything length-delimited is measured first by running the same
// encode routine against a counting sink, then written for real, so the
// length prefix always matches the payload exactly. The encoder never
// mutates the value it is given.
type Encoder struct {
	reg Resolver
}

// NewEncoder creates an encoder resolving nested message types through reg.
func NewEncoder(reg Resolver) *Encoder {
	return &Encoder{reg: reg}
}

// EncodeMessage encodes a message value to a byte slice - main entry point.
func EncodeMessage(value map[string]interface{}, desc *schema.Descriptor, reg Resolver) ([]byte, error) {
	var buf bytes.Buffer
	if err := NewEncoder(reg).Encode(&buf, value, desc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encode writes one top-level message. The top-level frame carries no tag
// or length of its own, mirroring the decoder; it is just the fields'
// tag/value pairs in descriptor order. On a sink failure the call aborts
// and the sink may have received a prefix of the output.
func (e *Encoder) Encode(w io.Writer, value map[string]interface{}, desc *schema.Descriptor) error {
	return e.encodeFields(w, value, desc)
}

func (e *Encoder) encodeFields(w io.Writer, value map[string]interface{}, desc *schema.Descriptor) error {
	for _, field := range desc.Fields {
		v, ok := value[field.Name]
		if !ok || v == nil {
			continue
		}
		if err := e.encodeField(w, v, field); err != nil {
			return wrapWithField(err, field.Name)
		}
	}
	return nil
}

func (e *Encoder) encodeField(w io.Writer, v interface{}, field *schema.Field) error {
	if field.Type.Kind == schema.KindRepeated {
		return e.encodeRepeated(w, v, field)
	}
	if err := writeTag(w, FieldNumber(field.Number), fieldWireType(&field.Type)); err != nil {
		return err
	}
	return e.encodeValue(w, v, &field.Type)
}

// encodeRepeated emits a repeated field. Scalar elements become one tag,
// one counted length, and the concatenated element encodings (the packed
// form); bytes and message elements get an independent tag per element. An
// empty sequence emits nothing.
func (e *Encoder) encodeRepeated(w io.Writer, v interface{}, field *schema.Field) error {
	elems, err := toSlice(v)
	if err != nil {
		return err
	}
	if len(elems) == 0 {
		return nil
	}

	elem := field.Type.Elem
	if !elem.Scalar() {
		for _, el := range elems {
			if err := writeTag(w, FieldNumber(field.Number), fieldWireType(elem)); err != nil {
				return err
			}
			if err := e.encodeValue(w, el, elem); err != nil {
				return err
			}
		}
		return nil
	}

	// Dry run against the counting sink to learn the packed length.
	var count countingWriter
	for _, el := range elems {
		if err := e.encodeValue(&count, el, elem); err != nil {
			return err
		}
	}

	if err := writeTag(w, FieldNumber(field.Number), WireBytes); err != nil {
		return err
	}
	if err := writeUvarint(w, uint64(count.n)); err != nil {
		return err
	}
	for _, el := range elems {
		if err := e.encodeValue(w, el, elem); err != nil {
			return err
		}
	}
	return nil
}

// encodeValue emits one singular value, tag excluded.
func (e *Encoder) encodeValue(w io.Writer, v interface{}, t *schema.Type) error {
	switch t.Kind {
	case schema.KindSint:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		if t.Bits == 32 {
			return writeUvarint(w, EncodeZigZag32(int32(n)))
		}
		return writeUvarint(w, EncodeZigZag64(n))

	case schema.KindUint:
		n, err := toUint64(v)
		if err != nil {
			return err
		}
		return writeUvarint(w, n)

	case schema.KindBool:
		b, ok := v.(bool)
		if !ok {
			return fmt.Errorf("bool field value must be bool, got %T", v)
		}
		if b {
			return writeUvarint(w, 1)
		}
		return writeUvarint(w, 0)

	case schema.KindEnum:
		n, err := toInt64(v)
		if err != nil {
			return err
		}
		return writeUvarint(w, uint64(n))

	case schema.KindBytes:
		data, err := toBytes(v)
		if err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(len(data))); err != nil {
			return err
		}
		if _, err := w.Write(data); err != nil {
			return &IOError{Op: "write", Err: err}
		}
		return nil

	case schema.KindMessage:
		nested, ok := v.(map[string]interface{})
		if !ok {
			return fmt.Errorf("message field value must be map[string]interface{}, got %T", v)
		}
		desc, err := e.resolve(t.Message)
		if err != nil {
			return err
		}

		var count countingWriter
		if err := e.encodeFields(&count, nested, desc); err != nil {
			return err
		}
		if err := writeUvarint(w, uint64(count.n)); err != nil {
			return err
		}
		return e.encodeFields(w, nested, desc)

	default:
		return fmt.Errorf("no encode rule for kind %q", t.Kind)
	}
}

func (e *Encoder) resolve(name string) (*schema.Descriptor, error) {
	if e.reg == nil {
		return nil, fmt.Errorf("no resolver for message type %q", name)
	}
	return e.reg.Descriptor(name)
}
