package wire

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/tagwire/tagwire/schema"
)

// Resolver supplies descriptors for nested message fields. The registry
// implements it; tests can use resolverFunc or a plain map wrapper.
type Resolver interface {
	Descriptor(name string) (*schema.Descriptor, error)
}

// Decoder parses a sequential byte source into message values directed by
// a descriptor. The top-level message has no outer tag or length; its frame
// is bounded only by the end of the stream, and a stream that ends at a tag
// boundary yields the fields read so far with everything else at its zero
// value.
type Decoder struct {
	src   *source
	reg   Resolver
	arena *Arena
}

// NewDecoder creates a decoder reading from r. All byte sequences in the
// decoded output are allocated from arena.
func NewDecoder(r io.Reader, reg Resolver, arena *Arena) *Decoder {
	return &Decoder{
		src:   newSource(r),
		reg:   reg,
		arena: arena,
	}
}

// DecodeMessage decodes a byte slice in one call - main entry point.
func DecodeMessage(data []byte, desc *schema.Descriptor, reg Resolver, arena *Arena) (map[string]interface{}, error) {
	return NewDecoder(bytes.NewReader(data), reg, arena).Decode(desc)
}

// Decode reads one top-level message.
func (d *Decoder) Decode(desc *schema.Descriptor) (map[string]interface{}, error) {
	return d.decodeFields(desc)
}

// decodeFields runs the per-message tag loop within the current view.
func (d *Decoder) decodeFields(desc *schema.Descriptor) (map[string]interface{}, error) {
	result, err := d.zeroMessage(desc, map[string]bool{desc.Name: true})
	if err != nil {
		return nil, err
	}

	for {
		tagVal, err := readUvarint(d.src)
		if err != nil {
			if errors.Is(err, errEndOfInput) {
				// Tag boundary: the fields seen so far are the message.
				return result, nil
			}
			return nil, err
		}

		fieldNumber, wireType := ParseTag(Tag(tagVal))
		field := desc.FieldByNumber(int32(fieldNumber))
		if field == nil {
			if err := d.skipField(wireType); err != nil {
				return nil, fmt.Errorf("message %s, field %d: %w", desc.Name, fieldNumber, err)
			}
			continue
		}

		if wireType != fieldWireType(&field.Type) {
			return nil, wrapWithField(fmt.Errorf("%w: got wire type %d for %s field",
				ErrWireTypeMismatch, wireType, field.Type.Kind), field.Name)
		}

		if field.Type.Kind == schema.KindRepeated {
			if err := d.decodeRepeated(result, field); err != nil {
				return nil, wrapWithField(err, field.Name)
			}
			continue
		}

		value, err := d.decodeValue(&field.Type)
		if err != nil {
			return nil, wrapWithField(err, field.Name)
		}
		result[field.Name] = value
	}
}

// decodeRepeated handles one wire occurrence of a repeated field. Scalar
// elements arrive as a packed length-delimited run consumed to exhaustion;
// bytes and message elements arrive one per tag occurrence. Either way the
// decoded elements append to whatever earlier occurrences produced.
func (d *Decoder) decodeRepeated(result map[string]interface{}, field *schema.Field) error {
	elems, _ := result[field.Name].([]interface{})

	elem := field.Type.Elem
	if !elem.Scalar() {
		value, err := d.decodeValue(elem)
		if err != nil {
			return err
		}
		result[field.Name] = append(elems, value)
		return nil
	}

	length, err := readLength(d.src)
	if err != nil {
		return err
	}
	if err := d.src.pushLimit(length); err != nil {
		return err
	}
	defer d.src.popLimit()

	for {
		raw, err := readUvarint(d.src)
		if err != nil {
			if errors.Is(err, errEndOfInput) {
				// Only a clean stop: the stream ending before the run's
				// promised length is a short payload.
				if d.src.remaining() != 0 {
					return ErrTruncated
				}
				result[field.Name] = elems
				return nil
			}
			return err
		}
		elems = append(elems, scalarFromVarint(raw, elem))
	}
}

// decodeValue decodes one singular value of the given type from the
// current position.
func (d *Decoder) decodeValue(t *schema.Type) (interface{}, error) {
	switch t.Kind {
	case schema.KindSint, schema.KindUint, schema.KindBool, schema.KindEnum:
		raw, err := readUvarint(d.src)
		if err != nil {
			if errors.Is(err, errEndOfInput) {
				return nil, ErrTruncated
			}
			return nil, err
		}
		return scalarFromVarint(raw, t), nil

	case schema.KindBytes:
		length, err := readLength(d.src)
		if err != nil {
			return nil, err
		}
		return d.decodeBytes(length)

	case schema.KindMessage:
		nested, err := d.resolve(t.Message)
		if err != nil {
			return nil, err
		}
		length, err := readLength(d.src)
		if err != nil {
			return nil, err
		}
		if err := d.src.pushLimit(length); err != nil {
			return nil, err
		}
		defer d.src.popLimit()
		return d.decodeFields(nested)

	default:
		return nil, fmt.Errorf("no decode rule for kind %q", t.Kind)
	}
}

// maxUpfrontAlloc bounds how much a length prefix alone can size an
// allocation. A claim above it is read in staged chunks first, so a prefix
// the stream cannot back fails as a short read, never as an oversized make.
const maxUpfrontAlloc = 1 << 20

// decodeBytes copies a length-prefixed payload into the arena. Inside a
// bounded view a length beyond the view's remaining bytes is rejected
// before anything is allocated; the view's own bound may itself descend
// from an unverified top-level claim, so a large length is never trusted
// upfront even there.
func (d *Decoder) decodeBytes(length uint64) (interface{}, error) {
	if rem := d.src.remaining(); rem >= 0 && length > uint64(rem) {
		return nil, ErrTruncated
	}

	if length <= maxUpfrontAlloc {
		buf, err := d.arena.Alloc(int(length))
		if err != nil {
			return nil, err
		}
		if err := d.src.readFull(buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	if d.arena.budget > 0 && length > uint64(d.arena.budget-d.arena.used) {
		return nil, fmt.Errorf("%w: need %d bytes, %d of %d used",
			ErrArenaExhausted, length, d.arena.used, d.arena.budget)
	}
	var staged bytes.Buffer
	var scratch [32 * 1024]byte
	for left := length; left > 0; {
		chunk := uint64(len(scratch))
		if left < chunk {
			chunk = left
		}
		if err := d.src.readFull(scratch[:chunk]); err != nil {
			return nil, err
		}
		staged.Write(scratch[:chunk])
		left -= chunk
	}
	buf, err := d.arena.Alloc(staged.Len())
	if err != nil {
		return nil, err
	}
	copy(buf, staged.Bytes())
	return buf, nil
}

// scalarFromVarint converts a decoded varint into the in-memory value for a
// scalar type. Enum ordinals are always carried as a full-width varint and
// surfaced as int32 regardless of the declared width.
func scalarFromVarint(raw uint64, t *schema.Type) interface{} {
	switch t.Kind {
	case schema.KindSint:
		if t.Bits == 32 {
			return DecodeZigZag32(raw)
		}
		return DecodeZigZag64(raw)
	case schema.KindUint:
		if t.Bits == 32 {
			return uint32(raw)
		}
		return raw
	case schema.KindBool:
		return raw != 0
	default: // enum
		return int32(raw)
	}
}

// skipField steps over a field whose number is not in the descriptor.
func (d *Decoder) skipField(wireType WireType) error {
	switch wireType {
	case WireVarint:
		if _, err := readUvarint(d.src); err != nil {
			if errors.Is(err, errEndOfInput) {
				return ErrTruncated
			}
			return err
		}
		return nil
	case WireFixed64:
		return d.src.skip(8)
	case WireFixed32:
		return d.src.skip(4)
	case WireBytes:
		length, err := readLength(d.src)
		if err != nil {
			return err
		}
		return d.src.skip(length)
	default:
		return fmt.Errorf("cannot skip wire type %d", wireType)
	}
}

// zeroMessage builds the all-defaults value for a descriptor. A message
// type that recurs inside its own default chain defaults to nil at the
// recurring occurrence, otherwise the template could not terminate.
func (d *Decoder) zeroMessage(desc *schema.Descriptor, seen map[string]bool) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(desc.Fields))
	for _, field := range desc.Fields {
		switch field.Type.Kind {
		case schema.KindMessage:
			if seen[field.Type.Message] {
				result[field.Name] = nil
				continue
			}
			nested, err := d.resolve(field.Type.Message)
			if err != nil {
				return nil, wrapWithField(err, field.Name)
			}
			seen[field.Type.Message] = true
			value, err := d.zeroMessage(nested, seen)
			if err != nil {
				return nil, wrapWithField(err, field.Name)
			}
			delete(seen, field.Type.Message)
			result[field.Name] = value
		case schema.KindRepeated:
			result[field.Name] = []interface{}{}
		default:
			result[field.Name] = zeroScalar(&field.Type)
		}
	}
	return result, nil
}

func zeroScalar(t *schema.Type) interface{} {
	switch t.Kind {
	case schema.KindSint:
		if t.Bits == 32 {
			return int32(0)
		}
		return int64(0)
	case schema.KindUint:
		if t.Bits == 32 {
			return uint32(0)
		}
		return uint64(0)
	case schema.KindBool:
		return false
	case schema.KindEnum:
		return int32(0)
	default: // bytes
		return []byte{}
	}
}

func (d *Decoder) resolve(name string) (*schema.Descriptor, error) {
	if d.reg == nil {
		return nil, fmt.Errorf("no resolver for message type %q", name)
	}
	return d.reg.Descriptor(name)
}

// fieldWireType maps a semantic type to the wire type its tag carries.
// Repeated fields of scalar elements ride a packed length-delimited run;
// repeated bytes/message fields tag each element separately, which is still
// wire type 2. The selection depends only on the type, never on the data.
func fieldWireType(t *schema.Type) WireType {
	switch t.Kind {
	case schema.KindBytes, schema.KindMessage, schema.KindRepeated:
		return WireBytes
	default:
		return WireVarint
	}
}
