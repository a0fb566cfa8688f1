package wire

// WireType is the 3-bit framing discriminator carried in every tag.
type WireType int32

const (
	WireVarint     WireType = 0 // varint and zigzag scalars, bools, enums
	WireFixed64    WireType = 1 // not produced by this engine
	WireBytes      WireType = 2 // byte sequences, nested messages, packed runs
	WireStartGroup WireType = 3 // deprecated, tag-compatible only
	WireEndGroup   WireType = 4 // deprecated, tag-compatible only
	WireFixed32    WireType = 5 // not produced by this engine
)

// FieldNumber identifies a field within one message type.
type FieldNumber int32

// Tag packs a field number and a wire type into a single varint-encoded
// value: number in the high bits, wire type in the low three.
type Tag uint64

// MakeTag builds a tag from a field number and wire type.
func MakeTag(fieldNumber FieldNumber, wireType WireType) Tag {
	return Tag(uint64(fieldNumber)<<3 | uint64(wireType))
}

// ParseTag splits a tag back into its field number and wire type.
func ParseTag(tag Tag) (FieldNumber, WireType) {
	return FieldNumber(tag >> 3), WireType(tag & 0x7)
}
