package wire

import (
	"errors"
	"io"
)

// maxVarintLen is the longest valid encoding of a 64-bit varint.
const maxVarintLen = 10

// readUvarint decodes one unsigned varint from the source. End of input on
// the first byte is propagated as errEndOfInput so message loops can treat a
// tag boundary as a soft stop; end of input on any later byte is a hard
// truncation.
func readUvarint(s *source) (uint64, error) {
	var result uint64
	var shift uint

	for i := 0; i < maxVarintLen; i++ {
		b, err := s.readByte()
		if err != nil {
			if i > 0 && errors.Is(err, errEndOfInput) {
				return 0, ErrTruncated
			}
			return 0, err
		}

		// The 10th byte must terminate and may only carry the top bit of
		// a 64-bit value.
		if i == maxVarintLen-1 {
			if b&0x80 != 0 {
				return 0, ErrVarintTooLong
			}
			if b > 1 {
				return 0, ErrVarintOverflow
			}
		}

		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, nil
		}
		shift += 7
	}

	return 0, ErrVarintTooLong
}

// readLength reads a varint length prefix. It always follows a tag, so end
// of input here is never recoverable.
func readLength(s *source) (uint64, error) {
	v, err := readUvarint(s)
	if err != nil {
		if errors.Is(err, errEndOfInput) {
			return 0, ErrTruncated
		}
		return 0, err
	}
	return v, nil
}

// writeUvarint encodes v as an unsigned varint into w.
func writeUvarint(w io.Writer, v uint64) error {
	var buf [maxVarintLen]byte
	n := 0
	for v >= 0x80 {
		buf[n] = byte(v) | 0x80
		v >>= 7
		n++
	}
	buf[n] = byte(v)
	n++

	if _, err := w.Write(buf[:n]); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// writeTag encodes a field tag into w.
func writeTag(w io.Writer, fieldNumber FieldNumber, wireType WireType) error {
	return writeUvarint(w, uint64(MakeTag(fieldNumber, wireType)))
}

// EncodeZigZag32 folds the sign of a 32-bit integer into its low bit so
// small magnitudes of either sign varint-encode compactly.
func EncodeZigZag32(v int32) uint64 {
	return uint64((uint32(v) << 1) ^ uint32(v>>31))
}

// EncodeZigZag64 is the 64-bit zigzag mapping.
func EncodeZigZag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// DecodeZigZag32 inverts EncodeZigZag32.
func DecodeZigZag32(encoded uint64) int32 {
	return int32((uint32(encoded) >> 1) ^ uint32(-int32(encoded&1)))
}

// DecodeZigZag64 inverts EncodeZigZag64.
func DecodeZigZag64(encoded uint64) int64 {
	return int64((encoded >> 1) ^ uint64(-int64(encoded&1)))
}

// VarintSize returns the number of bytes needed to varint-encode v.
func VarintSize(v uint64) int {
	switch {
	case v < 1<<7:
		return 1
	case v < 1<<14:
		return 2
	case v < 1<<21:
		return 3
	case v < 1<<28:
		return 4
	case v < 1<<35:
		return 5
	case v < 1<<42:
		return 6
	case v < 1<<49:
		return 7
	case v < 1<<56:
		return 8
	case v < 1<<63:
		return 9
	default:
		return 10
	}
}
