package wire

import (
	"errors"
	"fmt"
	"strings"
)

// Codec error sentinels. Everything except the internal tag-boundary end of
// input aborts the whole Decode/Encode call; callers can errors.Is against
// these to classify failures.
var (
	// ErrTruncated reports end of input in the middle of a primitive: a
	// varint missing its terminating byte, a byte run shorter than its
	// length prefix, or a bounded view cut mid-element.
	ErrTruncated = errors.New("truncated stream")

	// ErrVarintOverflow reports a varint whose payload exceeds 64 bits.
	ErrVarintOverflow = errors.New("varint overflow")

	// ErrVarintTooLong reports more than 10 continuation bytes.
	ErrVarintTooLong = errors.New("varint too long")

	// ErrArenaExhausted reports that the allocation context cannot satisfy
	// a request within its byte budget.
	ErrArenaExhausted = errors.New("arena budget exhausted")

	// ErrWireTypeMismatch reports a tag whose wire type does not match the
	// one implied by the field's semantic type.
	ErrWireTypeMismatch = errors.New("wire type mismatch")
)

// IOError wraps a failure of the underlying byte source or sink. It is
// always fatal and never retried.
type IOError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// FieldError carries the path of message fields leading to a failure.
type FieldError struct {
	FieldPath []string // e.g. ["entry", "postings", "doc_id"]
	Err       error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if len(e.FieldPath) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("error at field path %s: %v", strings.Join(e.FieldPath, "."), e.Err)
}

// Unwrap returns the underlying error.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// wrapWithField prefixes a field name onto an error's path.
func wrapWithField(err error, fieldName string) error {
	if err == nil {
		return nil
	}

	var fe *FieldError
	if errors.As(err, &fe) {
		return &FieldError{
			FieldPath: append([]string{fieldName}, fe.FieldPath...),
			Err:       fe.Err,
		}
	}

	return &FieldError{
		FieldPath: []string{fieldName},
		Err:       err,
	}
}
