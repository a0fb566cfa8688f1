package wire

import (
	"errors"
	"io"
	"math"
)

// errEndOfInput marks exhaustion of the current view: either the innermost
// length bound was reached or the underlying stream ended. Message decode
// loops absorb it at tag boundaries; everywhere else it is promoted to
// ErrTruncated before leaving the decoder.
var errEndOfInput = errors.New("end of input")

// source is a sequential byte source with a stack of length-bounded views.
// The top-level frame of a message stream is unbounded; every nested
// length-delimited payload pushes a view that ends exactly L bytes further
// in, so a nested decode can never read past its frame.
type source struct {
	r   io.Reader
	one [1]byte
	pos int64   // total bytes consumed
	end []int64 // absolute end offsets of bounded views, innermost last
}

func newSource(r io.Reader) *source {
	return &source{r: r}
}

// remaining returns the bytes left in the innermost view, or -1 when
// unbounded.
func (s *source) remaining() int64 {
	if len(s.end) == 0 {
		return -1
	}
	return s.end[len(s.end)-1] - s.pos
}

// pushLimit enters a bounded view of n bytes starting at the current
// position. A length that overruns the enclosing view, or that has no
// representable end offset, is a truncation: no stream can deliver the
// promised payload. The comparisons stay in uint64 space so a length with
// the top bit set cannot wrap negative.
func (s *source) pushLimit(n uint64) error {
	if rem := s.remaining(); rem >= 0 && n > uint64(rem) {
		return ErrTruncated
	}
	if n > math.MaxInt64-uint64(s.pos) {
		return ErrTruncated
	}
	s.end = append(s.end, s.pos+int64(n))
	return nil
}

// popLimit leaves the innermost bounded view.
func (s *source) popLimit() {
	s.end = s.end[:len(s.end)-1]
}

// readByte reads a single byte. Exhaustion of the innermost view and a
// clean end of the underlying stream both surface as errEndOfInput; the
// caller's position in the grammar decides whether that is soft or fatal.
func (s *source) readByte() (byte, error) {
	if rem := s.remaining(); rem == 0 {
		return 0, errEndOfInput
	}
	if _, err := io.ReadFull(s.r, s.one[:]); err != nil {
		if err == io.EOF {
			return 0, errEndOfInput
		}
		return 0, &IOError{Op: "read", Err: err}
	}
	s.pos++
	return s.one[0], nil
}

// readFull fills buf from the source. A short read is always a hard
// truncation: readFull is only used for payloads whose length was already
// promised by a prefix.
func (s *source) readFull(buf []byte) error {
	if rem := s.remaining(); rem >= 0 && int64(len(buf)) > rem {
		return ErrTruncated
	}
	n, err := io.ReadFull(s.r, buf)
	s.pos += int64(n)
	if err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return ErrTruncated
		}
		return &IOError{Op: "read", Err: err}
	}
	return nil
}

// skip discards n bytes without retaining them, used to step over unknown
// length-delimited fields.
func (s *source) skip(n uint64) error {
	var scratch [256]byte
	for n > 0 {
		chunk := uint64(len(scratch))
		if n < chunk {
			chunk = n
		}
		if err := s.readFull(scratch[:chunk]); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
