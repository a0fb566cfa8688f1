package wire

// countingWriter discards everything written to it and keeps the byte
// count. The encoder runs its measuring pass against one of these with the
// exact same routines as the real pass, so the length prefix it writes is
// the length the payload will actually occupy.
type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
