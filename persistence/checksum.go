package persistence

import (
	"errors"
	"fmt"
	"hash"
	"io"

	ihash "github.com/hupe1980/motionvq/internal/hash"
)

// ChecksumWriter wraps an io.Writer and computes a running CRC32C checksum.
type ChecksumWriter struct {
	w    io.Writer
	hash hash.Hash32
	n    int64
}

// NewChecksumWriter creates a new checksumming writer.
func NewChecksumWriter(w io.Writer) *ChecksumWriter {
	return &ChecksumWriter{
		w:    w,
		hash: ihash.NewCRC32C(),
	}
}

// Write implements io.Writer.
func (cw *ChecksumWriter) Write(p []byte) (int, error) {
	_, _ = cw.hash.Write(p)
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

// Sum returns the current checksum value.
func (cw *ChecksumWriter) Sum() uint32 {
	return cw.hash.Sum32()
}

// Written returns the number of bytes written.
func (cw *ChecksumWriter) Written() int64 {
	return cw.n
}

// Verify returns a ChecksumMismatchError if the CRC32C of data differs from expected.
func Verify(data []byte, expected uint32) error {
	if actual := ihash.CRC32C(data); actual != expected {
		return &ChecksumMismatchError{Expected: expected, Actual: actual}
	}
	return nil
}

// ChecksumMismatchError is returned when checksum verification fails.
type ChecksumMismatchError struct {
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%08x, got 0x%08x", e.Expected, e.Actual)
}

// IsChecksumMismatch returns true if err is or wraps a checksum mismatch error.
func IsChecksumMismatch(err error) bool {
	var target *ChecksumMismatchError
	return errors.As(err, &target)
}
