package persistence

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// MagicNumber identifies codebook blobs (ASCII "MCB1" in file order).
	MagicNumber = 0x3142434D
	// FormatVersion is the current blob layout version.
	FormatVersion = 1
	// HeaderSize is the encoded size of Header.
	HeaderSize = 48
)

var (
	ErrInvalidMagic   = errors.New("invalid magic number")
	ErrInvalidVersion = errors.New("unsupported version")
	ErrCorrupt        = errors.New("corrupt codebook payload")
)

// Header is the fixed-size prefix of every codebook blob.
type Header struct {
	Magic         uint32
	FormatVersion uint32
	MetricVersion uint32
	Compression   CompressionType
	RawSize       uint64
	PayloadSize   uint64
	Checksum      uint32 // CRC32C of the raw payload
}

// MarshalBinary encodes the header into HeaderSize bytes.
func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:], h.Magic)
	binary.LittleEndian.PutUint32(buf[4:], h.FormatVersion)
	binary.LittleEndian.PutUint32(buf[8:], h.MetricVersion)
	buf[12] = byte(h.Compression)
	binary.LittleEndian.PutUint64(buf[16:], h.RawSize)
	binary.LittleEndian.PutUint64(buf[24:], h.PayloadSize)
	binary.LittleEndian.PutUint32(buf[32:], h.Checksum)
	return buf, nil
}

// UnmarshalBinary decodes and validates a header.
func (h *Header) UnmarshalBinary(data []byte) error {
	if len(data) < HeaderSize {
		return fmt.Errorf("%w: header needs %d bytes, got %d", ErrCorrupt, HeaderSize, len(data))
	}
	h.Magic = binary.LittleEndian.Uint32(data[0:])
	if h.Magic != MagicNumber {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidMagic, h.Magic)
	}
	h.FormatVersion = binary.LittleEndian.Uint32(data[4:])
	if h.FormatVersion != FormatVersion {
		return fmt.Errorf("%w: %d", ErrInvalidVersion, h.FormatVersion)
	}
	h.MetricVersion = binary.LittleEndian.Uint32(data[8:])
	h.Compression = CompressionType(data[12])
	h.RawSize = binary.LittleEndian.Uint64(data[16:])
	h.PayloadSize = binary.LittleEndian.Uint64(data[24:])
	h.Checksum = binary.LittleEndian.Uint32(data[32:])
	return nil
}

// ReadHeader decodes the header at the start of a blob.
func ReadHeader(data []byte) (Header, error) {
	var h Header
	err := h.UnmarshalBinary(data)
	return h, err
}
