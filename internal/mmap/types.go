package mmap

import "errors"

// AccessPattern is an access hint passed to the kernel.
type AccessPattern int

const (
	// AccessDefault removes any previous hint.
	AccessDefault AccessPattern = iota
	// AccessSequential hints at a front-to-back scan, as done while decoding a blob.
	AccessSequential
	// AccessRandom hints at scattered lookups, as done by code table probes.
	AccessRandom
	// AccessWillNeed asks the kernel to prefetch the mapping.
	AccessWillNeed
	// AccessDontNeed tells the kernel the pages can be dropped.
	AccessDontNeed
)

var (
	// ErrClosed is returned when a closed mapping is accessed.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for files whose size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
	// ErrOutOfBounds is returned when a section exceeds the mapping.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
)
