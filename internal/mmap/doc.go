// Package mmap maps codebook blobs read-only into memory.
//
// A persisted codebook is mostly a flat array of PQ codes. Mapping the blob
// lets the decoder alias that array instead of copying it onto the heap:
//
//	m, err := mmap.Open("trajectory-v3.mcb")
//	if err != nil { ... }
//	defer m.Close()
//
//	codes, _ := m.Section(off, n)
//	_ = m.Advise(mmap.AccessRandom)
//
// Unix builds use mmap(2) and madvise(2). Windows builds use
// CreateFileMapping/MapViewOfFile and ignore access hints.
//
// Slices returned by Bytes and Section are valid until Close. Close is
// idempotent and safe to call concurrently with readers that have already
// returned.
package mmap
