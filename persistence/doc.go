// Package persistence implements the binary codebook format.
//
// A codebook blob is a fixed 48-byte little-endian Header followed by the
// payload, optionally compressed with LZ4 or ZSTD:
//
//	Header   magic "MCB1", format version, metric version, compression,
//	         raw size, payload size, CRC32C of the raw payload
//	Payload  metric descriptor (length-prefixed, encoded with a codec.Codec)
//	         dimension, subspaces, interval count, row count
//	         centroid table   M*256*dsub float32
//	         mean, scale      d float32 each
//	         interval table   (id, first frame, frame count) int64 triples
//	         code array       rows*M bytes
//
// Uncompressed blobs keep the code array at the end of the blob, so a reader
// given mapped bytes returns a codebook whose codes alias the mapping.
package persistence
