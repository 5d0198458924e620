// Package hash holds the CRC32-Castagnoli helpers shared by the codebook blob
// format and the object-store uploaders.
//
// Blob headers store the checksum as a little-endian uint32. Object stores
// that validate uploads (S3 x-amz-checksum-crc32c) want the big-endian bytes
// base64 encoded, which EncodeCRC32C produces.
package hash
