// Package blobstore abstracts where codebook blobs and manifests live.
//
// Implementations:
//
//   - LocalStore: a directory; blobs are memory mapped on Open
//   - MemoryStore: process memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible servers
//
// Codebook blobs are written once by an offline build and read whole when a
// library is opened. ReadAll returns the contents without copying when the
// blob implements Mappable.
package blobstore
