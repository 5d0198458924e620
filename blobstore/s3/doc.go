// Package s3 stores codebook libraries in Amazon S3.
//
//	store, err := s3.New(ctx, "motion-assets",
//	    s3.WithPrefix("libraries/locomotion"),
//	    s3.WithRegion("eu-central-1"),
//	)
//	if err != nil { ... }
//	lib, err := motionvq.Open(ctx, store, "v1")
//
// Reads are ranged GETs. Put sends a single request carrying a CRC32C
// checksum; Create streams through manager.Uploader, which switches to a
// multipart upload once the first part fills.
package s3
