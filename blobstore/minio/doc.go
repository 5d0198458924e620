// Package minio stores codebook libraries on MinIO or any S3-compatible
// server (Ceph, Garage, SeaweedFS) through the MinIO Go client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil { ... }
//
//	store := minioblob.NewStore(client, "motion", "libraries/locomotion")
//	lib, err := motionvq.Open(ctx, store, "v1")
//
// Reads use ranged GETs. Create streams through an unsized PutObject, which
// the client turns into a multipart upload.
package minio
