// Package motionvq finds, every tick, the pre-recorded motion fragment that
// best matches what a character is doing and where it is asked to go.
//
// Offline, each metric (a trajectory layout, a pose layout) is sampled from
// the animation corpus, normalized and compressed with product quantization
// into a Codebook of one byte code per frame. Online, a query fragment is
// scored against every admissible frame through precomputed distance tables
// and the candidates are ranked by deviation.
//
// # Building and saving
//
//	lib, err := motionvq.Build(ctx, sampler, []fragment.Metric{
//	    fragment.DefaultTrajectoryMetric(),
//	    fragment.DefaultPoseMetric(leftFoot, rightFoot, hips),
//	},
//	    motionvq.WithLogger(motionvq.NewTextLogger(slog.LevelInfo)),
//	    motionvq.WithCompression(persistence.CompressionZSTD),
//	)
//	if err != nil { ... }
//	defer lib.Close()
//
//	store := blobstore.NewLocalStore("./assets")
//	_, err = lib.Save(ctx, store, "locomotion")
//
// Each metric is versioned on its own: saving again only rewrites codebooks
// whose contents changed.
//
// # Opening and searching
//
//	lib, err := motionvq.Open(ctx, store, "locomotion", motionvq.WithMemoryLimit(256<<20))
//	if err != nil { ... }
//	defer lib.Close()
//
//	s, err := lib.Searcher("pose", "trajectory")
//	q, err := s.NewQuery(poseFragment, &trajectoryFragment)
//	if err != nil { ... }
//	defer q.Release()
//
//	best, ok := q.Best(admissible)
//
// Codebooks are immutable and shared; queries and deviation tables belong to
// one goroutine and return their buffers on Release.
//
// # Storage
//
// Libraries live in a blobstore.BlobStore: a local directory (memory mapped),
// process memory, Amazon S3 (blobstore/s3) or MinIO (blobstore/minio).
package motionvq
