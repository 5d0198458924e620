// Package testutil provides testing utilities for motionvq.
//
// This package is intended for use in tests and benchmarks only.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	vecs := rng.UniformVectors(4096, 8) // uniform [0, 1)
//
// # Synthetic Motion
//
// MotionCorpus implements fragment.Sampler with procedural clips: the root
// walks along arcs of constant speed and turn rate while the joints swing
// periodically in root space.
//
//	corpus := testutil.NewMotionCorpus(rng, 120, 90, 60)
//	cb, err := fragment.Build(ctx, corpus, fragment.DefaultTrajectoryMetric())
package testutil
