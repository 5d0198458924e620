// Package kmeans implements k-means clustering for quantization training.
//
// Used by the subspace quantizer to learn one 256-entry centroid table per
// subspace. Training is deterministic for a given seed: centroids are
// initialised from a seeded permutation of the input and empty clusters are
// recovered by splitting a populated cluster rather than by re-sampling.
package kmeans
