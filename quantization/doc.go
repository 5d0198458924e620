// Package quantization compresses feature vectors with product quantization.
//
// A SubspaceQuantizer splits a d-dimensional vector into M contiguous
// subspaces of d/M components and learns 256 centroids per subspace with
// k-means. A vector is then stored as M bytes, one centroid index per subspace:
//
//	pq := quantization.NewSubspaceQuantizer(24, 8, quantization.DefaultSettings())
//	_ = pq.Train(ctx, samples, nil)
//	code := pq.Encode(vec)   // 24 floats → 8 bytes
//	approx := pq.Decode(code) // table lookup, no search
//
// For scanning many codes against one query, build the per-query distance
// table once and sum M lookups per candidate:
//
//	table := pq.BuildDistanceTable(query, nil)
//	d := pq.Distance(table, code)
//
// Training is deterministic for a fixed seed and input. A trained quantizer
// is read-only and may be shared between goroutines.
package quantization
