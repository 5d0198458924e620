package quantization

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/hupe1980/motionvq/distance"
	"github.com/hupe1980/motionvq/internal/kmeans"
	"github.com/hupe1980/motionvq/progress"
)

// NumCentroids is the number of centroids per subspace (ksub). Codes are one
// byte per subspace, so every byte value addresses a centroid.
const NumCentroids = 256

// Settings controls quantizer training.
type Settings struct {
	// NumAttempts is the number of clustering runs per subspace (best is kept).
	NumAttempts int `json:"num_attempts"`
	// NumIterations is the number of Lloyd iterations per run.
	NumIterations int `json:"num_iterations"`
	// Seed drives sample selection and clustering.
	Seed int64 `json:"seed"`
	// MinimumNumberSamples is the minimum number of training vectors per centroid.
	MinimumNumberSamples int `json:"minimum_number_samples"`
	// MaximumNumberSamples is the maximum number of training vectors per centroid.
	MaximumNumberSamples int `json:"maximum_number_samples"`
}

// DefaultSettings returns the default training settings.
func DefaultSettings() Settings {
	return Settings{
		NumAttempts:          1,
		NumIterations:        25,
		Seed:                 1234,
		MinimumNumberSamples: 39,
		MaximumNumberSamples: 256,
	}
}

func (s Settings) clustering() kmeans.Settings {
	return kmeans.Settings{
		NumAttempts:   s.NumAttempts,
		NumIterations: s.NumIterations,
		Seed:          s.Seed,
	}
}

// SubspaceQuantizer implements product quantization with 256 centroids per subspace.
// The d-dimensional space is split into M contiguous subspaces of d/M components;
// each is clustered independently and a vector is represented by M centroid indices.
//
// Example: 24-dim trajectory fragment with M=8 → 8 bytes (12x compression vs float32)
//
// A trained quantizer is immutable and safe for concurrent Encode/Decode.
// Train must not run concurrently with any other method.
type SubspaceQuantizer struct {
	dimension     int // d
	numSubspaces  int // M
	subspaceDim   int // d/M
	settings      Settings
	centroids     []float32 // M * NumCentroids * subspaceDim
	trained       bool
	lastObjective []float64
}

// NewSubspaceQuantizer creates an untrained quantizer.
// dimension must be a positive multiple of numSubspaces; violations panic.
func NewSubspaceQuantizer(dimension, numSubspaces int, settings Settings) *SubspaceQuantizer {
	if dimension <= 0 || numSubspaces <= 0 {
		panic(fmt.Sprintf("quantization: invalid shape d=%d M=%d", dimension, numSubspaces))
	}
	if dimension%numSubspaces != 0 {
		panic(fmt.Sprintf("quantization: dimension %d is not divisible by %d subspaces", dimension, numSubspaces))
	}

	return &SubspaceQuantizer{
		dimension:    dimension,
		numSubspaces: numSubspaces,
		subspaceDim:  dimension / numSubspaces,
		settings:     settings,
		centroids:    make([]float32, numSubspaces*NumCentroids*(dimension/numSubspaces)),
	}
}

// FromCentroids rebuilds a trained quantizer from a persisted centroid table.
func FromCentroids(dimension, numSubspaces int, centroids []float32) (*SubspaceQuantizer, error) {
	if dimension <= 0 || numSubspaces <= 0 || dimension%numSubspaces != 0 {
		return nil, fmt.Errorf("invalid quantizer shape d=%d M=%d", dimension, numSubspaces)
	}
	if len(centroids) != numSubspaces*NumCentroids*(dimension/numSubspaces) {
		return nil, fmt.Errorf("centroid table has %d values, want %d", len(centroids), numSubspaces*NumCentroids*(dimension/numSubspaces))
	}

	return &SubspaceQuantizer{
		dimension:    dimension,
		numSubspaces: numSubspaces,
		subspaceDim:  dimension / numSubspaces,
		settings:     DefaultSettings(),
		centroids:    centroids,
		trained:      true,
	}, nil
}

// Train learns the centroid tables from samples.
//
// The number of vectors used is clamped to [Minimum, Maximum]NumberSamples*256;
// when the pool is smaller than the minimum, samples are drawn with replacement.
// Subspaces are trained in order, and report receives one labelled step per
// subspace plus per-iteration sub-steps.
//
// An empty sample set or a sample of the wrong dimension panics. The only error
// returned is ctx.Err().
func (pq *SubspaceQuantizer) Train(ctx context.Context, samples [][]float32, report progress.Func) error {
	if len(samples) == 0 {
		panic("quantization: no training samples")
	}
	for i, s := range samples {
		if len(s) != pq.dimension {
			panic(fmt.Sprintf("quantization: sample %d has dimension %d, want %d", i, len(s), pq.dimension))
		}
	}

	selected := pq.selectSamples(len(samples))
	n := len(selected)
	rep := progress.NewReporter(report)

	buf := make([]float32, n*pq.subspaceDim)
	objectives := make([]float64, pq.numSubspaces)
	table := make([]float32, len(pq.centroids))
	iterations := max(pq.settings.NumIterations, 1) * max(pq.settings.NumAttempts, 1)

	for m := range pq.numSubspaces {
		start := m * pq.subspaceDim
		for i, idx := range selected {
			copy(buf[i*pq.subspaceDim:(i+1)*pq.subspaceDim], samples[idx][start:start+pq.subspaceDim])
		}

		sub := rep.Sub(float32(m)/float32(pq.numSubspaces), float32(m+1)/float32(pq.numSubspaces))
		label := fmt.Sprintf("training subspace %d/%d", m+1, pq.numSubspaces)
		step := 0

		res, err := kmeans.Train(ctx, buf, pq.subspaceDim, NumCentroids, pq.settings.clustering(), func(kmeans.IterationStats) {
			step++
			sub.Step(step, iterations+1, label)
		})
		if err != nil {
			return err
		}

		copy(table[m*NumCentroids*pq.subspaceDim:(m+1)*NumCentroids*pq.subspaceDim], res.Centroids)
		objectives[m] = res.Objective
		sub.Report(1, label)
	}

	pq.centroids = table
	pq.lastObjective = objectives
	pq.trained = true
	return nil
}

// selectSamples returns the indices of the training vectors actually used.
func (pq *SubspaceQuantizer) selectSamples(pool int) []int {
	lo := pq.settings.MinimumNumberSamples * NumCentroids
	hi := pq.settings.MaximumNumberSamples * NumCentroids

	target := pool
	if lo > 0 && target < lo {
		target = lo
	}
	if hi > 0 && target > hi {
		target = hi
	}

	rng := rand.New(rand.NewSource(pq.settings.Seed))
	perm := rng.Perm(pool)

	if target <= pool {
		return perm[:target]
	}

	selected := make([]int, target)
	for i := range selected {
		selected[i] = perm[i%pool]
	}
	return selected
}

// Encode quantizes a vector into M bytes.
func (pq *SubspaceQuantizer) Encode(vec []float32) []byte {
	code := make([]byte, pq.numSubspaces)
	pq.EncodeInto(code, vec)
	return code
}

// EncodeInto quantizes vec into dst, which must hold CodeSize bytes.
func (pq *SubspaceQuantizer) EncodeInto(dst []byte, vec []float32) {
	pq.mustBeTrained()
	if len(vec) != pq.dimension {
		panic(fmt.Sprintf("quantization: vector dimension %d, want %d", len(vec), pq.dimension))
	}
	if len(dst) != pq.numSubspaces {
		panic(fmt.Sprintf("quantization: code buffer length %d, want %d", len(dst), pq.numSubspaces))
	}

	for m := range pq.numSubspaces {
		sub := vec[m*pq.subspaceDim : (m+1)*pq.subspaceDim]
		idx, _ := kmeans.Nearest(sub, pq.subspaceTable(m), pq.subspaceDim)
		dst[m] = byte(idx)
	}
}

// EncodeBatch encodes every vector, reporting progress once per vector.
func (pq *SubspaceQuantizer) EncodeBatch(vectors [][]float32, report progress.Func) [][]byte {
	rep := progress.NewReporter(report)

	flat := make([]byte, len(vectors)*pq.numSubspaces)
	codes := make([][]byte, len(vectors))
	for i, vec := range vectors {
		code := flat[i*pq.numSubspaces : (i+1)*pq.numSubspaces]
		pq.EncodeInto(code, vec)
		codes[i] = code
		rep.Step(i+1, len(vectors), "encoding")
	}
	return codes
}

// Decode reconstructs an approximate vector from a code.
func (pq *SubspaceQuantizer) Decode(code []byte) []float32 {
	vec := make([]float32, pq.dimension)
	pq.DecodeInto(vec, code)
	return vec
}

// DecodeInto reconstructs code into dst, which must hold Dimension values.
// This is a table lookup per subspace; no search is involved.
func (pq *SubspaceQuantizer) DecodeInto(dst []float32, code []byte) {
	pq.mustBeTrained()
	if len(code) != pq.numSubspaces {
		panic(fmt.Sprintf("quantization: code length %d, want %d", len(code), pq.numSubspaces))
	}
	if len(dst) != pq.dimension {
		panic(fmt.Sprintf("quantization: output dimension %d, want %d", len(dst), pq.dimension))
	}

	for m, c := range code {
		row := pq.centroidRow(m, int(c))
		copy(dst[m*pq.subspaceDim:(m+1)*pq.subspaceDim], row)
	}
}

// BuildDistanceTable precomputes squared distances from query to all centroids.
// The table has M*256 entries; table[m*256+k] is the squared distance between
// query subspace m and centroid k. dst is reused when large enough.
func (pq *SubspaceQuantizer) BuildDistanceTable(query []float32, dst []float32) []float32 {
	pq.mustBeTrained()
	if len(query) != pq.dimension {
		panic(fmt.Sprintf("quantization: query dimension %d, want %d", len(query), pq.dimension))
	}

	size := pq.numSubspaces * NumCentroids
	if cap(dst) < size {
		dst = make([]float32, size)
	}
	table := dst[:size]

	for m := range pq.numSubspaces {
		sub := query[m*pq.subspaceDim : (m+1)*pq.subspaceDim]
		for k := range NumCentroids {
			table[m*NumCentroids+k] = distance.SquaredL2(sub, pq.centroidRow(m, k))
		}
	}
	return table
}

// Distance returns the asymmetric distance between the query behind table and code.
// It equals SquaredL2(query, Decode(code)) up to float rounding.
func (pq *SubspaceQuantizer) Distance(table []float32, code []byte) float32 {
	if len(code) != pq.numSubspaces {
		panic(fmt.Sprintf("quantization: code length %d, want %d", len(code), pq.numSubspaces))
	}
	table = table[:pq.numSubspaces*NumCentroids]

	var dist float32
	for m, c := range code {
		dist += table[m*NumCentroids+int(c)]
	}
	return dist
}

// ReconstructionError returns the mean squared L2 error of Decode(Encode(v)) over vectors.
func (pq *SubspaceQuantizer) ReconstructionError(vectors [][]float32) float64 {
	if len(vectors) == 0 {
		return 0
	}

	code := make([]byte, pq.numSubspaces)
	rec := make([]float32, pq.dimension)
	var total float64
	for _, v := range vectors {
		pq.EncodeInto(code, v)
		pq.DecodeInto(rec, code)
		total += distance.SquaredL2Float64(v, rec)
	}
	return total / float64(len(vectors))
}

func (pq *SubspaceQuantizer) subspaceTable(m int) []float32 {
	size := NumCentroids * pq.subspaceDim
	return pq.centroids[m*size : (m+1)*size]
}

func (pq *SubspaceQuantizer) centroidRow(m, k int) []float32 {
	off := (m*NumCentroids + k) * pq.subspaceDim
	return pq.centroids[off : off+pq.subspaceDim]
}

func (pq *SubspaceQuantizer) mustBeTrained() {
	if !pq.trained {
		panic("quantization: quantizer is not trained")
	}
}

// Dimension returns d.
func (pq *SubspaceQuantizer) Dimension() int { return pq.dimension }

// NumSubspaces returns M.
func (pq *SubspaceQuantizer) NumSubspaces() int { return pq.numSubspaces }

// SubspaceDimension returns d/M.
func (pq *SubspaceQuantizer) SubspaceDimension() int { return pq.subspaceDim }

// CodeSize returns the number of bytes per code (M).
func (pq *SubspaceQuantizer) CodeSize() int { return pq.numSubspaces }

// IsTrained reports whether Train or FromCentroids produced the tables.
func (pq *SubspaceQuantizer) IsTrained() bool { return pq.trained }

// Centroids returns the flat M*256*(d/M) centroid table.
// The slice is shared and must not be modified.
func (pq *SubspaceQuantizer) Centroids() []float32 { return pq.centroids }

// Objectives returns the final clustering error of each subspace from the last Train.
func (pq *SubspaceQuantizer) Objectives() []float64 { return pq.lastObjective }

// CompressionRatio returns the float32 size over the code size.
func (pq *SubspaceQuantizer) CompressionRatio() float64 {
	return float64(pq.dimension*4) / float64(pq.numSubspaces)
}
