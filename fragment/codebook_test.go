package fragment_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/quantization"
)

// tinyCodebook builds a codebook over a 6-dimensional pose metric whose
// quantizer has one centroid table per xyz triple.
func tinyCodebook(t *testing.T, intervals []fragment.IntervalEntry, rows int) *fragment.Codebook {
	t.Helper()
	m := fragment.DefaultPoseMetric(0)
	centroids := make([]float32, 2*quantization.NumCentroids*3)
	for i := range centroids {
		centroids[i] = float32(i)
	}
	pq, err := quantization.FromCentroids(6, 2, centroids)
	require.NoError(t, err)

	cb, err := fragment.NewCodebook(m, fragment.IdentityNormalization(6), pq, intervals, make([]byte, rows*2))
	require.NoError(t, err)
	return cb
}

func TestCodebook_EncodeDecode(t *testing.T) {
	cb := tinyCodebook(t, []fragment.IntervalEntry{{ID: 4, FirstFrame: 10, NumFrames: 3, Row: 0}}, 3)

	// Centroid k of subspace 0 is (3k, 3k+1, 3k+2).
	f := fragment.Fragment{Metric: "pose", Values: []float32{6, 7, 8, 768, 769, 770}}
	code, err := cb.Encode(f)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 0}, code)

	decoded := cb.Decode(code)
	assert.Equal(t, f.Values, decoded.Values)
	assert.Equal(t, "pose", decoded.Metric)

	dst := make([]float32, 6)
	cb.DecodeNormalized(dst, []byte{1, 1})
	assert.Equal(t, []float32{3, 4, 5, 771, 772, 773}, dst)
}

func TestCodebook_MetricMismatch(t *testing.T) {
	cb := tinyCodebook(t, nil, 0)

	_, err := cb.Encode(fragment.Fragment{Metric: "trajectory", Values: make([]float32, 6)})
	assert.ErrorIs(t, err, fragment.ErrMetricMismatch)

	_, err = cb.Encode(fragment.Fragment{Metric: "pose", Values: make([]float32, 5)})
	var dimErr *fragment.ErrDimensionMismatch
	assert.ErrorAs(t, err, &dimErr)

	err = cb.Normalize(make([]float32, 6), fragment.Fragment{Metric: "other", Values: make([]float32, 6)})
	assert.ErrorIs(t, err, fragment.ErrMetricMismatch)
}

func TestCodebook_CodeAt(t *testing.T) {
	cb := tinyCodebook(t, []fragment.IntervalEntry{
		{ID: 1, FirstFrame: 0, NumFrames: 2, Row: 0},
		{ID: 9, FirstFrame: 100, NumFrames: 2, Row: 2},
	}, 4)

	code, ok := cb.CodeAt(9, 101)
	require.True(t, ok)
	assert.Len(t, code, 2)
	assert.Equal(t, 2, cap(code), "codes are capped to their row")

	_, ok = cb.CodeAt(9, 99)
	assert.False(t, ok)
	_, ok = cb.Fragment(2, 0)
	assert.False(t, ok)
}

func TestCodebook_WithVersion(t *testing.T) {
	cb := tinyCodebook(t, nil, 0)

	v := cb.WithVersion(3)

	assert.Equal(t, uint32(3), v.Version())
	assert.Equal(t, uint32(0), cb.Version())
	assert.Same(t, cb.Quantizer(), v.Quantizer())
}

func TestNewCodebook_Validation(t *testing.T) {
	m := fragment.DefaultPoseMetric(0)
	pq, err := quantization.FromCentroids(6, 2, make([]float32, 2*256*3))
	require.NoError(t, err)
	norm := fragment.IdentityNormalization(6)

	tests := []struct {
		name      string
		norm      fragment.Normalization
		pq        *quantization.SubspaceQuantizer
		intervals []fragment.IntervalEntry
		codes     int
	}{
		{"untrained", norm, quantization.NewSubspaceQuantizer(6, 2, quantization.DefaultSettings()), nil, 0},
		{"wrong dimension", norm, mustQuantizer(t, 9, 3), nil, 0},
		{"wrong subspaces", norm, mustQuantizer(t, 6, 1), nil, 0},
		{"wrong normalization", fragment.IdentityNormalization(3), pq, nil, 0},
		{"gap in rows", norm, pq, []fragment.IntervalEntry{{ID: 0, NumFrames: 2, Row: 1}}, 6},
		{"empty interval", norm, pq, []fragment.IntervalEntry{{ID: 0, NumFrames: 0, Row: 0}}, 0},
		{"duplicate id", norm, pq, []fragment.IntervalEntry{{ID: 0, NumFrames: 1, Row: 0}, {ID: 0, NumFrames: 1, Row: 1}}, 4},
		{"short codes", norm, pq, []fragment.IntervalEntry{{ID: 0, NumFrames: 2, Row: 0}}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fragment.NewCodebook(m, tt.norm, tt.pq, tt.intervals, make([]byte, tt.codes))
			assert.Error(t, err)
		})
	}
}

func mustQuantizer(t *testing.T, d, m int) *quantization.SubspaceQuantizer {
	t.Helper()
	pq, err := quantization.FromCentroids(d, m, make([]float32, d*quantization.NumCentroids))
	require.NoError(t, err)
	return pq
}
