package search_test

import (
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/quantization"
	"github.com/hupe1980/motionvq/search"
)

// layoutCodebook returns a codebook with intervals 3:[0,4) at rows 0-3 and
// 8:[10,13) at rows 4-6.
func layoutCodebook(t *testing.T) *fragment.Codebook {
	t.Helper()
	pq, err := quantization.FromCentroids(6, 2, make([]float32, 2*quantization.NumCentroids*3))
	require.NoError(t, err)
	cb, err := fragment.NewCodebook(fragment.DefaultPoseMetric(0), fragment.IdentityNormalization(6), pq,
		[]fragment.IntervalEntry{
			{ID: 3, FirstFrame: 0, NumFrames: 4, Row: 0},
			{ID: 8, FirstFrame: 10, NumFrames: 3, Row: 4},
		}, make([]byte, 7*2))
	require.NoError(t, err)
	return cb
}

func TestSequencesFromRows_SplitsAtIntervalBoundary(t *testing.T) {
	cb := layoutCodebook(t)
	rows := roaring.BitmapOf(1, 2, 3, 4, 5, 40)

	seqs := search.SequencesFromRows(cb, rows)

	assert.Equal(t, []search.Sequence{
		{Interval: 3, FirstFrame: 1, NumFrames: 3},
		{Interval: 8, FirstFrame: 10, NumFrames: 2},
	}, seqs)
}

func TestSequencesFromRows_Gaps(t *testing.T) {
	cb := layoutCodebook(t)
	rows := roaring.BitmapOf(0, 2, 6)

	seqs := search.SequencesFromRows(cb, rows)

	assert.Equal(t, []search.Sequence{
		{Interval: 3, FirstFrame: 0, NumFrames: 1},
		{Interval: 3, FirstFrame: 2, NumFrames: 1},
		{Interval: 8, FirstFrame: 12, NumFrames: 1},
	}, seqs)

	assert.Nil(t, search.SequencesFromRows(cb, roaring.New()))
	assert.Nil(t, search.SequencesFromRows(cb, nil))
}

func TestRowsFromSequences(t *testing.T) {
	cb := layoutCodebook(t)

	rows := search.RowsFromSequences(cb, []search.Sequence{
		{Interval: 3, FirstFrame: 2, NumFrames: 10},
		{Interval: 8, FirstFrame: 9, NumFrames: 2},
		{Interval: 42, FirstFrame: 0, NumFrames: 5},
	})

	assert.Equal(t, []uint32{2, 3, 4}, rows.ToArray())
}

func TestRowsSequencesRoundTrip(t *testing.T) {
	cb := layoutCodebook(t)
	all := roaring.New()
	all.AddRange(0, 7)

	seqs := search.SequencesFromRows(cb, all)
	require.Len(t, seqs, 2)

	assert.True(t, all.Equals(search.RowsFromSequences(cb, seqs)))
}
