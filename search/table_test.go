package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frameScorer scores frame f of interval i as (i*100+f) % 13, and marks
// frames divisible by 4 as invalid.
var frameScorer = ScorerFunc(func(seq Sequence, dst []DeviationScore) {
	for j := range dst {
		frame := seq.FirstFrame + j
		if frame%4 == 0 {
			dst[j] = InvalidScore()
			continue
		}
		dst[j] = DeviationScore{Pose: float32((seq.Interval*100 + frame) % 13), Trajectory: NotApplicable}
	}
})

func TestDeviationScore(t *testing.T) {
	assert.False(t, InvalidScore().IsValid())
	assert.Equal(t, float32(0), InvalidScore().Total())

	s := DeviationScore{Pose: 2, Trajectory: NotApplicable}
	assert.True(t, s.IsValid())
	assert.Equal(t, float32(2), s.Total())

	s.Trajectory = 1.5
	assert.Equal(t, float32(3.5), s.Total())

	s = DeviationScore{Pose: 0, Trajectory: -3}
	assert.True(t, s.IsValid())
	assert.Equal(t, float32(0), s.Total())
}

func TestDeviationTable_ThreeSequences(t *testing.T) {
	sequences := []Sequence{
		{Interval: 0, FirstFrame: 0, NumFrames: 10},
		{Interval: 1, FirstFrame: 3, NumFrames: 7},
		{Interval: 2, FirstFrame: 20, NumFrames: 5},
	}

	table := NewDeviationTable(sequences, frameScorer)
	defer table.Release()

	require.Equal(t, 22, table.Len())
	assert.Equal(t, 3, table.NumSequences())

	valid := 0
	for i, seq := range sequences {
		for f := seq.FirstFrame; f < seq.FirstFrame+seq.NumFrames; f++ {
			got := table.GetDeviation(i, f)
			if f%4 == 0 {
				assert.False(t, got.IsValid(), "sequence %d frame %d", i, f)
				continue
			}
			valid++
			assert.Equal(t, float32((seq.Interval*100+f)%13), got.Pose, "sequence %d frame %d", i, f)
		}
	}
	assert.Equal(t, valid, table.NumValid())

	ranked := table.SortCandidatesByDeviation()
	require.Len(t, ranked, valid)
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].Score.Total(), ranked[i].Score.Total())
	}
	for _, c := range ranked {
		assert.Equal(t, sequences[c.Sequence].Interval, c.Interval)
		assert.Equal(t, table.GetDeviation(c.Sequence, c.Frame), c.Score)
	}
}

func TestDeviationTable_OutOfRange(t *testing.T) {
	table := NewDeviationTable([]Sequence{{Interval: 5, FirstFrame: 10, NumFrames: 3}}, frameScorer)
	defer table.Release()

	assert.False(t, table.GetDeviation(0, 9).IsValid())
	assert.False(t, table.GetDeviation(0, 13).IsValid())
	assert.False(t, table.GetDeviation(1, 10).IsValid())
	assert.False(t, table.GetDeviation(-1, 10).IsValid())

	slot, ok := table.Slot(0, 12)
	require.True(t, ok)
	assert.Equal(t, 2, slot)
}

func TestDeviationTable_StableTies(t *testing.T) {
	constant := ScorerFunc(func(seq Sequence, dst []DeviationScore) {
		for j := range dst {
			dst[j] = DeviationScore{Pose: 1, Trajectory: NotApplicable}
		}
	})
	sequences := []Sequence{{Interval: 7, NumFrames: 3}, {Interval: 2, NumFrames: 2}}

	table := NewDeviationTable(sequences, constant)
	defer table.Release()

	ranked := table.SortCandidatesByDeviation()
	require.Len(t, ranked, 5)
	assert.Equal(t, Candidate{Sequence: 0, Interval: 7, Frame: 0, Score: DeviationScore{1, NotApplicable}}, ranked[0])
	assert.Equal(t, 1, ranked[3].Sequence)
	assert.Equal(t, 0, ranked[3].Frame)

	best, ok := table.Best()
	require.True(t, ok)
	assert.Equal(t, ranked[0], best)
}

func TestDeviationTable_Best(t *testing.T) {
	sequences := []Sequence{{Interval: 0, NumFrames: 10}, {Interval: 1, NumFrames: 10}}

	table := NewDeviationTable(sequences, frameScorer)
	defer table.Release()

	best, ok := table.Best()
	require.True(t, ok)
	// Interval 1 frame 4 would score 0 but is invalid.
	assert.Equal(t, float32(1), best.Score.Pose)
	assert.Equal(t, 0, best.Interval)
	assert.Equal(t, 1, best.Frame)
	assert.Equal(t, 0, best.Sequence)
}

func TestDeviationTable_Empty(t *testing.T) {
	table := NewDeviationTable(nil, frameScorer)
	defer table.Release()

	assert.Equal(t, 0, table.Len())
	assert.Empty(t, table.SortCandidatesByDeviation())
	_, ok := table.Best()
	assert.False(t, ok)

	allInvalid := NewDeviationTable([]Sequence{{Interval: 0, FirstFrame: 0, NumFrames: 1}}, frameScorer)
	defer allInvalid.Release()
	assert.Equal(t, 1, allInvalid.Len())
	_, ok = allInvalid.Best()
	assert.False(t, ok)
}

func TestDeviationTable_EmptySequenceHasNoSlots(t *testing.T) {
	sequences := []Sequence{{Interval: 0, NumFrames: 3}, {Interval: 1, NumFrames: 0}, {Interval: 2, FirstFrame: 1, NumFrames: 2}}

	table := NewDeviationTable(sequences, frameScorer)
	defer table.Release()

	assert.Equal(t, 5, table.Len())
	for _, c := range table.SortCandidatesByDeviation() {
		assert.NotEqual(t, 1, c.Sequence)
	}
	assert.Equal(t, float32((200+2)%13), table.GetDeviation(2, 2).Pose)
}

func TestDeviationTable_ReuseAfterRelease(t *testing.T) {
	first := NewDeviationTable([]Sequence{{Interval: 0, FirstFrame: 1, NumFrames: 30}}, frameScorer)
	first.Release()

	second := NewDeviationTable([]Sequence{{Interval: 0, FirstFrame: 1, NumFrames: 2}}, frameScorer)
	defer second.Release()

	assert.Equal(t, 2, second.Len())
	assert.Equal(t, 2, second.NumValid())
	assert.Len(t, second.SortCandidatesByDeviation(), 2)
}
