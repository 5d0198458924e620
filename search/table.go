package search

import (
	"cmp"
	"slices"
	"sync"

	"github.com/bits-and-blooms/bitset"
)

// DeviationTable stores one DeviationScore per (sequence, frame) slot.
//
// Tables come from a pool; call Release when done. A released table must not be used.
type DeviationTable struct {
	sequences []Sequence
	offsets   []int
	scores    []DeviationScore
	valid     *bitset.BitSet
}

var tablePool = sync.Pool{
	New: func() any {
		return &DeviationTable{valid: bitset.New(1024)}
	},
}

// NewDeviationTable scores every frame of sequences with scorer. Sequences
// without frames occupy no slots.
func NewDeviationTable(sequences []Sequence, scorer Scorer) *DeviationTable {
	t := tablePool.Get().(*DeviationTable)
	t.sequences = append(t.sequences[:0], sequences...)

	t.offsets = slices.Grow(t.offsets[:0], len(sequences)+1)
	total := 0
	for _, seq := range sequences {
		t.offsets = append(t.offsets, total)
		total += max(seq.NumFrames, 0)
	}
	t.offsets = append(t.offsets, total)

	t.scores = slices.Grow(t.scores[:0], total)[:total]
	t.valid.ClearAll()

	for i, seq := range sequences {
		if seq.NumFrames <= 0 {
			continue
		}
		dst := t.scores[t.offsets[i]:t.offsets[i+1]]
		for j := range dst {
			dst[j] = InvalidScore()
		}
		scorer.ScoreSequence(seq, dst)
		for j, s := range dst {
			if s.IsValid() {
				t.valid.Set(uint(t.offsets[i] + j))
			}
		}
	}
	return t
}

// Len returns the number of slots.
func (t *DeviationTable) Len() int { return len(t.scores) }

// NumSequences returns the number of scanned sequences.
func (t *DeviationTable) NumSequences() int { return len(t.sequences) }

// NumValid returns the number of slots holding a valid score.
func (t *DeviationTable) NumValid() int { return int(t.valid.Count()) }

// Sequence returns the i-th scanned sequence.
func (t *DeviationTable) Sequence(i int) Sequence { return t.sequences[i] }

// Slot returns the flat index of frame in sequence. frame is an absolute frame of the interval.
func (t *DeviationTable) Slot(sequence, frame int) (int, bool) {
	if sequence < 0 || sequence >= len(t.sequences) {
		return 0, false
	}
	seq := t.sequences[sequence]
	rel := frame - seq.FirstFrame
	if rel < 0 || rel >= seq.NumFrames {
		return 0, false
	}
	return t.offsets[sequence] + rel, true
}

// GetDeviation returns the score of frame in sequence, or an invalid score
// when the pair lies outside the table.
func (t *DeviationTable) GetDeviation(sequence, frame int) DeviationScore {
	slot, ok := t.Slot(sequence, frame)
	if !ok {
		return InvalidScore()
	}
	return t.scores[slot]
}

// SortCandidatesByDeviation returns every valid slot ordered by ascending
// total deviation. Equal totals keep scan order.
func (t *DeviationTable) SortCandidatesByDeviation() []Candidate {
	out := make([]Candidate, 0, t.NumValid())
	seq := 0
	for slot, ok := t.valid.NextSet(0); ok; slot, ok = t.valid.NextSet(slot + 1) {
		for int(slot) >= t.offsets[seq+1] {
			seq++
		}
		out = append(out, t.candidate(seq, int(slot)))
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		return cmp.Compare(a.Score.Total(), b.Score.Total())
	})
	return out
}

// Best returns the valid slot with the lowest total deviation. The first slot
// in scan order wins ties.
func (t *DeviationTable) Best() (Candidate, bool) {
	bestSlot, bestSeq := -1, 0
	var bestTotal float32
	seq := 0
	for slot, ok := t.valid.NextSet(0); ok; slot, ok = t.valid.NextSet(slot + 1) {
		for int(slot) >= t.offsets[seq+1] {
			seq++
		}
		total := t.scores[slot].Total()
		if bestSlot < 0 || total < bestTotal {
			bestSlot, bestSeq, bestTotal = int(slot), seq, total
		}
	}
	if bestSlot < 0 {
		return Candidate{}, false
	}
	return t.candidate(bestSeq, bestSlot), true
}

func (t *DeviationTable) candidate(seq, slot int) Candidate {
	s := t.sequences[seq]
	return Candidate{
		Sequence: seq,
		Interval: s.Interval,
		Frame:    s.FirstFrame + slot - t.offsets[seq],
		Score:    t.scores[slot],
	}
}

// Release returns the table's buffers to the pool.
func (t *DeviationTable) Release() {
	if t == nil {
		return
	}
	t.sequences = t.sequences[:0]
	t.offsets = t.offsets[:0]
	t.scores = t.scores[:0]
	tablePool.Put(t)
}
