package search

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/motionvq/fragment"
)

// SequencesFromRows converts a set of codebook rows into sequences. Runs of
// consecutive rows are split at interval boundaries; rows beyond the codebook
// are ignored.
func SequencesFromRows(cb *fragment.Codebook, rows *roaring.Bitmap) []Sequence {
	if rows == nil || rows.IsEmpty() {
		return nil
	}
	var out []Sequence
	var cur Sequence
	prevRow, entryEnd := -2, -1

	it := rows.Iterator()
	for it.HasNext() {
		row := int(it.Next())
		if row >= cb.NumRows() {
			break
		}
		if row == prevRow+1 && row < entryEnd {
			cur.NumFrames++
			prevRow = row
			continue
		}
		if cur.NumFrames > 0 {
			out = append(out, cur)
		}
		st, _ := cb.SamplingTime(row)
		e, _ := cb.Entry(st.Interval)
		cur = Sequence{Interval: st.Interval, FirstFrame: st.Frame, NumFrames: 1}
		prevRow, entryEnd = row, e.Row+e.NumFrames
	}
	if cur.NumFrames > 0 {
		out = append(out, cur)
	}
	return out
}

// RowsFromSequences returns the codebook rows covered by sequences. Frames
// outside their interval are ignored.
func RowsFromSequences(cb *fragment.Codebook, sequences []Sequence) *roaring.Bitmap {
	rows := roaring.New()
	for _, seq := range sequences {
		e, ok := cb.Entry(seq.Interval)
		if !ok {
			continue
		}
		first := max(seq.FirstFrame, e.FirstFrame)
		last := min(seq.FirstFrame+seq.NumFrames, e.FirstFrame+e.NumFrames)
		if first >= last {
			continue
		}
		rows.AddRange(uint64(e.Row+first-e.FirstFrame), uint64(e.Row+last-e.FirstFrame))
	}
	return rows
}
