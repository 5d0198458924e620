// Package search ranks codebook candidates by their deviation from a query.
//
// A Query holds one pose fragment and an optional trajectory fragment. It
// scores every frame of every admissible Sequence with asymmetric distance
// tables in normalized space and stores the results in a DeviationTable,
// which offers O(1) lookup by (sequence, frame) and a stable ascending
// ranking:
//
//	q, err := searcher.NewQuery(pose, &trajectory)
//	if err != nil {
//		return err
//	}
//	defer q.Release()
//
//	best, ok := q.Best(sequences)
//
// Scans are exhaustive: every candidate frame is scored. Ties keep scan order.
// Admissible sets are usually produced by a tag index as roaring bitmaps of
// codebook rows; SequencesFromRows converts them.
package search
