package search

// NotApplicable marks a deviation component that was not computed.
const NotApplicable float32 = -1

// DeviationScore holds the pose and trajectory deviation of one candidate.
// A negative component is not applicable.
type DeviationScore struct {
	Pose       float32
	Trajectory float32
}

// InvalidScore returns a score with both components not applicable.
func InvalidScore() DeviationScore {
	return DeviationScore{Pose: NotApplicable, Trajectory: NotApplicable}
}

// IsValid reports whether the pose deviation was computed.
func (s DeviationScore) IsValid() bool { return s.Pose >= 0 }

// Total returns the sum of the non-negative components.
func (s DeviationScore) Total() float32 {
	var total float32
	if s.Pose >= 0 {
		total += s.Pose
	}
	if s.Trajectory >= 0 {
		total += s.Trajectory
	}
	return total
}

// Sequence is a run of admissible frames of one interval.
type Sequence struct {
	Interval   int
	FirstFrame int
	NumFrames  int
}

// Candidate is a scored frame.
type Candidate struct {
	// Sequence is the index of the candidate's sequence in the scanned set.
	Sequence int
	Interval int
	Frame    int
	Score    DeviationScore
}

// Scorer computes the deviations of every frame of seq into dst, which has
// length seq.NumFrames.
type Scorer interface {
	ScoreSequence(seq Sequence, dst []DeviationScore)
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(seq Sequence, dst []DeviationScore)

// ScoreSequence implements Scorer.
func (f ScorerFunc) ScoreSequence(seq Sequence, dst []DeviationScore) { f(seq, dst) }
