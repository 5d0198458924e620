package search

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/motionvq/distance"
	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/internal/pool"
)

// ErrNoPoseCodebook is returned when a Searcher is created without a pose codebook.
var ErrNoPoseCodebook = errors.New("search: pose codebook is required")

// Observer is notified after every scan.
type Observer interface {
	ObserveSearch(candidates, valid int, elapsed time.Duration)
}

// Option configures a Searcher.
type Option func(*Searcher)

// WithObserver registers an observer for scan statistics.
func WithObserver(o Observer) Option {
	return func(s *Searcher) { s.observer = o }
}

// WithLogger sets the logger for scan events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWeights scales the pose and trajectory deviations.
func WithWeights(pose, trajectory float32) Option {
	return func(s *Searcher) {
		s.poseWeight = pose
		s.trajectoryWeight = trajectory
	}
}

// WithDecodedScoring scores candidates by fully decoding their codes instead
// of using distance tables. Both yield the same deviations up to rounding.
func WithDecodedScoring() Option {
	return func(s *Searcher) { s.decoded = true }
}

// Searcher scores queries against a pose codebook and an optional trajectory codebook.
// It is safe for concurrent use; each Query is owned by one goroutine.
type Searcher struct {
	pose             *fragment.Codebook
	trajectory       *fragment.Codebook
	observer         Observer
	logger           *slog.Logger
	poseWeight       float32
	trajectoryWeight float32
	decoded          bool
}

// NewSearcher creates a Searcher. trajectory may be nil.
func NewSearcher(pose, trajectory *fragment.Codebook, opts ...Option) (*Searcher, error) {
	if pose == nil {
		return nil, ErrNoPoseCodebook
	}
	s := &Searcher{
		pose:             pose,
		trajectory:       trajectory,
		logger:           slog.New(slog.DiscardHandler),
		poseWeight:       1,
		trajectoryWeight: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Pose returns the pose codebook.
func (s *Searcher) Pose() *fragment.Codebook { return s.pose }

// Trajectory returns the trajectory codebook, or nil.
func (s *Searcher) Trajectory() *fragment.Codebook { return s.trajectory }

// AllSequences returns one sequence per interval of the pose codebook.
func (s *Searcher) AllSequences() []Sequence {
	entries := s.pose.Intervals()
	out := make([]Sequence, len(entries))
	for i, e := range entries {
		out[i] = Sequence{Interval: e.ID, FirstFrame: e.FirstFrame, NumFrames: e.NumFrames}
	}
	return out
}

// NewQuery prepares a query. trajectory may be nil, in which case the
// trajectory deviation is not applicable. A trajectory fragment without a
// trajectory codebook is rejected.
func (s *Searcher) NewQuery(pose fragment.Fragment, trajectory *fragment.Fragment) (*Query, error) {
	if trajectory != nil && s.trajectory == nil {
		return nil, fmt.Errorf("%w: no trajectory codebook for %q", fragment.ErrMetricMismatch, trajectory.Metric)
	}

	buf := pool.Get()
	q := &Query{searcher: s, buf: buf}

	buf.Normalized = pool.Grow(buf.Normalized, s.pose.Dimension())
	if err := s.pose.Normalize(buf.Normalized, pose); err != nil {
		pool.Put(buf)
		return nil, err
	}
	if s.decoded {
		q.poseQuery = append([]float32(nil), buf.Normalized...)
	}
	buf.PoseTable = s.pose.Quantizer().BuildDistanceTable(buf.Normalized, buf.PoseTable)

	if trajectory != nil {
		buf.Normalized = pool.Grow(buf.Normalized, s.trajectory.Dimension())
		if err := s.trajectory.Normalize(buf.Normalized, *trajectory); err != nil {
			pool.Put(buf)
			return nil, err
		}
		if s.decoded {
			q.trajectoryQuery = append([]float32(nil), buf.Normalized...)
		}
		buf.TrajectoryTable = s.trajectory.Quantizer().BuildDistanceTable(buf.Normalized, buf.TrajectoryTable)
		q.hasTrajectory = true
	}
	return q, nil
}

// Query is one prepared search. It implements Scorer.
type Query struct {
	searcher        *Searcher
	buf             *pool.QueryContext
	hasTrajectory   bool
	poseQuery       []float32
	trajectoryQuery []float32
}

// ScoreSequence implements Scorer. Frames unknown to the pose codebook stay
// invalid; frames unknown to the trajectory codebook get a not applicable
// trajectory deviation.
func (q *Query) ScoreSequence(seq Sequence, dst []DeviationScore) {
	s := q.searcher
	for i := range dst {
		frame := seq.FirstFrame + i
		code, ok := s.pose.CodeAt(seq.Interval, frame)
		if !ok {
			dst[i] = InvalidScore()
			continue
		}
		score := DeviationScore{
			Pose:       s.poseWeight * q.deviation(s.pose, q.buf.PoseTable, q.poseQuery, code),
			Trajectory: NotApplicable,
		}
		if q.hasTrajectory {
			if tcode, ok := s.trajectory.CodeAt(seq.Interval, frame); ok {
				score.Trajectory = s.trajectoryWeight * q.deviation(s.trajectory, q.buf.TrajectoryTable, q.trajectoryQuery, tcode)
			}
		}
		dst[i] = score
	}
}

func (q *Query) deviation(cb *fragment.Codebook, table, query []float32, code []byte) float32 {
	if query == nil {
		return cb.Quantizer().Distance(table, code)
	}
	q.buf.Decoded = pool.Grow(q.buf.Decoded, cb.Dimension())
	cb.DecodeNormalized(q.buf.Decoded, code)
	return distance.SquaredL2(query, q.buf.Decoded)
}

// DeviationTable scores sequences. The caller must Release the table.
func (q *Query) DeviationTable(sequences []Sequence) *DeviationTable {
	start := time.Now()
	t := NewDeviationTable(sequences, q)
	elapsed := time.Since(start)

	if q.searcher.observer != nil {
		q.searcher.observer.ObserveSearch(t.Len(), t.NumValid(), elapsed)
	}
	q.searcher.logger.Debug("deviation scan",
		"sequences", len(sequences), "candidates", t.Len(), "valid", t.NumValid(), "elapsed", elapsed)
	return t
}

// Best returns the lowest deviation candidate. It returns false when no
// candidate is valid.
func (q *Query) Best(sequences []Sequence) (Candidate, bool) {
	t := q.DeviationTable(sequences)
	defer t.Release()
	return t.Best()
}

// Rank returns every valid candidate in ascending order of total deviation.
func (q *Query) Rank(sequences []Sequence) []Candidate {
	t := q.DeviationTable(sequences)
	defer t.Release()
	return t.SortCandidatesByDeviation()
}

// Release returns the query's buffers to the pool. The query must not be used afterwards.
func (q *Query) Release() {
	if q == nil || q.buf == nil {
		return
	}
	pool.Put(q.buf)
	q.buf = nil
}
