package search_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/quantization"
	"github.com/hupe1980/motionvq/search"
	"github.com/hupe1980/motionvq/testutil"
)

var fastSettings = quantization.Settings{
	NumAttempts:          1,
	NumIterations:        8,
	Seed:                 1234,
	MinimumNumberSamples: 4,
	MaximumNumberSamples: 16,
}

type fixture struct {
	corpus     *testutil.MotionCorpus
	pose       *fragment.Codebook
	trajectory *fragment.Codebook
}

var (
	fixtureOnce sync.Once
	shared      fixture
)

func sharedFixture(t *testing.T) fixture {
	t.Helper()
	fixtureOnce.Do(func() {
		corpus := testutil.NewMotionCorpus(testutil.NewRNG(2024), 60, 45, 30)

		poseMetric := fragment.DefaultPoseMetric(corpus.AllJoints()...)
		poseMetric.Quantizer = fastSettings
		pose, err := fragment.Build(context.Background(), corpus, poseMetric)
		require.NoError(t, err)

		trajMetric := fragment.DefaultTrajectoryMetric()
		trajMetric.Quantizer = fastSettings
		traj, err := fragment.Build(context.Background(), corpus, trajMetric)
		require.NoError(t, err)

		shared = fixture{corpus: corpus, pose: pose, trajectory: traj}
	})
	require.NotNil(t, shared.pose)
	return shared
}

func (f fixture) fragments(t *testing.T, interval, frame int) (fragment.Fragment, fragment.Fragment) {
	t.Helper()
	iv := f.corpus.Intervals()[interval]
	p, err := fragment.Extract(f.corpus, f.pose.Metric(), iv, frame)
	require.NoError(t, err)
	tr, err := fragment.Extract(f.corpus, f.trajectory.Metric(), iv, frame)
	require.NoError(t, err)
	return p, tr
}

func TestQuery_IdentityMatch(t *testing.T) {
	fx := sharedFixture(t)
	s, err := search.NewSearcher(fx.pose, fx.trajectory)
	require.NoError(t, err)

	for _, target := range []struct{ interval, frame int }{{0, 12}, {1, 40}, {2, 0}} {
		p, tr := fx.fragments(t, target.interval, target.frame)
		q, err := s.NewQuery(p, &tr)
		require.NoError(t, err)

		table := q.DeviationTable(s.AllSequences())
		own := table.GetDeviation(target.interval, target.frame)
		best, ok := table.Best()
		table.Release()
		q.Release()

		require.True(t, ok)
		require.True(t, own.IsValid())
		assert.GreaterOrEqual(t, own.Trajectory, float32(0))
		assert.InDelta(t, own.Total(), best.Score.Total(), 1e-6, "target %v", target)
		assert.Less(t, best.Score.Total(), float32(0.5))
	}
}

func TestQuery_RankIsSortedAndComplete(t *testing.T) {
	fx := sharedFixture(t)
	s, err := search.NewSearcher(fx.pose, nil)
	require.NoError(t, err)

	p, _ := fx.fragments(t, 1, 10)
	q, err := s.NewQuery(p, nil)
	require.NoError(t, err)
	defer q.Release()

	ranked := q.Rank(s.AllSequences())

	require.Len(t, ranked, fx.pose.NumRows())
	for i := 1; i < len(ranked); i++ {
		assert.LessOrEqual(t, ranked[i-1].Score.Total(), ranked[i].Score.Total())
	}
	for _, c := range ranked {
		assert.Equal(t, search.NotApplicable, c.Score.Trajectory)
	}
}

func TestQuery_DecodedScoringMatchesTables(t *testing.T) {
	fx := sharedFixture(t)
	adc, err := search.NewSearcher(fx.pose, fx.trajectory)
	require.NoError(t, err)
	exact, err := search.NewSearcher(fx.pose, fx.trajectory, search.WithDecodedScoring())
	require.NoError(t, err)

	p, tr := fx.fragments(t, 0, 30)
	seqs := adc.AllSequences()

	qa, err := adc.NewQuery(p, &tr)
	require.NoError(t, err)
	defer qa.Release()
	qe, err := exact.NewQuery(p, &tr)
	require.NoError(t, err)
	defer qe.Release()

	ta := qa.DeviationTable(seqs)
	defer ta.Release()
	te := qe.DeviationTable(seqs)
	defer te.Release()

	require.Equal(t, ta.Len(), te.Len())
	for i, seq := range seqs {
		for f := seq.FirstFrame; f < seq.FirstFrame+seq.NumFrames; f++ {
			a, e := ta.GetDeviation(i, f), te.GetDeviation(i, f)
			assert.InDelta(t, e.Pose, a.Pose, float64(1e-3*(1+e.Pose)))
			assert.InDelta(t, e.Trajectory, a.Trajectory, float64(1e-3*(1+e.Trajectory)))
		}
	}
}

func TestQuery_UnknownFramesAreInvalid(t *testing.T) {
	fx := sharedFixture(t)
	s, err := search.NewSearcher(fx.pose, fx.trajectory)
	require.NoError(t, err)
	p, tr := fx.fragments(t, 0, 0)
	q, err := s.NewQuery(p, &tr)
	require.NoError(t, err)
	defer q.Release()

	table := q.DeviationTable([]search.Sequence{
		{Interval: 99, FirstFrame: 0, NumFrames: 4},
		{Interval: 2, FirstFrame: 28, NumFrames: 4},
	})
	defer table.Release()

	assert.Equal(t, 8, table.Len())
	assert.Equal(t, 2, table.NumValid())
	assert.False(t, table.GetDeviation(0, 1).IsValid())
	assert.True(t, table.GetDeviation(1, 29).IsValid())
	assert.False(t, table.GetDeviation(1, 30).IsValid())
}

func TestQuery_EmptyAdmissibleSet(t *testing.T) {
	fx := sharedFixture(t)
	s, err := search.NewSearcher(fx.pose, nil)
	require.NoError(t, err)
	p, _ := fx.fragments(t, 0, 0)
	q, err := s.NewQuery(p, nil)
	require.NoError(t, err)
	defer q.Release()

	assert.Empty(t, q.Rank(nil))
	_, ok := q.Best(nil)
	assert.False(t, ok)
}

func TestQuery_Weights(t *testing.T) {
	fx := sharedFixture(t)
	plain, err := search.NewSearcher(fx.pose, fx.trajectory)
	require.NoError(t, err)
	weighted, err := search.NewSearcher(fx.pose, fx.trajectory, search.WithWeights(2, 0))
	require.NoError(t, err)

	p, tr := fx.fragments(t, 1, 5)
	seqs := []search.Sequence{{Interval: 0, FirstFrame: 10, NumFrames: 5}}

	qp, err := plain.NewQuery(p, &tr)
	require.NoError(t, err)
	defer qp.Release()
	qw, err := weighted.NewQuery(p, &tr)
	require.NoError(t, err)
	defer qw.Release()

	tp := qp.DeviationTable(seqs)
	defer tp.Release()
	tw := qw.DeviationTable(seqs)
	defer tw.Release()

	for f := 10; f < 15; f++ {
		assert.InDelta(t, 2*tp.GetDeviation(0, f).Pose, tw.GetDeviation(0, f).Pose, 1e-4)
		assert.Equal(t, float32(0), tw.GetDeviation(0, f).Trajectory)
	}
}

type recordingObserver struct {
	candidates, valid int
	calls             int
}

func (r *recordingObserver) ObserveSearch(candidates, valid int, _ time.Duration) {
	r.candidates, r.valid = candidates, valid
	r.calls++
}

func TestQuery_Observer(t *testing.T) {
	fx := sharedFixture(t)
	obs := &recordingObserver{}
	s, err := search.NewSearcher(fx.pose, nil, search.WithObserver(obs))
	require.NoError(t, err)
	p, _ := fx.fragments(t, 0, 0)
	q, err := s.NewQuery(p, nil)
	require.NoError(t, err)
	defer q.Release()

	_, ok := q.Best(s.AllSequences())

	require.True(t, ok)
	assert.Equal(t, 1, obs.calls)
	assert.Equal(t, fx.pose.NumRows(), obs.candidates)
	assert.Equal(t, fx.pose.NumRows(), obs.valid)
}

func TestSearcher_Errors(t *testing.T) {
	fx := sharedFixture(t)

	_, err := search.NewSearcher(nil, fx.trajectory)
	assert.ErrorIs(t, err, search.ErrNoPoseCodebook)

	poseOnly, err := search.NewSearcher(fx.pose, nil)
	require.NoError(t, err)
	p, tr := fx.fragments(t, 0, 0)

	_, err = poseOnly.NewQuery(p, &tr)
	assert.ErrorIs(t, err, fragment.ErrMetricMismatch)

	_, err = poseOnly.NewQuery(tr, nil)
	assert.ErrorIs(t, err, fragment.ErrMetricMismatch)

	both, err := search.NewSearcher(fx.pose, fx.trajectory)
	require.NoError(t, err)
	_, err = both.NewQuery(p, &p)
	assert.ErrorIs(t, err, fragment.ErrMetricMismatch)
}

func TestSearcher_AdmissibleRows(t *testing.T) {
	fx := sharedFixture(t)
	s, err := search.NewSearcher(fx.pose, nil)
	require.NoError(t, err)
	p, _ := fx.fragments(t, 2, 7)
	q, err := s.NewQuery(p, nil)
	require.NoError(t, err)
	defer q.Release()

	// Only interval 2 is admissible: rows [105, 135).
	rows := roaring.New()
	rows.AddRange(105, 135)
	ranked := q.Rank(search.SequencesFromRows(fx.pose, rows))

	require.Len(t, ranked, 30)
	for _, c := range ranked {
		assert.Equal(t, 2, c.Interval)
	}
}
