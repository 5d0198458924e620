package fragment_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/testutil"
)

// straightWalk returns root transforms at offsets for a root walking along +Z
// at speed m/s without turning.
func straightWalk(offsets []float32, speed float64) []fragment.Transform {
	out := make([]fragment.Transform, len(offsets))
	for i, off := range offsets {
		out[i] = fragment.Transform{Position: r3.Vec{Z: speed * float64(off)}}
	}
	return out
}

func TestExtractTrajectory_StraightWalk(t *testing.T) {
	m := fragment.DefaultTrajectoryMetric()
	samples := straightWalk(m.SampleOffsets(), 2)

	v := m.ExtractTrajectory(fragment.Identity(), samples)

	require.Len(t, v, m.Dimension())
	for i := 0; i <= m.NumTrajectorySamples; i++ {
		assert.InDeltaSlice(t, []float32{0, 0, 2, 0, 0, 1}, v[6*i:6*i+6], 1e-5, "sample %d", i)
	}
}

func TestExtractTrajectory_ReferenceSpace(t *testing.T) {
	m := fragment.DefaultTrajectoryMetric()
	samples := straightWalk(m.SampleOffsets(), 2)
	// The reference root faces +X, so world +Z is to its left (-X locally).
	reference := fragment.NewTransform(r3.Vec{Z: 5}, math.Pi/2, r3.Vec{Y: 1})

	v := m.ExtractTrajectory(reference, samples)

	assert.InDeltaSlice(t, []float32{-2, 0, 0, -1, 0, 0}, v[:6], 1e-5)
}

func TestExtractTrajectory_Displacements(t *testing.T) {
	m := fragment.DefaultTrajectoryMetric()
	m.Displacements = true
	samples := straightWalk(m.SampleOffsets(), 3)

	v := m.ExtractTrajectory(fragment.Identity(), samples)

	require.Len(t, v, 33)
	step := float32(2.0 / 3)
	for i := 0; i < m.NumTrajectorySamples; i++ {
		assert.InDeltaSlice(t, []float32{0, 0, 3 * step}, v[24+3*i:24+3*i+3], 1e-5)
	}
}

func TestExtractTrajectory_Panics(t *testing.T) {
	m := fragment.DefaultTrajectoryMetric()
	assert.Panics(t, func() { m.ExtractTrajectory(fragment.Identity(), make([]fragment.Transform, 3)) })

	pose := fragment.DefaultPoseMetric(0)
	assert.Panics(t, func() { pose.ExtractTrajectory(fragment.Identity(), make([]fragment.Transform, 5)) })
	assert.Panics(t, func() { m.ExtractPose(fragment.Identity(), nil, nil) })
}

func TestExtractPose(t *testing.T) {
	m := fragment.DefaultPoseMetric(0, 1)
	m.VelocityInterval = 0.5
	joints := []fragment.Transform{
		{Position: r3.Vec{X: 1, Y: 2, Z: 3}},
		{Position: r3.Vec{Y: 1}},
	}
	next := []fragment.Transform{
		{Position: r3.Vec{X: 1, Y: 2, Z: 4}},
		{Position: r3.Vec{Y: 0.5}},
	}

	v := m.ExtractPose(fragment.Identity(), joints, next)

	assert.InDeltaSlice(t, []float32{1, 2, 3, 0, 0, 2, 0, 1, 0, 0, -1, 0}, v, 1e-6)
}

func TestExtract_SetsSource(t *testing.T) {
	corpus := testutil.NewMotionCorpus(testutil.NewRNG(7), 20)
	iv := corpus.Intervals()[0]

	f, err := fragment.Extract(corpus, fragment.DefaultTrajectoryMetric(), iv, 4)
	require.NoError(t, err)
	assert.Equal(t, "trajectory", f.Metric)
	assert.Equal(t, &fragment.SamplingTime{Interval: 0, Frame: 4}, f.Source)
	assert.Len(t, f.Values, 24)

	p, err := fragment.Extract(corpus, fragment.DefaultPoseMetric(corpus.AllJoints()...), iv, 4)
	require.NoError(t, err)
	assert.Len(t, p.Values, 24)

	_, err = fragment.Extract(corpus, fragment.DefaultTrajectoryMetric(), iv, 20)
	assert.Error(t, err)
}

func TestExtract_TrajectorySpeedMatchesClip(t *testing.T) {
	corpus := testutil.NewMotionCorpus(testutil.NewRNG(3), 30)
	clip := corpus.Clips[0]
	m := fragment.DefaultTrajectoryMetric()
	m.TimeHorizon = 0.01

	f, err := fragment.Extract(corpus, m, clip.Interval, 10)
	require.NoError(t, err)

	velocity := r3.Vec{X: float64(f.Values[0]), Y: float64(f.Values[1]), Z: float64(f.Values[2])}
	assert.InDelta(t, clip.Speed, r3.Norm(velocity), 1e-2)
}
