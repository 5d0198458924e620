package testutil

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/motionvq/fragment"
)

// DefaultFrameRate is the sampling rate of generated clips.
const DefaultFrameRate = 30

var upAxis = r3.Vec{Y: 1}

// Clip is a procedural animation: the root moves at Speed along an arc turning
// at TurnRate rad/s, starting at Origin facing Heading.
type Clip struct {
	Interval fragment.Interval
	Origin   r3.Vec
	Heading  float64
	Speed    float64
	TurnRate float64
	// Gait is the joint swing frequency in Hz.
	Gait float64
}

// MotionCorpus is a fragment.Sampler over procedural clips.
type MotionCorpus struct {
	FrameRate float64
	NumJoints int
	Clips     []Clip
}

// NewMotionCorpus creates one clip per length with random motion parameters.
// Interval IDs are the clip indices and every interval starts at frame 0.
func NewMotionCorpus(rng *RNG, lengths ...int) *MotionCorpus {
	c := &MotionCorpus{FrameRate: DefaultFrameRate, NumJoints: 4}
	for i, n := range lengths {
		c.Clips = append(c.Clips, Clip{
			Interval: fragment.Interval{ID: i, FirstFrame: 0, NumFrames: n},
			Origin:   r3.Vec{X: rng.Float64()*20 - 10, Z: rng.Float64()*20 - 10},
			Heading:  rng.Float64() * 2 * math.Pi,
			Speed:    0.5 + rng.Float64()*4,
			TurnRate: rng.Float64()*2 - 1,
			Gait:     0.5 + rng.Float64()*2,
		})
	}
	return c
}

// Intervals implements fragment.Sampler.
func (c *MotionCorpus) Intervals() []fragment.Interval {
	out := make([]fragment.Interval, len(c.Clips))
	for i, clip := range c.Clips {
		out[i] = clip.Interval
	}
	return out
}

// RootTransforms implements fragment.Sampler.
func (c *MotionCorpus) RootTransforms(interval fragment.Interval, frame int, offsets []float32) []fragment.Transform {
	clip := c.clip(interval)
	out := make([]fragment.Transform, len(offsets))
	for i, off := range offsets {
		out[i] = clip.Root(c.time(frame, off))
	}
	return out
}

// JointTransforms implements fragment.Sampler.
func (c *MotionCorpus) JointTransforms(interval fragment.Interval, frame int, offset float32, joints []int) []fragment.Transform {
	clip := c.clip(interval)
	t := c.time(frame, offset)
	out := make([]fragment.Transform, len(joints))
	for i, j := range joints {
		out[i] = clip.Joint(j, t)
	}
	return out
}

// AllJoints returns the indices of every joint of the corpus.
func (c *MotionCorpus) AllJoints() []int {
	joints := make([]int, c.NumJoints)
	for i := range joints {
		joints[i] = i
	}
	return joints
}

func (c *MotionCorpus) time(frame int, offset float32) float64 {
	return float64(frame)/c.FrameRate + float64(offset)
}

func (c *MotionCorpus) clip(interval fragment.Interval) Clip {
	return c.Clips[interval.ID]
}

// Root returns the world space root transform at time t.
func (c Clip) Root(t float64) fragment.Transform {
	heading := c.Heading + c.TurnRate*t
	var pos r3.Vec
	if math.Abs(c.TurnRate) < 1e-9 {
		pos = r3.Add(c.Origin, r3.Vec{X: c.Speed * t * math.Sin(c.Heading), Z: c.Speed * t * math.Cos(c.Heading)})
	} else {
		r := c.Speed / c.TurnRate
		pos = r3.Add(c.Origin, r3.Vec{
			X: r * (math.Cos(c.Heading) - math.Cos(heading)),
			Z: r * (math.Sin(heading) - math.Sin(c.Heading)),
		})
	}
	return fragment.NewTransform(pos, heading, upAxis)
}

// Joint returns the root space transform of joint j at time t.
func (c Clip) Joint(j int, t float64) fragment.Transform {
	phase := 2*math.Pi*c.Gait*t + float64(j)
	pos := r3.Vec{
		X: 0.2 * float64(j-1),
		Y: 1 + 0.1*math.Sin(phase),
		Z: 0.3 * c.Speed / 4 * math.Sin(phase),
	}
	return fragment.Transform{Position: pos, Rotation: r3.Rotation{Real: 1}}
}
