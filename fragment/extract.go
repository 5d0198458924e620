package fragment

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// Interval is a contiguous run of frames of one animation clip.
type Interval struct {
	ID         int
	FirstFrame int
	NumFrames  int
}

// Contains reports whether frame lies inside the interval.
func (iv Interval) Contains(frame int) bool {
	return frame >= iv.FirstFrame && frame < iv.FirstFrame+iv.NumFrames
}

// SamplingTime identifies the frame a fragment was extracted from.
type SamplingTime struct {
	Interval int
	Frame    int
}

// Sampler provides the animation data a codebook is built from.
//
// Offsets are in seconds relative to the given frame. Implementations decide
// how times outside the interval are handled (clamping, looping or
// extrapolating).
type Sampler interface {
	// Intervals lists the intervals to build from.
	Intervals() []Interval
	// RootTransforms returns the world space root transform at each offset.
	RootTransforms(interval Interval, frame int, offsets []float32) []Transform
	// JointTransforms returns the root space transform of each joint at offset.
	JointTransforms(interval Interval, frame int, offset float32, joints []int) []Transform
}

// Fragment is a feature vector of one metric.
type Fragment struct {
	Metric string
	Values []float32
	// Source is set for fragments taken from a codebook or sampler.
	Source *SamplingTime
}

// NewFragment wraps values as a fragment of m.
func (m Metric) NewFragment(values []float32) (Fragment, error) {
	if len(values) != m.Dimension() {
		return Fragment{}, &ErrDimensionMismatch{Expected: m.Dimension(), Actual: len(values)}
	}
	return Fragment{Metric: m.Name, Values: values}, nil
}

// ExtractTrajectory builds a trajectory feature vector. reference is the root
// transform at the target frame and samples are the root transforms at
// SampleOffsets(). Velocities, forward directions and displacements are
// expressed in the reference root space.
//
// It panics if m is not a trajectory metric or len(samples) != N+2.
func (m Metric) ExtractTrajectory(reference Transform, samples []Transform) []float32 {
	if m.Kind != KindTrajectory {
		panic(fmt.Sprintf("fragment: %s is not a trajectory metric", m.Name))
	}
	n := m.NumTrajectorySamples
	if len(samples) != n+2 {
		panic(fmt.Sprintf("fragment: %d trajectory samples, want %d", len(samples), n+2))
	}

	out := make([]float32, m.Dimension())
	invStep := 1 / float64(m.sampleStep())
	for i := 0; i <= n; i++ {
		delta := r3.Sub(samples[i+1].Position, samples[i].Position)
		velocity := reference.InverseTransformDirection(r3.Scale(invStep, delta))
		forward := reference.InverseTransformDirection(samples[i].Forward())
		putVec(out[6*i:], velocity)
		putVec(out[6*i+3:], forward)
	}
	if m.Displacements {
		base := 6 * (n + 1)
		for i := 0; i < n; i++ {
			delta := r3.Sub(samples[i+1].Position, samples[i].Position)
			putVec(out[base+3*i:], reference.InverseTransformDirection(delta))
		}
	}
	return out
}

// ExtractPose builds a pose feature vector from root space joint transforms at
// the target frame and VelocityInterval seconds later. root maps root space
// into the space the joint transforms are given in; pass Identity() when they
// are already root relative.
//
// It panics if m is not a pose metric or the transform counts do not match Joints.
func (m Metric) ExtractPose(root Transform, joints, next []Transform) []float32 {
	if m.Kind != KindPose {
		panic(fmt.Sprintf("fragment: %s is not a pose metric", m.Name))
	}
	if len(joints) != len(m.Joints) || len(next) != len(m.Joints) {
		panic(fmt.Sprintf("fragment: %d/%d joint transforms, want %d", len(joints), len(next), len(m.Joints)))
	}

	out := make([]float32, m.Dimension())
	invStep := 1 / float64(m.VelocityInterval)
	for j := range joints {
		position := root.InverseTransformPoint(joints[j].Position)
		delta := r3.Sub(next[j].Position, joints[j].Position)
		velocity := root.InverseTransformDirection(r3.Scale(invStep, delta))
		putVec(out[6*j:], position)
		putVec(out[6*j+3:], velocity)
	}
	return out
}

// Extract samples the fragment of m at frame of interval.
func Extract(s Sampler, m Metric, interval Interval, frame int) (Fragment, error) {
	if !interval.Contains(frame) {
		return Fragment{}, fmt.Errorf("fragment: frame %d outside interval %d [%d, %d)",
			frame, interval.ID, interval.FirstFrame, interval.FirstFrame+interval.NumFrames)
	}

	var values []float32
	switch m.Kind {
	case KindTrajectory:
		offsets := append([]float32{0}, m.SampleOffsets()...)
		roots := s.RootTransforms(interval, frame, offsets)
		if len(roots) != len(offsets) {
			return Fragment{}, &ErrDimensionMismatch{Expected: len(offsets), Actual: len(roots)}
		}
		values = m.ExtractTrajectory(roots[0], roots[1:])
	case KindPose:
		joints := s.JointTransforms(interval, frame, 0, m.Joints)
		next := s.JointTransforms(interval, frame, m.VelocityInterval, m.Joints)
		if len(joints) != len(m.Joints) || len(next) != len(m.Joints) {
			return Fragment{}, &ErrDimensionMismatch{Expected: len(m.Joints), Actual: min(len(joints), len(next))}
		}
		values = m.ExtractPose(Identity(), joints, next)
	default:
		return Fragment{}, fmt.Errorf("%w: unknown kind %v", ErrInvalidMetric, m.Kind)
	}

	return Fragment{
		Metric: m.Name,
		Values: values,
		Source: &SamplingTime{Interval: interval.ID, Frame: frame},
	}, nil
}
