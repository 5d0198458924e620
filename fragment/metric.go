package fragment

import (
	"fmt"
	"regexp"

	"github.com/hupe1980/motionvq/quantization"
)

// Kind selects the feature layout of a Metric.
type Kind uint8

const (
	// KindTrajectory describes the root motion around a frame.
	KindTrajectory Kind = iota + 1
	// KindPose describes joint positions and velocities at a frame.
	KindPose
)

func (k Kind) String() string {
	switch k {
	case KindTrajectory:
		return "trajectory"
	case KindPose:
		return "pose"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

var metricName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Metric fixes the layout of one fragment class and how its codebook is trained.
type Metric struct {
	// Name identifies the metric inside a library. It is also used in blob names.
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// NumTrajectorySamples is N: a trajectory holds N+1 samples across the window.
	NumTrajectorySamples int `json:"num_trajectory_samples,omitempty"`
	// TimeHorizon is the half width of the window in seconds.
	TimeHorizon float32 `json:"time_horizon,omitempty"`
	// Displacements appends the N root displacements between consecutive samples.
	Displacements bool `json:"displacements,omitempty"`

	// Joints lists the joint indices sampled by a pose metric.
	Joints []int `json:"joints,omitempty"`
	// VelocityInterval is the finite-difference step in seconds for joint velocities.
	VelocityInterval float32 `json:"velocity_interval,omitempty"`

	// NumSubspaces is M. Zero selects Dimension()/3.
	NumSubspaces int `json:"num_subspaces,omitempty"`
	// Quantizer holds the training settings. The zero value selects quantization.DefaultSettings.
	Quantizer quantization.Settings `json:"quantizer"`
}

// DefaultTrajectoryMetric returns a trajectory metric with three intervals over
// a one second half window.
func DefaultTrajectoryMetric() Metric {
	return Metric{
		Name:                 "trajectory",
		Kind:                 KindTrajectory,
		NumTrajectorySamples: 3,
		TimeHorizon:          1,
		Quantizer:            quantization.DefaultSettings(),
	}
}

// DefaultPoseMetric returns a pose metric over joints with a 1/30s velocity step.
func DefaultPoseMetric(joints ...int) Metric {
	return Metric{
		Name:             "pose",
		Kind:             KindPose,
		Joints:           append([]int(nil), joints...),
		VelocityInterval: 1.0 / 30,
		Quantizer:        quantization.DefaultSettings(),
	}
}

// Validate reports whether the metric describes a buildable layout.
func (m Metric) Validate() error {
	if !metricName.MatchString(m.Name) {
		return fmt.Errorf("%w: name %q", ErrInvalidMetric, m.Name)
	}
	switch m.Kind {
	case KindTrajectory:
		if m.NumTrajectorySamples < 1 {
			return fmt.Errorf("%w: %s needs at least one trajectory interval", ErrInvalidMetric, m.Name)
		}
		if !(m.TimeHorizon > 0) {
			return fmt.Errorf("%w: %s time horizon must be positive", ErrInvalidMetric, m.Name)
		}
	case KindPose:
		if len(m.Joints) == 0 {
			return fmt.Errorf("%w: %s has no joints", ErrInvalidMetric, m.Name)
		}
		for _, j := range m.Joints {
			if j < 0 {
				return fmt.Errorf("%w: %s has negative joint index %d", ErrInvalidMetric, m.Name, j)
			}
		}
		if !(m.VelocityInterval > 0) {
			return fmt.Errorf("%w: %s velocity interval must be positive", ErrInvalidMetric, m.Name)
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind %v", ErrInvalidMetric, m.Name, m.Kind)
	}
	if m.NumSubspaces < 0 || (m.NumSubspaces > 0 && m.Dimension()%m.NumSubspaces != 0) {
		return fmt.Errorf("%w: %s: %d subspaces do not divide dimension %d",
			ErrInvalidMetric, m.Name, m.NumSubspaces, m.Dimension())
	}
	return nil
}

// Dimension returns d, the length of a fragment of this metric.
func (m Metric) Dimension() int {
	switch m.Kind {
	case KindTrajectory:
		n := m.NumTrajectorySamples
		d := 6 * (n + 1)
		if m.Displacements {
			d += 3 * n
		}
		return d
	case KindPose:
		return 6 * len(m.Joints)
	default:
		return 0
	}
}

// Subspaces returns M. Every layout is a multiple of three, so the default
// quantizes each xyz triple on its own.
func (m Metric) Subspaces() int {
	if m.NumSubspaces > 0 {
		return m.NumSubspaces
	}
	return m.Dimension() / 3
}

// SampleOffsets returns the N+2 root sample times, in seconds relative to the
// target frame, consumed by ExtractTrajectory. The first N+1 are evenly spaced
// across [-TimeHorizon, +TimeHorizon]; the last one supplies the forward
// difference for the final velocity.
func (m Metric) SampleOffsets() []float32 {
	n := m.NumTrajectorySamples
	step := m.sampleStep()
	offsets := make([]float32, n+2)
	for i := range offsets {
		offsets[i] = -m.TimeHorizon + float32(i)*step
	}
	return offsets
}

func (m Metric) sampleStep() float32 {
	return 2 * m.TimeHorizon / float32(m.NumTrajectorySamples)
}

func (m Metric) quantizerSettings() quantization.Settings {
	if m.Quantizer == (quantization.Settings{}) {
		return quantization.DefaultSettings()
	}
	return m.Quantizer
}

// Equal reports whether both metrics describe the same layout and training settings.
func (m Metric) Equal(o Metric) bool {
	if m.Name != o.Name || m.Kind != o.Kind ||
		m.NumTrajectorySamples != o.NumTrajectorySamples || m.TimeHorizon != o.TimeHorizon ||
		m.Displacements != o.Displacements || m.VelocityInterval != o.VelocityInterval ||
		m.NumSubspaces != o.NumSubspaces || m.Quantizer != o.Quantizer ||
		len(m.Joints) != len(o.Joints) {
		return false
	}
	for i := range m.Joints {
		if m.Joints[i] != o.Joints[i] {
			return false
		}
	}
	return true
}
