package fragment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMetric is returned when a Metric fails validation.
	ErrInvalidMetric = errors.New("invalid metric")

	// ErrMetricMismatch is returned when a fragment is used with a codebook of another metric.
	ErrMetricMismatch = errors.New("fragment metric does not match codebook metric")

	// ErrEmptyCorpus is returned by Build when no frame is available for training.
	ErrEmptyCorpus = errors.New("no frames to build a codebook from")
)

// ErrDimensionMismatch indicates a fragment or sample count that does not fit the metric layout.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
