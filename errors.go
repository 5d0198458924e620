package motionvq

import (
	"errors"

	"github.com/hupe1980/motionvq/blobstore"
	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/internal/resource"
	"github.com/hupe1980/motionvq/persistence"
)

var (
	// ErrMetricNotFound is returned when a library has no codebook for a metric name.
	ErrMetricNotFound = errors.New("metric not found")
	// ErrDuplicateMetric is returned when two codebooks share a metric name.
	ErrDuplicateMetric = errors.New("duplicate metric")
	// ErrNoMetrics is returned when a library would contain no codebook.
	ErrNoMetrics = errors.New("no metrics")
	// ErrClosed is returned when a closed library is used.
	ErrClosed = errors.New("library is closed")
	// ErrManifestMismatch is returned when a blob does not match its manifest entry.
	ErrManifestMismatch = errors.New("codebook does not match manifest")
)

// Errors from lower layers, re-exported so callers need a single import.
var (
	ErrEmptyCorpus         = fragment.ErrEmptyCorpus
	ErrInvalidMetric       = fragment.ErrInvalidMetric
	ErrMetricMismatch      = fragment.ErrMetricMismatch
	ErrNotFound            = blobstore.ErrNotFound
	ErrMemoryLimitExceeded = resource.ErrMemoryLimitExceeded
	ErrCorrupt             = persistence.ErrCorrupt
)

// ErrDimensionMismatch reports a fragment whose length does not match its metric.
type ErrDimensionMismatch = fragment.ErrDimensionMismatch
