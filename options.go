package motionvq

import (
	"github.com/hupe1980/motionvq/codec"
	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/persistence"
	"github.com/hupe1980/motionvq/progress"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	progress         progress.Func
	intervals        func(fragment.Interval) bool
	compression      persistence.CompressionType
	codec            codec.Codec
	memoryLimit      int64
	ioLimit          int64
	workers          int
	keepStale        bool
}

// Option configures Build, Open and NewLibrary. Options that do not apply
// to an operation are ignored; the logger, collector, codec and limits
// given at Build or Open also govern later Save and Searcher calls.
type Option func(*options)

// WithLogger configures structured logging. nil disables logging.
//
//	lib, _ := motionvq.Build(ctx, sampler, metrics,
//	    motionvq.WithLogger(motionvq.NewJSONLogger(slog.LevelInfo)))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithMetricsCollector configures a metrics collector. nil disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithProgress receives build progress across all metrics. The fraction
// never decreases.
func WithProgress(fn progress.Func) Option {
	return func(o *options) { o.progress = fn }
}

// WithIntervals restricts the build to intervals accepted by filter.
func WithIntervals(filter func(fragment.Interval) bool) Option {
	return func(o *options) { o.intervals = filter }
}

// WithCompression selects the compression of saved codebook blobs.
// Blobs that do not shrink are stored uncompressed regardless.
func WithCompression(ct persistence.CompressionType) Option {
	return func(o *options) { o.compression = ct }
}

// WithCodec selects the codec for manifests and metric descriptors.
// nil selects codec.Default.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMemoryLimit caps the bytes of resident codebooks. Exceeding it fails
// with ErrMemoryLimitExceeded.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) { o.memoryLimit = bytes }
}

// WithIOLimit throttles blob transfers to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) { o.ioLimit = bytesPerSec }
}

// WithWorkers sets how many codebooks are loaded or saved concurrently.
// Default 4.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithKeepStaleBlobs keeps blobs of superseded versions on Save instead of
// deleting them.
func WithKeepStaleBlobs() Option {
	return func(o *options) { o.keepStale = true }
}

func applyOptions(optFns []Option) options {
	o := options{
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		compression:      persistence.CompressionNone,
		codec:            codec.Default,
		workers:          4,
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	if o.workers <= 0 {
		o.workers = 1
	}
	return o
}
