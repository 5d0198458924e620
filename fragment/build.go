package fragment

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hupe1980/motionvq/progress"
	"github.com/hupe1980/motionvq/quantization"
)

// BuildOption configures Build.
type BuildOption func(*buildOptions)

type buildOptions struct {
	progress progress.Func
	logger   *slog.Logger
	filter   func(Interval) bool
}

// WithProgress reports build progress in [0, 1].
func WithProgress(fn progress.Func) BuildOption {
	return func(o *buildOptions) { o.progress = fn }
}

// WithLogger sets the logger for build events.
func WithLogger(l *slog.Logger) BuildOption {
	return func(o *buildOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithIntervals restricts the build to intervals accepted by filter.
func WithIntervals(filter func(Interval) bool) BuildOption {
	return func(o *buildOptions) { o.filter = filter }
}

// Build extracts every frame of the sampler's intervals, trains a quantizer
// for metric in normalized space and encodes all frames.
//
// Progress is split into extraction [0, 0.1], training [0.1, 0.9] and
// encoding [0.9, 1]. ErrEmptyCorpus is returned when no frame is selected.
func Build(ctx context.Context, sampler Sampler, metric Metric, opts ...BuildOption) (*Codebook, error) {
	o := buildOptions{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&o)
	}
	if err := metric.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	logger := o.logger.With("metric", metric.Name)
	rep := progress.NewReporter(o.progress)

	entries, rows, err := collectIntervals(sampler.Intervals(), o.filter)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: metric %s", ErrEmptyCorpus, metric.Name)
	}

	d := metric.Dimension()
	logger.InfoContext(ctx, "building codebook",
		"kind", metric.Kind.String(), "dimension", d, "subspaces", metric.Subspaces(),
		"intervals", len(entries), "rows", rows)

	extract := rep.Sub(0, 0.1)
	flat := make([]float32, rows*d)
	vectors := make([][]float32, rows)
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iv := e.Interval()
		for f := 0; f < e.NumFrames; f++ {
			frag, err := Extract(sampler, metric, iv, e.FirstFrame+f)
			if err != nil {
				return nil, fmt.Errorf("extract interval %d frame %d: %w", e.ID, e.FirstFrame+f, err)
			}
			row := e.Row + f
			vectors[row] = flat[row*d : (row+1)*d : (row+1)*d]
			copy(vectors[row], frag.Values)
		}
		extract.Step(i+1, len(entries), "extracting fragments")
	}

	norm := ComputeNormalization(vectors)
	for _, v := range vectors {
		norm.Normalize(v, v)
	}

	quantizer := quantization.NewSubspaceQuantizer(d, metric.Subspaces(), metric.quantizerSettings())
	if err := quantizer.Train(ctx, vectors, rep.Sub(0.1, 0.9).Func()); err != nil {
		return nil, err
	}

	encode := rep.Sub(0.9, 1)
	m := quantizer.CodeSize()
	codes := make([]byte, rows*m)
	for row, v := range vectors {
		quantizer.EncodeInto(codes[row*m:(row+1)*m], v)
		if row%1024 == 0 {
			encode.Step(row, rows, "encoding fragments")
		}
	}
	rep.Report(1, "done")

	cb, err := NewCodebook(metric, norm, quantizer, entries, codes)
	if err != nil {
		return nil, err
	}

	logger.InfoContext(ctx, "codebook built",
		"rows", rows, "code_bytes", len(codes),
		"normalized_error", quantizer.ReconstructionError(sampleRows(vectors, 1024)),
		"duration", time.Since(start))
	return cb, nil
}

func collectIntervals(intervals []Interval, filter func(Interval) bool) ([]IntervalEntry, int, error) {
	entries := make([]IntervalEntry, 0, len(intervals))
	seen := make(map[int]struct{}, len(intervals))
	rows := 0
	for _, iv := range intervals {
		if iv.NumFrames <= 0 || (filter != nil && !filter(iv)) {
			continue
		}
		if _, dup := seen[iv.ID]; dup {
			return nil, 0, fmt.Errorf("fragment: duplicate interval %d", iv.ID)
		}
		seen[iv.ID] = struct{}{}
		entries = append(entries, IntervalEntry{ID: iv.ID, FirstFrame: iv.FirstFrame, NumFrames: iv.NumFrames, Row: rows})
		rows += iv.NumFrames
	}
	return entries, rows, nil
}

// sampleRows returns at most limit rows, evenly strided.
func sampleRows(vectors [][]float32, limit int) [][]float32 {
	if len(vectors) <= limit {
		return vectors
	}
	out := make([][]float32, 0, limit)
	stride := len(vectors) / limit
	for i := 0; i < len(vectors) && len(out) < limit; i += stride {
		out = append(out, vectors[i])
	}
	return out
}
