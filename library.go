package motionvq

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/motionvq/blobstore"
	"github.com/hupe1980/motionvq/fragment"
	"github.com/hupe1980/motionvq/internal/resource"
	"github.com/hupe1980/motionvq/manifest"
	"github.com/hupe1980/motionvq/persistence"
	"github.com/hupe1980/motionvq/progress"
	"github.com/hupe1980/motionvq/search"
)

// Library is a set of codebooks, one per metric, that can be saved to and
// opened from a blob store. Codebooks are immutable and shared by every
// Searcher created from the library. A Library is safe for concurrent use.
type Library struct {
	opts options
	rc   *resource.Controller

	mu        sync.RWMutex
	codebooks map[string]*fragment.Codebook
	manifest  *manifest.Manifest
	blobs     []blobstore.Blob // kept open while codebooks alias them
	closed    bool
}

func newLibrary(o options) *Library {
	return &Library{
		opts: o,
		rc: resource.NewController(resource.Config{
			MemoryLimitBytes:   o.memoryLimit,
			MaxWorkers:         int64(o.workers),
			IOLimitBytesPerSec: o.ioLimit,
		}),
		codebooks: make(map[string]*fragment.Codebook),
	}
}

// NewLibrary wraps codebooks built elsewhere.
func NewLibrary(codebooks []*fragment.Codebook, optFns ...Option) (*Library, error) {
	if len(codebooks) == 0 {
		return nil, ErrNoMetrics
	}
	l := newLibrary(applyOptions(optFns))
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, cb := range codebooks {
		if err := l.add(cb); err != nil {
			l.releaseLocked()
			return nil, err
		}
	}
	return l, nil
}

// Build trains one codebook per metric from the sampler. Metrics are built
// one after another; progress spans all of them.
func Build(ctx context.Context, sampler fragment.Sampler, metrics []fragment.Metric, optFns ...Option) (*Library, error) {
	if len(metrics) == 0 {
		return nil, ErrNoMetrics
	}
	seen := make(map[string]struct{}, len(metrics))
	for _, m := range metrics {
		if _, dup := seen[m.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateMetric, m.Name)
		}
		seen[m.Name] = struct{}{}
	}

	o := applyOptions(optFns)
	l := newLibrary(o)
	report := progress.NewReporter(progress.Tee(o.progress, progress.Logging(o.logger.Logger, time.Second)))
	n := float32(len(metrics))

	for i, m := range metrics {
		logger := o.logger.WithMetric(m.Name)
		start := time.Now()

		cb, err := fragment.Build(ctx, sampler, m,
			fragment.WithProgress(report.Sub(float32(i)/n, float32(i+1)/n).Func()),
			fragment.WithLogger(logger.Logger),
			fragment.WithIntervals(o.intervals),
		)

		rows := 0
		if cb != nil {
			rows = cb.NumRows()
		}
		elapsed := time.Since(start)
		logger.LogBuild(ctx, m.Name, rows, elapsed, err)
		o.metricsCollector.RecordBuild(m.Name, rows, elapsed, err)

		if err == nil {
			l.mu.Lock()
			err = l.add(cb)
			l.mu.Unlock()
		}
		if err != nil {
			_ = l.Close()
			return nil, fmt.Errorf("build %s: %w", m.Name, err)
		}
	}
	return l, nil
}

// Open loads the library saved under prefix. Codebooks are loaded
// concurrently; uncompressed blobs from mappable stores are used in place.
func Open(ctx context.Context, store blobstore.BlobStore, prefix string, optFns ...Option) (*Library, error) {
	o := applyOptions(optFns)
	start := time.Now()

	l, err := open(ctx, store, prefix, o)

	var count int
	var resident int64
	if l != nil {
		count = len(l.codebooks)
		resident = l.rc.MemoryUsage()
	}
	o.logger.LogOpen(ctx, prefix, count, resident, err)
	o.metricsCollector.RecordOpen(count, resident, time.Since(start), err)
	return l, err
}

func open(ctx context.Context, store blobstore.BlobStore, prefix string, o options) (*Library, error) {
	ms := manifest.NewStore(store, prefix, o.codec)
	m, err := ms.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", prefix, err)
	}
	if len(m.Codebooks) == 0 {
		return nil, fmt.Errorf("open %s: %w", prefix, ErrNoMetrics)
	}

	l := newLibrary(o)
	l.manifest = m

	g, gctx := errgroup.WithContext(ctx)
	for _, info := range m.Codebooks {
		g.Go(func() error {
			if err := l.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer l.rc.ReleaseWorker()
			return l.load(gctx, store, ms.Path(info.Path), info)
		})
	}
	if err := g.Wait(); err != nil {
		_ = l.Close()
		return nil, err
	}
	return l, nil
}

func (l *Library) load(ctx context.Context, store blobstore.BlobStore, name string, info manifest.CodebookInfo) error {
	b, err := store.Open(ctx, name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = b.Close()
		}
	}()

	data, mapped, err := l.read(ctx, b)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	cb, h, err := persistence.ReadCodebook(data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	if cb.Name() != info.Metric || h.MetricVersion != info.Version || h.Checksum != info.Checksum {
		return fmt.Errorf("%w: %s holds %s v%d (checksum %08x), manifest expects %s v%d (checksum %08x)",
			ErrManifestMismatch, name, cb.Name(), h.MetricVersion, h.Checksum, info.Metric, info.Version, info.Checksum)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.add(cb); err != nil {
		return err
	}
	if mapped && h.Compression == persistence.CompressionNone {
		keep = true
		l.blobs = append(l.blobs, b)
	}
	return nil
}

// read returns the blob contents and whether they alias the blob.
func (l *Library) read(ctx context.Context, b blobstore.Blob) ([]byte, bool, error) {
	if m, ok := b.(blobstore.Mappable); ok {
		data, err := m.Bytes()
		return data, true, err
	}
	if l.opts.ioLimit <= 0 {
		data, err := blobstore.ReadAll(ctx, b)
		return data, false, err
	}
	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, false, err
	}
	defer rc.Close()
	data, err := io.ReadAll(resource.NewRateLimitedReader(ctx, rc, l.rc))
	return data, false, err
}

// add registers cb. Callers hold l.mu.
func (l *Library) add(cb *fragment.Codebook) error {
	if _, dup := l.codebooks[cb.Name()]; dup {
		return fmt.Errorf("%w: %q", ErrDuplicateMetric, cb.Name())
	}
	if err := l.rc.AcquireMemory(cb.SizeBytes()); err != nil {
		return fmt.Errorf("codebook %s (%d bytes, limit %d): %w", cb.Name(), cb.SizeBytes(), l.rc.MemoryLimit(), err)
	}
	l.codebooks[cb.Name()] = cb
	return nil
}

// Save writes the library under prefix: one blob per codebook, then the
// manifest. A codebook whose checksum matches the previous manifest keeps its
// version and blob; changed codebooks get the next version. Blobs of
// superseded versions are deleted unless WithKeepStaleBlobs was given.
func (l *Library) Save(ctx context.Context, store blobstore.BlobStore, prefix string) (*manifest.Manifest, error) {
	start := time.Now()
	m, written, size, err := l.save(ctx, store, prefix)

	unchanged := 0
	if m != nil {
		unchanged = len(m.Codebooks) - written
	}
	l.opts.logger.LogSave(ctx, prefix, written, unchanged, size, err)
	l.opts.metricsCollector.RecordSave(written, size, time.Since(start), err)
	return m, err
}

func (l *Library) save(ctx context.Context, store blobstore.BlobStore, prefix string) (*manifest.Manifest, int, int64, error) {
	l.mu.RLock()
	if l.closed {
		l.mu.RUnlock()
		return nil, 0, 0, ErrClosed
	}
	cbs := l.sorted()
	l.mu.RUnlock()

	ms := manifest.NewStore(store, prefix, l.opts.codec)
	prev, err := ms.Load(ctx)
	if err != nil && !errors.Is(err, blobstore.ErrNotFound) {
		return nil, 0, 0, err
	}

	infos := make([]manifest.CodebookInfo, len(cbs))
	wrote := make([]bool, len(cbs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.rc.MaxWorkers())
	for i, cb := range cbs {
		g.Go(func() error {
			enc, err := persistence.Encode(cb, persistence.Options{Compression: l.opts.compression, Codec: l.opts.codec})
			if err != nil {
				return fmt.Errorf("encode %s: %w", cb.Name(), err)
			}
			version, write := prev.NextVersion(cb.Name(), enc.Checksum())
			name := manifest.BlobName(cb.Name(), version)
			if write {
				if err := l.write(gctx, store, ms.Path(name), enc, version); err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
			}
			infos[i] = manifest.CodebookInfo{
				Metric:      cb.Name(),
				Version:     version,
				Path:        name,
				Checksum:    enc.Checksum(),
				Rows:        cb.NumRows(),
				Size:        enc.Size(),
				Compression: enc.Compression().String(),
			}
			wrote[i] = write
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	next := manifest.New()
	written, size := 0, int64(0)
	for i, info := range infos {
		next.Set(info)
		if wrote[i] {
			written++
			size += info.Size
		}
	}
	if err := ms.Save(ctx, next); err != nil {
		return nil, 0, 0, err
	}

	if !l.opts.keepStale {
		deleted, err := ms.Prune(ctx, next)
		if err != nil {
			l.opts.logger.WarnContext(ctx, "pruning stale codebook blobs failed", "prefix", prefix, "error", err)
		} else if len(deleted) > 0 {
			l.opts.logger.DebugContext(ctx, "pruned stale codebook blobs", "prefix", prefix, "blobs", deleted)
		}
	}

	l.mu.Lock()
	for _, info := range infos {
		if cb, ok := l.codebooks[info.Metric]; ok {
			l.codebooks[info.Metric] = cb.WithVersion(info.Version)
		}
	}
	l.manifest = next
	l.mu.Unlock()

	return next, written, size, nil
}

func (l *Library) write(ctx context.Context, store blobstore.BlobStore, name string, enc *persistence.Encoded, version uint32) error {
	w, err := store.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := enc.WriteTo(resource.NewRateLimitedWriter(ctx, w, l.rc), version); err != nil {
		_ = blobstore.Abort(w)
		return err
	}
	return w.Close()
}

// sorted returns the codebooks ordered by metric name. Callers hold l.mu.
func (l *Library) sorted() []*fragment.Codebook {
	out := make([]*fragment.Codebook, 0, len(l.codebooks))
	for _, name := range l.metricsLocked() {
		out = append(out, l.codebooks[name])
	}
	return out
}

func (l *Library) metricsLocked() []string {
	names := make([]string, 0, len(l.codebooks))
	for name := range l.codebooks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Codebook returns the codebook of a metric.
func (l *Library) Codebook(name string) (*fragment.Codebook, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return nil, ErrClosed
	}
	cb, ok := l.codebooks[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrMetricNotFound, name)
	}
	return cb, nil
}

// Metrics returns the metric names, sorted.
func (l *Library) Metrics() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.metricsLocked()
}

// Manifest returns the manifest the library was opened from or last saved
// with, or nil.
func (l *Library) Manifest() *manifest.Manifest {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.manifest
}

// MemoryUsage returns the bytes accounted for resident codebooks.
func (l *Library) MemoryUsage() int64 {
	return l.rc.MemoryUsage()
}

// Searcher creates a searcher over the pose metric and, unless trajectory is
// empty, the trajectory metric. Scan statistics go to the library's logger
// and metrics collector.
func (l *Library) Searcher(pose, trajectory string, opts ...search.Option) (*search.Searcher, error) {
	p, err := l.Codebook(pose)
	if err != nil {
		return nil, err
	}
	if p.Metric().Kind != fragment.KindPose {
		return nil, fmt.Errorf("%w: %q is a %s metric", ErrMetricMismatch, pose, p.Metric().Kind)
	}

	var t *fragment.Codebook
	if trajectory != "" {
		if t, err = l.Codebook(trajectory); err != nil {
			return nil, err
		}
		if t.Metric().Kind != fragment.KindTrajectory {
			return nil, fmt.Errorf("%w: %q is a %s metric", ErrMetricMismatch, trajectory, t.Metric().Kind)
		}
	}

	base := []search.Option{
		search.WithObserver(searchObserver{metrics: l.opts.metricsCollector, logger: l.opts.logger}),
		search.WithLogger(l.opts.logger.Logger),
	}
	return search.NewSearcher(p, t, append(base, opts...)...)
}

// Close releases mapped blobs and the memory reservation. Searchers created
// from the library must not be used afterwards.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	for _, b := range l.blobs {
		errs = append(errs, b.Close())
	}
	l.blobs = nil
	l.releaseLocked()
	return errors.Join(errs...)
}

func (l *Library) releaseLocked() {
	for name, cb := range l.codebooks {
		l.rc.ReleaseMemory(cb.SizeBytes())
		delete(l.codebooks, name)
	}
}
