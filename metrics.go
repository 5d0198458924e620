package motionvq

import (
	"context"
	"sync/atomic"
	"time"
)

// MetricsCollector receives operational metrics. Implement it to export to
// a monitoring system.
type MetricsCollector interface {
	// RecordBuild is called once per codebook built.
	RecordBuild(metric string, rows int, duration time.Duration, err error)
	// RecordSave is called after a library save. blobs counts the codebook
	// blobs actually written.
	RecordSave(blobs int, bytes int64, duration time.Duration, err error)
	// RecordOpen is called after a library open.
	RecordOpen(codebooks int, bytes int64, duration time.Duration, err error)
	// RecordSearch is called after every deviation scan.
	RecordSearch(candidates, valid int, duration time.Duration)
}

// NoopMetricsCollector discards all metrics.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordBuild(string, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordSave(int, int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordOpen(int, int64, time.Duration, error)   {}
func (NoopMetricsCollector) RecordSearch(int, int, time.Duration)          {}

// BasicMetricsCollector keeps counters in memory.
type BasicMetricsCollector struct {
	BuildCount      atomic.Int64
	BuildErrors     atomic.Int64
	BuildRows       atomic.Int64
	BuildTotalNanos atomic.Int64
	SaveCount       atomic.Int64
	SaveErrors      atomic.Int64
	SaveBlobs       atomic.Int64
	SaveBytes       atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	OpenBytes       atomic.Int64
	SearchCount     atomic.Int64
	SearchScored    atomic.Int64
	SearchValid     atomic.Int64
	SearchNanos     atomic.Int64
}

// RecordBuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBuild(_ string, rows int, d time.Duration, err error) {
	b.BuildCount.Add(1)
	b.BuildTotalNanos.Add(d.Nanoseconds())
	if err != nil {
		b.BuildErrors.Add(1)
		return
	}
	b.BuildRows.Add(int64(rows))
}

// RecordSave implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSave(blobs int, bytes int64, _ time.Duration, err error) {
	b.SaveCount.Add(1)
	if err != nil {
		b.SaveErrors.Add(1)
		return
	}
	b.SaveBlobs.Add(int64(blobs))
	b.SaveBytes.Add(bytes)
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_ int, bytes int64, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
		return
	}
	b.OpenBytes.Add(bytes)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(candidates, valid int, d time.Duration) {
	b.SearchCount.Add(1)
	b.SearchScored.Add(int64(candidates))
	b.SearchValid.Add(int64(valid))
	b.SearchNanos.Add(d.Nanoseconds())
}

// GetStats returns a snapshot of the counters.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	s := BasicMetricsStats{
		BuildCount:   b.BuildCount.Load(),
		BuildErrors:  b.BuildErrors.Load(),
		BuildRows:    b.BuildRows.Load(),
		SaveCount:    b.SaveCount.Load(),
		SaveErrors:   b.SaveErrors.Load(),
		SaveBlobs:    b.SaveBlobs.Load(),
		SaveBytes:    b.SaveBytes.Load(),
		OpenCount:    b.OpenCount.Load(),
		OpenErrors:   b.OpenErrors.Load(),
		OpenBytes:    b.OpenBytes.Load(),
		SearchCount:  b.SearchCount.Load(),
		SearchScored: b.SearchScored.Load(),
		SearchValid:  b.SearchValid.Load(),
	}
	if s.BuildCount > 0 {
		s.BuildAvgNanos = b.BuildTotalNanos.Load() / s.BuildCount
	}
	if s.SearchCount > 0 {
		s.SearchAvgNanos = b.SearchNanos.Load() / s.SearchCount
	}
	return s
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector.
type BasicMetricsStats struct {
	BuildCount     int64
	BuildErrors    int64
	BuildRows      int64
	BuildAvgNanos  int64
	SaveCount      int64
	SaveErrors     int64
	SaveBlobs      int64
	SaveBytes      int64
	OpenCount      int64
	OpenErrors     int64
	OpenBytes      int64
	SearchCount    int64
	SearchScored   int64
	SearchValid    int64
	SearchAvgNanos int64
}

// searchObserver forwards scan statistics to the collector and logger.
type searchObserver struct {
	metrics MetricsCollector
	logger  *Logger
}

func (o searchObserver) ObserveSearch(candidates, valid int, elapsed time.Duration) {
	o.metrics.RecordSearch(candidates, valid, elapsed)
	o.logger.LogSearch(context.Background(), candidates, valid, elapsed)
}
