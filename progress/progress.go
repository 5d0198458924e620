// Package progress carries the advisory progress callback used by offline
// training and codebook builds.
//
// A Func receives a fraction in [0, 1] and a human readable label. Within one
// build the fraction never decreases. Long operations are split into phases with
// Reporter.Sub, so nested steps (subspace, clustering iteration) map onto a
// slice of the parent's range.
package progress

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Func is invoked with the completed fraction in [0, 1] and a label.
type Func func(percentage float32, info string)

// Reporter scales reports into [lo, hi] of a parent Func and drops regressions.
type Reporter struct {
	fn   Func
	lo   float32
	hi   float32
	last *float32
}

// NewReporter wraps fn. A nil fn yields a Reporter that discards reports.
func NewReporter(fn Func) *Reporter {
	last := float32(-1)
	return &Reporter{fn: fn, lo: 0, hi: 1, last: &last}
}

// Sub returns a Reporter covering [from, to] of r's range.
// from and to are fractions of r's range and are clamped to [0, 1].
func (r *Reporter) Sub(from, to float32) *Reporter {
	from, to = clamp(from), clamp(to)
	if to < from {
		to = from
	}
	span := r.hi - r.lo
	return &Reporter{
		fn:   r.fn,
		lo:   r.lo + from*span,
		hi:   r.lo + to*span,
		last: r.last,
	}
}

// Report forwards fraction (relative to r's range) to the callback.
// Reports that would move the overall fraction backwards are raised to the
// last reported value, so callers always observe a monotonic sequence.
func (r *Reporter) Report(fraction float32, info string) {
	if r == nil || r.fn == nil {
		return
	}
	p := r.lo + clamp(fraction)*(r.hi-r.lo)
	if p < *r.last {
		p = *r.last
	}
	*r.last = p
	r.fn(p, info)
}

// Step reports step i (0-based, completed) out of n.
func (r *Reporter) Step(i, n int, info string) {
	if n <= 0 {
		r.Report(1, info)
		return
	}
	r.Report(float32(i)/float32(n), info)
}

// Func returns r as a plain callback, for handing to lower layers.
func (r *Reporter) Func() Func {
	return func(p float32, info string) { r.Report(p, info) }
}

// Logging returns a Func that writes progress to logger at most once per
// interval. The final report (percentage 1) is always logged.
func Logging(logger *slog.Logger, interval time.Duration) Func {
	if logger == nil {
		return nil
	}
	s := &rate.Sometimes{Interval: interval}
	return func(p float32, info string) {
		if p >= 1 {
			logger.Info("progress", "percentage", p, "info", info)
			return
		}
		s.Do(func() {
			logger.Debug("progress", "percentage", p, "info", info)
		})
	}
}

// Tee fans a report out to every non-nil Func.
func Tee(fns ...Func) Func {
	var active []Func
	for _, fn := range fns {
		if fn != nil {
			active = append(active, fn)
		}
	}
	if len(active) == 0 {
		return nil
	}
	return func(p float32, info string) {
		for _, fn := range active {
			fn(p, info)
		}
	}
}

func clamp(f float32) float32 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
