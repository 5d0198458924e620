package fragment

import (
	"fmt"

	"github.com/hupe1980/motionvq/quantization"
)

// IntervalEntry maps an Interval to the rows [Row, Row+NumFrames) of a codebook.
type IntervalEntry struct {
	ID         int
	FirstFrame int
	NumFrames  int
	Row        int
}

// Interval returns the entry's interval.
func (e IntervalEntry) Interval() Interval {
	return Interval{ID: e.ID, FirstFrame: e.FirstFrame, NumFrames: e.NumFrames}
}

// Codebook stores the quantized fragments of one metric.
//
// A Codebook is immutable; all methods are safe for concurrent use.
type Codebook struct {
	metric    Metric
	version   uint32
	norm      Normalization
	quantizer *quantization.SubspaceQuantizer
	intervals []IntervalEntry
	index     map[int]int
	codes     []byte
	numRows   int
}

// NewCodebook assembles a codebook from its parts and validates their shapes.
// intervals must cover rows 0..n-1 in order and codes must hold n codes.
func NewCodebook(metric Metric, norm Normalization, quantizer *quantization.SubspaceQuantizer,
	intervals []IntervalEntry, codes []byte) (*Codebook, error) {
	if err := metric.Validate(); err != nil {
		return nil, err
	}
	d := metric.Dimension()
	if quantizer == nil || !quantizer.IsTrained() {
		return nil, fmt.Errorf("fragment: codebook %s needs a trained quantizer", metric.Name)
	}
	if quantizer.Dimension() != d {
		return nil, &ErrDimensionMismatch{Expected: d, Actual: quantizer.Dimension()}
	}
	if quantizer.NumSubspaces() != metric.Subspaces() {
		return nil, fmt.Errorf("fragment: codebook %s has %d subspaces, metric wants %d",
			metric.Name, quantizer.NumSubspaces(), metric.Subspaces())
	}
	if len(norm.Mean) != d || len(norm.Scale) != d {
		return nil, &ErrDimensionMismatch{Expected: d, Actual: len(norm.Mean)}
	}

	index := make(map[int]int, len(intervals))
	rows := 0
	for i, e := range intervals {
		if e.NumFrames <= 0 {
			return nil, fmt.Errorf("fragment: interval %d has no frames", e.ID)
		}
		if e.Row != rows {
			return nil, fmt.Errorf("fragment: interval %d starts at row %d, want %d", e.ID, e.Row, rows)
		}
		if _, dup := index[e.ID]; dup {
			return nil, fmt.Errorf("fragment: duplicate interval %d", e.ID)
		}
		index[e.ID] = i
		rows += e.NumFrames
	}
	if len(codes) != rows*quantizer.CodeSize() {
		return nil, fmt.Errorf("fragment: codebook %s has %d code bytes, want %d",
			metric.Name, len(codes), rows*quantizer.CodeSize())
	}

	return &Codebook{
		metric:    metric,
		norm:      norm,
		quantizer: quantizer,
		intervals: intervals,
		index:     index,
		codes:     codes,
		numRows:   rows,
	}, nil
}

// WithVersion returns a copy of the codebook carrying version. The copy shares
// all tables with cb.
func (cb *Codebook) WithVersion(version uint32) *Codebook {
	c := *cb
	c.version = version
	return &c
}

// Metric returns the metric the codebook was built for.
func (cb *Codebook) Metric() Metric { return cb.metric }

// Name returns the metric name.
func (cb *Codebook) Name() string { return cb.metric.Name }

// Version returns the persisted version, or 0 for a codebook that was never saved.
func (cb *Codebook) Version() uint32 { return cb.version }

// Dimension returns the fragment dimension.
func (cb *Codebook) Dimension() int { return cb.quantizer.Dimension() }

// CodeSize returns M, the number of bytes per code.
func (cb *Codebook) CodeSize() int { return cb.quantizer.CodeSize() }

// NumRows returns the number of encoded frames.
func (cb *Codebook) NumRows() int { return cb.numRows }

// Intervals returns the interval table. The slice must not be modified.
func (cb *Codebook) Intervals() []IntervalEntry { return cb.intervals }

// Quantizer returns the trained quantizer.
func (cb *Codebook) Quantizer() *quantization.SubspaceQuantizer { return cb.quantizer }

// Normalization returns the column statistics.
func (cb *Codebook) Normalization() Normalization { return cb.norm }

// Codes returns the flat code array. The slice must not be modified.
func (cb *Codebook) Codes() []byte { return cb.codes }

// SizeBytes returns the resident size of tables and codes.
func (cb *Codebook) SizeBytes() int64 {
	floats := len(cb.quantizer.Centroids()) + 2*cb.Dimension()
	return int64(floats*4 + len(cb.codes) + len(cb.intervals)*4*8)
}

// Entry returns the table entry of interval.
func (cb *Codebook) Entry(interval int) (IntervalEntry, bool) {
	i, ok := cb.index[interval]
	if !ok {
		return IntervalEntry{}, false
	}
	return cb.intervals[i], true
}

// Row returns the code row of frame in interval.
func (cb *Codebook) Row(interval, frame int) (int, bool) {
	e, ok := cb.Entry(interval)
	if !ok || frame < e.FirstFrame || frame >= e.FirstFrame+e.NumFrames {
		return 0, false
	}
	return e.Row + frame - e.FirstFrame, true
}

// Code returns the code stored at row. It panics if row is out of range.
func (cb *Codebook) Code(row int) []byte {
	m := cb.quantizer.CodeSize()
	return cb.codes[row*m : (row+1)*m : (row+1)*m]
}

// CodeAt returns the code of frame in interval.
func (cb *Codebook) CodeAt(interval, frame int) ([]byte, bool) {
	row, ok := cb.Row(interval, frame)
	if !ok {
		return nil, false
	}
	return cb.Code(row), true
}

// SamplingTime returns the interval and frame stored at row.
func (cb *Codebook) SamplingTime(row int) (SamplingTime, bool) {
	if row < 0 || row >= cb.numRows {
		return SamplingTime{}, false
	}
	lo, hi := 0, len(cb.intervals)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if cb.intervals[mid].Row+cb.intervals[mid].NumFrames <= row {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	e := cb.intervals[lo]
	return SamplingTime{Interval: e.ID, Frame: e.FirstFrame + row - e.Row}, true
}

// Normalize writes the normalized values of f into dst.
func (cb *Codebook) Normalize(dst []float32, f Fragment) error {
	if err := cb.check(f); err != nil {
		return err
	}
	cb.norm.Normalize(dst, f.Values)
	return nil
}

// Encode normalizes and quantizes f.
func (cb *Codebook) Encode(f Fragment) ([]byte, error) {
	if err := cb.check(f); err != nil {
		return nil, err
	}
	buf := make([]float32, cb.Dimension())
	cb.norm.Normalize(buf, f.Values)
	return cb.quantizer.Encode(buf), nil
}

// Decode dequantizes and de-normalizes code.
func (cb *Codebook) Decode(code []byte) Fragment {
	values := make([]float32, cb.Dimension())
	cb.DecodeNormalized(values, code)
	cb.norm.InverseNormalize(values, values)
	return Fragment{Metric: cb.metric.Name, Values: values}
}

// DecodeNormalized writes the dequantized code into dst without de-normalizing.
func (cb *Codebook) DecodeNormalized(dst []float32, code []byte) {
	cb.quantizer.DecodeInto(dst, code)
}

// Fragment decodes the fragment stored for frame of interval.
func (cb *Codebook) Fragment(interval, frame int) (Fragment, bool) {
	code, ok := cb.CodeAt(interval, frame)
	if !ok {
		return Fragment{}, false
	}
	f := cb.Decode(code)
	f.Source = &SamplingTime{Interval: interval, Frame: frame}
	return f, true
}

func (cb *Codebook) check(f Fragment) error {
	if f.Metric != cb.metric.Name {
		return fmt.Errorf("%w: %q vs %q", ErrMetricMismatch, f.Metric, cb.metric.Name)
	}
	if len(f.Values) != cb.Dimension() {
		return &ErrDimensionMismatch{Expected: cb.Dimension(), Actual: len(f.Values)}
	}
	return nil
}
