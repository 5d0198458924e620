// Package pool provides object pools for allocation-free query scoring.
package pool

import (
	"sync"

	"github.com/hupe1980/motionvq/quantization"
)

const (
	// DefaultMaxDimensions is the initial capacity of fragment buffers.
	DefaultMaxDimensions = 256

	// DefaultMaxSubspaces is the initial number of subspaces covered by distance tables.
	DefaultMaxSubspaces = 64

	// maxRetainedFloats bounds the buffers kept in the pool.
	maxRetainedFloats = 1 << 20
)

// QueryContext holds the scratch buffers of one query.
// A context is owned by a single query until it is returned with Put.
type QueryContext struct {
	Normalized      []float32
	Decoded         []float32
	PoseTable       []float32
	TrajectoryTable []float32
}

var queryContextPool = sync.Pool{
	New: func() any {
		tableSize := DefaultMaxSubspaces * quantization.NumCentroids
		return &QueryContext{
			Normalized:      make([]float32, 0, DefaultMaxDimensions),
			Decoded:         make([]float32, 0, DefaultMaxDimensions),
			PoseTable:       make([]float32, 0, tableSize),
			TrajectoryTable: make([]float32, 0, tableSize),
		}
	},
}

// Get retrieves a QueryContext from the pool.
func Get() *QueryContext {
	ctx := queryContextPool.Get().(*QueryContext)
	ctx.Reset()
	return ctx
}

// Put returns a QueryContext to the pool for reuse.
// Oversized buffers are dropped so one large query does not pin memory.
func Put(ctx *QueryContext) {
	if ctx == nil {
		return
	}
	if cap(ctx.PoseTable) > maxRetainedFloats || cap(ctx.TrajectoryTable) > maxRetainedFloats {
		return
	}
	queryContextPool.Put(ctx)
}

// Reset truncates all buffers.
func (qc *QueryContext) Reset() {
	qc.Normalized = qc.Normalized[:0]
	qc.Decoded = qc.Decoded[:0]
	qc.PoseTable = qc.PoseTable[:0]
	qc.TrajectoryTable = qc.TrajectoryTable[:0]
}

// Grow returns buf resized to n, reallocating only when its capacity is too small.
func Grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
