package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when resident codebooks would exceed
// the configured memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited, except
// MaxWorkers which defaults to 1.
type Config struct {
	// MemoryLimitBytes caps the bytes of codebooks resident at once.
	MemoryLimitBytes int64
	// MaxWorkers caps concurrent codebook loads and builds.
	MaxWorkers int64
	// IOLimitBytesPerSec throttles blob reads and writes.
	IOLimitBytesPerSec int64
}

// Controller accounts memory, limits worker concurrency and throttles IO.
// A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	workers *semaphore.Weighted

	io    *rate.Limiter
	burst int
}

// NewController creates a Controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}

	c := &Controller{
		cfg:     cfg,
		workers: semaphore.NewWeighted(cfg.MaxWorkers),
	}
	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.burst = int(min(cfg.IOLimitBytesPerSec, 1<<30))
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), c.burst)
	}
	return c
}

// AcquireMemory reserves n bytes without blocking.
func (c *Controller) AcquireMemory(n int64) error {
	if c == nil || n <= 0 {
		return nil
	}
	if c.memSem != nil && !c.memSem.TryAcquire(n) {
		return ErrMemoryLimitExceeded
	}
	c.memUsed.Add(n)
	return nil
}

// ReleaseMemory returns n bytes reserved by AcquireMemory.
func (c *Controller) ReleaseMemory(n int64) {
	if c == nil || n <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(n)
	}
	c.memUsed.Add(-n)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the limit, 0 if unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// MaxWorkers returns the worker limit; 0 for a nil controller.
func (c *Controller) MaxWorkers() int {
	if c == nil {
		return 0
	}
	return int(c.cfg.MaxWorkers)
}

// AcquireWorker blocks until a worker slot is free or ctx is done.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker frees a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// AcquireIO waits until n bytes of IO are allowed. Requests larger than the
// bucket are spread over several waits.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return nil
	}
	for n > 0 {
		step := min(n, c.burst)
		if err := c.io.WaitN(ctx, step); err != nil {
			return err
		}
		n -= step
	}
	return nil
}
