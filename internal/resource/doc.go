// Package resource limits what opening and saving a codebook library may
// consume.
//
// Memory is accounted, not allocated: a library reserves the size of every
// resident codebook and fails fast with ErrMemoryLimitExceeded when the
// limit is hit. Worker slots bound how many codebooks load or build at once.
// IO is throttled with a token bucket:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes:   512 << 20,
//	    MaxWorkers:         4,
//	    IOLimitBytesPerSec: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(cb.SizeBytes()); err != nil {
//	    return err
//	}
//	w := resource.NewRateLimitedWriter(ctx, blob, rc)
//
// All methods are safe for concurrent use and no-ops on a nil *Controller.
package resource
