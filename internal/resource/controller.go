package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes bounds memory held by caches.
	MemoryLimitBytes int64

	// MaxConcurrentReads bounds in-flight store reads across all workers.
	MaxConcurrentReads int64

	// IOLimitBytesPerSec throttles store reads.
	IOLimitBytesPerSec int64
}

// Controller enforces the limits of a Config. A nil *Controller permits
// everything, so callers never need to branch on whether limits are set.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted
	memUsed atomic.Int64

	readSem *semaphore.Weighted

	ioLimiter *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.MaxConcurrentReads > 0 {
		c.readSem = semaphore.NewWeighted(cfg.MaxConcurrentReads)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// TryAcquireMemory reserves bytes and reports whether it succeeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return false
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory returns bytes reserved by TryAcquireMemory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the bytes currently reserved.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured limit (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireRead admits one read of n bytes, waiting for a read slot and for
// IO budget. On success the caller must call ReleaseRead once the read is done.
func (c *Controller) AcquireRead(ctx context.Context, n int) error {
	if c == nil {
		return nil
	}
	if c.readSem != nil {
		if err := c.readSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}
	if err := c.AcquireIO(ctx, n); err != nil {
		c.ReleaseRead()
		return err
	}
	return nil
}

// ReleaseRead frees the slot taken by a successful AcquireRead.
func (c *Controller) ReleaseRead() {
	if c == nil || c.readSem == nil {
		return
	}
	c.readSem.Release(1)
}

// AcquireIO waits until the IO limit allows n bytes. Requests larger than
// the burst are admitted in burst-sized chunks.
func (c *Controller) AcquireIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
