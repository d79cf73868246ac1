// Package resource bounds what a loader may consume beyond its worker count:
// cache memory (fail-fast weighted semaphore), concurrent store reads
// (blocking semaphore) and read bandwidth (token bucket).
//
//	rc := resource.NewController(resource.Config{
//	    MaxConcurrentReads: 8,
//	    IOLimitBytesPerSec: 200 << 20,
//	})
//	if err := rc.AcquireRead(ctx, n); err != nil {
//	    return err
//	}
//	defer rc.ReleaseRead()
package resource
