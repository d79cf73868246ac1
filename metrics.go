package pixpipe

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting loader metrics.
// Implementations must be safe for concurrent use: the read, decode and skip
// hooks are called from worker goroutines.
//
// The prommetrics package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordRead is called after each record is read from the store.
	RecordRead(bytes int, duration time.Duration)

	// RecordDecode is called after each successful image decode.
	RecordDecode(duration time.Duration)

	// RecordSkip is called for every skipped record.
	RecordSkip(err error)

	// RecordBatch is called after each NextBatch. size is the number of
	// samples delivered and wait the time NextBatch blocked.
	RecordBatch(size int, wait time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(int, time.Duration)         {}
func (NoopMetricsCollector) RecordDecode(time.Duration)            {}
func (NoopMetricsCollector) RecordSkip(error)                      {}
func (NoopMetricsCollector) RecordBatch(int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	ReadCount        atomic.Int64
	ReadBytes        atomic.Int64
	ReadTotalNanos   atomic.Int64
	DecodeCount      atomic.Int64
	DecodeTotalNanos atomic.Int64
	SkipCount        atomic.Int64
	BatchCount       atomic.Int64
	BatchErrors      atomic.Int64
	BatchSamples     atomic.Int64
	BatchWaitNanos   atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(bytes int, duration time.Duration) {
	b.ReadCount.Add(1)
	b.ReadBytes.Add(int64(bytes))
	b.ReadTotalNanos.Add(duration.Nanoseconds())
}

// RecordDecode implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDecode(duration time.Duration) {
	b.DecodeCount.Add(1)
	b.DecodeTotalNanos.Add(duration.Nanoseconds())
}

// RecordSkip implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSkip(error) {
	b.SkipCount.Add(1)
}

// RecordBatch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordBatch(size int, wait time.Duration, err error) {
	if err != nil {
		b.BatchErrors.Add(1)
		return
	}
	b.BatchCount.Add(1)
	b.BatchSamples.Add(int64(size))
	b.BatchWaitNanos.Add(wait.Nanoseconds())
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ReadCount:      b.ReadCount.Load(),
		ReadBytes:      b.ReadBytes.Load(),
		ReadAvgNanos:   avg(b.ReadTotalNanos.Load(), b.ReadCount.Load()),
		DecodeCount:    b.DecodeCount.Load(),
		DecodeAvgNanos: avg(b.DecodeTotalNanos.Load(), b.DecodeCount.Load()),
		SkipCount:      b.SkipCount.Load(),
		BatchCount:     b.BatchCount.Load(),
		BatchErrors:    b.BatchErrors.Load(),
		BatchSamples:   b.BatchSamples.Load(),
		BatchAvgWait:   time.Duration(avg(b.BatchWaitNanos.Load(), b.BatchCount.Load())),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ReadCount      int64
	ReadBytes      int64
	ReadAvgNanos   int64
	DecodeCount    int64
	DecodeAvgNanos int64
	SkipCount      int64
	BatchCount     int64
	BatchErrors    int64
	BatchSamples   int64
	BatchAvgWait   time.Duration
}
