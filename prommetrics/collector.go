// Package prommetrics exports loader metrics to Prometheus.
//
//	c := prommetrics.New(prometheus.DefaultRegisterer, "train")
//	l, _ := pixpipe.Open(ctx, cfg, pixpipe.WithMetricsCollector(c))
package prommetrics

import (
	"errors"
	"time"

	"github.com/hupe1980/pixpipe"
	"github.com/hupe1980/pixpipe/batch"
	"github.com/hupe1980/pixpipe/internal/worker"
	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sample"
	"github.com/hupe1980/pixpipe/store"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pixpipe"

var _ pixpipe.MetricsCollector = (*Collector)(nil)

// Collector implements pixpipe.MetricsCollector with Prometheus metrics.
// Every metric carries a "loader" label so several loaders can share a
// registry.
type Collector struct {
	readBytes     prometheus.Counter
	readLatency   prometheus.Histogram
	decodeLatency prometheus.Histogram
	skipped       *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchSamples  prometheus.Counter
	batchWait     prometheus.Histogram
}

// New creates a collector for the loader named name and registers it with
// reg. A nil reg leaves the metrics unregistered.
func New(reg prometheus.Registerer, name string) *Collector {
	labels := prometheus.Labels{"loader": name}
	c := &Collector{
		readBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "read_bytes_total",
			Help:        "Record bytes read from the store.",
			ConstLabels: labels,
		}),
		readLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "read_duration_seconds",
			Help:        "Record read latency.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		decodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "decode_duration_seconds",
			Help:        "Image decode latency.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1e-4, 4, 8),
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "skipped_records_total",
			Help:        "Records skipped, by reason.",
			ConstLabels: labels,
		}, []string{"reason"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "batches_total",
			Help:        "NextBatch calls, by result.",
			ConstLabels: labels,
		}, []string{"result"}),
		batchSamples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "batch_samples_total",
			Help:        "Samples delivered in batches.",
			ConstLabels: labels,
		}),
		batchWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "batch_wait_seconds",
			Help:        "Time NextBatch blocked waiting for samples.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.readBytes, c.readLatency, c.decodeLatency,
			c.skipped, c.batches, c.batchSamples, c.batchWait)
	}
	return c
}

// RecordRead implements pixpipe.MetricsCollector.
func (c *Collector) RecordRead(bytes int, d time.Duration) {
	c.readBytes.Add(float64(bytes))
	c.readLatency.Observe(d.Seconds())
}

// RecordDecode implements pixpipe.MetricsCollector.
func (c *Collector) RecordDecode(d time.Duration) {
	c.decodeLatency.Observe(d.Seconds())
}

// RecordSkip implements pixpipe.MetricsCollector.
func (c *Collector) RecordSkip(err error) {
	c.skipped.WithLabelValues(skipReason(err)).Inc()
}

// RecordBatch implements pixpipe.MetricsCollector.
func (c *Collector) RecordBatch(size int, wait time.Duration, err error) {
	if err != nil {
		c.batches.WithLabelValues(batchResult(err)).Inc()
		return
	}
	c.batches.WithLabelValues("ok").Inc()
	c.batchSamples.Add(float64(size))
	c.batchWait.Observe(wait.Seconds())
}

func skipReason(err error) string {
	switch {
	case errors.Is(err, sample.ErrDecode):
		return "decode"
	case errors.Is(err, record.ErrMalformedLabel):
		return "label"
	case errors.Is(err, store.ErrCorrupt):
		return "corrupt"
	case err == nil || errors.Is(err, worker.ErrInvalidSample):
		return "augment"
	case errors.Is(err, worker.ErrPanic):
		return "panic"
	default:
		return "other"
	}
}

func batchResult(err error) string {
	switch {
	case errors.Is(err, batch.ErrShapeMismatch):
		return "shape_mismatch"
	case errors.Is(err, batch.ErrLabelShape):
		return "label_shape"
	case errors.Is(err, batch.ErrTooManySkips):
		return "too_many_skips"
	default:
		return "error"
	}
}
