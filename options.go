package pixpipe

import (
	"log/slog"

	"github.com/hupe1980/pixpipe/blobstore"
	"github.com/hupe1980/pixpipe/codec"
)

type options struct {
	codec            codec.Codec // nil: Config.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	blobStore        blobstore.BlobStore
	cacheBytes       int64
	blockSize        int64
	ioLimit          int64
	maxReads         int64
	memoryLimit      int64
}

// Option configures Open.
type Option func(*options)

// WithCodec configures the codec used for box and point labels.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithMetricsCollector configures a metrics collector. Pass nil to disable
// metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &pixpipe.BasicMetricsCollector{}
//	l, _ := pixpipe.Open(ctx, cfg, pixpipe.WithMetricsCollector(metrics))
//	// ... use l ...
//	stats := metrics.GetStats()
//	fmt.Printf("Skipped: %d, Avg decode: %dns\n", stats.SkipCount, stats.DecodeAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging. Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pixpipe.NewJSONLogger(slog.LevelInfo)
//	l, _ := pixpipe.Open(ctx, cfg, pixpipe.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithBlobStore reads the store from bs instead of the local filesystem.
// Config.Path is then the blob name.
//
// Example with S3:
//
//	bs, _ := s3.New(ctx, "datasets", s3.WithPrefix("train/"))
//	l, _ := pixpipe.Open(ctx, pixpipe.Config{Path: "cats.pix", BatchSize: 32},
//	    pixpipe.WithBlobStore(bs), pixpipe.WithBlockCache(256<<20, 0))
func WithBlobStore(bs blobstore.BlobStore) Option {
	return func(o *options) {
		o.blobStore = bs
	}
}

// WithBlockCache caches store reads in an LRU of capacity bytes split into
// blocks of blockSize. blockSize <= 0 selects blobstore.DefaultBlockSize.
// Useful with remote blob stores in looping loaders.
func WithBlockCache(capacity, blockSize int64) Option {
	return func(o *options) {
		o.cacheBytes = capacity
		o.blockSize = blockSize
	}
}

// WithIOLimit throttles store reads to bytesPerSec.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithMaxConcurrentReads bounds in-flight store reads across all workers.
func WithMaxConcurrentReads(n int64) Option {
	return func(o *options) {
		o.maxReads = n
	}
}

// WithMemoryLimit bounds the memory the block cache may hold.
func WithMemoryLimit(bytes int64) Option {
	return func(o *options) {
		o.memoryLimit = bytes
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
