package pixpipe

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hupe1980/pixpipe/augment"
	"github.com/hupe1980/pixpipe/batch"
	"github.com/hupe1980/pixpipe/blobstore"
	"github.com/hupe1980/pixpipe/codec"
	"github.com/hupe1980/pixpipe/internal/cache"
	"github.com/hupe1980/pixpipe/internal/queue"
	"github.com/hupe1980/pixpipe/internal/resource"
	"github.com/hupe1980/pixpipe/internal/worker"
	"github.com/hupe1980/pixpipe/sample"
	"github.com/hupe1980/pixpipe/sampler"
	"github.com/hupe1980/pixpipe/store"
)

// Loader streams batches out of a record store. NextBatch is meant for a
// single consumer; concurrent calls are serialized, and so are calls to
// Reset. Close may be called from any goroutine and unblocks a pending
// NextBatch.
type Loader struct {
	cfg  Config
	opts options

	store    *store.Store
	stream   *sampler.Stream
	pipeline *augment.Pipeline
	rc       *resource.Controller
	lru      *cache.LRU

	// runMu guards the current run, which Reset replaces. NextBatch reads
	// asm under mu instead.
	runMu sync.Mutex
	queue *queue.Queue
	pool  *worker.Pool
	asm   *batch.Assembler
	// skips of runs before the current one
	priorSkipped int64
	priorSkips   []int

	// ctx lives until Close.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error

	batches atomic.Int64
}

// Open validates cfg, opens the record store and starts the workers.
//
// Invalid configurations fail with a *ConfigError (matching ErrConfig); a
// store that fails validation fails with an error matching ErrCorruptStore.
// ctx bounds opening only; the workers run until Close.
func Open(ctx context.Context, cfg Config, optFns ...Option) (*Loader, error) {
	o := applyOptions(optFns)

	if err := cfg.Validate(); err != nil {
		o.logger.LogOpen(ctx, 0, 0, 0, err)
		return nil, err
	}
	cfg = cfg.withDefaults()
	logger := o.logger.WithPath(cfg.Path)
	o.logger = logger

	pipeline, err := buildPipeline(cfg)
	if err != nil {
		return nil, translateError(err)
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes:   o.memoryLimit,
		MaxConcurrentReads: o.maxReads,
		IOLimitBytesPerSec: o.ioLimit,
	})

	if o.codec == nil {
		o.codec = codec.Default
		if c, ok := codec.ByName(cfg.Codec); ok {
			o.codec = c
		}
	}

	l := &Loader{cfg: cfg, opts: o, pipeline: pipeline, rc: rc}

	bs, name := o.blobStore, cfg.Path
	if bs == nil {
		bs, name = blobstore.NewLocalStore(filepath.Dir(cfg.Path)), filepath.Base(cfg.Path)
	}
	if o.cacheBytes > 0 {
		l.lru = cache.NewLRU(o.cacheBytes, rc)
		bs = blobstore.NewCachingStore(bs, l.lru, o.blockSize)
	}

	st, err := store.OpenFrom(ctx, bs, name,
		store.WithVerifyChecksums(cfg.VerifyChecksums),
		store.WithSidecar(cfg.UseSidecar),
		store.WithResourceController(rc),
		store.WithLogger(logger.Logger),
	)
	if err != nil {
		err = openError(err)
		logger.LogOpen(ctx, 0, 0, 0, err)
		return nil, err
	}
	l.store = st

	stream, err := sampler.New(st.Index().Entries(), cfg.samplerConfig())
	if err != nil {
		_ = st.Close()
		err = translateError(err)
		logger.LogOpen(ctx, st.Count(), st.Size(), 0, err)
		return nil, err
	}
	l.stream = stream

	l.ctx, l.cancel = context.WithCancel(context.WithoutCancel(ctx))
	if err := l.start(); err != nil {
		l.cancel()
		_ = st.Close()
		return nil, err
	}

	logger.LogOpen(ctx, stream.Len(), st.Size(), cfg.Threads, nil)
	return l, nil
}

// start launches a fresh queue, pool and assembler over the stream. The
// caller holds runMu or is Open.
func (l *Loader) start() error {
	q := queue.New(l.cfg.QueueCapacity, l.cfg.Threads)
	pool := worker.New(worker.Config{
		Workers: l.cfg.Threads,
		Seed:    l.cfg.Seed,
		Source:  l.stream,
		Reader:  l.store,
		Decode: sample.Options{
			Channels:   l.cfg.Channels,
			Codec:      l.opts.codec,
			AutoOrient: l.cfg.AutoOrient,
		},
		Pipeline: l.pipeline,
		Queue:    q,
		Observer: observer{metrics: l.opts.metricsCollector, logger: l.opts.logger},
	})
	if err := pool.Start(l.ctx); err != nil {
		return err
	}

	l.queue, l.pool = q, pool
	l.asm = batch.New(q, batch.Config{
		Policy:              l.cfg.PadPolicy,
		PadValue:            l.cfg.PadValue,
		DropLast:            l.cfg.DropLast,
		MaxConsecutiveSkips: l.cfg.MaxConsecutiveSkips,
	})
	return nil
}

func buildPipeline(cfg Config) (*augment.Pipeline, error) {
	p, err := augment.Build(cfg.Augmentations, cfg.MinBoxArea)
	if err != nil {
		return nil, err
	}
	if cfg.PadPolicy == batch.PadResize {
		p = p.With(augment.Resize{Width: cfg.ResizeWidth, Height: cfg.ResizeHeight, Probability: 1})
	}
	return p, nil
}

func openError(err error) error {
	if errors.Is(err, blobstore.ErrNotFound) {
		return &ConfigError{Field: "path", Reason: "record store not found", cause: err}
	}
	return translateError(err)
}

// NextBatch blocks until the next batch is assembled. It returns
// ErrStreamExhausted after the final batch of a non-looping loader,
// ErrTooManySkips when too many records in a row failed, ErrClosed once the
// loader is closed, and ctx.Err() when ctx ends first.
func (l *Loader) NextBatch(ctx context.Context) (*batch.Batch, error) {
	if l.closed.Load() {
		return nil, ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed.Load() {
		return nil, ErrClosed
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(l.ctx, cancel)
	defer stop()

	start := time.Now()
	b, err := l.asm.Next(ctx, l.cfg.BatchSize)
	wait := time.Since(start)
	if err != nil {
		if l.closed.Load() {
			return nil, ErrClosed
		}
		if !errors.Is(err, batch.ErrExhausted) {
			l.opts.metricsCollector.RecordBatch(0, wait, err)
		}
		return nil, translateError(err)
	}

	l.batches.Add(1)
	l.opts.metricsCollector.RecordBatch(b.Size, wait, nil)
	l.opts.logger.LogBatch(ctx, b.Size, b.Height, b.Width)
	return b, nil
}

// Reset starts a new pass without reopening the store. It stops and joins
// the workers, rewinds the sampler (reshuffling unless FixedOrder is set)
// and restarts the workers. Samples decoded but not yet delivered are
// dropped. After ErrStreamExhausted, Reset makes a finite loader stream
// again.
//
// Reset waits for a pending NextBatch to return. ctx is checked before
// the workers are stopped.
func (l *Loader) Reset(ctx context.Context) error {
	if l.closed.Load() {
		return ErrClosed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	l.runMu.Lock()
	defer l.runMu.Unlock()

	if l.closed.Load() {
		return ErrClosed
	}

	l.pool.Stop()
	dropped := l.queue.Len() + l.asm.Pending()
	l.priorSkipped += l.pool.Skipped()
	l.priorSkips = mergeRecords(l.priorSkips, l.pool.SkippedRecords())

	l.stream.Reset()
	if err := l.start(); err != nil {
		return err
	}

	l.opts.logger.LogReset(ctx, l.stream.Pass(), dropped)
	return nil
}

// Close stops and joins the workers, then closes the store. It is
// idempotent; later calls return the first result.
func (l *Loader) Close() error {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.cancel()

		l.runMu.Lock()
		l.pool.Stop()
		skipped := l.priorSkipped + l.pool.Skipped()
		l.runMu.Unlock()

		l.closeErr = l.store.Close()
		l.opts.logger.LogClose(context.Background(), l.batches.Load(), skipped, l.closeErr)
	})
	return l.closeErr
}

// Len returns the number of records one pass visits.
func (l *Loader) Len() int { return l.stream.Len() }

// Skipped returns the number of records skipped so far. A record that fails
// on every pass is counted every time.
func (l *Loader) Skipped() int64 {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return l.priorSkipped + l.pool.Skipped()
}

// SkippedRecords returns the distinct skipped record numbers in order.
func (l *Loader) SkippedRecords() []int {
	l.runMu.Lock()
	defer l.runMu.Unlock()
	return mergeRecords(l.priorSkips, l.pool.SkippedRecords())
}

func mergeRecords(a, b []int) []int {
	out := append(slices.Clone(a), b...)
	slices.Sort(out)
	return slices.Compact(out)
}

// Stats is a snapshot of a loader.
type Stats struct {
	Records     int
	Pass        int
	Drawn       uint64
	Batches     int64
	Skipped     int64
	Queued      int
	PoolState   string
	Workers     []string
	CacheHits   int64
	CacheMisses int64
	// CacheBytes is the memory held by the block cache; MemoryLimit is
	// 0 when unlimited.
	CacheBytes  int64
	MemoryLimit int64
}

// Stats returns a snapshot of the loader state.
func (l *Loader) Stats() Stats {
	l.runMu.Lock()
	defer l.runMu.Unlock()

	s := Stats{
		Records:   l.stream.Len(),
		Pass:      l.stream.Pass(),
		Drawn:     l.stream.Drawn(),
		Batches:   l.batches.Load(),
		Skipped:   l.priorSkipped + l.pool.Skipped(),
		Queued:    l.queue.Len(),
		PoolState: l.pool.State().String(),
	}
	for _, ws := range l.pool.WorkerStates() {
		s.Workers = append(s.Workers, ws.String())
	}
	if l.lru != nil {
		s.CacheHits, s.CacheMisses = l.lru.Stats()
		s.CacheBytes = l.lru.Size()
	}
	s.MemoryLimit = l.rc.MemoryLimit()
	return s
}

// observer forwards worker events to the metrics collector and logger.
type observer struct {
	metrics MetricsCollector
	logger  *Logger
}

func (o observer) ObserveRead(bytes int, d time.Duration) { o.metrics.RecordRead(bytes, d) }

func (o observer) ObserveDecode(d time.Duration) { o.metrics.RecordDecode(d) }

func (o observer) ObserveSkip(rec int, err error) {
	o.metrics.RecordSkip(err)
	o.logger.LogSkip(context.Background(), rec, err)
}
