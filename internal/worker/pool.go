// Package worker runs the goroutines that turn drawn record numbers into
// augmented samples.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/pixpipe/augment"
	"github.com/hupe1980/pixpipe/internal/queue"
	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sample"
	"github.com/hupe1980/pixpipe/sampler"
)

var (
	// ErrInvalidSample is the skip reason of samples that augmentation
	// left without an image or labels.
	ErrInvalidSample = errors.New("worker: sample invalid after augmentation")
	// ErrStarted is returned by Start on a pool that already ran.
	ErrStarted = errors.New("worker: pool already started")
	// ErrPanic is the skip reason of records whose processing panicked.
	ErrPanic = errors.New("worker: panic while processing record")
)

// Source hands out draws; *sampler.Stream implements it.
type Source interface {
	Next() (sampler.Draw, bool)
}

// Reader reads records; *store.Store implements it.
type Reader interface {
	Read(ctx context.Context, n int) (record.Record, error)
}

// Observer receives per-record events. Implementations must be safe for
// concurrent use.
type Observer interface {
	ObserveRead(bytes int, d time.Duration)
	ObserveDecode(d time.Duration)
	ObserveSkip(rec int, err error)
}

// Config wires a pool.
type Config struct {
	Workers  int
	Seed     int64
	Source   Source
	Reader   Reader
	Decode   sample.Options
	Pipeline *augment.Pipeline
	Queue    *queue.Queue
	Observer Observer
}

// Pool is a fixed set of goroutines feeding one queue.
type Pool struct {
	cfg Config

	state   atomic.Int32
	workers []atomic.Int32
	started atomic.Bool

	skipped atomic.Int64
	skipMu  sync.Mutex
	skipSet *roaring.Bitmap

	cancel context.CancelFunc
	wg     sync.WaitGroup
	done   chan struct{}
}

// New creates a stopped pool. Workers <= 0 selects GOMAXPROCS.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Pipeline == nil {
		cfg.Pipeline = augment.New(0)
	}
	return &Pool{
		cfg:     cfg,
		workers: make([]atomic.Int32, cfg.Workers),
		skipSet: roaring.New(),
		done:    make(chan struct{}),
	}
}

// Start launches the workers. They run until the source is exhausted, ctx
// is cancelled or Stop is called; the queue's producer side is closed once
// the last one returns.
func (p *Pool) Start(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return ErrStarted
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.state.Store(int32(Running))

	p.wg.Add(p.cfg.Workers)
	for i := 0; i < p.cfg.Workers; i++ {
		go p.worker(ctx, i)
	}

	go func() {
		p.wg.Wait()
		p.cfg.Queue.CloseProducers()
		p.state.Store(int32(Stopped))
		close(p.done)
	}()
	return nil
}

// Stop cancels the workers and waits for them. Each worker finishes at most
// the decode and augmentation it is in. Stop is idempotent and safe to call
// on a pool that never started.
func (p *Pool) Stop() {
	if p.started.CompareAndSwap(false, true) {
		return
	}
	p.cancel()
	<-p.done
}

// Done is closed once every worker has returned.
func (p *Pool) Done() <-chan struct{} { return p.done }

// State returns the pool state.
func (p *Pool) State() PoolState { return PoolState(p.state.Load()) }

// WorkerStates returns a snapshot of every worker's state.
func (p *Pool) WorkerStates() []WorkerState {
	out := make([]WorkerState, len(p.workers))
	for i := range p.workers {
		out[i] = WorkerState(p.workers[i].Load())
	}
	return out
}

// Skipped returns the number of skip events.
func (p *Pool) Skipped() int64 { return p.skipped.Load() }

// SkippedRecords returns the distinct skipped record numbers in order.
func (p *Pool) SkippedRecords() []int {
	p.skipMu.Lock()
	defer p.skipMu.Unlock()
	out := make([]int, 0, p.skipSet.GetCardinality())
	it := p.skipSet.Iterator()
	for it.HasNext() {
		out = append(out, int(it.Next()))
	}
	return out
}

func (p *Pool) set(i int, s WorkerState) {
	p.workers[i].Store(int32(s))
}

func (p *Pool) worker(ctx context.Context, i int) {
	defer p.wg.Done()
	defer p.set(i, Idle)

	rng := rand.New(rand.NewSource(p.cfg.Seed + int64(i))) // nolint gosec
	q := p.cfg.Queue

	for {
		p.set(i, Fetching)
		if err := q.Reserve(ctx); err != nil {
			return
		}
		d, ok := p.cfg.Source.Next()
		if !ok {
			q.Release()
			p.state.CompareAndSwap(int32(Running), int32(Draining))
			return
		}

		it, ok := p.process(ctx, i, rng, d)
		if !ok {
			return
		}

		p.set(i, Enqueuing)
		if err := q.Put(ctx, it); err != nil {
			return
		}
	}
}

// process reads, decodes and augments one draw. Failures, panics included,
// become skip items; ok is false only when ctx was cancelled.
func (p *Pool) process(ctx context.Context, i int, rng *rand.Rand, d sampler.Draw) (it queue.Item, ok bool) {
	it = queue.Item{Seq: d.Seq, Record: d.Record}
	defer func() {
		if r := recover(); r != nil {
			it.Sample = nil
			it, ok = p.skip(i, it, fmt.Errorf("%w: %v", ErrPanic, r)), true
		}
	}()

	p.set(i, Reading)
	start := time.Now()
	rec, err := p.cfg.Reader.Read(ctx, d.Record)
	if err != nil {
		if ctx.Err() != nil {
			return it, false
		}
		return p.skip(i, it, err), true
	}
	p.observeRead(len(rec.Label)+len(rec.Image), time.Since(start))

	p.set(i, Decoding)
	start = time.Now()
	s, err := sample.Decode(rec, p.cfg.Decode)
	if err != nil {
		return p.skip(i, it, err), true
	}
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveDecode(time.Since(start))
	}

	p.set(i, Augmenting)
	if !p.cfg.Pipeline.Apply(rng, s) {
		return p.skip(i, it, ErrInvalidSample), true
	}

	it.Sample = s
	return it, true
}

func (p *Pool) observeRead(n int, d time.Duration) {
	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveRead(n, d)
	}
}

func (p *Pool) skip(i int, it queue.Item, err error) queue.Item {
	p.set(i, Skipping)
	p.skipped.Add(1)
	p.skipMu.Lock()
	p.skipSet.Add(uint32(it.Record))
	p.skipMu.Unlock()

	if p.cfg.Observer != nil {
		p.cfg.Observer.ObserveSkip(it.Record, err)
	}
	it.Err = err
	return it
}
