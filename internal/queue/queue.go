// Package queue is the bounded hand-off between decode workers and the
// batch assembler.
//
// Workers Reserve a window slot before drawing a record, so at most
// capacity+producers drawn records are in flight. The consumer receives
// items in draw order; a slot is freed when its item is consumed.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/pixpipe/sample"
	"golang.org/x/sync/semaphore"
)

// ErrDrained is returned by Next once producers are closed and every item
// has been consumed.
var ErrDrained = errors.New("queue: drained")

// Item is the outcome of one draw. A nil Sample marks a skipped record;
// Err then says why, or is nil for samples invalidated by augmentation.
type Item struct {
	Seq    uint64
	Record int
	Sample *sample.Sample
	Err    error
}

// Skipped reports whether the item carries no sample.
func (it Item) Skipped() bool { return it.Sample == nil }

// Queue is a bounded multi-producer, single-consumer queue that delivers
// items in Seq order.
type Queue struct {
	ch     chan Item
	window *semaphore.Weighted
	size   int64

	closeOnce sync.Once

	// consumer side
	pending seqHeap
	held    atomic.Int64
	next    uint64
}

// New creates a queue holding up to capacity ready items, with room for
// producers items under construction.
func New(capacity, producers int) *Queue {
	capacity = max(capacity, 1)
	size := int64(capacity + max(producers, 1))
	return &Queue{
		ch:     make(chan Item, capacity),
		window: semaphore.NewWeighted(size),
		size:   size,
	}
}

// Window returns the number of items that may be in flight.
func (q *Queue) Window() int64 { return q.size }

// Cap returns the channel capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// Len returns the number of finished items not yet consumed.
func (q *Queue) Len() int { return len(q.ch) + int(q.held.Load()) }

// Reserve blocks until a window slot is free. Each successful Reserve is
// paired with exactly one Put, or with Release when nothing was drawn.
func (q *Queue) Reserve(ctx context.Context) error {
	return q.window.Acquire(ctx, 1)
}

// Release returns a slot that was reserved but not used.
func (q *Queue) Release() {
	q.window.Release(1)
}

// Put hands an item to the consumer, blocking while the queue is full.
func (q *Queue) Put(ctx context.Context, it Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- it:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CloseProducers signals that no more items will be Put. It must be called
// once every producer has returned.
func (q *Queue) CloseProducers() {
	q.closeOnce.Do(func() { close(q.ch) })
}

// Next returns the item with the next Seq, blocking until it is available.
// Only one goroutine may call Next.
func (q *Queue) Next(ctx context.Context) (Item, error) {
	for {
		if top, ok := q.pending.Top(); ok && top.Seq == q.next {
			return q.pop(), nil
		}

		select {
		case it, ok := <-q.ch:
			if !ok {
				// Producers are gone. Items whose predecessors were
				// abandoned are delivered as they are.
				if q.pending.Len() == 0 {
					return Item{}, ErrDrained
				}
				return q.pop(), nil
			}
			q.pending.Push(it)
			q.held.Add(1)
		case <-ctx.Done():
			return Item{}, ctx.Err()
		}
	}
}

func (q *Queue) pop() Item {
	it, _ := q.pending.Pop()
	q.held.Add(-1)
	q.next = it.Seq + 1
	q.window.Release(1)
	return it
}
