package worker

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/augment"
	"github.com/hupe1980/pixpipe/internal/queue"
	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sampler"
	"github.com/hupe1980/pixpipe/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRead = errors.New("read failed")

type fakeReader struct {
	recs []record.Record
	fail map[int]bool
}

func (r *fakeReader) Read(ctx context.Context, n int) (record.Record, error) {
	if err := ctx.Err(); err != nil {
		return record.Record{}, err
	}
	if r.fail[n] {
		return record.Record{}, errRead
	}
	rec := r.recs[n]
	rec.ID = n
	return rec, nil
}

type countingObserver struct {
	mu                   sync.Mutex
	reads, decodes, skip int
}

func (o *countingObserver) ObserveRead(int, time.Duration) { o.mu.Lock(); o.reads++; o.mu.Unlock() }
func (o *countingObserver) ObserveDecode(time.Duration)    { o.mu.Lock(); o.decodes++; o.mu.Unlock() }
func (o *countingObserver) ObserveSkip(int, error)         { o.mu.Lock(); o.skip++; o.mu.Unlock() }

func pngRecords(t *testing.T, n int) []record.Record {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(4, 4, color.White), imaging.PNG))
	recs := make([]record.Record, n)
	for i := range recs {
		recs[i] = record.NewScalar(float32(i%2), buf.Bytes())
	}
	return recs
}

func stream(t *testing.T, n int, loop bool) *sampler.Stream {
	t.Helper()
	entries := make([]store.Entry, n)
	for i := range entries {
		entries[i] = store.Entry{Record: i}
	}
	s, err := sampler.New(entries, sampler.Config{Loop: loop})
	require.NoError(t, err)
	return s
}

func drain(t *testing.T, q *queue.Queue) []queue.Item {
	t.Helper()
	var out []queue.Item
	for {
		it, err := q.Next(context.Background())
		if errors.Is(err, queue.ErrDrained) {
			return out
		}
		require.NoError(t, err)
		out = append(out, it)
	}
}

func TestPool_DeliversEveryRecord(t *testing.T) {
	recs := pngRecords(t, 50)
	q := queue.New(4, 4)
	obs := &countingObserver{}
	p := New(Config{
		Workers:  4,
		Source:   stream(t, len(recs), false),
		Reader:   &fakeReader{recs: recs},
		Queue:    q,
		Observer: obs,
	})
	assert.Equal(t, Stopped, p.State())
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrStarted)

	items := drain(t, q)
	require.Len(t, items, 50)
	for i, it := range items {
		assert.Equal(t, uint64(i), it.Seq)
		assert.Equal(t, i, it.Record)
		require.False(t, it.Skipped())
		assert.Equal(t, float32(i%2), it.Sample.Label.Scalar)
	}

	<-p.Done()
	assert.Equal(t, Stopped, p.State())
	assert.Equal(t, 50, obs.reads)
	assert.Equal(t, 50, obs.decodes)
	for _, s := range p.WorkerStates() {
		assert.Equal(t, Idle, s)
	}
	p.Stop()
	p.Stop()
}

func TestPool_SkipsFailures(t *testing.T) {
	recs := pngRecords(t, 10)
	recs[3].Image = nil                 // zero-length image
	recs[5].Image = []byte("not a png") // undecodable

	q := queue.New(2, 3)
	obs := &countingObserver{}
	p := New(Config{
		Workers:  3,
		Source:   stream(t, len(recs), false),
		Reader:   &fakeReader{recs: recs, fail: map[int]bool{7: true}},
		Queue:    q,
		Observer: obs,
	})
	require.NoError(t, p.Start(context.Background()))

	items := drain(t, q)
	require.Len(t, items, 10)
	var skipped []int
	for _, it := range items {
		if it.Skipped() {
			skipped = append(skipped, it.Record)
			assert.Error(t, it.Err)
		}
	}
	assert.Equal(t, []int{3, 5, 7}, skipped)
	assert.ErrorIs(t, items[7].Err, errRead)
	assert.Equal(t, int64(3), p.Skipped())
	assert.Equal(t, []int{3, 5, 7}, p.SkippedRecords())
	assert.Equal(t, 3, obs.skip)
}

type panicReader struct {
	fakeReader
	at int
}

func (r *panicReader) Read(ctx context.Context, n int) (record.Record, error) {
	if n == r.at {
		panic("corrupt codec state")
	}
	return r.fakeReader.Read(ctx, n)
}

func TestPool_RecoversPanic(t *testing.T) {
	recs := pngRecords(t, 6)
	q := queue.New(2, 2)
	obs := &countingObserver{}
	p := New(Config{
		Workers:  2,
		Source:   stream(t, len(recs), false),
		Reader:   &panicReader{fakeReader: fakeReader{recs: recs}, at: 4},
		Queue:    q,
		Observer: obs,
	})
	require.NoError(t, p.Start(context.Background()))

	items := drain(t, q)
	require.Len(t, items, 6)
	for i, it := range items {
		if i == 4 {
			assert.True(t, it.Skipped())
			assert.ErrorIs(t, it.Err, ErrPanic)
			assert.Contains(t, it.Err.Error(), "corrupt codec state")
			continue
		}
		assert.False(t, it.Skipped())
	}

	<-p.Done()
	assert.Equal(t, []int{4}, p.SkippedRecords())
	assert.Equal(t, 1, obs.skip)
	assert.Equal(t, 5, obs.decodes)
}

func TestPool_InvalidAugmentation(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(10, 10, color.White), imaging.PNG))
	rec, err := record.NewBoxes([]record.Box{{X: 0, Y: 0, W: 1, H: 1}}, 0, buf.Bytes())
	require.NoError(t, err)

	q := queue.New(1, 1)
	p := New(Config{
		Workers:  1,
		Source:   stream(t, 1, false),
		Reader:   &fakeReader{recs: []record.Record{rec}},
		Queue:    q,
		Pipeline: augment.New(0, augment.Crop{Width: 2, Height: 2, Probability: 1}),
	})
	require.NoError(t, p.Start(context.Background()))

	items := drain(t, q)
	require.Len(t, items, 1)
	assert.ErrorIs(t, items[0].Err, ErrInvalidSample)
	assert.Equal(t, int64(1), p.Skipped())
}

func TestPool_StopUnblocksBackpressure(t *testing.T) {
	recs := pngRecords(t, 4)
	q := queue.New(1, 2)
	p := New(Config{
		Workers: 2,
		Source:  stream(t, len(recs), true),
		Reader:  &fakeReader{recs: recs},
		Queue:   q,
	})
	require.NoError(t, p.Start(context.Background()))

	// Nobody consumes: workers block on the full queue.
	require.Eventually(t, func() bool { return q.Len() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, Running, p.State())

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.Equal(t, Stopped, p.State())
}

func TestPool_StopBeforeStart(t *testing.T) {
	p := New(Config{Workers: 1, Queue: queue.New(1, 1)})
	p.Stop()
	assert.ErrorIs(t, p.Start(context.Background()), ErrStarted)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "skipping", Skipping.String())
	assert.Equal(t, "draining", Draining.String())
	assert.Equal(t, "WorkerState(42)", WorkerState(42).String())
}
