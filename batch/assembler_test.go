package batch

import (
	"context"
	"errors"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/internal/queue"
	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sample"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sliceSource struct {
	items []queue.Item
}

func (s *sliceSource) Next(ctx context.Context) (queue.Item, error) {
	if err := ctx.Err(); err != nil {
		return queue.Item{}, err
	}
	if len(s.items) == 0 {
		return queue.Item{}, queue.ErrDrained
	}
	it := s.items[0]
	s.items = s.items[1:]
	return it, nil
}

func scalar(rec int, w, h int, v float32) queue.Item {
	img := imaging.New(w, h, color.NRGBA{R: 1, G: 2, B: 3, A: 255})
	return queue.Item{Seq: uint64(rec), Record: rec, Sample: &sample.Sample{
		Record: rec, Image: img, Channels: 3,
		Label: sample.Label{Kind: record.Scalar, Scalar: v},
	}}
}

func skip(rec int) queue.Item {
	return queue.Item{Seq: uint64(rec), Record: rec, Err: errors.New("bad")}
}

func TestAssembler_CountsOnlyValid(t *testing.T) {
	src := &sliceSource{items: []queue.Item{
		scalar(0, 2, 2, 0), skip(1), scalar(2, 2, 2, 1), skip(3), skip(4), scalar(5, 2, 2, 0), scalar(6, 2, 2, 1),
	}}
	a := New(src, Config{MaxConsecutiveSkips: -1})

	b, err := a.Next(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, b.Size)
	assert.Equal(t, []int{0, 2, 5}, b.Records)
	assert.Equal(t, []float32{0, 1, 0}, b.Scalars)
	assert.Len(t, b.Images, 3*2*2*3)
	assert.Equal(t, []float32{1, 2, 3}, b.Images[:3])

	b, err = a.Next(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Size)

	_, err = a.Next(context.Background(), 3)
	assert.ErrorIs(t, err, ErrExhausted)
	_, err = a.Next(context.Background(), 3)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestAssembler_DropLast(t *testing.T) {
	src := &sliceSource{items: []queue.Item{scalar(0, 2, 2, 0), scalar(1, 2, 2, 0), scalar(2, 2, 2, 0)}}
	a := New(src, Config{DropLast: true})

	b, err := a.Next(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Size)
	_, err = a.Next(context.Background(), 2)
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestAssembler_TooManySkips(t *testing.T) {
	src := &sliceSource{items: []queue.Item{scalar(0, 2, 2, 0), skip(1), skip(2), skip(3), scalar(4, 2, 2, 0)}}
	a := New(src, Config{MaxConsecutiveSkips: 2})

	_, err := a.Next(context.Background(), 2)
	assert.ErrorIs(t, err, ErrTooManySkips)

	src = &sliceSource{items: []queue.Item{skip(0), skip(1), scalar(2, 2, 2, 0)}}
	a = New(src, Config{MaxConsecutiveSkips: 2})
	b, err := a.Next(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, b.Records)
}

func TestAssembler_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := New(&sliceSource{items: []queue.Item{scalar(0, 2, 2, 0)}}, Config{})
	_, err := a.Next(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)

	_, err = a.Next(context.Background(), 0)
	assert.Error(t, err)
}

// stallSource yields its items but blocks once, before item stall, until
// the caller's ctx ends.
type stallSource struct {
	sliceSource
	stall   int
	stalled bool
}

func (s *stallSource) Next(ctx context.Context) (queue.Item, error) {
	if !s.stalled && len(s.items) > 0 && s.items[0].Record == s.stall {
		<-ctx.Done()
		s.stalled = true
		return queue.Item{}, ctx.Err()
	}
	return s.sliceSource.Next(ctx)
}

func records(t *testing.T, a *Assembler, size int) []int {
	t.Helper()
	var out []int
	for {
		b, err := a.Next(context.Background(), size)
		if errors.Is(err, ErrExhausted) {
			return out
		}
		require.NoError(t, err)
		out = append(out, b.Records...)
	}
}

func TestAssembler_KeepsPartialBatchOnDeadline(t *testing.T) {
	src := &stallSource{
		sliceSource: sliceSource{items: []queue.Item{
			scalar(0, 2, 2, 0), scalar(1, 2, 2, 0), scalar(2, 2, 2, 0), scalar(3, 2, 2, 0),
		}},
		stall: 2,
	}
	a := New(src, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := a.Next(ctx, 4)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, a.Pending())

	assert.Equal(t, []int{0, 1, 2, 3}, records(t, a, 4))
	assert.Zero(t, a.Pending())
}

func TestAssembler_KeepsPartialBatchOnTooManySkips(t *testing.T) {
	src := &sliceSource{items: []queue.Item{
		scalar(0, 2, 2, 0), skip(1), skip(2), skip(3), scalar(4, 2, 2, 0), scalar(5, 2, 2, 0),
	}}
	a := New(src, Config{MaxConsecutiveSkips: 2})

	_, err := a.Next(context.Background(), 3)
	require.ErrorIs(t, err, ErrTooManySkips)
	assert.Equal(t, []int{0, 4, 5}, records(t, a, 3))
}

func TestStack_RejectMismatch(t *testing.T) {
	items := []queue.Item{scalar(0, 2, 2, 0), scalar(1, 3, 2, 0)}
	_, err := Stack([]*sample.Sample{items[0].Sample, items[1].Sample}, PadReject, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = Stack([]*sample.Sample{items[0].Sample, items[1].Sample}, PadResize, 0)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestStack_Pad(t *testing.T) {
	small, big := scalar(0, 1, 2, 0), scalar(1, 3, 2, 1)
	b, err := Stack([]*sample.Sample{small.Sample, big.Sample}, PadFill, -1)
	require.NoError(t, err)

	assert.Equal(t, 2, b.Height)
	assert.Equal(t, 3, b.Width)
	assert.Equal(t, [][2]int{{2, 1}, {2, 3}}, b.Sizes)
	// Row 0 of sample 0: one pixel then two padded pixels.
	assert.Equal(t, []float32{1, 2, 3, -1, -1, -1, -1, -1, -1}, b.Images[:9])
	assert.Equal(t, float32(1), b.Images[2*3*3])
}

func TestStack_Labels(t *testing.T) {
	mk := func(rec int, l sample.Label) *sample.Sample {
		return &sample.Sample{Record: rec, Image: imaging.New(2, 2, color.White), Channels: 1, Label: l}
	}

	t.Run("vector", func(t *testing.T) {
		b, err := Stack([]*sample.Sample{
			mk(0, sample.Label{Kind: record.Vector, Vector: []float32{1, 2}}),
			mk(1, sample.Label{Kind: record.Vector, Vector: []float32{3, 4}}),
		}, PadReject, 0)
		require.NoError(t, err)
		assert.Equal(t, 2, b.VectorDim)
		assert.Equal(t, []float32{1, 2, 3, 4}, b.Vectors)
		assert.Len(t, b.Images, 2*2*2)

		_, err = Stack([]*sample.Sample{
			mk(0, sample.Label{Kind: record.Vector, Vector: []float32{1, 2}}),
			mk(1, sample.Label{Kind: record.Vector, Vector: []float32{3}}),
		}, PadReject, 0)
		assert.ErrorIs(t, err, ErrLabelShape)
	})

	t.Run("boxes", func(t *testing.T) {
		b, err := Stack([]*sample.Sample{
			mk(0, sample.Label{Kind: record.BoxList, Boxes: []record.Box{{X: 0.5, Y: 1, W: 1, H: 1, Class: 2}}}),
			mk(1, sample.Label{Kind: record.BoxList}),
			mk(2, sample.Label{Kind: record.BoxList, Boxes: []record.Box{{X: 0, Y: 0, W: 1, H: 1}, {X: 1, Y: 1, W: 1, H: 1, Class: 1}}}),
		}, PadReject, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 0, 2}, b.BoxCounts)
		assert.Equal(t, []float32{0.5, 1, 1, 1, 2, 0, 0, 1, 1, 0, 1, 1, 1, 1, 1}, b.Boxes)
	})

	t.Run("points", func(t *testing.T) {
		b, err := Stack([]*sample.Sample{
			mk(0, sample.Label{Kind: record.Points, Points: []record.Point{{X: 1, Y: 2}}}),
		}, PadReject, 0)
		require.NoError(t, err)
		assert.Equal(t, []int{1}, b.PointCounts)
		assert.Equal(t, []float32{1, 2}, b.Points)
	})

	t.Run("mask", func(t *testing.T) {
		m := image.NewNRGBA(image.Rect(0, 0, 2, 2))
		m.SetNRGBA(1, 1, color.NRGBA{R: 4, A: 255})
		b, err := Stack([]*sample.Sample{mk(0, sample.Label{Kind: record.Mask, Mask: m})}, PadReject, 0)
		require.NoError(t, err)
		assert.Equal(t, []float32{0, 0, 0, 4}, b.Masks)
	})

	t.Run("mixed kinds", func(t *testing.T) {
		_, err := Stack([]*sample.Sample{
			mk(0, sample.Label{Kind: record.Scalar}),
			mk(1, sample.Label{Kind: record.Vector}),
		}, PadReject, 0)
		assert.ErrorIs(t, err, ErrLabelShape)
	})
}

func TestPadPolicy_Text(t *testing.T) {
	for _, p := range []PadPolicy{PadReject, PadFill, PadResize} {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var got PadPolicy
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, p, got)
	}
	var p PadPolicy
	assert.Error(t, p.UnmarshalText([]byte("stretch")))
	_, err := PadPolicy(7).MarshalText()
	assert.Error(t, err)
}
