package batch

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/hupe1980/pixpipe/internal/queue"
	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sample"
)

// Source yields items in draw order; *queue.Queue implements it.
type Source interface {
	Next(ctx context.Context) (queue.Item, error)
}

// Config controls an Assembler.
type Config struct {
	Policy   PadPolicy
	PadValue float32
	// DropLast drops a final batch that is shorter than requested.
	DropLast bool
	// MaxConsecutiveSkips bounds runs of skipped records; negative disables.
	MaxConsecutiveSkips int
}

// Assembler pulls samples from a Source and stacks them. It is used by a
// single consumer goroutine.
type Assembler struct {
	src     Source
	cfg     Config
	skipRun int
	done    bool
	// pending holds samples taken from src for a batch that is not
	// complete yet. They survive an early return from Next.
	pending []*sample.Sample
}

// New creates an assembler.
func New(src Source, cfg Config) *Assembler {
	return &Assembler{src: src, cfg: cfg}
}

// Next returns a batch of up to size valid samples. Skipped records do not
// count toward size. After the final batch of a finite stream Next returns
// ErrExhausted.
//
// When ctx ends or ErrTooManySkips is returned, the samples already taken
// are kept and lead the next batch.
func (a *Assembler) Next(ctx context.Context, size int) (*Batch, error) {
	if size <= 0 {
		return nil, fmt.Errorf("batch: invalid size %d", size)
	}

	for !a.done && len(a.pending) < size {
		it, err := a.src.Next(ctx)
		if errors.Is(err, queue.ErrDrained) {
			a.done = true
			break
		}
		if err != nil {
			return nil, err
		}
		if it.Skipped() {
			a.skipRun++
			if limit := a.cfg.MaxConsecutiveSkips; limit >= 0 && a.skipRun > limit {
				a.skipRun = 0
				return nil, fmt.Errorf("%w: %d in a row, last record %d", ErrTooManySkips, limit+1, it.Record)
			}
			continue
		}
		a.skipRun = 0
		a.pending = append(a.pending, it.Sample)
	}

	n := min(size, len(a.pending))
	samples := a.pending[:n]
	a.pending = a.pending[n:]
	if len(a.pending) == 0 {
		a.pending = nil
	}

	if n == 0 || (n < size && a.cfg.DropLast) {
		return nil, ErrExhausted
	}
	return Stack(samples, a.cfg.Policy, a.cfg.PadValue)
}

// Pending returns the number of samples held for the next batch.
func (a *Assembler) Pending() int { return len(a.pending) }

// Stack stacks samples into a batch.
func Stack(samples []*sample.Sample, policy PadPolicy, padValue float32) (*Batch, error) {
	first := samples[0]
	b := &Batch{
		Size:     len(samples),
		Channels: first.Channels,
		Kind:     first.Label.Kind,
		Sizes:    make([][2]int, len(samples)),
		Records:  make([]int, len(samples)),
	}

	for i, s := range samples {
		h, w := s.Height(), s.Width()
		b.Sizes[i] = [2]int{h, w}
		b.Records[i] = s.Record
		if s.Channels != b.Channels {
			return nil, fmt.Errorf("%w: record %d has %d channels, record %d has %d",
				ErrShapeMismatch, s.Record, s.Channels, first.Record, b.Channels)
		}
		if s.Label.Kind != b.Kind {
			return nil, fmt.Errorf("%w: record %d is %s, record %d is %s",
				ErrLabelShape, s.Record, s.Label.Kind, first.Record, b.Kind)
		}
		if policy != PadFill && (h != first.Height() || w != first.Width()) {
			return nil, fmt.Errorf("%w: record %d is %dx%d, record %d is %dx%d",
				ErrShapeMismatch, s.Record, w, h, first.Record, first.Width(), first.Height())
		}
		b.Height, b.Width = max(b.Height, h), max(b.Width, w)
	}

	b.Images = make([]float32, b.Size*b.Height*b.Width*b.Channels)
	if padValue != 0 {
		for i := range b.Images {
			b.Images[i] = padValue
		}
	}
	for i, s := range samples {
		b.place(b.Images, i, s.Image, b.Channels)
	}
	if err := b.stackLabels(samples); err != nil {
		return nil, err
	}
	return b, nil
}

// place packs img into slot i of dst, a [Size, Height, Width, channels]
// array, anchored at the top-left corner. Appends write into dst in place.
func (b *Batch) place(dst []float32, i int, img *image.NRGBA, channels int) {
	r := img.Bounds()
	stride := b.Width * channels
	off := i * b.Height * stride
	if r.Dx() == b.Width {
		sample.AppendTensor(dst[off:off], img, channels)
		return
	}
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := img.SubImage(image.Rect(r.Min.X, y, r.Max.X, y+1)).(*image.NRGBA)
		sample.AppendTensor(dst[off:off], row, channels)
		off += stride
	}
}

func (b *Batch) stackLabels(samples []*sample.Sample) error {
	switch b.Kind {
	case record.None:
	case record.Scalar:
		b.Scalars = make([]float32, b.Size)
		for i, s := range samples {
			b.Scalars[i] = s.Label.Scalar
		}
	case record.Vector:
		b.VectorDim = len(samples[0].Label.Vector)
		b.Vectors = make([]float32, 0, b.Size*b.VectorDim)
		for _, s := range samples {
			if len(s.Label.Vector) != b.VectorDim {
				return fmt.Errorf("%w: record %d has a %d-vector, expected %d",
					ErrLabelShape, s.Record, len(s.Label.Vector), b.VectorDim)
			}
			b.Vectors = append(b.Vectors, s.Label.Vector...)
		}
	case record.BoxList:
		b.BoxCounts = make([]int, b.Size)
		for i, s := range samples {
			b.BoxCounts[i] = len(s.Label.Boxes)
			for _, bx := range s.Label.Boxes {
				b.Boxes = append(b.Boxes,
					float32(bx.X), float32(bx.Y), float32(bx.W), float32(bx.H), float32(bx.Class))
			}
		}
	case record.Points:
		b.PointCounts = make([]int, b.Size)
		for i, s := range samples {
			b.PointCounts[i] = len(s.Label.Points)
			for _, p := range s.Label.Points {
				b.Points = append(b.Points, float32(p.X), float32(p.Y))
			}
		}
	case record.Mask:
		b.Masks = make([]float32, b.Size*b.Height*b.Width)
		for i, s := range samples {
			if s.Label.Mask == nil {
				return fmt.Errorf("%w: record %d has no mask", ErrLabelShape, s.Record)
			}
			b.place(b.Masks, i, s.Label.Mask, 1)
		}
	}
	return nil
}
