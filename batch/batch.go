// Package batch stacks decoded samples into dense arrays.
package batch

import (
	"encoding"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/pixpipe/record"
)

var (
	// ErrExhausted is returned once a finite stream has delivered its final
	// batch.
	ErrExhausted = errors.New("batch: stream exhausted")
	// ErrShapeMismatch is returned under PadReject when samples differ in
	// size.
	ErrShapeMismatch = errors.New("batch: sample shapes differ")
	// ErrLabelShape is returned when labels cannot be stacked: mixed kinds
	// or vectors of different length.
	ErrLabelShape = errors.New("batch: label shapes differ")
	// ErrTooManySkips is returned when more consecutive records were
	// skipped than the configured threshold.
	ErrTooManySkips = errors.New("batch: too many consecutive skipped records")
)

// PadPolicy decides what happens to samples of different sizes.
type PadPolicy int

const (
	// PadReject fails the batch with ErrShapeMismatch.
	PadReject PadPolicy = iota
	// PadFill pads every sample at the bottom and right to the largest size.
	PadFill
	// PadResize relies on a final resize so every sample has the same size.
	PadResize
)

var (
	_ encoding.TextMarshaler   = PadPolicy(0)
	_ encoding.TextUnmarshaler = (*PadPolicy)(nil)
)

func (p PadPolicy) String() string {
	switch p {
	case PadReject:
		return "reject"
	case PadFill:
		return "pad"
	case PadResize:
		return "resize"
	default:
		return fmt.Sprintf("PadPolicy(%d)", int(p))
	}
}

// Valid reports whether p is a known policy.
func (p PadPolicy) Valid() bool { return p >= PadReject && p <= PadResize }

func (p PadPolicy) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("batch: invalid pad policy %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *PadPolicy) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "reject", "":
		*p = PadReject
	case "pad":
		*p = PadFill
	case "resize":
		*p = PadResize
	default:
		return fmt.Errorf("batch: unknown pad policy %q", b)
	}
	return nil
}

// Batch is a set of samples stacked for training. A Batch is never mutated
// after it is returned.
type Batch struct {
	Size     int
	Height   int
	Width    int
	Channels int
	// Images is [Size, Height, Width, Channels].
	Images []float32

	Kind record.LabelKind
	// Scalars is [Size].
	Scalars []float32
	// Vectors is [Size, VectorDim].
	Vectors   []float32
	VectorDim int
	// Boxes holds [x, y, w, h, class] per box; BoxCounts[i] boxes belong
	// to sample i.
	Boxes     []float32
	BoxCounts []int
	// Points holds [x, y] per point, split by PointCounts.
	Points      []float32
	PointCounts []int
	// Masks is [Size, Height, Width, 1].
	Masks []float32

	// Sizes holds each sample's [height, width] before padding.
	Sizes   [][2]int
	Records []int
}
