// Package augment applies random geometric and photometric transforms to a
// decoded sample, moving its boxes, points and mask together with the image.
//
// Label coordinates stay float64 through the whole pipeline and are only
// quantized when a batch is assembled.
package augment

import (
	"math/rand"
	"slices"

	"github.com/hupe1980/pixpipe/sample"
)

// DefaultMinBoxArea is the fraction of a box's area that must survive a crop
// or rotation for the box to be kept.
const DefaultMinBoxArea = 0.01

// Pipeline is an ordered list of transforms. It is immutable and safe to
// share between workers; each worker passes its own rng.
type Pipeline struct {
	transforms []Transform
	minBoxArea float64
}

// New creates a pipeline. minBoxArea <= 0 selects DefaultMinBoxArea.
func New(minBoxArea float64, transforms ...Transform) *Pipeline {
	if minBoxArea <= 0 {
		minBoxArea = DefaultMinBoxArea
	}
	return &Pipeline{transforms: slices.Clone(transforms), minBoxArea: minBoxArea}
}

// With returns a copy of p with t appended.
func (p *Pipeline) With(t Transform) *Pipeline {
	return &Pipeline{
		transforms: append(slices.Clone(p.transforms), t),
		minBoxArea: p.minBoxArea,
	}
}

// Len returns the number of transforms.
func (p *Pipeline) Len() int { return len(p.transforms) }

// Apply runs the pipeline on s in place. It reports false when the sample
// became invalid: its image is empty, or a non-empty box or point list lost
// every element.
func (p *Pipeline) Apply(rng *rand.Rand, s *sample.Sample) bool {
	hadBoxes := len(s.Label.Boxes) > 0
	hadPoints := len(s.Label.Points) > 0

	for _, t := range p.transforms {
		if pr := t.Prob(); pr < 1 && rng.Float64() >= pr {
			continue
		}
		t.apply(rng, s, p.minBoxArea)
		if s.Image.Bounds().Empty() {
			return false
		}
	}

	if hadBoxes && len(s.Label.Boxes) == 0 {
		return false
	}
	if hadPoints && len(s.Label.Points) == 0 {
		return false
	}
	return true
}
