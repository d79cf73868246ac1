package augment

import (
	"image"
	"image/color"
	"math"
	"math/rand"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/sample"
)

// Transform is one augmentation step. The set of transforms is closed:
// Resize, Scale, Crop, FlipH, FlipV, Rotate, ColorJitter and Blur.
//
// Each variant has a Probability field. A variant built as a Go literal
// keeps its zero Probability and never runs; set it to 1 to always run.
// Build instead defaults a Spec without a probability to 1.
type Transform interface {
	// Prob is the chance that the transform runs on a sample.
	Prob() float64
	apply(rng *rand.Rand, s *sample.Sample, minArea float64)
}

// Resize scales to Width × Height. A zero side keeps the aspect ratio.
type Resize struct {
	Width, Height int
	// Probability is the chance to run; 0 never runs.
	Probability   float64
}

func (t Resize) Prob() float64 { return t.Probability }

func (t Resize) apply(_ *rand.Rand, s *sample.Sample, _ float64) {
	resizeTo(s, t.Width, t.Height)
}

// Scale resizes by a factor drawn uniformly from [Min, Max].
type Scale struct {
	Min, Max    float64
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t Scale) Prob() float64 { return t.Probability }

func (t Scale) apply(rng *rand.Rand, s *sample.Sample, _ float64) {
	f := t.Min + rng.Float64()*(t.Max-t.Min)
	w := max(1, int(math.Round(float64(s.Width())*f)))
	h := max(1, int(math.Round(float64(s.Height())*f)))
	resizeTo(s, w, h)
}

func resizeTo(s *sample.Sample, w, h int) {
	w0, h0 := s.Width(), s.Height()
	s.Image = imaging.Resize(s.Image, w, h, imaging.Linear)
	w1, h1 := s.Width(), s.Height()
	if w1 == 0 || h1 == 0 {
		return
	}
	scaleLabels(s, float64(w1)/float64(w0), float64(h1)/float64(h0))
	if s.Label.Mask != nil {
		s.Label.Mask = imaging.Resize(s.Label.Mask, w1, h1, imaging.NearestNeighbor)
	}
}

// Crop cuts a Width × Height window, centered or at a random position.
// Windows larger than the image are shrunk to it.
type Crop struct {
	Width, Height int
	Random        bool
	// Probability is the chance to run; 0 never runs.
	Probability   float64
}

func (t Crop) Prob() float64 { return t.Probability }

func (t Crop) apply(rng *rand.Rand, s *sample.Sample, minArea float64) {
	w, h := s.Width(), s.Height()
	cw, ch := min(t.Width, w), min(t.Height, h)
	x0, y0 := (w-cw)/2, (h-ch)/2
	if t.Random {
		x0, y0 = rng.Intn(w-cw+1), rng.Intn(h-ch+1)
	}
	rect := image.Rect(x0, y0, x0+cw, y0+ch)

	s.Image = imaging.Crop(s.Image, rect)
	if s.Label.Mask != nil {
		s.Label.Mask = imaging.Crop(s.Label.Mask, rect)
	}
	dx, dy := float64(x0), float64(y0)
	for i := range s.Label.Boxes {
		s.Label.Boxes[i].X -= dx
		s.Label.Boxes[i].Y -= dy
	}
	for i := range s.Label.Points {
		s.Label.Points[i].X -= dx
		s.Label.Points[i].Y -= dy
	}
	if s.Label.Boxes != nil {
		s.Label.Boxes = clipBoxes(s.Label.Boxes, float64(cw), float64(ch), minArea)
	}
	if s.Label.Points != nil {
		s.Label.Points = clipPoints(s.Label.Points, float64(cw), float64(ch))
	}
}

// FlipH mirrors left to right.
type FlipH struct {
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t FlipH) Prob() float64 { return t.Probability }

func (t FlipH) apply(_ *rand.Rand, s *sample.Sample, _ float64) {
	w := float64(s.Width())
	s.Image = imaging.FlipH(s.Image)
	if s.Label.Mask != nil {
		s.Label.Mask = imaging.FlipH(s.Label.Mask)
	}
	for i := range s.Label.Boxes {
		b := &s.Label.Boxes[i]
		b.X = w - b.X - b.W
	}
	for i := range s.Label.Points {
		s.Label.Points[i].X = w - s.Label.Points[i].X
	}
}

// FlipV mirrors top to bottom.
type FlipV struct {
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t FlipV) Prob() float64 { return t.Probability }

func (t FlipV) apply(_ *rand.Rand, s *sample.Sample, _ float64) {
	h := float64(s.Height())
	s.Image = imaging.FlipV(s.Image)
	if s.Label.Mask != nil {
		s.Label.Mask = imaging.FlipV(s.Label.Mask)
	}
	for i := range s.Label.Boxes {
		b := &s.Label.Boxes[i]
		b.Y = h - b.Y - b.H
	}
	for i := range s.Label.Points {
		s.Label.Points[i].Y = h - s.Label.Points[i].Y
	}
}

// Rotate turns the image counter-clockwise by an angle drawn uniformly from
// [-MaxAngle, MaxAngle] degrees. The canvas grows to fit; uncovered pixels
// get Fill.
type Rotate struct {
	MaxAngle    float64
	Fill        color.NRGBA
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t Rotate) Prob() float64 { return t.Probability }

func (t Rotate) apply(rng *rand.Rand, s *sample.Sample, minArea float64) {
	angle := (rng.Float64()*2 - 1) * t.MaxAngle
	rotateBy(s, angle, t.Fill, minArea)
}

func rotateBy(s *sample.Sample, angle float64, fill color.NRGBA, minArea float64) {
	src := s.Image.Bounds()
	s.Image = imaging.Rotate(s.Image, angle, fill)
	r := newRotation(angle, src, s.Image.Bounds())

	if s.Label.Mask != nil {
		s.Label.Mask = rotateMask(s.Label.Mask, r)
	}
	if s.Label.Boxes != nil {
		s.Label.Boxes = rotateBoxes(s.Label.Boxes, r, minArea)
	}
	if s.Label.Points != nil {
		s.Label.Points = rotatePoints(s.Label.Points, r)
	}
}

// ColorJitter perturbs photometric properties. Brightness, Contrast and
// Saturation are fractions: 0.2 draws a change in [-20%, +20%]. Gamma
// draws from [1-Gamma, 1+Gamma].
type ColorJitter struct {
	Brightness  float64
	Contrast    float64
	Saturation  float64
	Gamma       float64
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t ColorJitter) Prob() float64 { return t.Probability }

func (t ColorJitter) apply(rng *rand.Rand, s *sample.Sample, _ float64) {
	jitter := func(amount float64) float64 { return (rng.Float64()*2 - 1) * amount }

	if t.Brightness > 0 {
		s.Image = imaging.AdjustBrightness(s.Image, 100*jitter(t.Brightness))
	}
	if t.Contrast > 0 {
		s.Image = imaging.AdjustContrast(s.Image, 100*jitter(t.Contrast))
	}
	if t.Saturation > 0 && s.Channels > 1 {
		s.Image = imaging.AdjustSaturation(s.Image, 100*jitter(t.Saturation))
	}
	if t.Gamma > 0 {
		s.Image = imaging.AdjustGamma(s.Image, 1+jitter(t.Gamma))
	}
}

// Blur applies a gaussian blur with sigma drawn from (0, MaxSigma].
type Blur struct {
	MaxSigma    float64
	// Probability is the chance to run; 0 never runs.
	Probability float64
}

func (t Blur) Prob() float64 { return t.Probability }

func (t Blur) apply(rng *rand.Rand, s *sample.Sample, _ float64) {
	sigma := (1 - rng.Float64()) * t.MaxSigma
	s.Image = imaging.Blur(s.Image, sigma)
}
