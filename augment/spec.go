package augment

import (
	"errors"
	"fmt"
	"image/color"
)

// ErrInvalidSpec is returned by Build for unknown kinds and bad parameters.
var ErrInvalidSpec = errors.New("augment: invalid spec")

// Kind names a transform in a Spec.
type Kind string

const (
	KindResize      Kind = "resize"
	KindScale       Kind = "scale"
	KindCrop        Kind = "crop"
	KindFlipH       Kind = "flip_h"
	KindFlipV       Kind = "flip_v"
	KindRotate      Kind = "rotate"
	KindColorJitter Kind = "color_jitter"
	KindBlur        Kind = "blur"
)

// Spec is the serializable form of a transform.
//
//	{"kind": "rotate", "probability": 0.5, "params": {"max_angle": 15}}
type Spec struct {
	Kind Kind `json:"kind"`
	// Probability defaults to 1 when nil.
	Probability *float64           `json:"probability,omitempty"`
	Params      map[string]float64 `json:"params,omitempty"`
}

// Build compiles specs into a pipeline.
func Build(specs []Spec, minBoxArea float64) (*Pipeline, error) {
	ts := make([]Transform, 0, len(specs))
	for i, s := range specs {
		t, err := s.compile()
		if err != nil {
			return nil, fmt.Errorf("%w: #%d (%s): %v", ErrInvalidSpec, i, s.Kind, err)
		}
		ts = append(ts, t)
	}
	return New(minBoxArea, ts...), nil
}

func (s Spec) compile() (Transform, error) {
	p := 1.0
	if s.Probability != nil {
		p = *s.Probability
	}
	if p < 0 || p > 1 {
		return nil, fmt.Errorf("probability %v not in [0, 1]", p)
	}

	params := paramReader{m: s.Params}
	var t Transform
	switch s.Kind {
	case KindResize:
		w, h := params.int("width"), params.int("height")
		if w < 0 || h < 0 || (w == 0 && h == 0) {
			return nil, fmt.Errorf("size %dx%d", w, h)
		}
		t = Resize{Width: w, Height: h, Probability: p}
	case KindScale:
		lo, hi := params.get("min", 1), params.get("max", 1)
		if lo <= 0 || hi < lo {
			return nil, fmt.Errorf("range [%v, %v]", lo, hi)
		}
		t = Scale{Min: lo, Max: hi, Probability: p}
	case KindCrop:
		w, h := params.int("width"), params.int("height")
		if w <= 0 || h <= 0 {
			return nil, fmt.Errorf("size %dx%d", w, h)
		}
		t = Crop{Width: w, Height: h, Random: params.get("random", 0) != 0, Probability: p}
	case KindFlipH:
		t = FlipH{Probability: p}
	case KindFlipV:
		t = FlipV{Probability: p}
	case KindRotate:
		a := params.get("max_angle", 0)
		fill := params.get("fill", 0)
		if a <= 0 || a > 180 {
			return nil, fmt.Errorf("max_angle %v not in (0, 180]", a)
		}
		if fill < 0 || fill > 255 {
			return nil, fmt.Errorf("fill %v not in [0, 255]", fill)
		}
		g := uint8(fill)
		t = Rotate{MaxAngle: a, Fill: color.NRGBA{R: g, G: g, B: g, A: 255}, Probability: p}
	case KindColorJitter:
		cj := ColorJitter{
			Brightness:  params.get("brightness", 0),
			Contrast:    params.get("contrast", 0),
			Saturation:  params.get("saturation", 0),
			Gamma:       params.get("gamma", 0),
			Probability: p,
		}
		for name, v := range map[string]float64{
			"brightness": cj.Brightness, "contrast": cj.Contrast,
			"saturation": cj.Saturation, "gamma": cj.Gamma,
		} {
			if v < 0 || v >= 1 {
				return nil, fmt.Errorf("%s %v not in [0, 1)", name, v)
			}
		}
		t = cj
	case KindBlur:
		sigma := params.get("max_sigma", 0)
		if sigma <= 0 {
			return nil, fmt.Errorf("max_sigma %v", sigma)
		}
		t = Blur{MaxSigma: sigma, Probability: p}
	default:
		return nil, errors.New("unknown kind")
	}
	if err := params.unused(); err != nil {
		return nil, err
	}
	return t, nil
}

type paramReader struct {
	m    map[string]float64
	seen map[string]bool
}

func (r *paramReader) get(name string, def float64) float64 {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	r.seen[name] = true
	if v, ok := r.m[name]; ok {
		return v
	}
	return def
}

func (r *paramReader) int(name string) int {
	return int(r.get(name, 0))
}

func (r *paramReader) unused() error {
	for k := range r.m {
		if !r.seen[k] {
			return fmt.Errorf("unknown parameter %q", k)
		}
	}
	return nil
}
