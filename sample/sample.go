// Package sample decodes stored records into images and typed labels.
package sample

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/codec"
	"github.com/hupe1980/pixpipe/record"
)

// ErrDecode is returned when a record's image or mask cannot be decoded.
var ErrDecode = errors.New("sample: decode failed")

// Label is a decoded label. Only the field matching Kind is set.
type Label struct {
	Kind   record.LabelKind
	Scalar float32
	Vector []float32
	Boxes  []record.Box
	Points []record.Point
	// Mask has the image's size; the class of each pixel is its red channel.
	Mask *image.NRGBA
}

// Sample is a decoded record. It is owned by one worker until it is handed
// to the batch assembler.
type Sample struct {
	Record   int
	Class    int32
	Image    *image.NRGBA
	Channels int
	Label    Label
}

// Width returns the image width.
func (s *Sample) Width() int { return s.Image.Bounds().Dx() }

// Height returns the image height.
func (s *Sample) Height() int { return s.Image.Bounds().Dy() }

// Options controls Decode.
type Options struct {
	// Channels is 1 (grayscale), 3 (RGB) or 4 (RGBA). Zero means 3.
	Channels int
	// Codec decodes box and point labels. Nil means codec.Default.
	Codec codec.Codec
	// AutoOrient applies the EXIF orientation of JPEG images.
	AutoOrient bool
}

// Decode decodes rec. Zero-length and undecodable images fail with
// ErrDecode; malformed labels fail with record.ErrMalformedLabel.
func Decode(rec record.Record, opts Options) (*Sample, error) {
	channels := opts.Channels
	if channels == 0 {
		channels = 3
	}
	if len(rec.Image) == 0 {
		return nil, fmt.Errorf("%w: record %d: empty image", ErrDecode, rec.ID)
	}

	img, err := imaging.Decode(bytes.NewReader(rec.Image), imaging.AutoOrientation(opts.AutoOrient))
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %w", ErrDecode, rec.ID, err)
	}
	nrgba := toNRGBA(img)
	if nrgba.Bounds().Empty() {
		return nil, fmt.Errorf("%w: record %d: empty image", ErrDecode, rec.ID)
	}
	if channels == 1 {
		nrgba = imaging.Grayscale(nrgba)
	}

	s := &Sample{
		Record:   rec.ID,
		Class:    rec.Class,
		Image:    nrgba,
		Channels: channels,
		Label:    Label{Kind: rec.Kind},
	}
	if err := s.decodeLabel(rec, opts.Codec); err != nil {
		return nil, fmt.Errorf("record %d: %w", rec.ID, err)
	}
	return s, nil
}

func (s *Sample) decodeLabel(rec record.Record, c codec.Codec) error {
	var err error
	switch rec.Kind {
	case record.None:
	case record.Scalar:
		s.Label.Scalar, err = record.DecodeScalar(rec.Label)
	case record.Vector:
		s.Label.Vector, err = record.DecodeVector(rec.Label)
	case record.BoxList:
		s.Label.Boxes, err = record.DecodeBoxes(c, rec.Label)
	case record.Points:
		s.Label.Points, err = record.DecodePoints(c, rec.Label)
	case record.Mask:
		var m image.Image
		m, err = imaging.Decode(bytes.NewReader(rec.Label))
		if err != nil {
			return fmt.Errorf("%w: mask: %w", ErrDecode, err)
		}
		s.Label.Mask = toNRGBA(m)
		if s.Label.Mask.Bounds().Size() != s.Image.Bounds().Size() {
			return fmt.Errorf("%w: mask is %v, image is %v",
				record.ErrMalformedLabel, s.Label.Mask.Bounds().Size(), s.Image.Bounds().Size())
		}
	default:
		err = fmt.Errorf("%w: unknown kind %d", record.ErrMalformedLabel, rec.Kind)
	}
	return err
}

// toNRGBA returns img as an *image.NRGBA anchored at the origin.
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}
