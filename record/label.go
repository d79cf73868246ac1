package record

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/codec"
)

// Box is an axis-aligned box with its top-left corner at (X, Y).
type Box struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	W     float64 `json:"w"`
	H     float64 `json:"h"`
	Class int32   `json:"class"`
}

// Area returns W*H, or zero for degenerate boxes.
func (b Box) Area() float64 {
	if b.W <= 0 || b.H <= 0 {
		return 0
	}
	return b.W * b.H
}

// Point is a keypoint.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// EncodeScalar encodes a scalar label.
func EncodeScalar(v float32) []byte {
	return binary.LittleEndian.AppendUint32(nil, math.Float32bits(v))
}

// DecodeScalar decodes a scalar label.
func DecodeScalar(b []byte) (float32, error) {
	if len(b) != 4 {
		return 0, fmt.Errorf("%w: scalar of %d bytes", ErrMalformedLabel, len(b))
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
}

// EncodeVector encodes a vector label.
func EncodeVector(v []float32) []byte {
	out := make([]byte, 0, 4*len(v))
	for _, f := range v {
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
	}
	return out
}

// DecodeVector decodes a vector label.
func DecodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: vector of %d bytes", ErrMalformedLabel, len(b))
	}
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return out, nil
}

// EncodeBoxes encodes a box list with c (codec.Default when nil).
func EncodeBoxes(c codec.Codec, boxes []Box) ([]byte, error) {
	if boxes == nil {
		boxes = []Box{}
	}
	return orDefault(c).Marshal(boxes)
}

// DecodeBoxes decodes a box list.
func DecodeBoxes(c codec.Codec, b []byte) ([]Box, error) {
	var boxes []Box
	if err := orDefault(c).Unmarshal(b, &boxes); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLabel, err)
	}
	return boxes, nil
}

// EncodePoints encodes a point list.
func EncodePoints(c codec.Codec, points []Point) ([]byte, error) {
	if points == nil {
		points = []Point{}
	}
	return orDefault(c).Marshal(points)
}

// DecodePoints decodes a point list.
func DecodePoints(c codec.Codec, b []byte) ([]Point, error) {
	var points []Point
	if err := orDefault(c).Unmarshal(b, &points); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedLabel, err)
	}
	return points, nil
}

// EncodeMask encodes a mask image as PNG.
func EncodeMask(mask image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, mask, imaging.PNG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func orDefault(c codec.Codec) codec.Codec {
	if c == nil {
		return codec.Default
	}
	return c
}
