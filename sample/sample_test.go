package sample

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/hupe1980/pixpipe/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, c), imaging.PNG))
	return buf.Bytes()
}

func TestDecode_Scalar(t *testing.T) {
	rec := record.NewScalar(3, encodePNG(t, 4, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255}))
	rec.ID = 7

	s, err := Decode(rec, Options{})
	require.NoError(t, err)
	assert.Equal(t, 7, s.Record)
	assert.Equal(t, int32(3), s.Class)
	assert.Equal(t, 4, s.Width())
	assert.Equal(t, 2, s.Height())
	assert.Equal(t, 3, s.Channels)
	assert.Equal(t, float32(3), s.Label.Scalar)

	tensor := AppendTensor(nil, s.Image, s.Channels)
	require.Len(t, tensor, 4*2*3)
	assert.Equal(t, []float32{10, 20, 30}, tensor[:3])
}

func TestDecode_Grayscale(t *testing.T) {
	rec := record.NewUnlabeled(encodePNG(t, 3, 3, color.NRGBA{R: 200, G: 200, B: 200, A: 255}))
	s, err := Decode(rec, Options{Channels: 1})
	require.NoError(t, err)

	tensor := AppendTensor(nil, s.Image, 1)
	require.Len(t, tensor, 9)
	assert.InDelta(t, 200, tensor[0], 1)
}

func TestDecode_Boxes(t *testing.T) {
	boxes := []record.Box{{X: 1, Y: 1, W: 2, H: 2, Class: 4}}
	rec, err := record.NewBoxes(boxes, 4, encodePNG(t, 8, 8, color.White))
	require.NoError(t, err)

	s, err := Decode(rec, Options{})
	require.NoError(t, err)
	assert.Equal(t, boxes, s.Label.Boxes)
}

func TestDecode_Mask(t *testing.T) {
	mask := image.NewGray(image.Rect(0, 0, 5, 4))
	mask.SetGray(2, 1, color.Gray{Y: 3})

	rec, err := record.NewMask(mask, 0, encodePNG(t, 5, 4, color.Black))
	require.NoError(t, err)
	s, err := Decode(rec, Options{})
	require.NoError(t, err)
	require.NotNil(t, s.Label.Mask)

	m := AppendTensor(nil, s.Label.Mask, 1)
	require.Len(t, m, 20)
	assert.Equal(t, float32(3), m[1*5+2])
	assert.Equal(t, float32(0), m[0])

	rec, err = record.NewMask(mask, 0, encodePNG(t, 6, 4, color.Black))
	require.NoError(t, err)
	_, err = Decode(rec, Options{})
	assert.ErrorIs(t, err, record.ErrMalformedLabel)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(record.NewScalar(1, nil), Options{})
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Decode(record.NewScalar(1, []byte("not an image")), Options{})
	assert.ErrorIs(t, err, ErrDecode)

	rec := record.NewScalar(1, encodePNG(t, 2, 2, color.White))
	rec.Label = []byte{1, 2}
	_, err = Decode(rec, Options{})
	assert.ErrorIs(t, err, record.ErrMalformedLabel)
}
