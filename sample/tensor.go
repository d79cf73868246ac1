package sample

import "image"

// AppendTensor appends img as HWC float32 pixel values in [0, 255].
// channels selects gray (1), RGB (3) or RGBA (4); gray reads the red
// channel of an already grayscaled image or mask.
func AppendTensor(dst []float32, img *image.NRGBA, channels int) []float32 {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[(y-b.Min.Y)*img.Stride:]
		for x := 0; x < b.Dx(); x++ {
			px := row[4*x : 4*x+4]
			for c := 0; c < channels; c++ {
				dst = append(dst, float32(px[c]))
			}
		}
	}
	return dst
}
