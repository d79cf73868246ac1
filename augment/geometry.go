package augment

import (
	"image"
	"math"

	"github.com/hupe1980/pixpipe/record"
	"github.com/hupe1980/pixpipe/sample"
)

// Coordinates are continuous: pixel (i, j) covers [i, i+1) × [j, j+1).

// clipBoxes clips boxes to [0, w] × [0, h] and drops those whose clipped
// area falls below minArea of their unclipped area.
func clipBoxes(boxes []record.Box, w, h, minArea float64) []record.Box {
	out := boxes[:0]
	for _, b := range boxes {
		area := b.Area()
		x0, y0 := math.Max(b.X, 0), math.Max(b.Y, 0)
		x1, y1 := math.Min(b.X+b.W, w), math.Min(b.Y+b.H, h)
		c := record.Box{X: x0, Y: y0, W: x1 - x0, H: y1 - y0, Class: b.Class}
		if c.W <= 0 || c.H <= 0 || area == 0 || c.Area()/area < minArea {
			continue
		}
		out = append(out, c)
	}
	return out
}

func clipPoints(points []record.Point, w, h float64) []record.Point {
	out := points[:0]
	for _, p := range points {
		if p.X >= 0 && p.X <= w && p.Y >= 0 && p.Y <= h {
			out = append(out, p)
		}
	}
	return out
}

func scaleLabels(s *sample.Sample, sx, sy float64) {
	for i := range s.Label.Boxes {
		b := &s.Label.Boxes[i]
		b.X, b.W = b.X*sx, b.W*sx
		b.Y, b.H = b.Y*sy, b.H*sy
	}
	for i := range s.Label.Points {
		p := &s.Label.Points[i]
		p.X, p.Y = p.X*sx, p.Y*sy
	}
}

// rotation maps source coordinates into an image rotated counter-clockwise
// by angle degrees about its center, matching imaging.Rotate.
type rotation struct {
	sin, cos     float64
	srcCX, srcCY float64
	dstCX, dstCY float64
	dstW, dstH   int
	srcW, srcH   int
}

func newRotation(angle float64, src, dst image.Rectangle) rotation {
	sin, cos := math.Sincos(math.Pi * angle / 180)
	return rotation{
		sin: sin, cos: cos,
		srcCX: float64(src.Dx()) / 2, srcCY: float64(src.Dy()) / 2,
		dstCX: float64(dst.Dx()) / 2, dstCY: float64(dst.Dy()) / 2,
		srcW: src.Dx(), srcH: src.Dy(),
		dstW: dst.Dx(), dstH: dst.Dy(),
	}
}

// forward maps a source point into the rotated image.
func (r rotation) forward(x, y float64) (float64, float64) {
	x, y = x-r.srcCX, y-r.srcCY
	return x*r.cos + y*r.sin + r.dstCX, -x*r.sin + y*r.cos + r.dstCY
}

// inverse maps a rotated point back into the source image.
func (r rotation) inverse(x, y float64) (float64, float64) {
	x, y = x-r.dstCX, y-r.dstCY
	return x*r.cos - y*r.sin + r.srcCX, x*r.sin + y*r.cos + r.srcCY
}

// rotateBoxes replaces each box with the axis-aligned hull of its rotated
// corners, then clips it to the rotated image.
func rotateBoxes(boxes []record.Box, r rotation, minArea float64) []record.Box {
	for i, b := range boxes {
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, c := range [4][2]float64{{b.X, b.Y}, {b.X + b.W, b.Y}, {b.X, b.Y + b.H}, {b.X + b.W, b.Y + b.H}} {
			x, y := r.forward(c[0], c[1])
			minX, maxX = math.Min(minX, x), math.Max(maxX, x)
			minY, maxY = math.Min(minY, y), math.Max(maxY, y)
		}
		boxes[i] = record.Box{X: minX, Y: minY, W: maxX - minX, H: maxY - minY, Class: b.Class}
	}
	return clipBoxes(boxes, float64(r.dstW), float64(r.dstH), minArea)
}

func rotatePoints(points []record.Point, r rotation) []record.Point {
	for i, p := range points {
		points[i].X, points[i].Y = r.forward(p.X, p.Y)
	}
	return clipPoints(points, float64(r.dstW), float64(r.dstH))
}

// rotateMask rotates mask with nearest-neighbour sampling. Pixels mapped
// from outside the source are zero.
func rotateMask(mask *image.NRGBA, r rotation) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, r.dstW, r.dstH))
	for y := 0; y < r.dstH; y++ {
		for x := 0; x < r.dstW; x++ {
			sx, sy := r.inverse(float64(x)+0.5, float64(y)+0.5)
			ix, iy := int(math.Floor(sx)), int(math.Floor(sy))
			if ix < 0 || iy < 0 || ix >= r.srcW || iy >= r.srcH {
				continue
			}
			si := mask.PixOffset(ix+mask.Rect.Min.X, iy+mask.Rect.Min.Y)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], mask.Pix[si:si+4])
		}
	}
	return dst
}
