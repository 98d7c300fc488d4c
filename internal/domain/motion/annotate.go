package motion

import (
	"image"
	"image/color"
)

// Box drawing style for annotated frames.
var boxColor = color.RGBA{R: 0, G: 255, B: 0, A: 255}

const boxThickness = 2

// annotate draws a hollow rectangle around each region, clipped to dst.
func annotate(dst *image.RGBA, regions []image.Rectangle) {
	b := dst.Bounds()
	for _, r := range regions {
		r = r.Intersect(b)
		if r.Empty() {
			continue
		}
		for t := 0; t < boxThickness; t++ {
			hline(dst, r.Min.X, r.Max.X, r.Min.Y+t)
			hline(dst, r.Min.X, r.Max.X, r.Max.Y-1-t)
			vline(dst, r.Min.X+t, r.Min.Y, r.Max.Y)
			vline(dst, r.Max.X-1-t, r.Min.Y, r.Max.Y)
		}
	}
}

func hline(dst *image.RGBA, x0, x1, y int) {
	if y < dst.Rect.Min.Y || y >= dst.Rect.Max.Y {
		return
	}
	for x := x0; x < x1; x++ {
		dst.SetRGBA(x, y, boxColor)
	}
}

func vline(dst *image.RGBA, x, y0, y1 int) {
	if x < dst.Rect.Min.X || x >= dst.Rect.Max.X {
		return
	}
	for y := y0; y < y1; y++ {
		dst.SetRGBA(x, y, boxColor)
	}
}
