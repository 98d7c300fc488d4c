package motion

import (
	"image"
)

// Background holds the blurred grayscale reference frame. The reference is
// only ever replaced wholesale, never edited in place, so a reference handed
// out by Reference stays valid.
type Background struct {
	ref *image.Gray
}

// Ready reports whether a reference exists.
func (b *Background) Ready() bool { return b.ref != nil }

// Matches reports whether the reference has the given dimensions.
func (b *Background) Matches(r image.Rectangle) bool {
	return b.ref != nil && b.ref.Rect.Dx() == r.Dx() && b.ref.Rect.Dy() == r.Dy()
}

// Reference returns the current reference or nil.
func (b *Background) Reference() *image.Gray { return b.ref }

// Set installs g as the reference. The caller must not modify g afterwards.
func (b *Background) Set(g *image.Gray) { b.ref = g }

// Reset drops the reference, forcing recalibration on the next frame.
func (b *Background) Reset() { b.ref = nil }

// Blend applies the exponential moving average
//
//	ref' = round((1-alpha)*ref + alpha*cur)
//
// clamped to [0,255]. A missing or mismatched reference is replaced by cur.
func (b *Background) Blend(cur *image.Gray, alpha float64) {
	if !b.Matches(cur.Rect) {
		b.ref = cur
		return
	}
	next := image.NewGray(b.ref.Rect)
	w, h := b.ref.Rect.Dx(), b.ref.Rect.Dy()
	for y := 0; y < h; y++ {
		r := b.ref.Pix[y*b.ref.Stride:]
		c := cur.Pix[y*cur.Stride:]
		o := next.Pix[y*next.Stride:]
		for x := 0; x < w; x++ {
			o[x] = clampByte((1-alpha)*float64(r[x]) + alpha*float64(c[x]))
		}
	}
	b.ref = next
}
