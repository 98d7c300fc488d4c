package motion

import (
	"image"
	"math"

	xdraw "golang.org/x/image/draw"
)

// BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// grayscale converts an RGBA image to 8-bit luma.
func grayscale(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		out := dst.Pix[y*dst.Stride : y*dst.Stride+w]
		for x := 0; x < w; x++ {
			i := x * 4
			v := lumaR*float64(row[i]) + lumaG*float64(row[i+1]) + lumaB*float64(row[i+2])
			out[x] = uint8(math.Round(v))
		}
	}
	return dst
}

// oddKernel bumps even sizes to the next odd value and reports whether it did.
func oddKernel(size int) (int, bool) {
	if size%2 == 0 {
		return size + 1, true
	}
	return size, false
}

// gaussianKernel returns normalized 1-D weights for an odd size. Sigma is
// derived from the size the same way common imaging toolkits do when no
// explicit sigma is given.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	half := size / 2
	k := make([]float64, size)
	var sum float64
	for i := range k {
		d := float64(i - half)
		k[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += k[i]
	}
	for i := range k {
		k[i] /= sum
	}
	return k
}

// reflect101 mirrors an out-of-range index without repeating the edge pixel.
func reflect101(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i
		}
		if i >= n {
			i = 2*n - 2 - i
		}
	}
	return i
}

// gaussianBlur applies a separable Gaussian blur with the given odd kernel size.
func gaussianBlur(src *image.Gray, size int) *image.Gray {
	if size <= 1 {
		out := image.NewGray(src.Rect)
		copy(out.Pix, src.Pix)
		return out
	}
	k := gaussianKernel(size)
	half := size / 2
	w, h := src.Rect.Dx(), src.Rect.Dy()

	tmp := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride:]
		for x := 0; x < w; x++ {
			var acc float64
			for i, wt := range k {
				acc += wt * float64(row[reflect101(x+i-half, w)])
			}
			tmp[y*w+x] = acc
		}
	}

	dst := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var acc float64
			for i, wt := range k {
				acc += wt * tmp[reflect101(y+i-half, h)*w+x]
			}
			dst.Pix[y*dst.Stride+x] = clampByte(acc)
		}
	}
	return dst
}

func clampByte(v float64) uint8 {
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	}
	return uint8(v)
}

// downscale shrinks frames taller than maxHeight to targetHeight, keeping the
// aspect ratio. It returns the image to detect on and the factor that maps
// detection coordinates back to src coordinates.
func downscale(src *image.RGBA, maxHeight, targetHeight int) (*image.RGBA, float64) {
	b := src.Bounds()
	if maxHeight <= 0 || targetHeight <= 0 || b.Dy() <= maxHeight {
		return src, 1
	}
	scale := float64(b.Dy()) / float64(targetHeight)
	w := int(math.Round(float64(b.Dx()) / scale))
	if w < 1 {
		w = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, targetHeight))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	return dst, scale
}

// upscaleRect maps a detection-space rectangle back to source coordinates.
func upscaleRect(r image.Rectangle, scale float64, bounds image.Rectangle) image.Rectangle {
	if scale == 1 {
		return r
	}
	out := image.Rect(
		int(math.Floor(float64(r.Min.X)*scale)),
		int(math.Floor(float64(r.Min.Y)*scale)),
		int(math.Ceil(float64(r.Max.X)*scale)),
		int(math.Ceil(float64(r.Max.Y)*scale)),
	)
	return out.Intersect(bounds)
}
