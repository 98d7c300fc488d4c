package motion

import (
	"image"
	"sort"
)

// dilateIterations and a 3x3 square element merge blobs split by noise.
const dilateIterations = 2

// mask is a binary foreground image stored one byte per pixel (0 or 1).
type mask struct {
	w, h int
	pix  []uint8
}

// diffMask marks pixels whose absolute difference exceeds threshold.
func diffMask(cur, ref *image.Gray, threshold int) mask {
	w, h := cur.Rect.Dx(), cur.Rect.Dy()
	m := mask{w: w, h: h, pix: make([]uint8, w*h)}
	for y := 0; y < h; y++ {
		a := cur.Pix[y*cur.Stride:]
		b := ref.Pix[y*ref.Stride:]
		for x := 0; x < w; x++ {
			d := int(a[x]) - int(b[x])
			if d < 0 {
				d = -d
			}
			if d > threshold {
				m.pix[y*w+x] = 1
			}
		}
	}
	return m
}

// dilate grows foreground by one pixel in all eight directions per iteration.
// The square element is separable: a horizontal max followed by a vertical max.
func (m mask) dilate(iterations int) mask {
	cur := m.pix
	tmp := make([]uint8, len(cur))
	for it := 0; it < iterations; it++ {
		next := make([]uint8, len(cur))
		for y := 0; y < m.h; y++ {
			row := y * m.w
			for x := 0; x < m.w; x++ {
				v := cur[row+x]
				if x > 0 && cur[row+x-1] > v {
					v = cur[row+x-1]
				}
				if x+1 < m.w && cur[row+x+1] > v {
					v = cur[row+x+1]
				}
				tmp[row+x] = v
			}
		}
		for y := 0; y < m.h; y++ {
			for x := 0; x < m.w; x++ {
				i := y*m.w + x
				v := tmp[i]
				if y > 0 && tmp[i-m.w] > v {
					v = tmp[i-m.w]
				}
				if y+1 < m.h && tmp[i+m.w] > v {
					v = tmp[i+m.w]
				}
				next[i] = v
			}
		}
		cur = next
	}
	return mask{w: m.w, h: m.h, pix: cur}
}

// blob is one 8-connected foreground component.
type blob struct {
	bounds image.Rectangle
	area   int
}

// blobs labels 8-connected components with an explicit stack and returns
// them ordered top-to-bottom, then left-to-right.
func (m mask) blobs() []blob {
	seen := make([]bool, len(m.pix))
	var out []blob
	var stack []int
	for start, v := range m.pix {
		if v == 0 || seen[start] {
			continue
		}
		seen[start] = true
		stack = append(stack[:0], start)
		minX, minY := m.w, m.h
		maxX, maxY := -1, -1
		area := 0
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			x, y := i%m.w, i/m.w
			area++
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
			for dy := -1; dy <= 1; dy++ {
				ny := y + dy
				if ny < 0 || ny >= m.h {
					continue
				}
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= m.w {
						continue
					}
					j := ny*m.w + nx
					if m.pix[j] != 0 && !seen[j] {
						seen[j] = true
						stack = append(stack, j)
					}
				}
			}
		}
		out = append(out, blob{bounds: image.Rect(minX, minY, maxX+1, maxY+1), area: area})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].bounds.Min.Y != out[j].bounds.Min.Y {
			return out[i].bounds.Min.Y < out[j].bounds.Min.Y
		}
		return out[i].bounds.Min.X < out[j].bounds.Min.X
	})
	return out
}
