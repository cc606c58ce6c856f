package resample

import (
	"math"

	"flatten360/internal/raster"
)

// bicubicA is the Keys kernel coefficient; -0.75 matches the common
// INTER_CUBIC convention.
const bicubicA = -0.75

// Coordinates this far outside the image are rejected before any integer
// conversion.
const coordLimit = 1 << 30

// SampleBilinear blends the four neighbors of (u, v). ok is false, and the
// pixel must be left untouched, when u or v is negative, when the top-left
// neighbor leaves no room for its right or bottom partner, or when either
// coordinate is NaN.
func SampleBilinear(src *raster.Frame, u, v float64) (r, g, b uint8, ok bool) {
	w, h := src.Width, src.Height
	// floor(u) > w-2  <=>  u >= w-1
	if !(u >= 0 && v >= 0 && u < float64(w-1) && v < float64(h-1)) {
		return 0, 0, 0, false
	}

	x0 := int(u)
	y0 := int(v)
	dx := u - float64(x0)
	dy := v - float64(y0)

	wtl := (1 - dx) * (1 - dy)
	wtr := dx * (1 - dy)
	wbl := (1 - dx) * dy
	wbr := dx * dy

	pix := src.Pix
	stride := src.Stride()
	tl := y0*stride + x0*raster.BytesPerPixel
	tr := tl + raster.BytesPerPixel
	bl := tl + stride
	br := bl + raster.BytesPerPixel

	fr := float64(pix[tl])*wtl + float64(pix[tr])*wtr + float64(pix[bl])*wbl + float64(pix[br])*wbr
	fg := float64(pix[tl+1])*wtl + float64(pix[tr+1])*wtr + float64(pix[bl+1])*wbl + float64(pix[br+1])*wbr
	fb := float64(pix[tl+2])*wtl + float64(pix[tr+2])*wtr + float64(pix[bl+2])*wbl + float64(pix[br+2])*wbr

	return uint8(fr + 0.5), uint8(fg + 0.5), uint8(fb + 0.5), true
}

// SampleBicubic interpolates a 4×4 neighborhood. Columns wrap around the
// image because the left and right edges of a panorama meet; rows clamp at
// the poles. Any finite coordinate produces a pixel.
func SampleBicubic(src *raster.Frame, u, v float64) (r, g, b uint8, ok bool) {
	if !(math.Abs(u) < coordLimit && math.Abs(v) < coordLimit) {
		return 0, 0, 0, false
	}
	w, h := src.Width, src.Height

	fx := math.Floor(u)
	fy := math.Floor(v)
	x0 := int(fx)
	y0 := int(fy)
	wx := cubicWeights(u - fx)
	wy := cubicWeights(v - fy)

	var cols [4]int
	for i := range cols {
		cols[i] = wrap(x0-1+i, w) * raster.BytesPerPixel
	}

	pix := src.Pix
	stride := src.Stride()
	var sr, sg, sb float64
	for j := 0; j < 4; j++ {
		row := clampInt(y0-1+j, 0, h-1) * stride
		var rr, rg, rb float64
		for i := 0; i < 4; i++ {
			p := row + cols[i]
			rr += float64(pix[p]) * wx[i]
			rg += float64(pix[p+1]) * wx[i]
			rb += float64(pix[p+2]) * wx[i]
		}
		sr += rr * wy[j]
		sg += rg * wy[j]
		sb += rb * wy[j]
	}

	return clamp8(sr), clamp8(sg), clamp8(sb), true
}

// SampleNearest picks the closest source pixel, skipping coordinates that
// round outside the image.
func SampleNearest(src *raster.Frame, u, v float64) (r, g, b uint8, ok bool) {
	if !(u >= -0.5 && v >= -0.5 && u < float64(src.Width)-0.5 && v < float64(src.Height)-0.5) {
		return 0, 0, 0, false
	}
	x := int(math.Floor(u + 0.5))
	y := int(math.Floor(v + 0.5))
	r, g, b = src.At(x, y)
	return r, g, b, true
}

// cubicWeights returns the four Keys weights for taps at -1, 0, 1, 2
// relative to the floor of the coordinate, t in [0, 1).
func cubicWeights(t float64) [4]float64 {
	const a = bicubicA
	var w [4]float64
	t1 := t + 1
	w[0] = ((a*t1-5*a)*t1+8*a)*t1 - 4*a
	w[1] = ((a+2)*t-(a+3))*t*t + 1
	s := 1 - t
	w[2] = ((a+2)*s-(a+3))*s*s + 1
	w[3] = 1 - w[0] - w[1] - w[2]
	return w
}

func wrap(x, n int) int {
	x %= n
	if x < 0 {
		x += n
	}
	return x
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v + 0.5)
}
