package main

import (
	"math"

	"flatten360/internal/raster"
)

// faceColors paints each cube face a distinct color: +X, -X, +Y, -Y, +Z, -Z.
var faceColors = [6][3]uint8{
	{220, 60, 60},
	{60, 200, 200},
	{60, 200, 60},
	{200, 60, 200},
	{60, 60, 220},
	{220, 200, 60},
}

// renderPattern draws an equirectangular panorama of a cube whose faces are
// flat colors, with a white graticule every gridDeg degrees. shiftDeg turns
// the cube about the vertical axis, which is how the second frame of a pair
// differs from the first.
func renderPattern(w, h int, gridDeg, shiftDeg float64) *raster.Frame {
	f := raster.NewFrame(w, h)
	shift := shiftDeg * math.Pi / 180
	for y := 0; y < h; y++ {
		lat := (float64(y)/float64(h-1) - 0.5) * math.Pi
		for x := 0; x < w; x++ {
			lon := (float64(x)/float64(w-1)-0.5)*2*math.Pi + shift
			// Same convention as the projection: lon = atan2(x, z), lat = asin(y).
			dx := math.Cos(lat) * math.Sin(lon)
			dy := math.Sin(lat)
			dz := math.Cos(lat) * math.Cos(lon)
			c := faceColors[cubeFace(dx, dy, dz)]
			if onGrid(lon-shift, lat, gridDeg, w, h) {
				c = [3]uint8{255, 255, 255}
			}
			f.Set(x, y, c[0], c[1], c[2])
		}
	}
	return f
}

func cubeFace(x, y, z float64) int {
	ax, ay, az := math.Abs(x), math.Abs(y), math.Abs(z)
	switch {
	case ax >= ay && ax >= az:
		if x >= 0 {
			return 0
		}
		return 1
	case ay >= az:
		if y >= 0 {
			return 2
		}
		return 3
	default:
		if z >= 0 {
			return 4
		}
		return 5
	}
}

// onGrid reports whether (lon, lat) lies within one source pixel of a
// graticule line.
func onGrid(lon, lat, gridDeg float64, w, h int) bool {
	if gridDeg <= 0 {
		return false
	}
	step := gridDeg * math.Pi / 180
	near := func(a, pixel float64) bool {
		r := math.Mod(a, step)
		if r < 0 {
			r += step
		}
		return r < pixel || step-r < pixel
	}
	return near(lon, 2*math.Pi/float64(w)) || near(lat, math.Pi/float64(h))
}
