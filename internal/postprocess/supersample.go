// Package postprocess holds whole-frame filters applied after rendering.
package postprocess

import (
	"image"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"

	"flatten360/internal/raster"
)

// Downsample scales f to w×h with CatmullRom filtering. Frames that already
// have that size are returned as is.
func Downsample(f *raster.Frame, w, h int) (*raster.Frame, error) {
	if w <= 0 || h <= 0 {
		return nil, errors.Errorf("postprocess: invalid target size %dx%d", w, h)
	}
	if f.Width == w && f.Height == h {
		return f, nil
	}
	src := f.ToNRGBA()
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return raster.FromImage(dst)
}

// Supersample renders at factor times the requested size and filters the
// result down, which smooths thin features such as grid lines.
func Supersample(w, h, factor int, render func(w, h int) *raster.Frame) (*raster.Frame, error) {
	if factor <= 1 {
		return render(w, h), nil
	}
	return Downsample(render(w*factor, h*factor), w, h)
}
