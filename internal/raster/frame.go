// Package raster holds the packed 8-bit, 3-channel pixel buffers used for
// both the equirectangular source and the flat output view.
package raster

import (
	"image"
	"image/color"

	"github.com/pkg/errors"
	"golang.org/x/image/draw"
)

// BytesPerPixel is fixed: three interleaved 8-bit channels, no alpha.
const BytesPerPixel = 3

// Size is a width × height pair in pixels.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Pixels returns Width*Height.
func (s Size) Pixels() int {
	return s.Width * s.Height
}

// Empty reports whether either dimension is not positive.
func (s Size) Empty() bool {
	return s.Width <= 0 || s.Height <= 0
}

// Frame is a row-major RGB buffer with no row padding.
type Frame struct {
	Width  int
	Height int
	Pix    []uint8 // RGB interleaved, len = W*H*3
}

// NewFrame allocates a zeroed (black) frame.
func NewFrame(w, h int) *Frame {
	return &Frame{
		Width:  w,
		Height: h,
		Pix:    make([]uint8, w*h*BytesPerPixel),
	}
}

// Size returns the frame dimensions.
func (f *Frame) Size() Size {
	return Size{Width: f.Width, Height: f.Height}
}

// Stride is the number of bytes per row.
func (f *Frame) Stride() int {
	return f.Width * BytesPerPixel
}

// PixOffset returns the index of the first byte of pixel (x, y).
func (f *Frame) PixOffset(x, y int) int {
	return (y*f.Width + x) * BytesPerPixel
}

// At returns the pixel at (x, y).
func (f *Frame) At(x, y int) (r, g, b uint8) {
	i := f.PixOffset(x, y)
	return f.Pix[i], f.Pix[i+1], f.Pix[i+2]
}

// Set writes the pixel at (x, y).
func (f *Frame) Set(x, y int, r, g, b uint8) {
	i := f.PixOffset(x, y)
	f.Pix[i] = r
	f.Pix[i+1] = g
	f.Pix[i+2] = b
}

// Fill paints every pixel with one color.
func (f *Frame) Fill(r, g, b uint8) {
	pix := f.Pix
	for i := 0; i+2 < len(pix); i += BytesPerPixel {
		pix[i] = r
		pix[i+1] = g
		pix[i+2] = b
	}
}

// FillRect paints the pixels of rect clipped to the frame.
func (f *Frame) FillRect(rect image.Rectangle, r, g, b uint8) {
	rect = rect.Intersect(image.Rect(0, 0, f.Width, f.Height))
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			f.Set(x, y, r, g, b)
		}
	}
}

// Clone returns a deep copy.
func (f *Frame) Clone() *Frame {
	c := &Frame{Width: f.Width, Height: f.Height, Pix: make([]uint8, len(f.Pix))}
	copy(c.Pix, f.Pix)
	return c
}

// ToNRGBA expands the frame to an opaque NRGBA image for the encoders.
func (f *Frame) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	n := f.Width * f.Height
	for i := 0; i < n; i++ {
		s := i * BytesPerPixel
		d := i * 4
		img.Pix[d] = f.Pix[s]
		img.Pix[d+1] = f.Pix[s+1]
		img.Pix[d+2] = f.Pix[s+2]
		img.Pix[d+3] = 255
	}
	return img
}

// FromImage packs any decoded image into a Frame, dropping alpha.
// Images that are not already NRGBA are drawn onto an NRGBA canvas through
// x/image/draw first.
func FromImage(src image.Image) (*Frame, error) {
	b := src.Bounds()
	if b.Empty() {
		return nil, errors.New("raster: empty image")
	}

	n, ok := src.(*image.NRGBA)
	if !ok {
		n = image.NewNRGBA(b)
		draw.Draw(n, b, src, b.Min, draw.Src)
	}

	f := NewFrame(b.Dx(), b.Dy())
	for y := 0; y < f.Height; y++ {
		si := n.PixOffset(b.Min.X, b.Min.Y+y)
		di := y * f.Stride()
		for x := 0; x < f.Width; x++ {
			f.Pix[di] = n.Pix[si]
			f.Pix[di+1] = n.Pix[si+1]
			f.Pix[di+2] = n.Pix[si+2]
			si += 4
			di += BytesPerPixel
		}
	}
	return f, nil
}

// FromColor returns a w×h frame filled with c.
func FromColor(w, h int, c color.Color) *Frame {
	f := NewFrame(w, h)
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	f.Fill(n.R, n.G, n.B)
	return f
}
