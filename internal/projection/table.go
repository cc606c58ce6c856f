// Package projection maps every pixel of a perspective view onto a
// floating-point coordinate in an equirectangular source image. The result is
// a Sampling Table that a resampler consumes.
package projection

import (
	"fmt"

	"github.com/pkg/errors"

	"flatten360/internal/raster"
)

// Tile alignment for table dimensions.
const (
	WidthAlign  = 16
	HeightAlign = 8
)

// ErrSizeMismatch is returned when buffers disagree on dimensions.
var ErrSizeMismatch = errors.New("projection: size mismatch")

// Layout selects how a Table stores its coordinates in memory.
type Layout uint8

const (
	// RowMajor stores interleaved (u, v) pairs, row after row.
	RowMajor Layout = iota
	// ColumnMajor stores interleaved (u, v) pairs, column after column.
	ColumnMajor
	// Planar stores all u values, then all v values, each row-major.
	Planar
)

func (l Layout) String() string {
	switch l {
	case RowMajor:
		return "row-major"
	case ColumnMajor:
		return "column-major"
	case Planar:
		return "planar"
	default:
		return fmt.Sprintf("Layout(%d)", uint8(l))
	}
}

// AlignSize rounds width up to a multiple of 16 and height up to a multiple
// of 8. Sizes that already conform are returned unchanged.
func AlignSize(s raster.Size) raster.Size {
	return raster.Size{
		Width:  roundUp(s.Width, WidthAlign),
		Height: roundUp(s.Height, HeightAlign),
	}
}

func roundUp(v, m int) int {
	if v%m == 0 {
		return v
	}
	return (v/m + 1) * m
}

// Table holds one source coordinate per output pixel.
type Table struct {
	Width  int
	Height int
	layout Layout
	xy     []float32 // RowMajor / ColumnMajor: u0, v0, u1, v1, ...
	u, v   []float32 // Planar
}

// NewTable allocates a table of exactly w×h entries in the given layout.
func NewTable(w, h int, layout Layout) *Table {
	t := &Table{Width: w, Height: h, layout: layout}
	n := w * h
	switch layout {
	case Planar:
		t.u = make([]float32, n)
		t.v = make([]float32, n)
	default:
		t.xy = make([]float32, 2*n)
	}
	return t
}

// Layout returns the storage layout.
func (t *Table) Layout() Layout {
	return t.layout
}

// Size returns the table dimensions.
func (t *Table) Size() raster.Size {
	return raster.Size{Width: t.Width, Height: t.Height}
}

// index returns the element index of pixel (x, y).
func (t *Table) index(x, y int) int {
	if t.layout == ColumnMajor {
		return x*t.Height + y
	}
	return y*t.Width + x
}

// At returns the source coordinate for output pixel (x, y).
func (t *Table) At(x, y int) (u, v float32) {
	i := t.index(x, y)
	if t.layout == Planar {
		return t.u[i], t.v[i]
	}
	return t.xy[2*i], t.xy[2*i+1]
}

// Set stores the source coordinate for output pixel (x, y).
func (t *Table) Set(x, y int, u, v float32) {
	i := t.index(x, y)
	if t.layout == Planar {
		t.u[i], t.v[i] = u, v
		return
	}
	t.xy[2*i], t.xy[2*i+1] = u, v
}

// Equal reports whether both tables have the same size and bit-identical
// coordinates, regardless of layout.
func (t *Table) Equal(o *Table) bool {
	if t.Width != o.Width || t.Height != o.Height {
		return false
	}
	for y := 0; y < t.Height; y++ {
		for x := 0; x < t.Width; x++ {
			u0, v0 := t.At(x, y)
			u1, v1 := o.At(x, y)
			if u0 != u1 || v0 != v1 {
				return false
			}
		}
	}
	return true
}
