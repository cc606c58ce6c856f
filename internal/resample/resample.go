// Package resample turns a Sampling Table and an equirectangular source into
// the flat output view. Each output pixel reads only its own table entry and
// the shared read-only source, so rows (or columns) run in parallel bands.
package resample

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"flatten360/internal/parallel"
	"flatten360/internal/projection"
	"flatten360/internal/raster"
)

// ErrSizeMismatch is returned when the output buffer and table disagree.
var ErrSizeMismatch = errors.New("resample: size mismatch")

// Interpolation selects the sampling policy, independent of table layout.
type Interpolation uint8

const (
	// Bilinear blends four neighbors and skips out-of-range samples.
	Bilinear Interpolation = iota
	// Bicubic blends sixteen neighbors with horizontal wraparound.
	Bicubic
	// Nearest copies the closest source pixel.
	Nearest
)

func (m Interpolation) String() string {
	switch m {
	case Bilinear:
		return "bilinear"
	case Bicubic:
		return "bicubic"
	case Nearest:
		return "nearest"
	default:
		return fmt.Sprintf("Interpolation(%d)", uint8(m))
	}
}

// ParseInterpolation is the inverse of String.
func ParseInterpolation(s string) (Interpolation, error) {
	for _, m := range []Interpolation{Bilinear, Bicubic, Nearest} {
		if m.String() == s {
			return m, nil
		}
	}
	return 0, errors.Errorf("resample: unknown interpolation %q", s)
}

type sampleFunc func(src *raster.Frame, u, v float64) (r, g, b uint8, ok bool)

func (m Interpolation) sampler() (sampleFunc, error) {
	switch m {
	case Bilinear:
		return SampleBilinear, nil
	case Bicubic:
		return SampleBicubic, nil
	case Nearest:
		return SampleNearest, nil
	default:
		return nil, errors.Errorf("resample: unsupported interpolation %v", m)
	}
}

// Resample writes one pixel of dst for every table entry that the chosen
// policy can sample. Pixels it cannot sample keep whatever dst held. dst
// must have the table's dimensions; src is never modified.
func Resample(ctx context.Context, dst *raster.Frame, t *projection.Table, src *raster.Frame, mode Interpolation, workers int) error {
	if dst.Size() != t.Size() {
		return errors.Wrapf(ErrSizeMismatch, "resample: output %dx%d, table %dx%d",
			dst.Width, dst.Height, t.Width, t.Height)
	}
	if src == nil || src.Size().Empty() {
		return errors.Wrap(ErrSizeMismatch, "resample: empty source")
	}
	sample, err := mode.sampler()
	if err != nil {
		return err
	}

	if t.Layout() == projection.ColumnMajor {
		// Walk the table in storage order; output writes stride by row.
		return parallel.Bands(ctx, t.Width, projection.WidthAlign, workers, func(x0, x1 int) {
			for x := x0; x < x1; x++ {
				for y := 0; y < t.Height; y++ {
					u, v := t.At(x, y)
					if r, g, b, ok := sample(src, float64(u), float64(v)); ok {
						dst.Set(x, y, r, g, b)
					}
				}
			}
		})
	}

	return parallel.Bands(ctx, t.Height, projection.HeightAlign, workers, func(y0, y1 int) {
		pix := dst.Pix
		for y := y0; y < y1; y++ {
			o := y * dst.Stride()
			for x := 0; x < t.Width; x++ {
				u, v := t.At(x, y)
				if r, g, b, ok := sample(src, float64(u), float64(v)); ok {
					pix[o] = r
					pix[o+1] = g
					pix[o+2] = b
				}
				o += raster.BytesPerPixel
			}
		}
	})
}
