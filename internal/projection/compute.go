package projection

import (
	"context"
	"math"

	"github.com/pkg/errors"

	"flatten360/internal/camera"
	"flatten360/internal/mathutil"
	"flatten360/internal/parallel"
	"flatten360/internal/raster"
)

// Intrinsics is the pinhole model of the output view.
type Intrinsics struct {
	F  float64 // focal length in pixels
	CX float64 // principal point
	CY float64
}

// NewIntrinsics derives the pinhole parameters for an output of the given
// size and horizontal field of view in degrees. fov must already be clamped;
// zero or 180 produce a non-finite focal length.
func NewIntrinsics(size raster.Size, fovDeg int) Intrinsics {
	w := float64(size.Width)
	h := float64(size.Height)
	return Intrinsics{
		F:  0.5 * w / math.Tan(0.5*float64(fovDeg)*math.Pi/180),
		CX: (w - 1) / 2,
		CY: (h - 1) / 2,
	}
}

// Compute fills t for camera p looking into a source of size src.
func Compute(ctx context.Context, t *Table, p camera.Params, src raster.Size, workers int) error {
	return ComputeRotated(ctx, t, p.RotationMatrix(), p.FOV, src, workers)
}

// ComputeRotated fills t using a precomputed rotation matrix. Every entry is
// overwritten; workers splits the rows (columns for ColumnMajor) into bands.
func ComputeRotated(ctx context.Context, t *Table, rot mathutil.Mat3, fovDeg int, src raster.Size, workers int) error {
	if t == nil || t.Size().Empty() {
		return errors.Wrap(ErrSizeMismatch, "projection: empty table")
	}
	if src.Empty() {
		return errors.Wrapf(ErrSizeMismatch, "projection: empty source %dx%d", src.Width, src.Height)
	}

	k := newKernel(NewIntrinsics(t.Size(), fovDeg), rot, src)

	switch t.layout {
	case ColumnMajor:
		return parallel.Bands(ctx, t.Width, WidthAlign, workers, func(x0, x1 int) {
			xy := t.xy
			for x := x0; x < x1; x++ {
				i := 2 * x * t.Height
				for y := 0; y < t.Height; y++ {
					u, v := k.project(x, y)
					xy[i], xy[i+1] = u, v
					i += 2
				}
			}
		})
	case Planar:
		return parallel.Bands(ctx, t.Height, HeightAlign, workers, func(y0, y1 int) {
			us, vs := t.u, t.v
			for y := y0; y < y1; y++ {
				i := y * t.Width
				for x := 0; x < t.Width; x++ {
					us[i], vs[i] = k.project(x, y)
					i++
				}
			}
		})
	default:
		return parallel.Bands(ctx, t.Height, HeightAlign, workers, func(y0, y1 int) {
			xy := t.xy
			for y := y0; y < y1; y++ {
				i := 2 * y * t.Width
				for x := 0; x < t.Width; x++ {
					u, v := k.project(x, y)
					xy[i], xy[i+1] = u, v
					i += 2
				}
			}
		})
	}
}

// Project returns the source coordinate of a single output pixel.
func Project(x, y int, out raster.Size, p camera.Params, src raster.Size) (u, v float32) {
	k := newKernel(NewIntrinsics(out, p.FOV), p.RotationMatrix(), src)
	return k.project(x, y)
}

// kernel carries everything the per-pixel projection reads. It is copied by
// value into each band.
type kernel struct {
	invf, tx, ty float64
	m            mathutil.Mat3
	srcW1, srcH1 float64
}

func newKernel(in Intrinsics, rot mathutil.Mat3, src raster.Size) kernel {
	invf := 1 / in.F
	return kernel{
		invf:  invf,
		tx:    -in.CX * invf,
		ty:    -in.CY * invf,
		m:     rot,
		srcW1: float64(src.Width - 1),
		srcH1: float64(src.Height - 1),
	}
}

// project runs the inverse intrinsics, rotation, normalization and
// longitude/latitude steps for one pixel.
func (k *kernel) project(x, y int) (float32, float32) {
	ex := float64(x)*k.invf + k.tx
	ey := float64(y)*k.invf + k.ty
	m := &k.m

	rx := ex*m[0] + ey*m[1] + m[2]
	ry := ex*m[3] + ey*m[4] + m[5]
	rz := ex*m[6] + ey*m[7] + m[8]

	norm := math.Sqrt(rx*rx + ry*ry + rz*rz)
	lon := math.Atan2(rx/norm, rz/norm)
	lat := math.Asin(ry / norm)

	u := (lon/(2*math.Pi) + 0.5) * k.srcW1
	v := (lat/math.Pi + 0.5) * k.srcH1
	return float32(u), float32(v)
}
