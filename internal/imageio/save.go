package imageio

import (
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"go.uber.org/multierr"

	"flatten360/internal/raster"
)

// Format is an output encoding.
type Format string

const (
	WebP Format = "webp"
	PNG  Format = "png"
	JPEG Format = "jpg"
	PPM  Format = "ppm"
	QOI  Format = "qoi"
)

// DefaultQuality is the JPEG quality used when none is given.
const DefaultQuality = 90

// ParseFormat accepts a format name or file extension, with or without the
// leading dot.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "webp":
		return WebP, nil
	case "png":
		return PNG, nil
	case "jpg", "jpeg":
		return JPEG, nil
	case "ppm":
		return PPM, nil
	case "qoi":
		return QOI, nil
	}
	return "", errors.Errorf("imageio: unsupported output format %q", s)
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	return ParseFormat(filepath.Ext(path))
}

// Encode writes f to w. quality only affects JPEG; WebP output is lossless.
func Encode(w io.Writer, f *raster.Frame, format Format, quality int) error {
	img := f.ToNRGBA()
	var err error
	switch format {
	case WebP:
		err = nativewebp.Encode(w, img, nil)
	case PNG:
		err = png.Encode(w, img)
	case JPEG:
		if quality <= 0 || quality > 100 {
			quality = DefaultQuality
		}
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
	case PPM:
		// ppm only encodes RGBAModel images; the frame is opaque so the
		// non-premultiplied bytes are already premultiplied.
		err = ppm.Encode(w, &image.RGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect})
	case QOI:
		err = qoi.Encode(w, img)
	default:
		return errors.Errorf("imageio: unsupported output format %q", format)
	}
	return errors.Wrapf(err, "imageio: encode %s", format)
}

// Save writes f to path, creating parent directories and choosing the
// encoder from the extension.
func Save(path string, f *raster.Frame, quality int) (err error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "imageio: create directory for %s", path)
	}
	fh, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "imageio: create %s", path)
	}
	defer func() {
		err = multierr.Combine(err, fh.Close())
	}()
	return Encode(fh, f, format, quality)
}
