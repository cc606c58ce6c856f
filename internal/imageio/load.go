// Package imageio reads source panoramas and writes rendered views.
package imageio

import (
	"bufio"
	"bytes"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ftrvxmtrx/tga"
	"github.com/lmittmann/ppm"
	"github.com/pkg/errors"
	"github.com/xfmoulet/qoi"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"

	"flatten360/internal/raster"
)

// decoder pairs a format with the leading bytes that identify it. '?' in
// magic matches any byte.
type decoder struct {
	name   string
	magic  string
	decode func(io.Reader) (image.Image, error)
}

// The tga package registers itself with image.RegisterFormat under an empty
// magic, which claims every stream, so formats are sniffed here instead of
// through image.Decode. TGA has no magic and is chosen by extension.
var decoders = []decoder{
	{"png", "\x89PNG\r\n\x1a\n", png.Decode},
	{"jpeg", "\xff\xd8", jpeg.Decode},
	{"gif", "GIF8", gif.Decode},
	{"webp", "RIFF????WEBP", webp.Decode},
	{"qoi", "qoif", qoi.Decode},
	{"ppm", "P6", ppm.Decode},
	{"bmp", "BM", bmp.Decode},
	{"tiff", "II*\x00", tiff.Decode},
	{"tiff", "MM\x00*", tiff.Decode},
}

func matchMagic(magic string, b []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i := 0; i < len(magic); i++ {
		if magic[i] != '?' && magic[i] != b[i] {
			return false
		}
	}
	return true
}

// Decode sniffs the stream and decodes it into a 3-channel frame. It returns
// the detected format name.
func Decode(r io.Reader) (*raster.Frame, string, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(12)
	for _, d := range decoders {
		if !matchMagic(d.magic, head) {
			continue
		}
		f, err := decodeWith(br, d.decode)
		if err != nil {
			return nil, d.name, errors.Wrapf(err, "imageio: decode %s", d.name)
		}
		return f, d.name, nil
	}
	return nil, "", errors.Errorf("imageio: decode: unknown format (header %q)", bytes.TrimRight(head, "\x00"))
}

func decodeWith(r io.Reader, decode func(io.Reader) (image.Image, error)) (*raster.Frame, error) {
	img, err := decode(r)
	if err != nil {
		return nil, err
	}
	return raster.FromImage(img)
}

// Load decodes the image file at path. Files ending in .tga are read as
// TGA; everything else is identified by content.
func Load(path string) (*raster.Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "imageio: open %s", path)
	}
	defer fh.Close()

	var f *raster.Frame
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		f, err = decodeWith(bufio.NewReader(fh), tga.Decode)
		err = errors.Wrap(err, "imageio: decode tga")
	} else {
		f, _, err = Decode(fh)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "imageio: load %s", path)
	}
	return f, nil
}

// LoadPair loads the two frames of the video loop. Both must have the same
// dimensions.
func LoadPair(c *Cache, path0, path1 string) ([2]*raster.Frame, error) {
	var pair [2]*raster.Frame
	for i, p := range []string{path0, path1} {
		f, err := c.Get(p)
		if err != nil {
			return pair, err
		}
		pair[i] = f
	}
	if pair[0].Size() != pair[1].Size() {
		return pair, errors.Errorf("imageio: %s is %dx%d but %s is %dx%d, frames must match",
			path0, pair[0].Width, pair[0].Height, path1, pair[1].Width, pair[1].Height)
	}
	return pair, nil
}
