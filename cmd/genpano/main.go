// Package main writes a synthetic equirectangular panorama pair for trying
// out flatten360 without real footage.
package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"flatten360/internal/imageio"
	"flatten360/internal/postprocess"
	"flatten360/internal/raster"
)

func main() {
	app := &cli.App{
		Name:  "genpano",
		Usage: "write two synthetic equirectangular frames",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "width", Value: 2048, Usage: "panorama width"},
			&cli.IntFlag{Name: "height", Usage: "panorama height (default: width/2)"},
			&cli.Float64Flag{Name: "grid", Value: 30, Usage: "graticule spacing in degrees, 0 disables it"},
			&cli.Float64Flag{Name: "shift", Value: 10, Usage: "yaw offset of the second frame in degrees"},
			&cli.StringFlag{Name: "img0", Value: "image1.jpg", Usage: "first output file"},
			&cli.StringFlag{Name: "img1", Value: "image2.jpg", Usage: "second output file"},
			&cli.IntFlag{Name: "supersample", Value: 2, Usage: "render at this multiple and filter down, 1 disables it"},
			&cli.IntFlag{Name: "quality", Value: imageio.DefaultQuality, Usage: "JPEG quality 1-100"},
		},
		Action: func(c *cli.Context) error {
			w, h := c.Int("width"), c.Int("height")
			if h <= 0 {
				h = w / 2
			}
			if w < 2 || h < 2 {
				return errors.Errorf("genpano: panorama %dx%d is too small", w, h)
			}
			grid := c.Float64("grid")
			var errs error
			for i, path := range []string{c.String("img0"), c.String("img1")} {
				shift := float64(i) * c.Float64("shift")
				frame, err := postprocess.Supersample(w, h, c.Int("supersample"), func(w, h int) *raster.Frame {
					return renderPattern(w, h, grid, shift)
				})
				if err != nil {
					return err
				}
				if err := imageio.Save(path, frame, c.Int("quality")); err != nil {
					errs = multierr.Append(errs, err)
					continue
				}
				fmt.Fprintf(c.App.Writer, "wrote %s (%dx%d)\n", path, w, h)
			}
			return errs
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
