// Package main is the flatten360 command: it renders perspective views out
// of an equirectangular panorama pair with every selected variant and
// reports how fast each one was.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"flatten360/internal/config"
	"flatten360/internal/driver"
	"flatten360/internal/imageio"
	"flatten360/internal/logging"
	"flatten360/internal/timing"
	"flatten360/internal/variant"
)

const (
	flagConfig       = "config"
	flagDebug        = "debug"
	flagYaw          = "yaw"
	flagPitch        = "pitch"
	flagRoll         = "roll"
	flagDeltaYaw     = "delta-yaw"
	flagDeltaPitch   = "delta-pitch"
	flagDeltaRoll    = "delta-roll"
	flagDeltaImage   = "delta-image"
	flagFOV          = "fov"
	flagWidth        = "width"
	flagHeight       = "height"
	flagImage0       = "img0"
	flagImage1       = "img1"
	flagIterations   = "iterations"
	flagVariants     = "variants"
	flagWorkers      = "workers"
	flagLanes        = "lanes"
	flagClearOutput  = "clear-output"
	flagOutputDir    = "output"
	flagOutputFormat = "format"
	flagQuality      = "quality"
	flagNoSave       = "no-save"
)

func main() {
	var logger *zap.SugaredLogger

	app := &cli.App{
		Name:  "flatten360",
		Usage: "extract perspective views from a 360 degree panorama and benchmark the variants",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagConfig,
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` (.json, .yaml)",
			},
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = newLogger("flatten360", c.Bool(flagDebug))
			return err
		},
		After: func(c *cli.Context) error {
			if logger != nil {
				//nolint:errcheck
				logger.Sync()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "render the frame schedule with every selected variant",
				Flags: runFlags(),
				Action: func(c *cli.Context) error {
					return runAction(c, logger)
				},
			},
			{
				Name:  "list",
				Usage: "print the variant catalog",
				Action: func(c *cli.Context) error {
					fmt.Fprintln(c.App.Writer, catalogTable(variant.Catalog()))
					return nil
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: flagYaw, Usage: "starting yaw in degrees [-180, 180]"},
		&cli.IntFlag{Name: flagPitch, Usage: "starting pitch in degrees [-90, 90]"},
		&cli.IntFlag{Name: flagRoll, Usage: "starting roll in degrees [0, 360]"},
		&cli.IntFlag{Name: flagDeltaYaw, Usage: "yaw change per iteration [-360, 360]"},
		&cli.IntFlag{Name: flagDeltaPitch, Usage: "pitch change per iteration [-90, 90]"},
		&cli.IntFlag{Name: flagDeltaRoll, Usage: "roll change per iteration [-360, 360]"},
		&cli.BoolFlag{Name: flagDeltaImage, Usage: "alternate between the two images every iteration"},
		&cli.IntFlag{Name: flagFOV, Usage: "field of view in degrees [10, 120] (default: 60)"},
		&cli.IntFlag{Name: flagWidth, Usage: "output width, rounded up to a multiple of 16 (default: 1080)"},
		&cli.IntFlag{Name: flagHeight, Usage: "output height, rounded up to a multiple of 8 (default: 540)"},
		&cli.StringFlag{Name: flagImage0, Usage: "first panorama (default: image1.jpg)"},
		&cli.StringFlag{Name: flagImage1, Usage: "second panorama (default: image2.jpg)"},
		&cli.IntFlag{Name: flagIterations, Usage: "frames per variant; 0 or 1 renders a single frame"},
		&cli.StringSliceFlag{Name: flagVariants, Usage: "variants to run, or \"all\""},
		&cli.IntFlag{Name: flagWorkers, Usage: "goroutines per parallel variant (default: NumCPU)"},
		&cli.IntFlag{Name: flagLanes, Usage: "independent frame lanes per variant (default: 1)"},
		&cli.BoolFlag{Name: flagClearOutput, Usage: "paint out-of-range pixels black instead of keeping the previous frame"},
		&cli.StringFlag{Name: flagOutputDir, Usage: "output directory (default: renders)"},
		&cli.StringFlag{Name: flagOutputFormat, Usage: "webp, png, jpg, ppm or qoi (default: webp)"},
		&cli.IntFlag{Name: flagQuality, Usage: "JPEG quality 1-100 (default: 90)"},
		&cli.BoolFlag{Name: flagNoSave, Usage: "do not write final frames or the summary"},
	}
}

func flagsFromContext(c *cli.Context) config.Flags {
	optional := func(name string) *int {
		if !c.IsSet(name) {
			return nil
		}
		v := c.Int(name)
		return &v
	}
	return config.Flags{
		Yaw:          optional(flagYaw),
		Pitch:        optional(flagPitch),
		Roll:         optional(flagRoll),
		DeltaYaw:     optional(flagDeltaYaw),
		DeltaPitch:   optional(flagDeltaPitch),
		DeltaRoll:    optional(flagDeltaRoll),
		DeltaImage:   c.Bool(flagDeltaImage),
		FOV:          c.Int(flagFOV),
		Width:        c.Int(flagWidth),
		Height:       c.Int(flagHeight),
		Image0:       c.String(flagImage0),
		Image1:       c.String(flagImage1),
		Iterations:   c.Int(flagIterations),
		Variants:     c.StringSlice(flagVariants),
		Workers:      c.Int(flagWorkers),
		Lanes:        c.Int(flagLanes),
		ClearOutput:  c.Bool(flagClearOutput),
		OutputDir:    c.String(flagOutputDir),
		OutputFormat: c.String(flagOutputFormat),
		Quality:      c.Int(flagQuality),
		Debug:        c.Bool(flagDebug),
	}
}

var newLogger = logging.NewLogger

// debugLogger switches to a debug logger when the config file asks for one
// that the command line did not.
func debugLogger(current *zap.SugaredLogger, cfgDebug, flagDebug bool) (*zap.SugaredLogger, error) {
	if !cfgDebug || flagDebug {
		return current, nil
	}
	l, err := newLogger("flatten360", true)
	if err != nil {
		return nil, errors.Wrap(err, "flatten360: debug logger")
	}
	return l, nil
}

func runAction(c *cli.Context, logger *zap.SugaredLogger) error {
	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()

	startup := timing.NewCollector()
	startupStart := startup.Now()

	var cfg config.Config
	if path := c.String(flagConfig); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return err
		}
	}
	cfg.Resolve(flagsFromContext(c))
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := debugLogger(logger, cfg.Debug, c.Bool(flagDebug))
	if err != nil {
		return err
	}
	if _, err := imageio.ParseFormat(cfg.OutputFormat); err != nil {
		return err
	}

	specs, err := variant.Select(cfg.Variants)
	if err != nil {
		return err
	}

	sources, err := imageio.LoadPair(imageio.NewCache(), cfg.Image0, cfg.Image1)
	if err != nil {
		return err
	}
	startup.Since(timing.Initialization, startupStart)

	logger.Infow("configuration",
		"source", fmt.Sprintf("%dx%d", sources[0].Width, sources[0].Height),
		"output", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"camera", cfg.Camera(),
		"iterations", cfg.Iterations,
		"variants", len(specs),
		"workers", cfg.Workers,
		"lanes", cfg.Lanes)

	results, runErr := driver.Run(ctx, driver.Options{
		Config: cfg,
		Specs:  specs,
		Logger: logger,
	}, sources)

	fmt.Fprintln(c.App.Writer, startup.Report(false))
	fmt.Fprint(c.App.Writer, driver.Recap(results))
	fmt.Fprintln(c.App.Writer, resultsTable(results))

	if c.Bool(flagNoSave) {
		return runErr
	}
	return multierr.Combine(runErr, save(cfg, results, logger))
}

func save(cfg config.Config, results []driver.Result, logger *zap.SugaredLogger) error {
	paths, err := driver.SaveFrames(cfg.OutputDir, cfg.OutputFormat, cfg.Quality, results)
	for _, p := range paths {
		logger.Infow("wrote frame", "path", p)
	}
	summary := driver.Summary{
		Created:  time.Now(),
		Config:   cfg,
		Variants: results,
		Images:   paths,
	}
	manifest := filepath.Join(cfg.OutputDir, "summary.json")
	if werr := driver.WriteSummary(manifest, summary); werr != nil {
		return multierr.Combine(err, werr)
	}
	logger.Infow("wrote summary", "path", manifest)
	return err
}

func catalogTable(specs []variant.Spec) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Name", "Layout", "Interpolation", "Execution", "Description"})
	for _, s := range specs {
		exec := "parallel"
		if s.Workers == 1 {
			exec = "serial"
		}
		t.AppendRow(table.Row{s.Name, s.Layout, s.Interpolation, exec, s.Description})
	}
	return t.Render()
}

func resultsTable(results []driver.Result) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Variant", "Frames", "Recomputes", "FPS", "Error"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Name, r.Frames, r.Recomputes, fmt.Sprintf("%.2f", r.FPS()), r.Error})
	}
	return t.Render()
}
