// Package config holds the run configuration of the variant driver: the
// camera, the output geometry, the two source frames and where results go.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"flatten360/internal/camera"
)

// Defaults applied by Resolve.
const (
	DefaultWidth        = 1080
	DefaultHeight       = 540
	DefaultImage0       = "image1.jpg"
	DefaultImage1       = "image2.jpg"
	DefaultLanes        = 1
	DefaultOutputFormat = "webp"
	DefaultQuality      = 90
	DefaultOutputDir    = "renders"
)

// ErrInvalid marks every validation failure.
var ErrInvalid = errors.New("config: invalid value")

// Config holds every run parameter.
type Config struct {
	// Camera
	camera.Params `yaml:",inline"`
	camera.Delta  `yaml:",inline"`

	// DeltaImage toggles between the two sources every frame.
	DeltaImage bool `json:"delta_image" yaml:"delta_image"`

	// Geometry and sources
	Width  int    `json:"width_output" yaml:"width_output"`
	Height int    `json:"height_output" yaml:"height_output"`
	Image0 string `json:"img0" yaml:"img0"`
	Image1 string `json:"img1" yaml:"img1"`

	// Run
	Iterations  int      `json:"iterations" yaml:"iterations"`
	Variants    []string `json:"variants" yaml:"variants"`
	Workers     int      `json:"workers" yaml:"workers"`
	Lanes       int      `json:"lanes" yaml:"lanes"`
	ClearOutput bool     `json:"clear_output" yaml:"clear_output"`

	// Output
	BaseDir      string `json:"base_dir" yaml:"base_dir"`
	OutputDir    string `json:"output_dir" yaml:"output_dir"`
	OutputFormat string `json:"output_format" yaml:"output_format"`
	Quality      int    `json:"quality" yaml:"quality"`
	Debug        bool   `json:"debug" yaml:"debug"`
}

// Load reads a JSON or YAML config file, chosen by extension. Fields not set
// in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: read %s", path)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	case ".json":
		err = json.Unmarshal(data, &cfg)
	default:
		return Config{}, errors.Errorf("config: %s: unknown config format, want .json, .yaml or .yml", path)
	}
	if err != nil {
		return Config{}, errors.Wrapf(err, "config: parse %s", path)
	}
	return cfg, nil
}

// Flags holds CLI flag values that override config file settings. Pointer
// fields are nil when the flag was not given, since zero is a meaningful
// camera angle; the rest override when non-zero.
type Flags struct {
	Yaw, Pitch, Roll                *int
	DeltaYaw, DeltaPitch, DeltaRoll *int
	FOV                             int
	DeltaImage                      bool
	Width, Height                   int
	Image0, Image1                  string
	Iterations                      int
	Variants                        []string
	Workers                         int
	Lanes                           int
	ClearOutput                     bool
	OutputDir                       string
	OutputFormat                    string
	Quality                         int
	Debug                           bool
}

// Resolve applies flag overrides, then fills empty fields with defaults and
// resolves relative paths against BaseDir.
func (c *Config) Resolve(flags Flags) {
	setInt := func(dst *int, v *int) {
		if v != nil {
			*dst = *v
		}
	}
	setInt(&c.Params.Yaw, flags.Yaw)
	setInt(&c.Params.Pitch, flags.Pitch)
	setInt(&c.Params.Roll, flags.Roll)
	setInt(&c.Delta.Yaw, flags.DeltaYaw)
	setInt(&c.Delta.Pitch, flags.DeltaPitch)
	setInt(&c.Delta.Roll, flags.DeltaRoll)

	if flags.FOV > 0 {
		c.FOV = flags.FOV
	}
	if flags.Width > 0 {
		c.Width = flags.Width
	}
	if flags.Height > 0 {
		c.Height = flags.Height
	}
	if flags.Image0 != "" {
		c.Image0 = flags.Image0
	}
	if flags.Image1 != "" {
		c.Image1 = flags.Image1
	}
	if flags.Iterations > 0 {
		c.Iterations = flags.Iterations
	}
	if len(flags.Variants) > 0 {
		c.Variants = flags.Variants
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Lanes > 0 {
		c.Lanes = flags.Lanes
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.OutputFormat != "" {
		c.OutputFormat = flags.OutputFormat
	}
	if flags.Quality > 0 {
		c.Quality = flags.Quality
	}
	c.DeltaImage = c.DeltaImage || flags.DeltaImage
	c.ClearOutput = c.ClearOutput || flags.ClearOutput
	c.Debug = c.Debug || flags.Debug

	// Defaults
	if c.FOV == 0 {
		c.FOV = camera.DefaultFOV
	}
	if c.Width <= 0 {
		c.Width = DefaultWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultHeight
	}
	if c.Image0 == "" {
		c.Image0 = DefaultImage0
	}
	if c.Image1 == "" {
		c.Image1 = DefaultImage1
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.Lanes <= 0 {
		c.Lanes = DefaultLanes
	}
	if c.OutputFormat == "" {
		c.OutputFormat = DefaultOutputFormat
	}
	if c.Quality <= 0 {
		c.Quality = DefaultQuality
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}

	if c.BaseDir != "" {
		c.Image0 = c.underBase(c.Image0)
		c.Image1 = c.underBase(c.Image1)
		c.OutputDir = c.underBase(c.OutputDir)
	}
}

func (c *Config) underBase(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Validate reports every value outside the accepted ranges.
func (c *Config) Validate() error {
	var errs error
	invalid := func(err error) {
		errs = multierr.Append(errs, errors.Wrap(ErrInvalid, err.Error()))
	}
	if err := c.Params.Validate(); err != nil {
		invalid(err)
	}
	if err := c.Delta.Validate(); err != nil {
		invalid(err)
	}
	if c.Width <= 0 || c.Height <= 0 {
		invalid(errors.Errorf("config: output size %dx%d must be positive", c.Width, c.Height))
	}
	if c.Iterations < 0 {
		invalid(errors.Errorf("config: iterations %d must not be negative", c.Iterations))
	}
	if c.Lanes < 1 {
		invalid(errors.Errorf("config: lanes %d must be at least 1", c.Lanes))
	}
	if c.Workers < 0 {
		invalid(errors.Errorf("config: workers %d must not be negative", c.Workers))
	}
	if c.Quality < 1 || c.Quality > 100 {
		invalid(errors.Errorf("config: quality %d, want [1, 100]", c.Quality))
	}
	return errs
}

// Camera returns the starting camera snapshot.
func (c *Config) Camera() camera.Params {
	return c.Params
}

// Interactive reports whether the run renders a single frame instead of a
// loop of iterations.
func (c *Config) Interactive() bool {
	return c.Iterations <= 1
}
