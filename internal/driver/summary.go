package driver

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"flatten360/internal/config"
	"flatten360/internal/imageio"
	"flatten360/internal/timing"
)

// Summary is the run manifest written next to the rendered frames.
type Summary struct {
	Created  time.Time     `json:"created"`
	Config   config.Config `json:"config"`
	Variants []Result      `json:"variants"`
	Images   []string      `json:"images,omitempty"`
}

// SaveFrames writes every result's final frame as <outputDir>/<name>.<format>
// and returns the written paths. Results without a frame are skipped.
func SaveFrames(outputDir, format string, quality int, results []Result) ([]string, error) {
	f, err := imageio.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	var paths []string
	var errs error
	for _, r := range results {
		if r.Final == nil {
			continue
		}
		path := filepath.Join(outputDir, fmt.Sprintf("%s.%s", r.Name, f))
		if err := imageio.Save(path, r.Final, quality); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		paths = append(paths, path)
	}
	return paths, errs
}

// WriteSummary writes the run manifest as indented JSON.
func WriteSummary(path string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "driver: encode summary")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "driver: create directory for %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "driver: write %s", path)
	}
	return nil
}

// Recap renders every variant's timing table followed by a one-line-per-stage
// comparison across variants.
func Recap(results []Result) string {
	var sb strings.Builder
	for _, r := range results {
		if r.Collector == nil {
			continue
		}
		fmt.Fprintf(&sb, "%s (%s)\n%s\n\n", r.Name, r.Description, r.Collector.Report(false))
	}
	for _, r := range results {
		if r.Collector == nil {
			continue
		}
		fmt.Fprintf(&sb, "Summary for %s\n%s", r.Name, r.Collector.SummaryStats())
	}
	return sb.String()
}

// FPS returns the steady-state frame rate recorded for r, or zero.
func (r Result) FPS() float64 {
	for _, s := range r.Timing {
		if s.Kind == timing.Frame {
			return s.FPS()
		}
	}
	return 0
}
