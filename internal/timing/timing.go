// Package timing accumulates per-stage durations for the variant driver. A
// Collector is an ordinary value owned by whoever times the work; nothing in
// the numeric core touches it.
package timing

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
)

// Kind names one timed stage.
type Kind int

const (
	Initialization Kind = iota
	VariantInitialization
	FrameCalculations
	ImageExtraction
	Frame
	VariantTermination
	Total
	numKinds
)

var kindNames = [numKinds]string{
	Initialization:        "Initialization",
	VariantInitialization: "Variant initialization",
	FrameCalculations:     "Frame calculations",
	ImageExtraction:       "Image extraction",
	Frame:                 "Frame",
	VariantTermination:    "Variant termination",
	Total:                 "Total",
}

func (k Kind) String() string {
	if k < 0 || k >= numKinds {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Kinds lists every stage in report order.
func Kinds() []Kind {
	ks := make([]Kind, numKinds)
	for i := range ks {
		ks[i] = Kind(i)
	}
	return ks
}

// Collector records durations. The first sample of each kind is kept apart
// as the warmup (JIT, page faults, first allocation) and excluded from the
// steady-state statistics once a second sample exists. Lap samples are a
// second, independently resettable window over the same stream.
type Collector struct {
	clock clock.Clock

	mu      sync.Mutex
	samples [numKinds][]float64 // seconds
	lap     [numKinds][]float64
}

// NewCollector returns a collector using the wall clock.
func NewCollector() *Collector {
	return NewCollectorWithClock(clock.New())
}

// NewCollectorWithClock returns a collector reading time from clk.
func NewCollectorWithClock(clk clock.Clock) *Collector {
	return &Collector{clock: clk}
}

// Now returns the collector's current time.
func (c *Collector) Now() time.Time {
	return c.clock.Now()
}

// Add records end-start under kind.
func (c *Collector) Add(kind Kind, start, end time.Time) {
	d := end.Sub(start).Seconds()
	c.mu.Lock()
	c.samples[kind] = append(c.samples[kind], d)
	c.lap[kind] = append(c.lap[kind], d)
	c.mu.Unlock()
}

// Since records the time elapsed from start under kind and returns now.
func (c *Collector) Since(kind Kind, start time.Time) time.Time {
	now := c.clock.Now()
	c.Add(kind, start, now)
	return now
}

// Measure times fn under kind and returns its error.
func (c *Collector) Measure(kind Kind, fn func() error) error {
	start := c.clock.Now()
	err := fn()
	c.Since(kind, start)
	return err
}

// Reset clears everything, including laps.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.samples = [numKinds][]float64{}
	c.lap = [numKinds][]float64{}
	c.mu.Unlock()
}

// ResetLap starts a new lap window.
func (c *Collector) ResetLap() {
	c.mu.Lock()
	c.lap = [numKinds][]float64{}
	c.mu.Unlock()
}

// Summary describes the samples of one kind. Durations are in seconds.
type Summary struct {
	Kind   Kind
	Count  int
	Warmup float64
	Mean   float64
	Median float64
	P95    float64
	StdDev float64
	Min    float64
	Max    float64
	// LapCount and LapMean cover the current lap window only.
	LapCount int
	LapMean  float64
}

// FPS converts the steady-state mean to frames per second.
func (s Summary) FPS() float64 {
	if s.Mean <= 0 {
		return 0
	}
	return 1 / s.Mean
}

// Summary computes statistics for kind. ok is false when nothing was
// recorded.
func (c *Collector) Summary(kind Kind) (Summary, bool) {
	c.mu.Lock()
	all := append([]float64(nil), c.samples[kind]...)
	lap := append([]float64(nil), c.lap[kind]...)
	c.mu.Unlock()

	if len(all) == 0 {
		return Summary{Kind: kind}, false
	}

	steady := stats.Float64Data(all)
	if len(all) > 1 {
		steady = all[1:]
	}

	s := Summary{Kind: kind, Count: len(all), Warmup: all[0], LapCount: len(lap)}
	s.Mean, _ = stats.Mean(steady)
	s.Median, _ = stats.Median(steady)
	s.P95, _ = stats.Percentile(steady, 95)
	s.StdDev, _ = stats.StandardDeviation(steady)
	s.Min, _ = stats.Min(steady)
	s.Max, _ = stats.Max(steady)
	if len(lap) > 0 {
		s.LapMean, _ = stats.Mean(lap)
	}
	return s, true
}

// Summaries returns the summary of every populated kind in report order.
func (c *Collector) Summaries() []Summary {
	var out []Summary
	for _, k := range Kinds() {
		if s, ok := c.Summary(k); ok {
			out = append(out, s)
		}
	}
	return out
}

// Report renders all populated kinds as a table.
func (c *Collector) Report(includeLap bool) string {
	t := table.NewWriter()
	header := table.Row{"Stage", "Count", "Warmup", "Mean", "Median", "P95", "StdDev", "FPS"}
	if includeLap {
		header = append(header, "Lap", "Lap mean")
	}
	t.AppendHeader(header)
	for _, s := range c.Summaries() {
		fps := ""
		if s.Kind == Frame {
			fps = fmt.Sprintf("%.2f", s.FPS())
		}
		row := table.Row{
			s.Kind.String(),
			s.Count,
			formatSeconds(s.Warmup),
			formatSeconds(s.Mean),
			formatSeconds(s.Median),
			formatSeconds(s.P95),
			formatSeconds(s.StdDev),
			fps,
		}
		if includeLap {
			row = append(row, s.LapCount, formatSeconds(s.LapMean))
		}
		t.AppendRow(row)
	}
	return t.Render()
}

// SummaryStats returns one line per populated kind, suitable for the final
// all-variants recap.
func (c *Collector) SummaryStats() string {
	var sb strings.Builder
	for _, s := range c.Summaries() {
		fmt.Fprintf(&sb, "%23s %4d times averaging %12.5fms", s.Kind, s.Count, s.Mean*1000)
		if s.Kind == Frame {
			fmt.Fprintf(&sb, " FPS = %10.3f", s.FPS())
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func formatSeconds(sec float64) string {
	return time.Duration(sec * float64(time.Second)).String()
}
