// Package driver runs the selected variants over a schedule of frames,
// timing every stage, and collects what each variant produced.
package driver

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"flatten360/internal/camera"
	"flatten360/internal/config"
	"flatten360/internal/pipeline"
	"flatten360/internal/raster"
	"flatten360/internal/timing"
	"flatten360/internal/variant"
)

// Step is one frame of the schedule.
type Step struct {
	Params camera.Params
	Source int
}

// Schedule expands the configuration into the frames every variant renders.
// A non-interactive run advances the camera by the deltas after each frame
// and, with DeltaImage, alternates the two sources. At least one frame is
// always produced.
func Schedule(cfg config.Config) []Step {
	n := cfg.Iterations
	if n < 1 {
		n = 1
	}
	steps := make([]Step, n)
	params := cfg.Camera()
	src := 0
	for i := range steps {
		params = params.Normalize()
		steps[i] = Step{Params: params, Source: src}
		if cfg.Interactive() {
			continue
		}
		params = params.Advance(cfg.Delta)
		if cfg.DeltaImage {
			src = 1 - src
		}
	}
	return steps
}

// Options configures Run.
type Options struct {
	Config config.Config
	Specs  []variant.Spec
	Logger *zap.SugaredLogger
	Clock  clock.Clock
}

// Result is what one variant produced.
type Result struct {
	Name          string           `json:"name"`
	Description   string           `json:"description"`
	Layout        string           `json:"layout"`
	Interpolation string           `json:"interpolation"`
	Workers       int              `json:"workers"`
	Lanes         int              `json:"lanes"`
	Frames        int              `json:"frames"`
	Recomputes    int              `json:"recomputes"`
	FinalParams   camera.Params    `json:"final_params"`
	Timing        []timing.Summary `json:"timing"`
	Error         string           `json:"error,omitempty"`

	Final     *raster.Frame     `json:"-"`
	Collector *timing.Collector `json:"-"`
}

// Run renders the schedule with every spec in turn. A failing variant is
// recorded in its Result and does not stop the others; the returned error
// combines every failure.
func Run(ctx context.Context, opts Options, sources [2]*raster.Frame) ([]Result, error) {
	if sources[0] == nil || sources[1] == nil {
		return nil, errors.New("driver: both sources are required")
	}
	if sources[0].Size() != sources[1].Size() {
		return nil, errors.Errorf("driver: sources differ in size: %dx%d and %dx%d",
			sources[0].Width, sources[0].Height, sources[1].Width, sources[1].Height)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	steps := Schedule(opts.Config)
	results := make([]Result, 0, len(opts.Specs))
	var errs error
	for _, spec := range opts.Specs {
		if err := ctx.Err(); err != nil {
			return results, multierr.Append(errs, err)
		}
		res := runVariant(ctx, opts, spec, steps, sources)
		if res.Error != "" {
			errs = multierr.Append(errs, errors.Errorf("driver: %s: %s", spec.Name, res.Error))
		}
		results = append(results, res)
	}
	return results, errs
}

// runner carries the state of one variant's run.
type runner struct {
	spec      variant.Spec
	cfg       config.Config
	size      raster.Size
	steps     []Step
	sources   [2]*raster.Frame
	clock     clock.Clock
	collector *timing.Collector
	logger    *zap.SugaredLogger
	res       *Result
}

func runVariant(ctx context.Context, opts Options, spec variant.Spec, steps []Step, sources [2]*raster.Frame) Result {
	cfg := opts.Config
	if cfg.Workers > 0 && spec.Workers != 1 {
		spec.Workers = cfg.Workers
	}
	lanes := cfg.Lanes
	if lanes < 1 {
		lanes = 1
	}
	r := &runner{
		spec:      spec,
		cfg:       cfg,
		size:      raster.Size{Width: cfg.Width, Height: cfg.Height},
		steps:     steps,
		sources:   sources,
		clock:     opts.Clock,
		collector: timing.NewCollectorWithClock(opts.Clock),
		logger:    opts.Logger.With("variant", spec.Name),
		res: &Result{
			Name:          spec.Name,
			Description:   spec.Description,
			Layout:        spec.Layout.String(),
			Interpolation: spec.Interpolation.String(),
			Workers:       spec.Workers,
			Lanes:         lanes,
		},
	}
	r.res.Collector = r.collector

	r.logger.Infow("starting variant", "description", spec.Description, "frames", len(steps), "lanes", lanes)
	total := r.collector.Now()
	var err error
	if lanes == 1 {
		err = r.serial(ctx)
	} else {
		err = r.lanes(ctx, lanes)
	}
	r.collector.Since(timing.Total, total)

	if err != nil {
		r.res.Error = err.Error()
		r.logger.Errorw("variant failed", "error", err)
	}
	r.res.Timing = r.collector.Summaries()
	if s, ok := r.collector.Summary(timing.Frame); ok {
		r.logger.Infow("variant finished", "frames", r.res.Frames, "recomputes", r.res.Recomputes, "fps", s.FPS())
	}
	return *r.res
}

func (r *runner) serial(ctx context.Context) (err error) {
	v := variant.New(r.spec, variant.WithLogger(r.logger), variant.WithClearOutput(r.cfg.ClearOutput))
	if err := r.collector.Measure(timing.VariantInitialization, func() error { return v.Start(r.size) }); err != nil {
		return err
	}
	defer func() {
		stopErr := r.collector.Measure(timing.VariantTermination, v.Stop)
		stats := v.Stats()
		r.res.Frames, r.res.Recomputes = stats.Frames, stats.Recomputes
		err = multierr.Append(err, stopErr)
	}()

	var out *raster.Frame
	for _, step := range r.steps {
		frameStart := r.collector.Now()
		src := r.sources[step.Source]
		err := r.collector.Measure(timing.FrameCalculations, func() error {
			_, _, err := v.ComputeMapping(ctx, step.Params, r.size, src.Size())
			return err
		})
		if err != nil {
			return err
		}
		err = r.collector.Measure(timing.ImageExtraction, func() error {
			var err error
			out, err = v.Resample(ctx, src)
			return err
		})
		if err != nil {
			return err
		}
		r.collector.Since(timing.Frame, frameStart)
		r.res.FinalParams = step.Params
	}
	// The output buffer dies with Stop.
	r.res.Final = out.Clone()
	return nil
}

func (r *runner) lanes(ctx context.Context, n int) (err error) {
	var p *pipeline.Pipeline
	err = r.collector.Measure(timing.VariantInitialization, func() error {
		var err error
		p, err = pipeline.New(ctx, r.spec, n, r.size,
			pipeline.WithLogger(r.logger),
			pipeline.WithCollector(r.collector),
			pipeline.WithClock(r.clock),
			pipeline.WithClearOutput(r.cfg.ClearOutput))
		return err
	})
	if err != nil {
		return err
	}
	defer func() {
		closeErr := r.collector.Measure(timing.VariantTermination, p.Close)
		stats := p.Stats()
		r.res.Frames, r.res.Recomputes = stats.Frames, stats.Recomputes
		err = multierr.Append(err, closeErr)
	}()

	reqs := make([]pipeline.Request, len(r.steps))
	for i, step := range r.steps {
		reqs[i] = pipeline.Request{Seq: i, Params: step.Params, Size: r.size, Source: r.sources[step.Source]}
	}
	start := r.collector.Now()
	results, err := p.Run(ctx, reqs)
	if err != nil {
		return err
	}
	// Lanes overlap, so a frame costs the wall time over the frame count.
	if len(results) > 0 {
		per := r.collector.Now().Sub(start) / time.Duration(len(results))
		for range results {
			r.collector.Add(timing.Frame, start, start.Add(per))
		}
		last := results[len(results)-1]
		r.res.Final = last.Frame
		r.res.FinalParams = r.steps[last.Seq].Params
	}
	return nil
}
