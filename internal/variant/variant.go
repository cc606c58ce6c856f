// Package variant binds the projection model and the resampler into one
// strategy object with a small lifecycle. A Variant owns its sampling table
// and output buffer, decides when the table has to be regenerated and hands
// the output image back once per frame.
package variant

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"flatten360/internal/camera"
	"flatten360/internal/projection"
	"flatten360/internal/raster"
	"flatten360/internal/resample"
)

var (
	// ErrNotStarted is returned by every operation before Start.
	ErrNotStarted = errors.New("variant: not started")
	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("variant: already started")
	// ErrStopped is returned by every operation after Stop.
	ErrStopped = errors.New("variant: stopped")
	// ErrStale is returned by Resample when no table matches the current
	// parameters and source.
	ErrStale = errors.New("variant: sampling table is stale")
)

// State is the lifecycle position of a Variant.
type State int

const (
	Uninitialized State = iota
	// Ready means buffers are allocated but no table was computed yet.
	Ready
	Stale
	Fresh
	Stopped
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	case Stale:
		return "stale"
	case Fresh:
		return "fresh"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Variant.
type Option func(*Variant)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(v *Variant) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithClearOutput paints the output black before every resample, so pixels
// whose sample falls outside the source come out black instead of keeping
// the previous frame's value.
func WithClearOutput(clear bool) Option {
	return func(v *Variant) {
		v.clearOutput = clear
	}
}

// Stats counts the work a Variant has done since Start.
type Stats struct {
	Frames     int `json:"frames"`
	Recomputes int `json:"recomputes"`
}

// mappingKey is the snapshot compared to decide whether the table is reusable.
type mappingKey struct {
	params camera.Params
	out    raster.Size
	src    raster.Size
}

// Variant is one running strategy. It is not safe for concurrent use; run
// several Variants to use several lanes.
type Variant struct {
	spec        Spec
	logger      *zap.SugaredLogger
	clearOutput bool

	state  State
	size   raster.Size
	table  *projection.Table
	output *raster.Frame
	key    mappingKey
	stats  Stats
}

// New returns an uninitialized Variant for spec.
func New(spec Spec, opts ...Option) *Variant {
	v := &Variant{
		spec:   spec,
		logger: zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Spec returns the strategy this Variant runs.
func (v *Variant) Spec() Spec {
	return v.spec
}

// State returns the current lifecycle state.
func (v *Variant) State() State {
	return v.state
}

// Stats returns frame and recompute counters.
func (v *Variant) Stats() Stats {
	return v.stats
}

// Size returns the aligned output size, or the zero Size before Start.
func (v *Variant) Size() raster.Size {
	return v.size
}

// Start allocates the table and output buffer for the requested output size,
// rounded up to the tiling alignment.
func (v *Variant) Start(size raster.Size) error {
	switch v.state {
	case Uninitialized:
	case Stopped:
		return ErrStopped
	default:
		return ErrAlreadyStarted
	}
	if size.Empty() {
		return errors.Errorf("variant: %s: empty output size %dx%d", v.spec.Name, size.Width, size.Height)
	}
	v.allocate(projection.AlignSize(size))
	v.state = Ready
	v.logger.Debugw("variant started", "variant", v.spec.Name, "width", v.size.Width, "height", v.size.Height)
	return nil
}

func (v *Variant) allocate(size raster.Size) {
	v.size = size
	v.table = projection.NewTable(size.Width, size.Height, v.spec.Layout)
	v.output = raster.NewFrame(size.Width, size.Height)
}

func (v *Variant) checkRunning() error {
	switch v.state {
	case Uninitialized:
		return ErrNotStarted
	case Stopped:
		return ErrStopped
	}
	return nil
}

// ComputeMapping brings the sampling table in line with params, the output
// size and the source size. Parameters are normalized first. The table is
// regenerated only when one of those differs from the previous call; an
// output size change also reallocates the buffers. recomputed reports
// whether any work was done.
func (v *Variant) ComputeMapping(ctx context.Context, params camera.Params, size, src raster.Size) (table *projection.Table, recomputed bool, err error) {
	if err := v.checkRunning(); err != nil {
		return nil, false, err
	}
	if size.Empty() {
		return nil, false, errors.Errorf("variant: %s: empty output size %dx%d", v.spec.Name, size.Width, size.Height)
	}

	key := mappingKey{params: params.Normalize(), out: projection.AlignSize(size), src: src}
	if v.state == Fresh && key == v.key {
		return v.table, false, nil
	}

	if key.out != v.size {
		v.logger.Debugw("output size changed", "variant", v.spec.Name,
			"from", fmt.Sprintf("%dx%d", v.size.Width, v.size.Height),
			"to", fmt.Sprintf("%dx%d", key.out.Width, key.out.Height))
		v.allocate(key.out)
	}

	v.state = Stale
	if err := projection.Compute(ctx, v.table, key.params, key.src, v.spec.Workers); err != nil {
		return nil, false, errors.Wrapf(err, "variant: %s: compute mapping", v.spec.Name)
	}
	v.key = key
	v.state = Fresh
	v.stats.Recomputes++
	return v.table, true, nil
}

// Resample fills the output buffer from src through the current table. The
// returned frame is owned by the Variant and overwritten by the next call;
// clone it to keep it.
func (v *Variant) Resample(ctx context.Context, src *raster.Frame) (*raster.Frame, error) {
	if err := v.checkRunning(); err != nil {
		return nil, err
	}
	if v.state != Fresh {
		return nil, ErrStale
	}
	if src == nil {
		return nil, errors.Errorf("variant: %s: nil source", v.spec.Name)
	}
	if src.Size() != v.key.src {
		return nil, errors.Wrapf(ErrStale, "variant: %s: source is %dx%d, table built for %dx%d",
			v.spec.Name, src.Width, src.Height, v.key.src.Width, v.key.src.Height)
	}
	if v.clearOutput {
		v.output.Fill(0, 0, 0)
	}
	if err := resample.Resample(ctx, v.output, v.table, src, v.spec.Interpolation, v.spec.Workers); err != nil {
		return nil, errors.Wrapf(err, "variant: %s: resample", v.spec.Name)
	}
	v.stats.Frames++
	return v.output, nil
}

// Frame runs ComputeMapping followed by Resample.
func (v *Variant) Frame(ctx context.Context, params camera.Params, size raster.Size, src *raster.Frame) (*raster.Frame, error) {
	if src == nil {
		return nil, errors.Errorf("variant: %s: nil source", v.spec.Name)
	}
	if _, _, err := v.ComputeMapping(ctx, params, size, src.Size()); err != nil {
		return nil, err
	}
	return v.Resample(ctx, src)
}

// Stop releases the buffers. A stopped Variant cannot be restarted.
func (v *Variant) Stop() error {
	if err := v.checkRunning(); err != nil {
		return err
	}
	v.table = nil
	v.output = nil
	v.key = mappingKey{}
	v.state = Stopped
	v.logger.Debugw("variant stopped", "variant", v.spec.Name,
		"frames", v.stats.Frames, "recomputes", v.stats.Recomputes)
	return nil
}
