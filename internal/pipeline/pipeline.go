// Package pipeline spreads whole frames over several independent lanes.
// Every lane owns its own Variant, so lanes never share a table or an output
// buffer. The dispatcher hands each request to one lane's queue in turn and
// all lanes report to a single completion channel.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"flatten360/internal/camera"
	"flatten360/internal/raster"
	"flatten360/internal/timing"
	"flatten360/internal/variant"
)

// ErrClosed is returned when submitting to a closed pipeline.
var ErrClosed = errors.New("pipeline: closed")

// Request asks for one frame.
type Request struct {
	Seq    int
	Params camera.Params
	Size   raster.Size
	Source *raster.Frame
}

// Result is one finished frame. Frame is a private copy.
type Result struct {
	Seq        int
	Lane       int
	Frame      *raster.Frame
	Recomputed bool
	Err        error
}

// Option configures a Pipeline.
type Option func(*options)

type options struct {
	logger      *zap.SugaredLogger
	collector   *timing.Collector
	clock       clock.Clock
	progress    time.Duration
	clearOutput bool
}

// WithLogger sets the logger shared by all lanes.
func WithLogger(logger *zap.SugaredLogger) Option {
	return func(o *options) { o.logger = logger }
}

// WithCollector records per-frame mapping and resample times.
func WithCollector(c *timing.Collector) Option {
	return func(o *options) { o.collector = c }
}

// WithClock sets the clock used for progress reports.
func WithClock(clk clock.Clock) Option {
	return func(o *options) { o.clock = clk }
}

// WithProgress logs throughput every interval while Run is busy.
func WithProgress(interval time.Duration) Option {
	return func(o *options) { o.progress = interval }
}

// WithClearOutput is passed through to every lane's Variant.
func WithClearOutput(clear bool) Option {
	return func(o *options) { o.clearOutput = clear }
}

type lane struct {
	id       int
	v        *variant.Variant
	requests chan Request
}

// Pipeline runs one variant spec on several lanes.
type Pipeline struct {
	opts  options
	lanes []*lane
	done  chan Result
	wg    sync.WaitGroup

	mu     sync.Mutex
	next   int
	closed bool

	processed atomic.Int64
	stats     variant.Stats
}

// New starts n lanes, each with its own Variant sized for size.
func New(ctx context.Context, spec variant.Spec, n int, size raster.Size, opts ...Option) (*Pipeline, error) {
	if n < 1 {
		return nil, errors.Errorf("pipeline: need at least one lane, got %d", n)
	}
	o := options{logger: zap.NewNop().Sugar(), clock: clock.New()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Pipeline{
		opts: o,
		done: make(chan Result, 2*n),
	}
	for i := 0; i < n; i++ {
		v := variant.New(spec,
			variant.WithLogger(o.logger.With("lane", i)),
			variant.WithClearOutput(o.clearOutput))
		if err := v.Start(size); err != nil {
			for _, l := range p.lanes {
				err = multierr.Append(err, l.v.Stop())
			}
			return nil, errors.Wrapf(err, "pipeline: start lane %d", i)
		}
		// Two slots per lane so the next frame is queued while one runs.
		p.lanes = append(p.lanes, &lane{id: i, v: v, requests: make(chan Request, 2)})
	}
	for _, l := range p.lanes {
		p.wg.Add(1)
		go func(l *lane) {
			defer p.wg.Done()
			for req := range l.requests {
				p.done <- p.process(ctx, l, req)
				p.processed.Add(1)
			}
		}(l)
	}
	o.logger.Debugw("pipeline started", "variant", spec.Name, "lanes", n)
	return p, nil
}

// Lanes returns the number of lanes.
func (p *Pipeline) Lanes() int {
	return len(p.lanes)
}

func (p *Pipeline) process(ctx context.Context, l *lane, req Request) Result {
	res := Result{Seq: req.Seq, Lane: l.id}
	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}
	if req.Source == nil {
		res.Err = errors.Errorf("pipeline: request %d has no source", req.Seq)
		return res
	}

	measure := func(kind timing.Kind, fn func() error) error {
		if p.opts.collector == nil {
			return fn()
		}
		return p.opts.collector.Measure(kind, fn)
	}

	res.Err = measure(timing.FrameCalculations, func() error {
		var err error
		_, res.Recomputed, err = l.v.ComputeMapping(ctx, req.Params, req.Size, req.Source.Size())
		return err
	})
	if res.Err != nil {
		return res
	}
	res.Err = measure(timing.ImageExtraction, func() error {
		out, err := l.v.Resample(ctx, req.Source)
		if err != nil {
			return err
		}
		res.Frame = out.Clone()
		return nil
	})
	return res
}

// Submit queues req on the next lane in round-robin order. It blocks while
// that lane's queue is full, so results must be drained concurrently.
func (p *Pipeline) Submit(req Request) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}
	l := p.lanes[p.next%len(p.lanes)]
	p.next++
	l.requests <- req
	return nil
}

// Results is the aggregated completion channel. It is closed by Close.
func (p *Pipeline) Results() <-chan Result {
	return p.done
}

// Run submits every request, waits for all of them and returns the results
// ordered by Seq. The returned error combines every per-frame failure.
func (p *Pipeline) Run(ctx context.Context, reqs []Request) ([]Result, error) {
	total := len(reqs)
	start := p.opts.clock.Now()
	before := p.processed.Load()

	stop := make(chan struct{})
	defer close(stop)
	if p.opts.progress > 0 {
		go func() {
			ticker := p.opts.clock.Ticker(p.opts.progress)
			defer ticker.Stop()
			for {
				select {
				case <-stop:
					return
				case <-ticker.C:
					n := p.processed.Load() - before
					if n > 0 {
						elapsed := p.opts.clock.Since(start).Seconds()
						p.opts.logger.Infow("progress", "done", n, "total", total, "fps", float64(n)/elapsed)
					}
				}
			}
		}()
	}

	submitErr := make(chan error, 1)
	go func() {
		for _, req := range reqs {
			if err := p.Submit(req); err != nil {
				submitErr <- err
				return
			}
		}
		submitErr <- nil
	}()

	var errs error
	results := make([]Result, 0, total)
	for len(results) < total {
		select {
		case res, ok := <-p.done:
			if !ok {
				return Reorder(results), multierr.Append(errs, ErrClosed)
			}
			if res.Err != nil {
				errs = multierr.Append(errs, errors.Wrapf(res.Err, "pipeline: frame %d on lane %d", res.Seq, res.Lane))
			}
			results = append(results, res)
		case err := <-submitErr:
			if err != nil {
				return Reorder(results), multierr.Append(errs, err)
			}
			submitErr = nil
		case <-ctx.Done():
			return Reorder(results), multierr.Append(errs, ctx.Err())
		}
	}
	return Reorder(results), errs
}

// Reorder sorts results by sequence number in place and returns them.
func Reorder(results []Result) []Result {
	sort.Slice(results, func(i, j int) bool { return results[i].Seq < results[j].Seq })
	return results
}

// Stats sums the lane counters. It is only meaningful after Close.
func (p *Pipeline) Stats() variant.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Close stops accepting requests, waits for the lanes to drain and stops
// every Variant. Results still buffered are discarded.
func (p *Pipeline) Close() error {
	// Drain first: a Submit blocked on a full lane holds the lock until that
	// lane can post its result.
	drained := make(chan struct{})
	go func() {
		for range p.done {
		}
		close(drained)
	}()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	p.closed = true
	for _, l := range p.lanes {
		close(l.requests)
	}
	p.mu.Unlock()

	p.wg.Wait()
	close(p.done)
	<-drained

	var err error
	var stats variant.Stats
	for _, l := range p.lanes {
		s := l.v.Stats()
		stats.Frames += s.Frames
		stats.Recomputes += s.Recomputes
		err = multierr.Append(err, l.v.Stop())
	}
	p.mu.Lock()
	p.stats = stats
	p.mu.Unlock()
	return err
}
