// Package parallel splits a one-dimensional range of rows or columns into
// contiguous bands and runs them on separate goroutines. Bands never
// overlap, so callers can write disjoint slices of a shared buffer without
// locks; the only synchronization is the join at the end.
package parallel

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Func processes the half-open range [lo, hi).
type Func func(lo, hi int)

// DefaultWorkers is the worker count used when a caller passes zero.
func DefaultWorkers() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// Plan returns the band boundaries Bands would use: len(result)-1 bands,
// each a multiple of grain long except possibly the last.
func Plan(n, grain, workers int) []int {
	if n <= 0 {
		return []int{0, 0}
	}
	if grain < 1 {
		grain = 1
	}
	if workers < 1 {
		workers = 1
	}
	band := (n + workers - 1) / workers
	band = ((band + grain - 1) / grain) * grain

	bounds := []int{0}
	for lo := 0; lo < n; lo += band {
		hi := lo + band
		if hi > n {
			hi = n
		}
		bounds = append(bounds, hi)
	}
	return bounds
}

// Bands runs fn over [0, n) split across up to workers goroutines and waits
// for all of them. With one worker, or a range no longer than one grain, fn
// runs on the calling goroutine. A panic inside fn is returned as an error.
func Bands(ctx context.Context, n, grain, workers int, fn Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if workers == 0 {
		workers = DefaultWorkers()
	}
	bounds := Plan(n, grain, workers)
	if len(bounds) <= 2 {
		return run(fn, bounds[0], bounds[len(bounds)-1])
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i+1 < len(bounds); i++ {
		lo, hi := bounds[i], bounds[i+1]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return run(fn, lo, hi)
		})
	}
	return g.Wait()
}

func run(fn Func, lo, hi int) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Errorf("parallel: panic in band [%d, %d): %v", lo, hi, p)
		}
	}()
	fn(lo, hi)
	return nil
}
