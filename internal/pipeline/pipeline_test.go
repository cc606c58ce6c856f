package pipeline

import (
	"context"
	"image"
	"testing"

	"github.com/pkg/errors"
	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"flatten360/internal/camera"
	"flatten360/internal/raster"
	"flatten360/internal/timing"
	"flatten360/internal/variant"
)

func sources() [2]*raster.Frame {
	a := raster.NewFrame(360, 180)
	a.Fill(255, 0, 0)
	a.FillRect(image.Rect(175, 85, 185, 95), 0, 0, 255)
	b := raster.NewFrame(360, 180)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			b.Set(x, y, uint8(x), uint8(y), 128)
		}
	}
	return [2]*raster.Frame{a, b}
}

func requests(n int, size raster.Size) []Request {
	src := sources()
	reqs := make([]Request, n)
	params := camera.Params{FOV: 90}
	for i := range reqs {
		reqs[i] = Request{Seq: i, Params: params, Size: size, Source: src[i%2]}
		params = params.Advance(camera.Delta{Yaw: 7, Pitch: 3, Roll: 11}).Normalize()
	}
	return reqs
}

func TestLanesMatchSingleVariant(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	size := raster.Size{Width: 64, Height: 32}
	ctx := context.Background()
	collector := timing.NewCollector()

	p, err := New(ctx, spec, 3, size,
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithCollector(collector))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, p.Lanes(), test.ShouldEqual, 3)

	reqs := requests(10, size)
	results, err := p.Run(ctx, reqs)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(results), test.ShouldEqual, len(reqs))

	ref := variant.New(spec)
	test.That(t, ref.Start(size), test.ShouldBeNil)
	for i, res := range results {
		test.That(t, res.Seq, test.ShouldEqual, i)
		test.That(t, res.Lane, test.ShouldEqual, i%3)
		test.That(t, res.Err, test.ShouldBeNil)

		want, err := ref.Frame(ctx, reqs[i].Params, size, reqs[i].Source)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, res.Frame.Pix, test.ShouldResemble, want.Pix)
	}

	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, p.Stats().Frames, test.ShouldEqual, 10)
	test.That(t, p.Stats().Recomputes, test.ShouldEqual, 10)

	s, ok := collector.Summary(timing.FrameCalculations)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Count, test.ShouldEqual, 10)
}

func TestRepeatedParamsReuseTheTable(t *testing.T) {
	spec, _ := variant.Lookup("parallel-planar")
	size := raster.Size{Width: 32, Height: 16}
	src := sources()
	ctx := context.Background()

	p, err := New(ctx, spec, 2, size)
	test.That(t, err, test.ShouldBeNil)
	reqs := make([]Request, 6)
	for i := range reqs {
		reqs[i] = Request{Seq: i, Params: camera.Params{Yaw: 30, FOV: 60}, Size: size, Source: src[i%2]}
	}
	results, err := p.Run(ctx, reqs)
	test.That(t, err, test.ShouldBeNil)
	for i, res := range results {
		test.That(t, res.Recomputed, test.ShouldEqual, i < 2)
	}
	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, p.Stats().Recomputes, test.ShouldEqual, 2)
}

func TestFailedFrameIsReported(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	size := raster.Size{Width: 16, Height: 8}
	ctx := context.Background()
	p, err := New(ctx, spec, 2, size)
	test.That(t, err, test.ShouldBeNil)

	reqs := requests(4, size)
	reqs[2].Source = nil
	results, err := p.Run(ctx, reqs)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "frame 2")
	test.That(t, len(results), test.ShouldEqual, 4)
	test.That(t, results[2].Err, test.ShouldNotBeNil)
	test.That(t, results[2].Frame, test.ShouldBeNil)
	test.That(t, results[3].Frame, test.ShouldNotBeNil)
	test.That(t, p.Close(), test.ShouldBeNil)
}

func TestClose(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	size := raster.Size{Width: 16, Height: 8}
	p, err := New(context.Background(), spec, 2, size)
	test.That(t, err, test.ShouldBeNil)

	// Queue work nobody collects; Close must still return.
	for _, req := range requests(3, size) {
		test.That(t, p.Submit(req), test.ShouldBeNil)
	}
	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, errors.Is(p.Close(), ErrClosed), test.ShouldBeTrue)
	test.That(t, errors.Is(p.Submit(Request{}), ErrClosed), test.ShouldBeTrue)
}

func TestNewRejectsBadInput(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	_, err := New(context.Background(), spec, 0, raster.Size{Width: 16, Height: 8})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = New(context.Background(), spec, 2, raster.Size{})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestReorder(t *testing.T) {
	got := Reorder([]Result{{Seq: 2}, {Seq: 0}, {Seq: 1}})
	test.That(t, []int{got[0].Seq, got[1].Seq, got[2].Seq}, test.ShouldResemble, []int{0, 1, 2})
}
