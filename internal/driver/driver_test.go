package driver

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"

	"flatten360/internal/camera"
	"flatten360/internal/config"
	"flatten360/internal/raster"
	"flatten360/internal/resample"
	"flatten360/internal/timing"
	"flatten360/internal/variant"
)

func testSources() [2]*raster.Frame {
	a := raster.NewFrame(180, 90)
	a.Fill(200, 10, 10)
	b := raster.NewFrame(180, 90)
	b.Fill(10, 10, 200)
	return [2]*raster.Frame{a, b}
}

func testConfig(iterations, lanes int) config.Config {
	cfg := config.Config{
		Params:     camera.Params{Yaw: 10, FOV: 90},
		Delta:      camera.Delta{Yaw: 15, Roll: 5},
		DeltaImage: true,
		Width:      48,
		Height:     24,
		Iterations: iterations,
		Lanes:      lanes,
	}
	cfg.Resolve(config.Flags{})
	return cfg
}

func TestScheduleInteractive(t *testing.T) {
	cfg := config.Config{Params: camera.Params{Yaw: 190, Pitch: 100, FOV: 200}, Delta: camera.Delta{Yaw: 5}}
	steps := Schedule(cfg)
	test.That(t, steps, test.ShouldResemble, []Step{{Params: camera.Params{Yaw: -170, Pitch: 90, FOV: 120}}})
}

func TestScheduleIterates(t *testing.T) {
	cfg := config.Config{
		Params:     camera.Params{Yaw: 170, Pitch: 80, Roll: 350, FOV: 60},
		Delta:      camera.Delta{Yaw: 10, Pitch: 5, Roll: 20},
		DeltaImage: true,
		Iterations: 4,
	}
	steps := Schedule(cfg)
	test.That(t, len(steps), test.ShouldEqual, 4)

	var yaws, pitches, rolls, srcs []int
	for _, s := range steps {
		yaws = append(yaws, s.Params.Yaw)
		pitches = append(pitches, s.Params.Pitch)
		rolls = append(rolls, s.Params.Roll)
		srcs = append(srcs, s.Source)
	}
	test.That(t, yaws, test.ShouldResemble, []int{170, 180, -170, -160})
	test.That(t, pitches, test.ShouldResemble, []int{80, 85, 90, 90})
	test.That(t, rolls, test.ShouldResemble, []int{350, 10, 30, 50})
	test.That(t, srcs, test.ShouldResemble, []int{0, 1, 0, 1})

	cfg.DeltaImage = false
	for _, s := range Schedule(cfg) {
		test.That(t, s.Source, test.ShouldEqual, 0)
	}
}

func TestRunSerial(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	opts := Options{
		Config: testConfig(5, 1),
		Specs:  []variant.Spec{spec},
		Logger: zaptest.NewLogger(t).Sugar(),
	}
	results, err := Run(context.Background(), opts, testSources())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(results), test.ShouldEqual, 1)

	res := results[0]
	test.That(t, res.Error, test.ShouldBeEmpty)
	test.That(t, res.Frames, test.ShouldEqual, 5)
	test.That(t, res.Recomputes, test.ShouldEqual, 5)
	test.That(t, res.Layout, test.ShouldEqual, "row-major")
	test.That(t, res.FinalParams.Yaw, test.ShouldEqual, 70)
	test.That(t, res.Final.Size(), test.ShouldResemble, raster.Size{Width: 48, Height: 24})

	// Five frames starting on source 0 end on source 0.
	r, _, b := res.Final.At(24, 12)
	test.That(t, r, test.ShouldEqual, 200)
	test.That(t, b, test.ShouldEqual, 10)

	s, ok := res.Collector.Summary(timing.Frame)
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, s.Count, test.ShouldEqual, 5)
	_, ok = res.Collector.Summary(timing.VariantTermination)
	test.That(t, ok, test.ShouldBeTrue)
}

func TestLanesMatchSerial(t *testing.T) {
	spec, _ := variant.Lookup("parallel-planar")
	ctx := context.Background()

	serial, err := Run(ctx, Options{Config: testConfig(6, 1), Specs: []variant.Spec{spec}}, testSources())
	test.That(t, err, test.ShouldBeNil)
	laned, err := Run(ctx, Options{Config: testConfig(6, 3), Specs: []variant.Spec{spec}}, testSources())
	test.That(t, err, test.ShouldBeNil)

	test.That(t, laned[0].Lanes, test.ShouldEqual, 3)
	test.That(t, laned[0].Frames, test.ShouldEqual, 6)
	test.That(t, laned[0].FinalParams, test.ShouldResemble, serial[0].FinalParams)
	test.That(t, laned[0].Final.Pix, test.ShouldResemble, serial[0].Final.Pix)
	test.That(t, laned[0].FPS(), test.ShouldBeGreaterThanOrEqualTo, 0)
}

func TestFailingVariantDoesNotStopOthers(t *testing.T) {
	good, _ := variant.Lookup("serial-row")
	bad := variant.Spec{Name: "broken", Interpolation: resample.Interpolation(42), Workers: 1}

	results, err := Run(context.Background(), Options{
		Config: testConfig(2, 1),
		Specs:  []variant.Spec{bad, good},
	}, testSources())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "broken")
	test.That(t, len(results), test.ShouldEqual, 2)
	test.That(t, results[0].Error, test.ShouldNotBeEmpty)
	test.That(t, results[0].Final, test.ShouldBeNil)
	test.That(t, results[1].Error, test.ShouldBeEmpty)
	test.That(t, results[1].Final, test.ShouldNotBeNil)
}

func TestRunRejectsMismatchedSources(t *testing.T) {
	src := testSources()
	src[1] = raster.NewFrame(90, 45)
	_, err := Run(context.Background(), Options{Config: testConfig(1, 1), Specs: variant.Catalog()}, src)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "differ")
}

func TestSaveFramesAndSummary(t *testing.T) {
	spec, _ := variant.Lookup("serial-row")
	cfg := testConfig(2, 1)
	results, err := Run(context.Background(), Options{Config: cfg, Specs: []variant.Spec{spec}}, testSources())
	test.That(t, err, test.ShouldBeNil)

	dir := t.TempDir()
	paths, err := SaveFrames(dir, "png", 0, results)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, paths, test.ShouldResemble, []string{filepath.Join(dir, "serial-row.png")})

	_, err = SaveFrames(dir, "gif", 0, results)
	test.That(t, err, test.ShouldNotBeNil)

	manifest := filepath.Join(dir, "summary.json")
	test.That(t, WriteSummary(manifest, Summary{Config: cfg, Variants: results, Images: paths}), test.ShouldBeNil)

	data, err := os.ReadFile(manifest)
	test.That(t, err, test.ShouldBeNil)
	var decoded struct {
		Config struct {
			FOV int `json:"fov"`
		} `json:"config"`
		Variants []struct {
			Name   string `json:"name"`
			Frames int    `json:"frames"`
			Timing []struct {
				Kind string `json:"Kind"`
			} `json:"timing"`
		} `json:"variants"`
	}
	test.That(t, json.Unmarshal(data, &decoded), test.ShouldBeNil)
	test.That(t, decoded.Config.FOV, test.ShouldEqual, 90)
	test.That(t, decoded.Variants[0].Name, test.ShouldEqual, "serial-row")
	test.That(t, decoded.Variants[0].Frames, test.ShouldEqual, 2)

	kinds := map[string]bool{}
	for _, s := range decoded.Variants[0].Timing {
		kinds[s.Kind] = true
	}
	test.That(t, kinds["Frame"], test.ShouldBeTrue)

	recap := Recap(results)
	test.That(t, recap, test.ShouldContainSubstring, "Summary for serial-row")
}
