package main

import (
	"context"
	"testing"

	"go.viam.com/test"

	"flatten360/internal/camera"
	"flatten360/internal/raster"
	"flatten360/internal/variant"
)

func TestCubeFace(t *testing.T) {
	test.That(t, cubeFace(1, 0.2, 0.3), test.ShouldEqual, 0)
	test.That(t, cubeFace(-1, 0.2, 0.3), test.ShouldEqual, 1)
	test.That(t, cubeFace(0.1, 0.9, 0.3), test.ShouldEqual, 2)
	test.That(t, cubeFace(0.1, -0.9, 0.3), test.ShouldEqual, 3)
	test.That(t, cubeFace(0.1, 0.2, 0.9), test.ShouldEqual, 4)
	test.That(t, cubeFace(0.1, 0.2, -0.9), test.ShouldEqual, 5)
}

func TestPatternCentreIsFrontFace(t *testing.T) {
	f := renderPattern(360, 180, 0, 0)
	r, g, b := f.At(179, 90)
	test.That(t, [3]uint8{r, g, b}, test.ShouldResemble, faceColors[4])
	r, g, b = f.At(0, 90)
	test.That(t, [3]uint8{r, g, b}, test.ShouldResemble, faceColors[5])
}

func TestShiftTurnsTheCube(t *testing.T) {
	base := renderPattern(360, 180, 0, 0)
	turned := renderPattern(360, 180, 0, 90)
	test.That(t, turned.Pix, test.ShouldNotResemble, base.Pix)
	// Turning by 90 degrees brings +X into the centre.
	r, g, b := turned.At(179, 90)
	test.That(t, [3]uint8{r, g, b}, test.ShouldResemble, faceColors[0])
}

func TestGridLines(t *testing.T) {
	f := renderPattern(360, 180, 30, 0)
	white := 0
	for i := 0; i < len(f.Pix); i += 3 {
		if f.Pix[i] == 255 && f.Pix[i+1] == 255 && f.Pix[i+2] == 255 {
			white++
		}
	}
	test.That(t, white, test.ShouldBeGreaterThan, 0)
	test.That(t, white, test.ShouldBeLessThan, 360*180/2)
}

// Looking straight ahead through the flattener shows the front face.
func TestFlattenedViewShowsFrontFace(t *testing.T) {
	src := renderPattern(720, 360, 0, 0)
	spec, _ := variant.Lookup("serial-row")
	v := variant.New(spec)
	size := raster.Size{Width: 64, Height: 64}
	test.That(t, v.Start(size), test.ShouldBeNil)
	out, err := v.Frame(context.Background(), camera.Params{FOV: 60}, size, src)
	test.That(t, err, test.ShouldBeNil)
	r, g, b := out.At(32, 32)
	test.That(t, [3]uint8{r, g, b}, test.ShouldResemble, faceColors[4])
}
