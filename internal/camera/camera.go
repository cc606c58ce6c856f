// Package camera holds the virtual camera snapshot that drives one frame:
// yaw, pitch, roll and field of view in whole degrees, plus the rotation
// matrix derived from them.
package camera

import (
	"github.com/pkg/errors"

	"flatten360/internal/mathutil"
)

// Range limits for the camera parameters, in degrees.
const (
	MinYaw   = -180
	MaxYaw   = 180
	MinPitch = -90
	MaxPitch = 90
	MinRoll  = 0
	MaxRoll  = 360
	MinFOV   = 10
	MaxFOV   = 120

	// DefaultFOV matches the horizontal field of view used when none is given.
	DefaultFOV = 60
)

// Params is one immutable snapshot of the camera. Two snapshots are equal
// exactly when all four fields are equal, which is what the mapping cache
// keys on.
type Params struct {
	Yaw   int `json:"yaw" yaml:"yaw"`
	Pitch int `json:"pitch" yaml:"pitch"`
	Roll  int `json:"roll" yaml:"roll"`
	FOV   int `json:"fov" yaml:"fov"`
}

// Delta is the per-frame change applied in iteration mode.
type Delta struct {
	Yaw   int `json:"delta_yaw" yaml:"delta_yaw"`
	Pitch int `json:"delta_pitch" yaml:"delta_pitch"`
	Roll  int `json:"delta_roll" yaml:"delta_roll"`
}

// IsZero reports whether applying d leaves the camera unchanged.
func (d Delta) IsZero() bool {
	return d == Delta{}
}

// Normalize returns p with yaw wrapped into [-180, 180], roll wrapped into
// [0, 360), and pitch and fov clamped to their ranges. Yaw inside the range
// is left alone, so both -180 and 180 survive.
func (p Params) Normalize() Params {
	if p.Yaw > MaxYaw || p.Yaw < MinYaw {
		p.Yaw = mod(p.Yaw+180, 360) - 180
	}
	p.Roll = mod(p.Roll, 360)
	p.Pitch = clamp(p.Pitch, MinPitch, MaxPitch)
	p.FOV = clamp(p.FOV, MinFOV, MaxFOV)
	return p
}

// Advance returns p moved by d. The result is not normalized.
func (p Params) Advance(d Delta) Params {
	p.Yaw += d.Yaw
	p.Pitch += d.Pitch
	p.Roll += d.Roll
	return p
}

// Validate checks p against the ranges accepted from a user. Unlike
// Normalize it rejects rather than repairs.
func (p Params) Validate() error {
	if p.Yaw < MinYaw || p.Yaw > MaxYaw {
		return errors.Errorf("camera: illegal yaw %d, want [%d, %d]", p.Yaw, MinYaw, MaxYaw)
	}
	if p.Pitch < MinPitch || p.Pitch > MaxPitch {
		return errors.Errorf("camera: illegal pitch %d, want [%d, %d]", p.Pitch, MinPitch, MaxPitch)
	}
	if p.Roll < MinRoll || p.Roll > MaxRoll {
		return errors.Errorf("camera: illegal roll %d, want [%d, %d]", p.Roll, MinRoll, MaxRoll)
	}
	if p.FOV < MinFOV || p.FOV > MaxFOV {
		return errors.Errorf("camera: illegal fov %d, want [%d, %d]", p.FOV, MinFOV, MaxFOV)
	}
	return nil
}

// Validate checks the per-frame deltas.
func (d Delta) Validate() error {
	if d.Yaw < -360 || d.Yaw > 360 {
		return errors.Errorf("camera: illegal delta yaw %d", d.Yaw)
	}
	if d.Pitch < -90 || d.Pitch > 90 {
		return errors.Errorf("camera: illegal delta pitch %d", d.Pitch)
	}
	if d.Roll < -360 || d.Roll > 360 {
		return errors.Errorf("camera: illegal delta roll %d", d.Roll)
	}
	return nil
}

// RotationMatrix builds R = Rz·Rx·Ry for the snapshot. Each factor rotates
// about an axis already carried by the previous factors: yaw about y, pitch
// about Ry·x, roll about Rx·Ry·z.
func (p Params) RotationMatrix() mathutil.Mat3 {
	yaw := mathutil.Deg2Rad(float64(p.Yaw))
	pitch := mathutil.Deg2Rad(float64(p.Pitch))
	roll := mathutil.Deg2Rad(float64(p.Roll))

	ry := mathutil.AxisAngle(mathutil.AxisY, yaw)
	rx := mathutil.AxisAngle(ry.MulVec3(mathutil.AxisX), pitch)
	rz := mathutil.AxisAngle(rx.MulVec3(ry.MulVec3(mathutil.AxisZ)), roll)

	return mathutil.Mat3Mul(mathutil.Mat3Mul(rz, rx), ry)
}

func mod(a, n int) int {
	a %= n
	if a < 0 {
		a += n
	}
	return a
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
