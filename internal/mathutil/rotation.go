package mathutil

import "math"

// AxisAngle returns the right-handed rotation of angle radians about axis
// (Rodrigues' formula). The axis is normalized first; a zero axis or zero
// angle yields the identity.
//
//	R = cosθ·I + (1-cosθ)·k·kᵀ + sinθ·[k]×
func AxisAngle(axis Vec3, angle float64) Mat3 {
	k := axis.Normalize()
	if angle == 0 || k == (Vec3{}) {
		return Mat3Identity()
	}
	c, s := math.Cos(angle), math.Sin(angle)
	t := 1 - c
	x, y, z := k[0], k[1], k[2]
	return Mat3{
		c + t*x*x, t*x*y - s*z, t*x*z + s*y,
		t*x*y + s*z, c + t*y*y, t*y*z - s*x,
		t*x*z - s*y, t*y*z + s*x, c + t*z*z,
	}
}

// Deg2Rad converts degrees to radians.
func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180
}
