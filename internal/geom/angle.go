package geom

import "math"

const twoPi = 2 * math.Pi

// WrapAngle maps a into [0, 2π).
func WrapAngle(a float64) float64 {
	a = math.Mod(a, twoPi)
	if a < 0 {
		a += twoPi
	}
	// a tiny negative input rounds up to exactly 2π after the shift
	if a >= twoPi {
		a = 0
	}
	return a
}

// WrapSigned maps a into [-π, π).
func WrapSigned(a float64) float64 {
	a = WrapAngle(a + math.Pi)
	return a - math.Pi
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}
