package geometry

import "math"

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// Degrees converts radians to degrees.
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// AngleBetween returns the unsigned smaller angle between two headings, in [0, 180].
// It is acos(cos a·cos b + sin a·sin b), the angle between the two unit
// vectors. The dot product is folded to cos(a-b), which stays exact when
// a == b.
func AngleBetween(a, b float64) float64 {
	c := math.Cos(Radians(a - b))
	if c > 1 {
		c = 1
	} else if c < -1 {
		c = -1
	}
	return Degrees(math.Acos(c))
}

// WrapDegrees maps an angle into [0, 360).
func WrapDegrees(deg float64) float64 {
	r := math.Mod(deg, 360)
	if r < 0 {
		r += 360
	}
	if r >= 360 {
		r = 0
	}
	return r
}

// HeadingDelta returns target - current wrapped into [0, 360).
func HeadingDelta(target, current float64) float64 {
	return WrapDegrees(target - current)
}

// TurnDirection picks the side of the shorter arc for a wrapped delta.
// Headings grow counter-clockwise, so deltas up to 180 are reached turning left.
func TurnDirection(delta float64) Side {
	if delta > 180 {
		return Right
	}
	return Left
}
