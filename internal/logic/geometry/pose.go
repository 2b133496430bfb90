package geometry

import "github.com/golang/geo/r2"

// Unavailable is the sentinel reported by the position source when it has no fix.
const Unavailable = -1.0

// Pose is a snapshot of the robot position in course coordinates.
// Heading is in degrees, counter-clockwise from the +X axis, in [0, 360).
type Pose struct {
	X       float64
	Y       float64
	Heading float64
}

// UnavailablePose is the pose reported when the source has no fix.
var UnavailablePose = Pose{X: Unavailable, Y: Unavailable, Heading: Unavailable}

// HeadingValid reports whether the heading holds a real reading.
func (p Pose) HeadingValid() bool {
	return p.Heading >= 0
}

// Locked reports whether position and heading are all usable.
func (p Pose) Locked() bool {
	return p.X >= 0 && p.Y >= 0 && p.Heading >= 0
}

// Point returns the position as a planar point.
func (p Pose) Point() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

// Side identifies a wheel, a sensor, or a turn direction.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Left {
		return Right
	}
	return Left
}
