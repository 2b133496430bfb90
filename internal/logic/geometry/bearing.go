package geometry

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Quadrant classifies a displacement by the signs of its components.
type Quadrant int

const (
	Q1 Quadrant = iota + 1 // dx > 0, dy >= 0
	Q2                     // dx <= 0, dy >= 0
	Q3                     // dx <= 0, dy < 0
	Q4                     // dx > 0, dy < 0
)

// QuadrantOf returns the quadrant of the displacement (dx, dy).
func QuadrantOf(dx, dy float64) Quadrant {
	if dx > 0 {
		if dy >= 0 {
			return Q1
		}
		return Q4
	}
	if dy >= 0 {
		return Q2
	}
	return Q3
}

// BearingTable selects the quadrant offsets applied to the arctangent.
type BearingTable int

const (
	// StandardTable yields the geometric bearing: Q1 a, Q2 a+180, Q3 a+180, Q4 a+360.
	StandardTable BearingTable = iota
	// MirroredTable negates the arctangent in Q3 and Q4: Q3 180-a, Q4 360-a.
	MirroredTable
)

// ParseBearingTable maps a config value to a table.
func ParseBearingTable(s string) (BearingTable, error) {
	switch s {
	case "", "standard":
		return StandardTable, nil
	case "mirrored":
		return MirroredTable, nil
	}
	return StandardTable, fmt.Errorf("unknown bearing table %q", s)
}

// LocationDegree returns the heading, in [0, 360), that points along (dx, dy).
// A vertical displacement maps to 90 or 270 and a zero displacement to 0.
func LocationDegree(dx, dy float64, table BearingTable) float64 {
	if dx == 0 {
		switch {
		case dy > 0:
			return 90
		case dy < 0:
			return 270
		default:
			return 0
		}
	}
	a := Degrees(math.Atan(dy / dx))
	var deg float64
	switch QuadrantOf(dx, dy) {
	case Q1:
		deg = a
	case Q2:
		deg = a + 180
	case Q3:
		if table == MirroredTable {
			deg = -a + 180
		} else {
			deg = a + 180
		}
	default:
		if table == MirroredTable {
			deg = -a + 360
		} else {
			deg = a + 360
		}
	}
	return WrapDegrees(deg)
}

// Distance returns the straight-line distance between two points.
func Distance(from, to r2.Point) float64 {
	return to.Sub(from).Norm()
}
