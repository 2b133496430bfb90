package navigate

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang/geo/r2"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/drive"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
	"github.com/cjeanneret/CourseNav/internal/logic/heading"
)

// ErrNoPositionLock is returned when no valid fix arrives within the lock timeout.
var ErrNoPositionLock = errors.New("navigate: no position lock")

// maxNudges bounds the fine alignment of one axis.
const maxNudges = 40

// Strategy selects how MoveTo reaches a target.
type Strategy int

const (
	// Axis aligns X then Y (or Y then X) along cardinal headings.
	Axis Strategy = iota
	// Forward faces the target bearing and drives straight to it.
	Forward
	// Backward faces away from the target and reverses to it.
	Backward
)

func (s Strategy) String() string {
	switch s {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	}
	return "axis"
}

// ParseStrategy maps a mission or config value. "direct" is an alias of forward.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "axis":
		return Axis, nil
	case "forward", "direct":
		return Forward, nil
	case "backward":
		return Backward, nil
	}
	return Axis, fmt.Errorf("unknown navigation strategy %q", s)
}

// Driver is the subset of the drive controller the navigator uses.
type Driver interface {
	DriveDistance(power, inches float64, dir drive.Direction, timeout time.Duration) error
	Contacts() (left, right bool, err error)
}

// Facer turns the robot to an absolute heading.
type Facer interface {
	Face(target float64) error
}

// Navigator moves the robot to absolute course coordinates.
type Navigator struct {
	drive Driver
	facer Facer
	src   heading.Source
	clk   drive.Clock
	table geometry.BearingTable
	deflt Strategy

	tolerance   float64
	nudgeInches float64
	nudgePower  float64
	drivePower  float64
	lockTimeout time.Duration
	lockPoll    time.Duration
}

// New creates a navigator from configuration.
func New(d Driver, f Facer, src heading.Source, clk drive.Clock, cfg *config.Config) (*Navigator, error) {
	table, err := geometry.ParseBearingTable(cfg.Navigator.BearingTable)
	if err != nil {
		return nil, err
	}
	strategy, err := ParseStrategy(cfg.Navigator.Strategy)
	if err != nil {
		return nil, err
	}
	return &Navigator{
		drive:       d,
		facer:       f,
		src:         src,
		clk:         clk,
		table:       table,
		deflt:       strategy,
		tolerance:   cfg.Navigator.AxisTolerance,
		nudgeInches: cfg.Navigator.NudgeInches,
		nudgePower:  cfg.Navigator.NudgePower,
		drivePower:  cfg.Navigator.DrivePower,
		lockTimeout: cfg.LockTimeout(),
		lockPoll:    cfg.LockPoll(),
	}, nil
}

// WaitForLock blocks until the source reports a complete fix. With a lock
// timeout configured it gives up with ErrNoPositionLock.
func (n *Navigator) WaitForLock() (geometry.Pose, error) {
	start := n.clk.Now()
	for {
		p := n.src.Pose()
		if p.Locked() {
			return p, nil
		}
		if n.lockTimeout > 0 && n.clk.Now().Sub(start) >= n.lockTimeout {
			return p, ErrNoPositionLock
		}
		n.clk.Sleep(n.lockPoll)
	}
}

// MoveTo reaches (x, y) with the configured default strategy.
func (n *Navigator) MoveTo(x, y float64) error {
	return n.MoveWith(n.deflt, x, y)
}

// MoveWith reaches (x, y) with an explicit strategy.
func (n *Navigator) MoveWith(s Strategy, x, y float64) error {
	switch s {
	case Forward:
		return n.MoveToForwards(x, y)
	case Backward:
		return n.MoveToBackwards(x, y)
	}
	return n.MoveToAxis(x, y)
}

// Bearing returns the heading from the current fix toward (x, y).
func (n *Navigator) Bearing(x, y float64) (float64, error) {
	p, err := n.WaitForLock()
	if err != nil {
		return 0, err
	}
	return geometry.LocationDegree(x-p.X, y-p.Y, n.table), nil
}

// FaceLocation turns to face (x, y).
func (n *Navigator) FaceLocation(x, y float64) error {
	bearing, err := n.Bearing(x, y)
	if err != nil {
		return err
	}
	return n.facer.Face(bearing)
}

// MoveToForwards faces the target and drives the straight-line distance once.
func (n *Navigator) MoveToForwards(x, y float64) error {
	return n.direct(x, y, drive.Forward)
}

// MoveToBackwards faces away from the target and reverses the straight-line distance.
func (n *Navigator) MoveToBackwards(x, y float64) error {
	return n.direct(x, y, drive.Backward)
}

func (n *Navigator) direct(x, y float64, dir drive.Direction) error {
	target := r2.Point{X: x, Y: y}
	p, err := n.WaitForLock()
	if err != nil {
		return err
	}
	if n.arrived(p, target) {
		debug.Live("Navigate: already at (%.1f, %.1f)", x, y)
		return nil
	}

	bearing := geometry.LocationDegree(x-p.X, y-p.Y, n.table)
	if dir == drive.Backward {
		bearing = geometry.WrapDegrees(bearing - 180)
	}
	debug.Live("Navigate: %s to (%.1f, %.1f), bearing %.1f", dir, x, y, bearing)
	if err := n.facer.Face(bearing); err != nil {
		return err
	}

	if p, err = n.WaitForLock(); err != nil {
		return err
	}
	dist := geometry.Distance(p.Point(), target)
	if err := n.drive.DriveDistance(n.drivePower, dist, dir, 0); err != nil {
		return err
	}
	n.report()
	return nil
}

// MoveToAxis travels an L-shaped path along cardinal headings. The order of
// the legs depends on the quadrant of the displacement.
func (n *Navigator) MoveToAxis(x, y float64) error {
	p, err := n.WaitForLock()
	if err != nil {
		return err
	}
	target := r2.Point{X: x, Y: y}
	if n.arrived(p, target) {
		debug.Live("Navigate: already at (%.1f, %.1f)", x, y)
		return nil
	}
	dx, dy := x-p.X, y-p.Y
	debug.Live("Navigate: axis to (%.1f, %.1f), delta (%.1f, %.1f)", x, y, dx, dy)

	var legs []leg
	switch {
	case dx >= 0 && dy >= 0:
		legs = []leg{{xAxis, x, 0}, {yAxis, y, 90}}
	case dx <= 0 && dy >= 0:
		legs = []leg{{yAxis, y, 90}, {xAxis, x, 180}}
	case dx <= 0 && dy <= 0:
		legs = []leg{{yAxis, y, 270}, {xAxis, x, 180}}
	default:
		legs = []leg{{xAxis, x, 0}, {yAxis, y, 270}}
	}
	for _, l := range legs {
		if err := n.align(l); err != nil {
			return err
		}
	}
	n.report()
	return nil
}

type axis int

const (
	xAxis axis = iota
	yAxis
)

func (a axis) String() string {
	if a == yAxis {
		return "y"
	}
	return "x"
}

// leg aligns one coordinate while facing a cardinal heading.
type leg struct {
	axis   axis
	target float64
	facing float64
}

// along returns +1 when facing increases the coordinate, -1 otherwise.
func (l leg) along() float64 {
	if l.facing == 180 || l.facing == 270 {
		return -1
	}
	return 1
}

func (l leg) coord(p geometry.Pose) float64 {
	if l.axis == yAxis {
		return p.Y
	}
	return p.X
}

// align faces the leg heading, drives the remaining error once, then nudges
// forward or backward until the coordinate is within tolerance.
func (n *Navigator) align(l leg) error {
	p, err := n.WaitForLock()
	if err != nil {
		return err
	}
	if math.Abs(l.target-l.coord(p)) <= n.tolerance {
		return nil
	}
	if err := n.facer.Face(l.facing); err != nil {
		return err
	}

	for i := 0; i <= maxNudges; i++ {
		if p, err = n.WaitForLock(); err != nil {
			return err
		}
		e := (l.target - l.coord(p)) * l.along()
		if math.Abs(e) <= n.tolerance {
			debug.Verbose("Navigate: %s aligned at %.2f", l.axis, l.coord(p))
			return nil
		}
		dir := drive.Forward
		if e < 0 {
			dir = drive.Backward
		}
		if dir == drive.Forward {
			left, right, cerr := n.drive.Contacts()
			if cerr != nil {
				return cerr
			}
			if left && right {
				debug.Live("Navigate: against a wall at %s = %.2f", l.axis, l.coord(p))
				return nil
			}
		}
		power, inches := n.nudgePower, n.nudgeInches
		if i == 0 {
			power, inches = n.drivePower, math.Abs(e)
		}
		if err := n.drive.DriveDistance(power, inches, dir, 0); err != nil {
			return err
		}
	}
	debug.Warn("Navigate: %s not aligned after %d nudges", l.axis, maxNudges)
	return nil
}

func (n *Navigator) arrived(p geometry.Pose, target r2.Point) bool {
	return math.Abs(target.X-p.X) <= n.tolerance && math.Abs(target.Y-p.Y) <= n.tolerance
}

func (n *Navigator) report() {
	p := n.src.Pose()
	debug.Arrived(p.X, p.Y, p.Heading)
}
