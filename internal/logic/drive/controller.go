package drive

import (
	"fmt"
	"time"

	"go.uber.org/atomic"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// Direction is the sign of a straight drive.
type Direction int

const (
	Forward Direction = iota
	Backward
)

func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// ParseDirection maps "forward"/"backward" (empty = forward).
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	}
	return Forward, fmt.Errorf("unknown drive direction %q", s)
}

func (d Direction) sign() float64 {
	if d == Backward {
		return -1
	}
	return 1
}

// Controller runs the encoder-closed-loop motion primitives.
// It is the only writer of the motors; primitives never overlap.
type Controller struct {
	hw     Hardware
	counts *geometry.CountsCalculator
	busy   atomic.Bool

	tick         time.Duration
	safety       time.Duration
	gain         float64
	rightOffset  float64
	brakePercent float64
	brake        time.Duration
	wallBoost    float64
	wallCut      float64
	wallTimeout  time.Duration
}

// NewController creates a controller from configuration.
func NewController(hw Hardware, cfg *config.Config) *Controller {
	return &Controller{
		hw:           hw,
		counts:       geometry.NewCountsCalculator(cfg),
		tick:         cfg.Tick(),
		safety:       cfg.SafetyTimeout(),
		gain:         cfg.Drive.ProportionalGain,
		rightOffset:  cfg.Drive.RightOffsetPercent,
		brakePercent: cfg.Drive.BrakePercent,
		brake:        cfg.Brake(),
		wallBoost:    cfg.Wall.BoostPercent,
		wallCut:      cfg.Wall.CutPercent,
		wallTimeout:  cfg.WallTimeout(),
	}
}

// Counts returns the calibration used to convert targets to encoder counts.
func (c *Controller) Counts() *geometry.CountsCalculator {
	return c.counts
}

// Clock returns the clock pacing the control loops.
func (c *Controller) Clock() Clock {
	return c.hw.Clock
}

// Tick returns the control loop period.
func (c *Controller) Tick() time.Duration {
	return c.tick
}

// SafetyTimeout returns the universal primitive timeout (0 = none).
func (c *Controller) SafetyTimeout() time.Duration {
	return c.safety
}

// Busy reports whether a primitive currently owns the drive.
func (c *Controller) Busy() bool {
	return c.busy.Load()
}

// Contacts reads the bumpers outside of a session.
func (c *Controller) Contacts() (left, right bool, err error) {
	return c.hw.Bumpers.Contacts()
}

// timeoutOr returns t, or the safety timeout when t is unset.
func (c *Controller) timeoutOr(t time.Duration) time.Duration {
	if t > 0 {
		return t
	}
	return c.safety
}

// DriveDistance drives straight until the average encoder count reaches
// inches, or until timeout elapses (0 = safety timeout). The right wheel
// is corrected every tick to keep both wheels matched.
func (c *Controller) DriveDistance(power, inches float64, dir Direction, timeout time.Duration) (err error) {
	target := c.counts.CountsFromInches(inches)
	debug.Drive("drive "+dir.String(), power, inches)

	s, err := c.Begin("drive " + dir.String())
	if err != nil {
		return err
	}
	defer func() { err = s.End(err) }()

	timeout = c.timeoutOr(timeout)
	sign := dir.sign()
	base := sign * power
	if err = s.Set(base, base+sign*c.rightOffset); err != nil {
		return err
	}
	for s.Average() < target {
		if s.Expired(timeout) {
			debug.Live("Drive: timed out after %v at %.1f/%.1f counts", s.Elapsed(), s.Average(), target)
			break
		}
		s.Wait()
		if err = s.Set(base, sign*s.Correction(power)); err != nil {
			return err
		}
	}
	return c.brakePulse(s, sign)
}

// brakePulse briefly reverses both wheels to cancel momentum.
func (c *Controller) brakePulse(s *Session, sign float64) error {
	if c.brakePercent <= 0 || c.brake <= 0 {
		return nil
	}
	reverse := -sign * c.brakePercent
	if err := s.Set(reverse, reverse); err != nil {
		return err
	}
	c.hw.Clock.Sleep(c.brake)
	return nil
}

// Turn pivots in place until the average encoder count reaches degrees
// using the calibration of the turn direction. A negative angle turns
// the other way. No correction is applied while turning.
func (c *Controller) Turn(power, degrees float64, dir geometry.Side) (err error) {
	if degrees < 0 {
		degrees = -degrees
		dir = dir.Opposite()
	}
	target := c.counts.CountsFromDegrees(degrees, dir)
	debug.Drive("turn "+dir.String(), power, degrees)

	s, err := c.Begin("turn " + dir.String())
	if err != nil {
		return err
	}
	defer func() { err = s.End(err) }()

	left, right := -power, power
	if dir == geometry.Right {
		left, right = power, -power
	}
	if err = s.Set(left, right); err != nil {
		return err
	}
	for s.Average() < target {
		if s.Expired(c.safety) {
			debug.Live("Turn: timed out after %v", s.Elapsed())
			break
		}
		s.Wait()
	}
	return nil
}

// SquareUp returns the wheel commands that pivot the robot flat against
// a wall when only one bumper touches it: the touching side is cut and
// the other boosted. ok is false unless exactly one bumper is engaged.
func (c *Controller) SquareUp(power float64, left, right bool) (l, r float64, ok bool) {
	switch {
	case left && !right:
		return power - c.wallCut, power + c.wallBoost, true
	case right && !left:
		return power + c.wallBoost, power - c.wallCut, true
	}
	return 0, 0, false
}

// DriveToWall drives forward until both bumpers are engaged. With a single
// bumper engaged the robot pivots to square up. Both bumpers engaged at the
// start ends the primitive without moving.
func (c *Controller) DriveToWall(power float64) (err error) {
	debug.Drive("drive to wall", power, 0)

	s, err := c.Begin("drive to wall")
	if err != nil {
		return err
	}
	defer func() { err = s.End(err) }()

	timeout := c.timeoutOr(c.wallTimeout)
	for {
		left, right, cerr := s.Contacts()
		if cerr != nil {
			return cerr
		}
		if left && right {
			debug.Live("Wall: both bumpers engaged")
			return nil
		}
		if s.Expired(timeout) {
			debug.Live("Wall: timed out after %v", s.Elapsed())
			return nil
		}
		l, r, squaring := c.SquareUp(power, left, right)
		if !squaring {
			l, r = power, s.Correction(power)
		}
		if err = s.Set(l, r); err != nil {
			return err
		}
		s.Wait()
	}
}
