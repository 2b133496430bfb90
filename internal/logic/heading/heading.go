package heading

import (
	"time"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/drive"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// Source provides absolute pose readings. A negative heading means unavailable.
type Source interface {
	Pose() geometry.Pose
}

// Turner pivots the robot in place.
type Turner interface {
	Turn(power, degrees float64, dir geometry.Side) error
}

// Controller turns the robot to an absolute heading with small corrective
// pulses, re-reading the position source after each one.
type Controller struct {
	turner Turner
	src    Source
	clk    drive.Clock

	tolerance   float64
	pulseDeg    float64
	pulsePower  float64
	coarsePower float64
	settle      time.Duration
	timeout     time.Duration
	maxDropouts int
}

// NewController creates a heading controller from configuration.
func NewController(t Turner, src Source, clk drive.Clock, cfg *config.Config) *Controller {
	timeout := cfg.HeadingTimeout()
	if timeout <= 0 {
		timeout = cfg.SafetyTimeout()
	}
	return &Controller{
		turner:      t,
		src:         src,
		clk:         clk,
		tolerance:   cfg.Heading.ToleranceDeg,
		pulseDeg:    cfg.Heading.PulseDeg,
		pulsePower:  cfg.Heading.PulsePower,
		coarsePower: cfg.Heading.CoarsePower,
		settle:      cfg.Settle(),
		timeout:     timeout,
		maxDropouts: cfg.Heading.MaxDropouts,
	}
}

// FaceHeading turns until the reported heading is within tolerance of target.
// It returns without moving when the heading is unavailable at the start,
// and gives up quietly on timeout or when the heading stays unavailable
// for too many consecutive reads.
func (c *Controller) FaceHeading(target float64) error {
	target = geometry.WrapDegrees(target)
	p := c.src.Pose()
	if !p.HeadingValid() {
		debug.Live("Heading: no fix, not turning to %.1f", target)
		return nil
	}
	debug.Drive("face", c.pulsePower, target)

	start := c.clk.Now()
	pulses := 0
	for {
		delta := geometry.HeadingDelta(target, p.Heading)
		if geometry.AngleBetween(0, delta) <= c.tolerance {
			debug.Live("Heading: %.2f reached (target %.2f) after %d pulses", p.Heading, target, pulses)
			return nil
		}
		if c.expired(start) {
			debug.Live("Heading: timed out at %.2f (target %.2f)", p.Heading, target)
			return nil
		}

		dir := geometry.TurnDirection(delta)
		debug.Verbose("Heading: at %.2f, delta %.2f, pulse %s", p.Heading, delta, dir)
		if err := c.turner.Turn(c.pulsePower, c.pulseDeg, dir); err != nil {
			return err
		}
		pulses++
		c.clk.Sleep(c.settle)

		var ok bool
		if p, ok = c.read(start); !ok {
			return nil
		}
	}
}

// read waits for a valid heading, tolerating up to maxDropouts bad reads.
func (c *Controller) read(start time.Time) (geometry.Pose, bool) {
	for dropouts := 0; ; dropouts++ {
		p := c.src.Pose()
		if p.HeadingValid() {
			return p, true
		}
		if dropouts >= c.maxDropouts {
			debug.Warn("Heading: fix lost for %d reads, giving up", dropouts+1)
			return p, false
		}
		if c.expired(start) {
			return p, false
		}
		c.clk.Sleep(c.settle)
	}
}

func (c *Controller) expired(start time.Time) bool {
	return c.timeout > 0 && c.clk.Now().Sub(start) >= c.timeout
}

// CoarseTurn turns by the encoders toward target through the shorter arc,
// using the current fix. It does nothing without a fix.
func (c *Controller) CoarseTurn(target float64) error {
	p := c.src.Pose()
	if !p.HeadingValid() {
		return nil
	}
	arc := geometry.AngleBetween(p.Heading, target)
	if arc <= c.tolerance {
		return nil
	}
	dir := geometry.TurnDirection(geometry.HeadingDelta(target, p.Heading))
	debug.Verbose("Heading: coarse %s turn of %.1f toward %.1f", dir, arc, target)
	return c.turner.Turn(c.coarsePower, arc, dir)
}

// Face turns coarsely toward target then refines with FaceHeading.
func (c *Controller) Face(target float64) error {
	if err := c.CoarseTurn(target); err != nil {
		return err
	}
	return c.FaceHeading(target)
}
