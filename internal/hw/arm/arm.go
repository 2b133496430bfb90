package arm

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

// Servo PWM frame: 50 Hz with one step per microsecond.
const (
	servoFreqHz = 50
	servoCycle  = 20000
)

// Config holds the servo pin and its pulse range.
type Config struct {
	Pin        int
	MinPulseUs int // pulse at 0 degrees
	MaxPulseUs int // pulse at 180 degrees
}

// Arm is a hobby servo driven by hardware PWM.
type Arm struct {
	gpio   gpio.Driver
	cfg    Config
	clk    clock.Clock
	degree float64
}

// New configures the servo pin. The arm stays unpowered until the first command.
func New(g gpio.Driver, cfg Config, clk clock.Clock) (*Arm, error) {
	if err := g.SetupPWM(cfg.Pin, servoFreqHz, servoCycle); err != nil {
		return nil, err
	}
	return &Arm{gpio: g, cfg: cfg, clk: clk}, nil
}

// SetDegree moves the servo to deg, clamped to [0, 180].
func (a *Arm) SetDegree(deg float64) error {
	deg = math.Max(0, math.Min(180, deg))
	span := float64(a.cfg.MaxPulseUs - a.cfg.MinPulseUs)
	pulse := uint32(float64(a.cfg.MinPulseUs) + deg/180*span)
	debug.Verbose("Arm: %.1f deg (pulse %dus)", deg, pulse)
	if err := a.gpio.SetDuty(a.cfg.Pin, pulse); err != nil {
		return err
	}
	a.degree = deg
	return nil
}

// Degree returns the last commanded angle.
func (a *Arm) Degree() float64 {
	return a.degree
}

// Sweep moves one degree per step until deg is reached, so the load does not swing.
func (a *Arm) Sweep(deg float64, step time.Duration) error {
	deg = math.Max(0, math.Min(180, deg))
	for a.degree != deg {
		next := a.degree + 1
		if deg < a.degree {
			next = a.degree - 1
		}
		if math.Abs(deg-a.degree) < 1 {
			next = deg
		}
		if err := a.SetDegree(next); err != nil {
			return err
		}
		a.clk.Sleep(step)
	}
	return nil
}

// Off stops the servo pulses.
func (a *Arm) Off() error {
	return a.gpio.SetDuty(a.cfg.Pin, 0)
}
