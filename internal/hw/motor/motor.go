package motor

import (
	"math"
	"sync"

	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

// DutySteps is the PWM resolution: one step per percent.
const DutySteps = 100

// Config holds the hardware configuration for one H-bridge channel.
type Config struct {
	PWMPin   int
	DirPin   int
	Inverted bool // motor mounted mirrored: forward drives the direction pin LOW
	FreqHz   int
}

// Motor drives one wheel with a signed percent command.
// Positive percent moves the robot forward.
type Motor struct {
	gpio gpio.Driver
	cfg  Config

	mu      sync.Mutex
	percent float64
}

// NewMotor configures the PWM and direction pins and leaves the motor stopped.
func NewMotor(g gpio.Driver, cfg Config) (*Motor, error) {
	if err := g.SetupPin(cfg.DirPin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.SetupPWM(cfg.PWMPin, cfg.FreqHz, DutySteps); err != nil {
		return nil, err
	}
	m := &Motor{gpio: g, cfg: cfg}
	if err := m.SetPercent(0); err != nil {
		return nil, err
	}
	return m, nil
}

// SetPercent commands the wheel. Values are clamped to [-100, 100].
func (m *Motor) SetPercent(percent float64) error {
	percent = math.Max(-100, math.Min(100, percent))

	m.mu.Lock()
	defer m.mu.Unlock()

	forward := percent >= 0
	if m.cfg.Inverted {
		forward = !forward
	}
	dir := gpio.Low
	if forward {
		dir = gpio.High
	}
	if err := m.gpio.WritePin(m.cfg.DirPin, dir); err != nil {
		return err
	}
	duty := uint32(math.Round(math.Abs(percent) * DutySteps / 100))
	if err := m.gpio.SetDuty(m.cfg.PWMPin, duty); err != nil {
		return err
	}
	debug.Trace("Motor pwm=%d: %.2f%%", m.cfg.PWMPin, percent)
	m.percent = percent
	return nil
}

// Percent returns the last commanded value.
func (m *Motor) Percent() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.percent
}

// Stop sets the duty to zero.
func (m *Motor) Stop() error {
	return m.SetPercent(0)
}
