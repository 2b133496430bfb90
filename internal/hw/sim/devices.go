package sim

import (
	"math"

	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// Wheel is the simulated motor of one side.
type Wheel struct {
	w    *World
	side geometry.Side
}

// Motor returns the motor of one side.
func (w *World) Motor(side geometry.Side) *Wheel {
	return &Wheel{w: w, side: side}
}

// SetPercent commands the wheel.
func (m *Wheel) SetPercent(percent float64) error {
	m.w.setPercent(m.side, percent)
	return nil
}

// Percent returns the current command.
func (m *Wheel) Percent() float64 {
	return m.w.Percent(m.side)
}

// Encoder is the simulated encoder of one side.
type Encoder struct {
	w    *World
	side geometry.Side
}

// Encoder returns the encoder of one side.
func (w *World) Encoder(side geometry.Side) *Encoder {
	return &Encoder{w: w, side: side}
}

// Count returns the whole counts accumulated since the last reset.
func (e *Encoder) Count() int64 {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	return int64(math.Floor(e.w.counts[e.side]))
}

// Reset zeroes the accumulator.
func (e *Encoder) Reset() {
	e.w.mu.Lock()
	defer e.w.mu.Unlock()
	e.w.counts[e.side] = 0
}

// Bumpers is the simulated pair of front contact switches.
type Bumpers struct {
	w *World
}

// Bumpers returns the contact switches.
func (w *World) Bumpers() *Bumpers {
	return &Bumpers{w: w}
}

// Contacts reports whether each bumper touches a wall.
func (b *Bumpers) Contacts() (left, right bool, err error) {
	b.w.mu.Lock()
	defer b.w.mu.Unlock()
	left, right = b.w.contactsLocked()
	return left, right, nil
}

// LineSensors is the simulated reflectance array.
type LineSensors struct {
	w *World
}

// LineSensors returns the line sensor array.
func (w *World) LineSensors() *LineSensors {
	return &LineSensors{w: w}
}

// Read samples the floor under the three sensors.
func (s *LineSensors) Read() (left, mid, right float64, err error) {
	w := s.w
	w.mu.Lock()
	defer w.mu.Unlock()
	left = w.readingAt(w.toWorld(w.cfg.SensorForward, w.cfg.SensorSpread))
	mid = w.readingAt(w.toWorld(w.cfg.SensorForward, 0))
	right = w.readingAt(w.toWorld(w.cfg.SensorForward, -w.cfg.SensorSpread))
	return left, mid, right, nil
}

// PositionSource is the simulated course positioning system.
type PositionSource struct {
	w *World
}

// Position returns the position source.
func (w *World) Position() *PositionSource {
	return &PositionSource{w: w}
}

// Pose returns the current fix or geometry.UnavailablePose during a dropout.
func (p *PositionSource) Pose() geometry.Pose {
	w := p.w
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.positionOff {
		return geometry.UnavailablePose
	}
	if w.dropouts > 0 {
		w.dropouts--
		return geometry.UnavailablePose
	}
	return geometry.Pose{X: w.x, Y: w.y, Heading: geometry.WrapDegrees(w.heading)}
}
