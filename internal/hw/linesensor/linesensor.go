package linesensor

import (
	"fmt"

	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

// Array reads the three forward reflectance sensors through the ADC.
type Array struct {
	gpio  gpio.Driver
	left  int
	mid   int
	right int
}

// New binds the sensors to their ADC channels.
func New(g gpio.Driver, leftChan, midChan, rightChan int) *Array {
	return &Array{gpio: g, left: leftChan, mid: midChan, right: rightChan}
}

// Read samples the three sensors, in volts.
func (a *Array) Read() (left, mid, right float64, err error) {
	if left, err = a.gpio.ReadADC(a.left); err != nil {
		return 0, 0, 0, fmt.Errorf("left line sensor: %w", err)
	}
	if mid, err = a.gpio.ReadADC(a.mid); err != nil {
		return 0, 0, 0, fmt.Errorf("mid line sensor: %w", err)
	}
	if right, err = a.gpio.ReadADC(a.right); err != nil {
		return 0, 0, 0, fmt.Errorf("right line sensor: %w", err)
	}
	debug.Trace("Line sensors: %.2f %.2f %.2f", left, mid, right)
	return left, mid, right, nil
}
