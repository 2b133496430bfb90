package bumper

import (
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

// Bumpers reads the two front microswitches. The switches close to ground,
// so a LOW level means contact.
type Bumpers struct {
	gpio  gpio.Driver
	left  int
	right int
}

// New configures both pins as pulled-up inputs.
func New(g gpio.Driver, leftPin, rightPin int) (*Bumpers, error) {
	if err := g.SetupPin(leftPin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	if err := g.SetupPin(rightPin, gpio.InputPullUp); err != nil {
		return nil, err
	}
	return &Bumpers{gpio: g, left: leftPin, right: rightPin}, nil
}

// Contacts reports whether each bumper is pressed.
func (b *Bumpers) Contacts() (left, right bool, err error) {
	l, err := b.gpio.ReadPin(b.left)
	if err != nil {
		return false, false, err
	}
	r, err := b.gpio.ReadPin(b.right)
	if err != nil {
		return false, false, err
	}
	return l == gpio.Low, r == gpio.Low, nil
}
