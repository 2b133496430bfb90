package sim

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is a mock clock that advances the world physics on every Sleep,
// so a control loop paced by Sleep single-steps the simulation.
type Clock struct {
	*clock.Mock
	w *World
}

// NewClock returns a clock bound to w.
func NewClock(w *World) *Clock {
	return &Clock{Mock: clock.NewMock(), w: w}
}

// Sleep steps the world by d, then moves simulated time forward.
func (c *Clock) Sleep(d time.Duration) {
	if d <= 0 {
		return
	}
	c.w.Step(d)
	c.Mock.Add(d)
}
