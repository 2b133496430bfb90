package drive

import (
	"errors"
	"time"

	"go.uber.org/multierr"

	"github.com/cjeanneret/CourseNav/internal/debug"
)

// ErrBusy is returned when a primitive starts while another owns the drive.
var ErrBusy = errors.New("drive: another primitive owns the actuators")

// Session is the exclusive hold one primitive has on the motors and encoders.
// It is obtained with Controller.Begin and must be released with End.
type Session struct {
	c     *Controller
	kind  string
	start time.Time
}

// Begin claims the drive, zeroes both encoders and starts the session clock.
func (c *Controller) Begin(kind string) (*Session, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	c.hw.LeftEncoder.Reset()
	c.hw.RightEncoder.Reset()
	debug.Verbose("Drive: %s started", kind)
	return &Session{c: c, kind: kind, start: c.hw.Clock.Now()}, nil
}

// End stops both wheels and releases the drive. The stop is attempted
// even when err is set; its failure is combined with err.
func (s *Session) End(err error) error {
	stopErr := multierr.Combine(
		s.c.hw.LeftMotor.SetPercent(0),
		s.c.hw.RightMotor.SetPercent(0),
	)
	s.c.busy.Store(false)
	l, r := s.Counts()
	debug.Verbose("Drive: %s done after %v (counts %d/%d)", s.kind, s.Elapsed(), l, r)
	return multierr.Append(err, stopErr)
}

// Set commands both wheels.
func (s *Session) Set(left, right float64) error {
	debug.Trace("Drive: set %.2f / %.2f", left, right)
	return multierr.Combine(
		s.c.hw.LeftMotor.SetPercent(left),
		s.c.hw.RightMotor.SetPercent(right),
	)
}

// Counts returns both encoder counts since Begin.
func (s *Session) Counts() (left, right int64) {
	return s.c.hw.LeftEncoder.Count(), s.c.hw.RightEncoder.Count()
}

// Average returns the mean of both encoder counts.
func (s *Session) Average() float64 {
	l, r := s.Counts()
	return float64(l+r) / 2
}

// Contacts reads the bumpers.
func (s *Session) Contacts() (left, right bool, err error) {
	return s.c.hw.Bumpers.Contacts()
}

// Elapsed returns the time since Begin.
func (s *Session) Elapsed() time.Duration {
	return s.c.hw.Clock.Now().Sub(s.start)
}

// Expired reports whether a non-zero timeout has elapsed.
func (s *Session) Expired(timeout time.Duration) bool {
	return timeout > 0 && s.Elapsed() >= timeout
}

// Wait sleeps one control tick.
func (s *Session) Wait() {
	s.c.hw.Clock.Sleep(s.c.tick)
}

// Correction returns the right wheel command that nulls the left/right
// count divergence around power.
func (s *Session) Correction(power float64) float64 {
	l, r := s.Counts()
	return s.c.gain*float64(l-r) + power
}
