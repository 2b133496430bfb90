package linefollow

import (
	"errors"
	"time"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/drive"
)

// ErrUnbounded is returned when a follow has no way to end.
var ErrUnbounded = errors.New("linefollow: no distance, timeout or wall condition")

// Sensors reads the three reflectance sensors.
type Sensors interface {
	Read() (left, mid, right float64, err error)
}

// Options bound one line-follow run. At least one end condition is required
// unless a safety timeout is configured.
type Options struct {
	Speed   float64
	Inches  float64       // encoder distance budget. 0 = none
	Timeout time.Duration // 0 = none

	// UntilWall ends the run when both bumpers are engaged.
	UntilWall bool
	// StopOnContactLoss ends the run once contact with a wall, made earlier, is lost.
	// It needs another bound since a run may never touch a wall.
	StopOnContactLoss bool
	// HoldWall steers back into square contact when only one bumper stays
	// engaged after contact was made. It takes precedence over the line.
	HoldWall bool
}

// Follower runs the line-follow loop on the drive.
type Follower struct {
	drive      *drive.Controller
	sensors    Sensors
	classifier Classifier
	steering   Steering
}

// New creates a follower from configuration.
func New(d *drive.Controller, s Sensors, cfg *config.Config) (*Follower, error) {
	pol, err := ParsePolarity(cfg.Line.Polarity)
	if err != nil {
		return nil, err
	}
	policy, err := ParseOffLinePolicy(cfg.Line.OffLinePolicy)
	if err != nil {
		return nil, err
	}
	return &Follower{
		drive:      d,
		sensors:    s,
		classifier: Classifier{Threshold: cfg.Line.Threshold, Polarity: pol},
		steering: Steering{
			Drift:    cfg.Line.DriftFraction,
			FarDrift: cfg.Line.FarDriftFraction,
			OffLine:  policy,
		},
	}, nil
}

// Classify reads the sensors once.
func (f *Follower) Classify() (State, error) {
	l, m, r, err := f.sensors.Read()
	if err != nil {
		return OffLine, err
	}
	return f.classifier.Classify(l, m, r), nil
}

// Follow steers along the line each tick until an end condition is met.
func (f *Follower) Follow(opts Options) (err error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = f.drive.SafetyTimeout()
	}
	// Contact loss only ends a run that touched a wall, so it bounds nothing alone.
	if opts.Inches <= 0 && timeout <= 0 && !opts.UntilWall {
		return ErrUnbounded
	}
	target := f.drive.Counts().CountsFromInches(opts.Inches)
	debug.Drive("follow line", opts.Speed, opts.Inches)

	s, err := f.drive.Begin("follow line")
	if err != nil {
		return err
	}
	defer func() { err = s.End(err) }()

	last := State(-1)
	touched := false
	for {
		if opts.Inches > 0 && s.Average() >= target {
			debug.Live("Line: distance reached")
			return nil
		}
		if s.Expired(timeout) {
			debug.Live("Line: timed out after %v", s.Elapsed())
			return nil
		}

		cl, cr, err := s.Contacts()
		if err != nil {
			return err
		}
		if opts.UntilWall && cl && cr {
			debug.Live("Line: wall reached")
			return nil
		}
		if cl || cr {
			touched = true
		} else if touched && opts.StopOnContactLoss {
			debug.Live("Line: contact lost")
			return nil
		}

		left, right, hold := 0.0, 0.0, false
		if opts.HoldWall && touched {
			left, right, hold = f.drive.SquareUp(opts.Speed, cl, cr)
		}
		if !hold {
			l, m, r, err := f.sensors.Read()
			if err != nil {
				return err
			}
			state := f.classifier.Classify(l, m, r)
			left, right = f.steering.Command(state, opts.Speed)
			if state != last {
				debug.LineState(state.String(), left, right)
				last = state
			}
		}
		if err := s.Set(left, right); err != nil {
			return err
		}
		s.Wait()
	}
}
