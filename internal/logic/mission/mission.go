package mission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/drive"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
	"github.com/cjeanneret/CourseNav/internal/logic/linefollow"
	"github.com/cjeanneret/CourseNav/internal/logic/navigate"
)

var (
	// ErrUnknownMission is returned by Run for a name missing from the config.
	ErrUnknownMission = errors.New("unknown mission")
	// ErrNoArm is returned by an arm step when no arm is fitted.
	ErrNoArm = errors.New("no arm configured")
)

const (
	armStep       = 15 * time.Millisecond
	wigglePower   = 15
	wiggleDegrees = 1
	wiggleCycles  = 3
)

// Driver runs the encoder-based motion primitives.
type Driver interface {
	DriveDistance(power, inches float64, dir drive.Direction, timeout time.Duration) error
	Turn(power, degrees float64, dir geometry.Side) error
	DriveToWall(power float64) error
}

// Facer turns to an absolute heading.
type Facer interface {
	FaceHeading(target float64) error
}

// Mover drives to absolute course coordinates.
type Mover interface {
	MoveWith(s navigate.Strategy, x, y float64) error
}

// Follower runs the line-follow loop.
type Follower interface {
	Follow(opts linefollow.Options) error
}

// Arm moves the load arm.
type Arm interface {
	Sweep(deg float64, step time.Duration) error
}

// Parts are the collaborators a mission drives. Arm may be nil.
type Parts struct {
	Drive  Driver
	Facer  Facer
	Mover  Mover
	Line   Follower
	Arm    Arm
	Clock  drive.Clock
	Config *config.Config
}

// Sequence runs named missions, one step after the other.
type Sequence struct {
	Parts
}

func NewSequence(p Parts) *Sequence {
	return &Sequence{Parts: p}
}

// Run executes the mission called name.
func (s *Sequence) Run(ctx context.Context, name string) error {
	steps, ok := s.Config.Missions[name]
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownMission, name)
	}
	debug.Section("Mission " + name)
	return s.RunSteps(ctx, steps)
}

// RunSteps executes steps in order, checking ctx before each one.
// A primitive already running is never interrupted.
func (s *Sequence) RunSteps(ctx context.Context, steps []config.StepConfig) error {
	for i, step := range steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		debug.Step(i+1, describe(step))
		if err := s.Step(step); err != nil {
			return fmt.Errorf("step %d (%s): %w", i+1, step.Op, err)
		}
	}
	debug.Live("Mission complete")
	return nil
}

// Step executes a single step.
func (s *Sequence) Step(step config.StepConfig) error {
	switch step.Op {
	case "drive":
		dir, err := drive.ParseDirection(step.Direction)
		if err != nil {
			return err
		}
		return s.Drive.DriveDistance(s.power(step), step.Inches, dir, ms(step.TimeoutMs))

	case "turn":
		side, err := parseSide(step.Direction)
		if err != nil {
			return err
		}
		power := step.Power
		if power == 0 {
			power = s.Config.Heading.CoarsePower
		}
		return s.Drive.Turn(power, step.Degrees, side)

	case "face":
		return s.Facer.FaceHeading(step.Heading)

	case "move_to":
		name := step.Strategy
		if name == "" {
			name = s.Config.Navigator.Strategy
		}
		strategy, err := navigate.ParseStrategy(name)
		if err != nil {
			return err
		}
		x, y := step.X, step.Y
		if step.At != "" {
			loc, ok := s.Config.Locations[step.At]
			if !ok {
				return fmt.Errorf("unknown location %q", step.At)
			}
			x, y = loc.X, loc.Y
		}
		return s.Mover.MoveWith(strategy, x, y)

	case "wall":
		return s.Drive.DriveToWall(s.power(step))

	case "follow_line":
		return s.Line.Follow(linefollow.Options{
			Speed:             s.power(step),
			Inches:            step.Inches,
			Timeout:           ms(step.TimeoutMs),
			UntilWall:         step.UntilWall,
			StopOnContactLoss: step.StopOnContactLoss,
			HoldWall:          step.HoldWall,
		})

	case "arm":
		if s.Arm == nil {
			return ErrNoArm
		}
		delay := ms(step.Ms)
		if delay == 0 {
			delay = armStep
		}
		return s.Arm.Sweep(step.Degrees, delay)

	case "pause":
		s.Clock.Sleep(ms(step.Ms))
		return nil

	case "wiggle":
		return s.wiggle(step)
	}
	return fmt.Errorf("unknown op %q", step.Op)
}

// wiggle alternates small right and left turns to seat a load.
func (s *Sequence) wiggle(step config.StepConfig) error {
	power, deg := step.Power, step.Degrees
	if power == 0 {
		power = wigglePower
	}
	if deg == 0 {
		deg = wiggleDegrees
	}
	for i := 0; i < wiggleCycles; i++ {
		if err := s.Drive.Turn(power, deg, geometry.Right); err != nil {
			return err
		}
		if err := s.Drive.Turn(power, deg, geometry.Left); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sequence) power(step config.StepConfig) float64 {
	if step.Power != 0 {
		return step.Power
	}
	return s.Config.Navigator.DrivePower
}

func parseSide(dir string) (geometry.Side, error) {
	switch dir {
	case "left":
		return geometry.Left, nil
	case "right":
		return geometry.Right, nil
	}
	return geometry.Left, fmt.Errorf("turn direction must be left or right, got %q", dir)
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func describe(step config.StepConfig) string {
	switch step.Op {
	case "drive":
		return fmt.Sprintf("drive %.1fin %s", step.Inches, step.Direction)
	case "turn":
		return fmt.Sprintf("turn %.1f deg %s", step.Degrees, step.Direction)
	case "face":
		return fmt.Sprintf("face %.1f deg", step.Heading)
	case "move_to":
		if step.At != "" {
			return "move to " + step.At
		}
		return fmt.Sprintf("move to (%.2f, %.2f)", step.X, step.Y)
	case "arm":
		return fmt.Sprintf("arm to %.0f deg", step.Degrees)
	case "pause":
		return fmt.Sprintf("pause %dms", step.Ms)
	}
	return step.Op
}
