package sim

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r2"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// contactReach is how close a bumper must be to a wall to register.
const contactReach = 0.05

// Config describes the simulated robot and course.
type Config struct {
	CountsPerInch   float64
	CountsPerDegree float64
	MaxCountsPerSec float64    // wheel count rate at 100%
	Efficiency      [2]float64 // per side (geometry.Left, geometry.Right) multiplier on the count rate
	SubStep         time.Duration

	BumperForward float64 // bumper distance ahead of the axle centre
	BumperSpread  float64 // lateral offset of each bumper
	SensorForward float64 // line sensor distance ahead of the axle centre
	SensorSpread  float64 // lateral offset of the outer line sensors

	LineWidth float64
	OnLine    float64 // sensor reading over the line
	OffLine   float64 // sensor reading over the floor
}

// DefaultConfig mirrors the robot calibration from the application config.
func DefaultConfig(cfg *config.Config) Config {
	return Config{
		CountsPerInch:   cfg.Drive.CountsPerInch,
		CountsPerDegree: (cfg.Drive.LeftCountsPerDegree + cfg.Drive.RightCountsPerDegree) / 2,
		MaxCountsPerSec: 400,
		Efficiency:      [2]float64{1, 1},
		SubStep:         time.Millisecond,
		BumperForward:   4,
		BumperSpread:    3,
		SensorForward:   3,
		SensorSpread:    0.75,
		LineWidth:       1.0,
		OnLine:          1.0,
		OffLine:         3.2,
	}
}

// Wall is a half-plane obstacle: points p with (p - Point)·Normal >= 0 are solid.
type Wall struct {
	Point  r2.Point
	Normal r2.Point
}

// depth returns how far p sits inside the wall (negative when clear).
func (w Wall) depth(p r2.Point) float64 {
	return p.Sub(w.Point).Dot(w.Normal.Normalize())
}

// Segment is a straight stretch of line painted on the floor.
type Segment struct {
	A, B r2.Point
}

// distance returns the distance from p to the segment.
func (s Segment) distance(p r2.Point) float64 {
	ab := s.B.Sub(s.A)
	l2 := ab.Dot(ab)
	if l2 == 0 {
		return p.Sub(s.A).Norm()
	}
	t := math.Max(0, math.Min(1, p.Sub(s.A).Dot(ab)/l2))
	return p.Sub(s.A.Add(ab.Mul(t))).Norm()
}

// Command is one motor command as received by the simulated drive.
type Command struct {
	Side    geometry.Side
	Percent float64
}

// World is a differential-drive robot on a flat course.
// Headings are degrees counter-clockwise from +X.
type World struct {
	cfg Config

	mu       sync.Mutex
	x, y     float64
	heading  float64
	percent  [2]float64
	counts   [2]float64
	commands []Command
	walls    []Wall
	lines    []Segment
	elapsed  time.Duration

	forced      bool
	forcedL     bool
	forcedR     bool
	dropouts    int
	positionOff bool
}

// New creates a world with the robot at start.
func New(cfg Config, start geometry.Pose) *World {
	if cfg.SubStep <= 0 {
		cfg.SubStep = time.Millisecond
	}
	if cfg.Efficiency == [2]float64{} {
		cfg.Efficiency = [2]float64{1, 1}
	}
	return &World{
		cfg:     cfg,
		x:       start.X,
		y:       start.Y,
		heading: start.Heading,
	}
}

// AddWall places an obstacle.
func (w *World) AddWall(wall Wall) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.walls = append(w.walls, wall)
}

// AddLine paints a line segment.
func (w *World) AddLine(seg Segment) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, seg)
}

// SetPose teleports the robot.
func (w *World) SetPose(p geometry.Pose) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.x, w.y, w.heading = p.X, p.Y, p.Heading
}

// TruePose returns the exact simulated pose, heading wrapped into [0, 360).
func (w *World) TruePose() geometry.Pose {
	w.mu.Lock()
	defer w.mu.Unlock()
	return geometry.Pose{X: w.x, Y: w.y, Heading: geometry.WrapDegrees(w.heading)}
}

// Heading returns the unwrapped accumulated heading.
func (w *World) Heading() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.heading
}

// Elapsed returns the simulated time stepped so far.
func (w *World) Elapsed() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.elapsed
}

// Commands returns a copy of every motor command received.
func (w *World) Commands() []Command {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Command, len(w.commands))
	copy(out, w.commands)
	return out
}

// ClearCommands forgets the command history.
func (w *World) ClearCommands() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.commands = nil
}

// Percent returns the current command of one side.
func (w *World) Percent(side geometry.Side) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.percent[side]
}

// ForceContacts overrides the bumper readings until ReleaseContacts.
func (w *World) ForceContacts(left, right bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forced, w.forcedL, w.forcedR = true, left, right
}

// ReleaseContacts returns the bumpers to wall detection.
func (w *World) ReleaseContacts() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.forced = false
}

// DropPosition makes the next n position reads unavailable.
func (w *World) DropPosition(n int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.dropouts = n
}

// SetPositionAvailable turns the position fix on or off.
func (w *World) SetPositionAvailable(ok bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positionOff = !ok
}

func (w *World) setPercent(side geometry.Side, p float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.percent[side] = math.Max(-100, math.Min(100, p))
	w.commands = append(w.commands, Command{Side: side, Percent: p})
}

// Step advances the physics by d.
func (w *World) Step(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for d > 0 {
		dt := w.cfg.SubStep
		if dt > d {
			dt = d
		}
		w.step(dt.Seconds())
		w.elapsed += dt
		d -= dt
	}
}

func (w *World) step(dt float64) {
	var delta [2]float64
	for side := range delta {
		delta[side] = w.percent[side] / 100 * w.cfg.MaxCountsPerSec * w.cfg.Efficiency[side] * dt
	}
	// A wheel cannot push its side of the robot further into a wall.
	left, right := w.contactsLocked()
	if left && delta[geometry.Left] > 0 {
		delta[geometry.Left] = 0
	}
	if right && delta[geometry.Right] > 0 {
		delta[geometry.Right] = 0
	}

	for side := range delta {
		w.counts[side] += math.Abs(delta[side])
	}

	dl, dr := delta[geometry.Left], delta[geometry.Right]
	forward := (dl + dr) / 2 / w.cfg.CountsPerInch
	turn := (dr - dl) / 2 / w.cfg.CountsPerDegree

	mid := geometry.Radians(w.heading + turn/2)
	w.x += forward * math.Cos(mid)
	w.y += forward * math.Sin(mid)
	w.heading += turn
}

// toWorld converts a robot-frame offset (forward, left) into course coordinates.
func (w *World) toWorld(forward, left float64) r2.Point {
	h := geometry.Radians(w.heading)
	return r2.Point{
		X: w.x + forward*math.Cos(h) - left*math.Sin(h),
		Y: w.y + forward*math.Sin(h) + left*math.Cos(h),
	}
}

func (w *World) contactsLocked() (left, right bool) {
	if w.forced {
		return w.forcedL, w.forcedR
	}
	lp := w.toWorld(w.cfg.BumperForward, w.cfg.BumperSpread)
	rp := w.toWorld(w.cfg.BumperForward, -w.cfg.BumperSpread)
	for _, wall := range w.walls {
		if wall.depth(lp) >= -contactReach {
			left = true
		}
		if wall.depth(rp) >= -contactReach {
			right = true
		}
	}
	return left, right
}

func (w *World) readingAt(p r2.Point) float64 {
	for _, seg := range w.lines {
		if seg.distance(p) <= w.cfg.LineWidth/2 {
			return w.cfg.OnLine
		}
	}
	return w.cfg.OffLine
}
