package sim

import (
	"math"
	"testing"
	"time"

	"github.com/golang/geo/r2"

	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

func testConfig() Config {
	return Config{
		CountsPerInch:   33.74,
		CountsPerDegree: 1.99,
		MaxCountsPerSec: 400,
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

func TestWorld_StraightDrive(t *testing.T) {
	w := New(testConfig(), geometry.Pose{X: 10, Y: 10, Heading: 0})
	_ = w.Motor(geometry.Left).SetPercent(50)
	_ = w.Motor(geometry.Right).SetPercent(50)
	w.Step(time.Second)

	for _, side := range []geometry.Side{geometry.Left, geometry.Right} {
		if got := w.Encoder(side).Count(); got < 199 || got > 200 {
			t.Errorf("%v count = %d, want ~200", side, got)
		}
	}
	p := w.TruePose()
	wantX := 10 + 200/33.74
	if math.Abs(p.X-wantX) > 0.01 || math.Abs(p.Y-10) > 1e-9 || p.Heading != 0 {
		t.Errorf("pose = %+v, want x=%.3f y=10 heading=0", p, wantX)
	}
	if w.Elapsed() != time.Second {
		t.Errorf("Elapsed() = %v, want 1s", w.Elapsed())
	}
}

func TestWorld_PivotTurn(t *testing.T) {
	w := New(testConfig(), geometry.Pose{X: 10, Y: 10, Heading: 0})
	_ = w.Motor(geometry.Left).SetPercent(-50)
	_ = w.Motor(geometry.Right).SetPercent(50)
	w.Step(time.Second)

	p := w.TruePose()
	if math.Abs(p.X-10) > 1e-9 || math.Abs(p.Y-10) > 1e-9 {
		t.Errorf("pivot moved the robot: %+v", p)
	}
	if want := 200 / 1.99; math.Abs(p.Heading-want) > 0.01 {
		t.Errorf("heading = %v, want %v", p.Heading, want)
	}
	// Encoders count magnitude regardless of direction.
	if got := w.Encoder(geometry.Left).Count(); got < 199 {
		t.Errorf("left count = %d, want ~200", got)
	}
}

func TestWorld_EfficiencyCurvesPath(t *testing.T) {
	cfg := testConfig()
	cfg.Efficiency = [2]float64{1, 0.9}
	w := New(cfg, geometry.Pose{X: 10, Y: 10, Heading: 90})
	_ = w.Motor(geometry.Left).SetPercent(50)
	_ = w.Motor(geometry.Right).SetPercent(50)
	w.Step(time.Second)

	if w.Heading() >= 90 {
		t.Errorf("weaker right wheel should drift right, heading = %v", w.Heading())
	}
}

func TestWorld_WallStopsRobot(t *testing.T) {
	w := New(testConfig(), geometry.Pose{X: 0, Y: 0, Heading: 0})
	w.AddWall(Wall{Point: r2.Point{X: 10, Y: 0}, Normal: r2.Point{X: 1, Y: 0}})
	_ = w.Motor(geometry.Left).SetPercent(50)
	_ = w.Motor(geometry.Right).SetPercent(50)
	w.Step(5 * time.Second)

	l, r, _ := w.Bumpers().Contacts()
	if !l || !r {
		t.Fatalf("contacts = %v, %v, want both", l, r)
	}
	if p := w.TruePose(); p.X > 6.01 || p.X < 5.9 {
		t.Errorf("robot x = %v, want stopped near 6", p.X)
	}
}

func TestWorld_ForcedContacts(t *testing.T) {
	w := New(testConfig(), geometry.Pose{})
	w.ForceContacts(true, false)
	if l, r, _ := w.Bumpers().Contacts(); !l || r {
		t.Errorf("forced contacts = %v, %v", l, r)
	}
	w.ReleaseContacts()
	if l, r, _ := w.Bumpers().Contacts(); l || r {
		t.Errorf("released contacts = %v, %v", l, r)
	}
}

func TestWorld_LineSensors(t *testing.T) {
	w := New(testConfig(), geometry.Pose{X: 0, Y: 0, Heading: 0})
	// A line along y = 0 under the mid sensor.
	w.AddLine(Segment{A: r2.Point{X: -10, Y: 0}, B: r2.Point{X: 50, Y: 0}})

	l, m, r, err := w.LineSensors().Read()
	if err != nil {
		t.Fatal(err)
	}
	if l != 3.2 || m != 1.0 || r != 3.2 {
		t.Errorf("centred readings = %v %v %v", l, m, r)
	}

	// Shift the robot right so the left sensor also sees the line.
	w.SetPose(geometry.Pose{X: 0, Y: -0.4, Heading: 0})
	l, m, r, _ = w.LineSensors().Read()
	if l != 1.0 || m != 1.0 || r != 3.2 {
		t.Errorf("shifted readings = %v %v %v", l, m, r)
	}
}

func TestWorld_PositionDropout(t *testing.T) {
	w := New(testConfig(), geometry.Pose{X: 5, Y: 6, Heading: 370})
	src := w.Position()

	w.DropPosition(2)
	for i := 0; i < 2; i++ {
		if p := src.Pose(); p.HeadingValid() {
			t.Errorf("read %d during dropout = %+v", i, p)
		}
	}
	if p := src.Pose(); p != (geometry.Pose{X: 5, Y: 6, Heading: 10}) {
		t.Errorf("Pose() = %+v, want wrapped heading 10", p)
	}

	w.SetPositionAvailable(false)
	if src.Pose().Locked() {
		t.Error("position off should not be locked")
	}
}

func TestWorld_CommandsRecorded(t *testing.T) {
	w := New(testConfig(), geometry.Pose{})
	_ = w.Motor(geometry.Left).SetPercent(20)
	_ = w.Motor(geometry.Right).SetPercent(-150)
	got := w.Commands()
	if len(got) != 2 || got[0] != (Command{geometry.Left, 20}) || got[1] != (Command{geometry.Right, -150}) {
		t.Errorf("Commands() = %+v", got)
	}
	if w.Percent(geometry.Right) != -100 {
		t.Errorf("right percent = %v, want clamped -100", w.Percent(geometry.Right))
	}
	w.ClearCommands()
	if len(w.Commands()) != 0 {
		t.Error("ClearCommands left history")
	}
}

func TestClock_SleepStepsWorld(t *testing.T) {
	w := New(testConfig(), geometry.Pose{})
	clk := NewClock(w)
	start := clk.Now()
	_ = w.Motor(geometry.Left).SetPercent(100)
	_ = w.Motor(geometry.Right).SetPercent(100)

	clk.Sleep(100 * time.Millisecond)

	if got := clk.Now().Sub(start); got != 100*time.Millisecond {
		t.Errorf("clock advanced %v, want 100ms", got)
	}
	if got := w.Encoder(geometry.Left).Count(); got != 40 && got != 39 {
		t.Errorf("count after 100ms = %d, want ~40", got)
	}
}
