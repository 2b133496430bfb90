package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"go.uber.org/multierr"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/hw/arm"
	"github.com/cjeanneret/CourseNav/internal/hw/bumper"
	"github.com/cjeanneret/CourseNav/internal/hw/encoder"
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
	"github.com/cjeanneret/CourseNav/internal/hw/linesensor"
	"github.com/cjeanneret/CourseNav/internal/hw/motor"
	"github.com/cjeanneret/CourseNav/internal/hw/position"
	"github.com/cjeanneret/CourseNav/internal/hw/sim"
	"github.com/cjeanneret/CourseNav/internal/logic/drive"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
	"github.com/cjeanneret/CourseNav/internal/logic/heading"
	"github.com/cjeanneret/CourseNav/internal/logic/linefollow"
	"github.com/cjeanneret/CourseNav/internal/logic/mission"
	"github.com/cjeanneret/CourseNav/internal/logic/navigate"
	"github.com/cjeanneret/CourseNav/internal/web"
)

// Simulated arena, in inches. The robot starts at START facing +Y.
const (
	arenaWidth       = 36
	arenaLength      = 72
	simStartLocation = "START"
	simStartHeading  = 90
)

func main() {
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	missionName := flag.String("mission", "", "run the named mission and exit")
	forceSim := flag.Bool("sim", false, "use the simulated robot regardless of hardware.mock")
	list := flag.Bool("list", false, "list missions and locations, then exit")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	if *list {
		listCourse(os.Stdout, cfg)
		return
	}
	if *missionName == "" && webPort.port() == 0 {
		log.Fatal("nothing to do: pass -mission, -web or -list")
	}
	if *missionName != "" {
		if _, ok := cfg.Missions[*missionName]; !ok {
			log.Fatalf("unknown mission %q (try -list)", *missionName)
		}
	}

	debug.Init(cfg.Defaults.DebugLevel)
	defer debug.Sync()
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	simulated := *forceSim || cfg.Hardware.Mock
	r, err := newRobot(cfg, simulated)
	if err != nil {
		log.Fatalf("init hardware failed: %v", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Printf("closing hardware failed: %v", err)
		}
	}()

	seq, err := r.sequence(cfg)
	if err != nil {
		log.Fatalf("init navigation failed: %v", err)
	}

	if port := webPort.port(); port > 0 {
		broadcaster := web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))

		srv, err := web.NewServer(fmt.Sprintf(":%d", port), broadcaster, seq.Run, web.NewCourseInfo(cfg), r.poses)
		if err != nil {
			log.Fatalf("web server: %v", err)
		}
		if err := srv.Run(ctx); err != nil {
			log.Fatalf("web server: %v", err)
		}
		return
	}

	if err := seq.Run(ctx, *missionName); err != nil {
		log.Fatalf("mission %s failed: %v", *missionName, err)
	}
}

// robot bundles the hardware, real or simulated, behind the logic interfaces.
type robot struct {
	drive *drive.Controller
	clock drive.Clock
	poses web.PoseSource
	lines linefollow.Sensors
	arm   *arm.Arm

	closers []io.Closer
}

func (r *robot) Close() error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i].Close())
	}
	return err
}

// sequence wires the controllers into a mission sequence.
func (r *robot) sequence(cfg *config.Config) (*mission.Sequence, error) {
	h := heading.NewController(r.drive, r.poses, r.clock, cfg)
	nav, err := navigate.New(r.drive, h, r.poses, r.clock, cfg)
	if err != nil {
		return nil, err
	}
	line, err := linefollow.New(r.drive, r.lines, cfg)
	if err != nil {
		return nil, err
	}
	parts := mission.Parts{
		Drive:  r.drive,
		Facer:  h,
		Mover:  nav,
		Line:   line,
		Clock:  r.clock,
		Config: cfg,
	}
	if r.arm != nil {
		parts.Arm = r.arm
	}
	return mission.NewSequence(parts), nil
}

func newRobot(cfg *config.Config, simulated bool) (*robot, error) {
	debug.Step(1, "Initializing GPIO driver")
	debug.Value("Simulated", simulated)
	g, err := gpio.NewDriver(simulated)
	if err != nil {
		return nil, err
	}
	r := &robot{closers: []io.Closer{g}}

	var clk drive.Clock
	if simulated {
		clk, err = r.attachSim(cfg)
	} else {
		clk, err = r.attachHardware(g, cfg)
	}
	if err != nil {
		return nil, multierr.Append(err, r.Close())
	}
	r.clock = clk

	if cfg.Hardware.ArmPin != 0 {
		debug.Step(4, "Initializing arm")
		r.arm, err = arm.New(g, arm.Config{
			Pin:        cfg.Hardware.ArmPin,
			MinPulseUs: cfg.Hardware.ArmMinPulseUs,
			MaxPulseUs: cfg.Hardware.ArmMaxPulseUs,
		}, clockOf(clk))
		if err != nil {
			return nil, multierr.Append(err, r.Close())
		}
	}
	return r, nil
}

// clockOf returns the benbjohnson clock behind a drive clock. The simulated
// clock qualifies, so arm sweeps advance the simulated world too.
func clockOf(c drive.Clock) clock.Clock {
	if v, ok := c.(clock.Clock); ok {
		return v
	}
	return clock.New()
}

func (r *robot) attachHardware(g gpio.Driver, cfg *config.Config) (drive.Clock, error) {
	hw := cfg.Hardware
	clk := clock.New()

	debug.Step(2, "Initializing motors and sensors")
	left, err := motor.NewMotor(g, motor.Config{PWMPin: hw.LeftMotor.PWMPin, DirPin: hw.LeftMotor.DirPin, Inverted: hw.LeftMotor.Inverted, FreqHz: hw.PWMFrequencyHz})
	if err != nil {
		return nil, fmt.Errorf("left motor: %w", err)
	}
	right, err := motor.NewMotor(g, motor.Config{PWMPin: hw.RightMotor.PWMPin, DirPin: hw.RightMotor.DirPin, Inverted: hw.RightMotor.Inverted, FreqHz: hw.PWMFrequencyHz})
	if err != nil {
		return nil, fmt.Errorf("right motor: %w", err)
	}
	encoders := make([]*encoder.Encoder, 2)
	for i, pin := range []int{hw.LeftEncoderPin, hw.RightEncoderPin} {
		e, err := encoder.New(g, pin, clk, encoder.DefaultPoll)
		if err != nil {
			return nil, fmt.Errorf("encoder on pin %d: %w", pin, err)
		}
		e.Start()
		r.closers = append(r.closers, e)
		encoders[i] = e
	}
	bumpers, err := bumper.New(g, hw.LeftBumperPin, hw.RightBumperPin)
	if err != nil {
		return nil, fmt.Errorf("bumpers: %w", err)
	}
	r.lines = linesensor.New(g, hw.LineLeftChan, hw.LineMidChan, hw.LineRightChan)

	debug.Step(3, "Opening position link")
	src, err := position.Open(cfg.Position, clk)
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, src)
	r.poses = src

	r.drive = drive.NewController(drive.Hardware{
		LeftMotor:    left,
		RightMotor:   right,
		LeftEncoder:  encoders[0],
		RightEncoder: encoders[1],
		Bumpers:      bumpers,
		Clock:        clk,
	}, cfg)
	r.closers = append(r.closers, stopper{left, right})
	return clk, nil
}

func (r *robot) attachSim(cfg *config.Config) (drive.Clock, error) {
	debug.Step(2, "Building simulated arena")
	start := geometry.Pose{X: arenaWidth / 2, Y: 6, Heading: simStartHeading}
	if loc, ok := cfg.Locations[simStartLocation]; ok {
		start.X, start.Y = loc.X, loc.Y
	}
	w := sim.New(sim.DefaultConfig(cfg), start)
	addArena(w)
	clk := sim.NewClock(w)

	r.poses = w.Position()
	r.lines = w.LineSensors()
	r.drive = drive.NewController(drive.Hardware{
		LeftMotor:    w.Motor(geometry.Left),
		RightMotor:   w.Motor(geometry.Right),
		LeftEncoder:  w.Encoder(geometry.Left),
		RightEncoder: w.Encoder(geometry.Right),
		Bumpers:      w.Bumpers(),
		Clock:        clk,
	}, cfg)
	return clk, nil
}

// addArena encloses the course with four walls.
func addArena(w *sim.World) {
	w.AddWall(sim.Wall{Point: r2.Point{X: 0, Y: 0}, Normal: r2.Point{X: -1, Y: 0}})
	w.AddWall(sim.Wall{Point: r2.Point{X: arenaWidth, Y: 0}, Normal: r2.Point{X: 1, Y: 0}})
	w.AddWall(sim.Wall{Point: r2.Point{X: 0, Y: 0}, Normal: r2.Point{X: 0, Y: -1}})
	w.AddWall(sim.Wall{Point: r2.Point{X: 0, Y: arenaLength}, Normal: r2.Point{X: 0, Y: 1}})
}

// stopper parks both motors on shutdown.
type stopper struct {
	left, right *motor.Motor
}

func (s stopper) Close() error {
	return multierr.Append(s.left.Stop(), s.right.Stop())
}

// listCourse prints mission and location names.
func listCourse(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Missions:")
	for _, name := range cfg.MissionNames() {
		fmt.Fprintf(w, "  %-20s %d steps\n", name, len(cfg.Missions[name]))
	}
	fmt.Fprintln(w, "Locations:")
	for _, name := range cfg.LocationNames() {
		loc := cfg.Locations[name]
		fmt.Fprintf(w, "  %-20s (%.2f, %.2f)\n", name, loc.X, loc.Y)
	}
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= → default port, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return errors.New("port must be 1-65535, got " + s)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
