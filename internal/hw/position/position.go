package position

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/tarm/serial"

	"github.com/cjeanneret/CourseNav/internal/config"
	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/logic/geometry"
)

// Source tracks the latest fix reported by the course positioning system.
// The link sends one "x y heading" line per fix. A fix older than the
// stale age is reported as unavailable.
type Source struct {
	clk   clock.Clock
	stale time.Duration
	rc    io.ReadCloser

	mu   sync.Mutex
	pose geometry.Pose
	at   time.Time
	have bool

	started bool
	done    chan struct{}
}

// Open connects to the serial device and starts reading fixes.
func Open(cfg config.PositionConfig, clk clock.Clock) (*Source, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name: cfg.Device,
		Baud: cfg.Baud,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open position link %s: %w", cfg.Device, err)
	}
	debug.Info("Position link open on %s (%d baud)", cfg.Device, cfg.Baud)

	s := NewSource(port, clk, time.Duration(cfg.StaleMs)*time.Millisecond)
	s.Start()
	return s, nil
}

// NewSource wraps a line stream. rc may be nil when fixes are pushed with Update.
func NewSource(rc io.ReadCloser, clk clock.Clock, stale time.Duration) *Source {
	return &Source{
		clk:   clk,
		stale: stale,
		rc:    rc,
		done:  make(chan struct{}),
	}
}

// Start reads the stream in the background until it ends or Close is called.
func (s *Source) Start() {
	if s.rc == nil {
		return
	}
	s.started = true
	go s.run()
}

func (s *Source) run() {
	defer close(s.done)
	scanner := bufio.NewScanner(s.rc)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		p, err := ParseLine(line)
		if err != nil {
			debug.Verbose("Position: skipping %q: %v", line, err)
			continue
		}
		s.Update(p)
	}
	if err := scanner.Err(); err != nil {
		debug.Warn("Position link closed: %v", err)
	}
}

// ParseLine decodes one "x y heading" record.
func ParseLine(line string) (geometry.Pose, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return geometry.Pose{}, fmt.Errorf("want 3 fields, got %d", len(fields))
	}
	var v [3]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Pose{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v[i] = n
	}
	return geometry.Pose{X: v[0], Y: v[1], Heading: v[2]}, nil
}

// Update records a fix taken now.
func (s *Source) Update(p geometry.Pose) {
	s.mu.Lock()
	s.pose = p
	s.at = s.clk.Now()
	s.have = true
	s.mu.Unlock()
	debug.Pose(p.X, p.Y, p.Heading)
}

// Pose returns the latest fix, or geometry.UnavailablePose when none is fresh.
func (s *Source) Pose() geometry.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.have {
		return geometry.UnavailablePose
	}
	if s.stale > 0 && s.clk.Now().Sub(s.at) > s.stale {
		return geometry.UnavailablePose
	}
	return s.pose
}

// Close closes the link and waits for the reader to stop.
func (s *Source) Close() error {
	if s.rc == nil {
		return nil
	}
	err := s.rc.Close()
	if s.started {
		<-s.done
	}
	return err
}
