package encoder

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/atomic"

	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/cjeanneret/CourseNav/internal/hw/gpio"
)

// DefaultPoll is the edge polling period. The GPIO latch holds a single
// edge, so the period must be shorter than the time between two slots.
const DefaultPoll = 200 * time.Microsecond

// Encoder counts rising edges of a slotted wheel sensor.
type Encoder struct {
	gpio  gpio.Driver
	pin   int
	clk   clock.Clock
	poll  time.Duration
	count atomic.Int64

	once    sync.Once
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// New enables edge detection on pin. Call Start to begin counting in the background.
func New(g gpio.Driver, pin int, clk clock.Clock, poll time.Duration) (*Encoder, error) {
	if err := g.WatchEdges(pin); err != nil {
		return nil, err
	}
	if poll <= 0 {
		poll = DefaultPoll
	}
	return &Encoder{
		gpio: g,
		pin:  pin,
		clk:  clk,
		poll: poll,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}, nil
}

// Start launches the polling goroutine. Later calls do nothing.
func (e *Encoder) Start() {
	if !e.started.CompareAndSwap(false, true) {
		return
	}
	go e.run()
}

func (e *Encoder) run() {
	defer close(e.done)
	ticker := e.clk.Ticker(e.poll)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			if err := e.Poll(); err != nil {
				debug.Error(err)
			}
		}
	}
}

// Poll drains the pending edges into the count.
func (e *Encoder) Poll() error {
	for {
		ok, err := e.gpio.EdgeDetected(e.pin)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		e.count.Inc()
	}
}

// Count returns the edges seen since the last reset.
func (e *Encoder) Count() int64 {
	return e.count.Load()
}

// Reset zeroes the count.
func (e *Encoder) Reset() {
	e.count.Store(0)
}

// Close stops the polling goroutine and, if it was started, waits for it
// to return so no poll outlives the GPIO driver.
func (e *Encoder) Close() error {
	e.once.Do(func() { close(e.stop) })
	if e.started.Load() {
		<-e.done
	}
	return nil
}
