package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/CourseNav/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO is configured.
type PinMode int

const (
	Input PinMode = iota
	InputPullUp
	Output
	PWM
)

func (m PinMode) String() string {
	switch m {
	case Input:
		return "input"
	case InputPullUp:
		return "input-pullup"
	case Output:
		return "output"
	case PWM:
		return "pwm"
	}
	return fmt.Sprintf("PinMode(%d)", int(m))
}

// ADCReference is the reference voltage of the MCP3008 converter.
const ADCReference = 3.3

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)

	// SetupPWM configures a hardware PWM pin with freqHz periods of cycle steps.
	SetupPWM(pin int, freqHz int, cycle uint32) error
	// SetDuty sets the high portion of the PWM period, in steps.
	SetDuty(pin int, duty uint32) error

	// WatchEdges enables rising edge detection on an input pin.
	WatchEdges(pin int) error
	// EdgeDetected reports whether an edge occurred since the last call.
	EdgeDetected(pin int) (bool, error)

	// ReadADC returns the voltage on an MCP3008 channel (0-7).
	ReadADC(channel int) (float64, error)

	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

type pwmState struct {
	freqHz int
	cycle  uint32
	duty   uint32
}

// MockDriver keeps pin state in memory. Tests drive its inputs with
// SetLevel, TriggerEdge and SetADC.
type MockDriver struct {
	mu     sync.Mutex
	modes  map[int]PinMode
	levels map[int]Level
	pwm    map[int]*pwmState
	edges  map[int]int
	adc    map[int]float64
	closed bool
}

// NewMockDriver returns an empty mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{
		modes:  make(map[int]PinMode),
		levels: make(map[int]Level),
		pwm:    make(map[int]*pwmState),
		edges:  make(map[int]int),
		adc:    make(map[int]float64),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = mode
	if mode == InputPullUp {
		if _, ok := m.levels[pin]; !ok {
			m.levels[pin] = High
		}
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	level := m.levels[pin]
	debug.GPIO("ReadPin", pin, level)
	return level, nil
}

func (m *MockDriver) SetupPWM(pin int, freqHz int, cycle uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	if freqHz <= 0 || cycle == 0 {
		return fmt.Errorf("pin %d: invalid pwm frequency %d / cycle %d", pin, freqHz, cycle)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = PWM
	m.pwm[pin] = &pwmState{freqHz: freqHz, cycle: cycle}
	return nil
}

func (m *MockDriver) SetDuty(pin int, duty uint32) error {
	debug.GPIO("SetDuty", pin, duty)
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pwm[pin]
	if !ok {
		return fmt.Errorf("pin %d is not set up for pwm", pin)
	}
	if duty > p.cycle {
		duty = p.cycle
	}
	p.duty = duty
	return nil
}

func (m *MockDriver) WatchEdges(pin int) error {
	debug.GPIO("WatchEdges", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modes[pin] = Input
	m.edges[pin] = 0
	return nil
}

func (m *MockDriver) EdgeDetected(pin int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.edges[pin] > 0 {
		m.edges[pin]--
		return true, nil
	}
	return false, nil
}

func (m *MockDriver) ReadADC(channel int) (float64, error) {
	if channel < 0 || channel > 7 {
		return 0, fmt.Errorf("adc channel %d out of range", channel)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adc[channel], nil
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetLevel forces the level read back from an input pin.
func (m *MockDriver) SetLevel(pin int, level Level) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

// Level returns the last level written to or forced on a pin.
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Mode returns the configured mode of a pin.
func (m *MockDriver) Mode(pin int) (PinMode, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mode, ok := m.modes[pin]
	return mode, ok
}

// Duty returns the current duty and cycle of a PWM pin.
func (m *MockDriver) Duty(pin int) (duty, cycle uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.pwm[pin]; ok {
		return p.duty, p.cycle
	}
	return 0, 0
}

// TriggerEdge queues n edges on a watched pin.
func (m *MockDriver) TriggerEdge(pin int, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edges[pin] += n
}

// SetADC sets the voltage returned for a channel.
func (m *MockDriver) SetADC(channel int, volts float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adc[channel] = volts
}

// Closed reports whether Close was called.
func (m *MockDriver) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
