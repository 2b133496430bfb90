package gpio

import (
	"fmt"
	"sync"

	"github.com/cjeanneret/CourseNav/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	mu     sync.Mutex
	pins   map[int]rpio.Pin
	cycles map[int]uint32
	spiOn  bool
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:   make(map[int]rpio.Pin),
		cycles: make(map[int]uint32),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setup(pin, mode)
}

func (r *RPiDriver) setup(pin int, mode PinMode) error {
	p := rpio.Pin(pin)
	r.pins[pin] = p

	switch mode {
	case Input:
		p.Input()
	case InputPullUp:
		p.Input()
		p.PullUp()
	case Output:
		p.Output()
	case PWM:
		p.Pwm()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.setup(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.setup(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	state := p.Read()
	debug.GPIO("ReadPin", pin, state)
	if state == rpio.High {
		return High, nil
	}
	return Low, nil
}

func (r *RPiDriver) SetupPWM(pin int, freqHz int, cycle uint32) error {
	debug.GPIO("SetupPWM", pin, freqHz)
	if freqHz <= 0 || cycle == 0 {
		return fmt.Errorf("pin %d: invalid pwm frequency %d / cycle %d", pin, freqHz, cycle)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setup(pin, PWM); err != nil {
		return err
	}
	p := r.pins[pin]
	// The PWM clock ticks once per step of the cycle.
	p.Freq(freqHz * int(cycle))
	p.DutyCycle(0, cycle)
	r.cycles[pin] = cycle
	return nil
}

func (r *RPiDriver) SetDuty(pin int, duty uint32) error {
	debug.GPIO("SetDuty", pin, duty)
	r.mu.Lock()
	defer r.mu.Unlock()

	cycle, ok := r.cycles[pin]
	if !ok {
		return fmt.Errorf("pin %d is not set up for pwm", pin)
	}
	if duty > cycle {
		duty = cycle
	}
	r.pins[pin].DutyCycle(duty, cycle)
	return nil
}

func (r *RPiDriver) WatchEdges(pin int) error {
	debug.GPIO("WatchEdges", pin, nil)
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.setup(pin, InputPullUp); err != nil {
		return err
	}
	r.pins[pin].Detect(rpio.RiseEdge)
	return nil
}

func (r *RPiDriver) EdgeDetected(pin int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		return false, fmt.Errorf("pin %d is not watched", pin)
	}
	return p.EdgeDetected(), nil
}

// ReadADC performs a single-ended MCP3008 conversion on SPI0, CE0.
func (r *RPiDriver) ReadADC(channel int) (float64, error) {
	if channel < 0 || channel > 7 {
		return 0, fmt.Errorf("adc channel %d out of range", channel)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.spiOn {
		if err := rpio.SpiBegin(rpio.Spi0); err != nil {
			return 0, fmt.Errorf("spi begin: %w", err)
		}
		rpio.SpiSpeed(1000000)
		rpio.SpiChipSelect(0)
		r.spiOn = true
	}

	buf := []byte{0x01, byte(0x08|channel) << 4, 0x00}
	rpio.SpiExchange(buf)
	raw := int(buf[1]&0x03)<<8 | int(buf[2])
	volts := float64(raw) * ADCReference / 1023
	debug.GPIO("ReadADC", channel, volts)
	return volts, nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.spiOn {
		rpio.SpiEnd(rpio.Spi0)
		r.spiOn = false
	}

	// Reset all pins to input (safe state)
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Detect(rpio.NoEdge)
		p.Input()
	}

	return rpio.Close()
}
