package relay

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// Backend abstracts pin-level output access for testability.
type Backend interface {
	// ConfigureOutput prepares the pin for output and drives it low.
	ConfigureOutput(pin int) error

	// Write drives the pin: 0 low, anything else high.
	Write(pin, level int) error
}

// PeriphBackend implements Backend on real hardware through periph.io.
type PeriphBackend struct {
	mu   sync.Mutex
	pins map[int]gpio.PinIO
}

// NewPeriphBackend initializes the periph.io host and returns a hardware
// backend.
func NewPeriphBackend() (*PeriphBackend, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periph host init: %w", err)
	}
	return &PeriphBackend{pins: make(map[int]gpio.PinIO)}, nil
}

// resolvePin looks up a GPIO pin by number, caching the handle.
func (b *PeriphBackend) resolvePin(pin int) (gpio.PinIO, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if p, ok := b.pins[pin]; ok {
		return p, nil
	}

	name := fmt.Sprintf("GPIO%d", pin)
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, fmt.Errorf("pin %d (%s) not found in hardware", pin, name)
	}
	b.pins[pin] = p
	return p, nil
}

func (b *PeriphBackend) ConfigureOutput(pin int) error {
	p, err := b.resolvePin(pin)
	if err != nil {
		return err
	}
	if err := p.Out(gpio.Low); err != nil {
		return fmt.Errorf("set pin %d to output: %w", pin, err)
	}
	return nil
}

func (b *PeriphBackend) Write(pin, level int) error {
	p, err := b.resolvePin(pin)
	if err != nil {
		return err
	}
	l := gpio.Low
	if level != 0 {
		l = gpio.High
	}
	return p.Out(l)
}
