package led

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
)

// GPIORows drives one output pin per layer. pins[z] is the line of layer z.
type GPIORows struct {
	pins []gpio.PinOut
}

func NewGPIORows(pins []gpio.PinOut) (*GPIORows, error) {
	if len(pins) == 0 {
		return nil, fmt.Errorf("gpio rows: no pins")
	}
	r := &GPIORows{pins: pins}
	if err := r.Release(); err != nil {
		return nil, err
	}
	return r, nil
}

// OpenGPIORows resolves pin names (e.g. "GPIO17") through the periph registry.
// host.Init must have run.
func OpenGPIORows(names []string) (*GPIORows, error) {
	pins := make([]gpio.PinOut, 0, len(names))
	for _, n := range names {
		p := gpioreg.ByName(n)
		if p == nil {
			return nil, fmt.Errorf("gpio rows: pin %s not found", n)
		}
		pins = append(pins, p)
	}
	return NewGPIORows(pins)
}

func (r *GPIORows) Select(layer int) error {
	if layer < 0 || layer >= len(r.pins) {
		return fmt.Errorf("gpio rows: layer %d out of range", layer)
	}
	// drop the others first so two layers are never lit together
	for i, p := range r.pins {
		if i == layer {
			continue
		}
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("gpio rows: %s: %w", p, err)
		}
	}
	if err := r.pins[layer].Out(gpio.High); err != nil {
		return fmt.Errorf("gpio rows: %s: %w", r.pins[layer], err)
	}
	return nil
}

func (r *GPIORows) Release() error {
	for _, p := range r.pins {
		if err := p.Out(gpio.Low); err != nil {
			return fmt.Errorf("gpio rows: %s: %w", p, err)
		}
	}
	return nil
}

func (r *GPIORows) Close() error { return r.Release() }
