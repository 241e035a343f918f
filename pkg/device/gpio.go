package device

import (
	"fmt"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOHeater drives a heater relay from a GPIO pin.
type GPIOHeater struct {
	pin gpio.PinOut
}

// NewGPIOHeater initializes the host drivers, looks up the named pin and
// drives it low.
func NewGPIOHeater(name string) (*GPIOHeater, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}

	h := &GPIOHeater{pin: pin}
	if err := h.Set(false); err != nil {
		return nil, err
	}
	return h, nil
}

// NewGPIOHeaterPin wraps an already configured pin.
func NewGPIOHeaterPin(pin gpio.PinOut) *GPIOHeater {
	return &GPIOHeater{pin: pin}
}

// Set drives the pin high for on, low for off.
func (h *GPIOHeater) Set(on bool) error {
	level := gpio.Low
	if on {
		level = gpio.High
	}
	if err := h.pin.Out(level); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrActuatorFault, h.pin, err)
	}
	return nil
}
