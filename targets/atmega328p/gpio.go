//go:build atmega328p

package main

import (
	"errors"
	"machine"

	"fablock/core"
)

var errBadPin = errors.New("no such pin")

// gpioDriver implements core.GPIODriver on the machine package.
type gpioDriver struct{}

func (gpioDriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	p := boardPin(pin)
	if p == machine.NoPin {
		return errBadPin
	}
	p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (d gpioDriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

func (d gpioDriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d gpioDriver) ConfigureInput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInput)
}

func (gpioDriver) SetPin(pin core.GPIOPin, value bool) error {
	p := boardPin(pin)
	if p == machine.NoPin {
		return errBadPin
	}
	p.Set(value)
	return nil
}

func (gpioDriver) ReadPin(pin core.GPIOPin) bool {
	p := boardPin(pin)
	if p == machine.NoPin {
		return false
	}
	return p.Get()
}
