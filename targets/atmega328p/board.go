//go:build atmega328p

package main

import (
	"machine"

	"fablock/core"
)

// Board wiring, in Arduino pin numbers.
const (
	pinClosed  core.GPIOPin = 2  // door switch, low when shut
	pinLocked  core.GPIOPin = 3  // bolt switch, low when engaged
	pinMotorA  core.GPIOPin = 5  // H-bridge input A
	pinMotorB  core.GPIOPin = 6  // H-bridge input B
	pinServo   core.GPIOPin = 9  // servo signal
	pinStepDir core.GPIOPin = 7  // stepper direction
	pinStepEn  core.GPIOPin = 8  // stepper enable, active low
	pinStep    core.GPIOPin = 11 // OC2A, stepper step clock
	pinSpeaker core.GPIOPin = 10
	pinLED     core.GPIOPin = 13
	pinPinpad  core.GPIOPin = 18 // A4, also read by the ADC

	chPinpad = 4
	chSense  = 7 // ADC7 has no digital pin

	serialBaud = 9600
)

// arduinoPins maps Arduino pin numbers to ports.
var arduinoPins = [...]machine.Pin{
	machine.PD0, machine.PD1, machine.PD2, machine.PD3,
	machine.PD4, machine.PD5, machine.PD6, machine.PD7,
	machine.PB0, machine.PB1, machine.PB2, machine.PB3,
	machine.PB4, machine.PB5,
	machine.PC0, machine.PC1, machine.PC2, machine.PC3,
	machine.PC4, machine.PC5,
}

func boardPin(pin core.GPIOPin) machine.Pin {
	if int(pin) >= len(arduinoPins) {
		return machine.NoPin
	}
	return arduinoPins[pin]
}

// boardConfig returns the firmware configuration for this board.
func boardConfig() core.Config {
	cfg := core.DefaultConfig()
	cfg.Door.ClosedPin = pinClosed
	cfg.Door.LockedPin = pinLocked
	cfg.Door.SenseChannel = chSense
	cfg.PinpadChannel = chPinpad
	cfg.PinpadPin = pinPinpad
	cfg.LEDPin = pinLED
	return cfg
}
