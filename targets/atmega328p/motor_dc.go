//go:build atmega328p && !motor_servo && !motor_stepper

package main

import (
	"tinygo.org/x/drivers/l9110x"

	"fablock/core"
)

// dcMotor drives the bolt motor through an L9110 H-bridge.
type dcMotor struct {
	dev l9110x.Device
}

func (m *dcMotor) Init() error {
	m.dev.Configure()
	return nil
}

func (m *dcMotor) SetMotor(dir core.MotorDirection) {
	switch dir {
	case core.MotorForward:
		m.dev.Forward()
	case core.MotorBackward:
		m.dev.Backward()
	default:
		m.dev.Stop()
	}
}

func newMotor(*core.Scheduler) core.Motor {
	return &dcMotor{dev: l9110x.New(boardPin(pinMotorA), boardPin(pinMotorB))}
}
