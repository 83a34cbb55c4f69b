//go:build atmega328p && motor_stepper && !motor_servo

package main

import (
	"device/avr"

	"fablock/core"
)

// Timer2 bits
const (
	tccr2aCOM2A0 = 1 << 6 // toggle OC2A on compare
	tccr2aWGM21  = 1 << 1 // CTC
	tccr2bDiv256 = 0x06

	// 16 MHz / (2 * 256 * 125) = 250 steps per second
	stepCompare = 124
)

// stepClock runs the step pin from Timer2 in CTC toggle mode. Timer0 is
// left to the runtime.
type stepClock struct{}

func (stepClock) Init() error {
	avr.TCCR2B.Set(0)
	avr.TCNT2.Set(0)
	avr.OCR2A.Set(stepCompare)
	avr.TCCR2A.Set(tccr2aCOM2A0 | tccr2aWGM21)
	return gpioDriver{}.ConfigureOutput(pinStep)
}

func (stepClock) Start() {
	avr.TCNT2.Set(0)
	avr.TCCR2B.Set(tccr2bDiv256)
}

func (stepClock) Stop() {
	avr.TCCR2B.Set(0)
}

func newMotor(*core.Scheduler) core.Motor {
	return core.NewStepperMotor(gpioDriver{}, pinStepEn, pinStepDir, stepClock{})
}
