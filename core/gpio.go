// GPIO output support
// Implements the status LED and its scheduled blinking
package core

import "time"

// BlinkHalfPeriod is the time between two LED toggles while blinking.
const BlinkHalfPeriod = 250 * time.Millisecond

// Stop modes for Blinker.Stop
const (
	BlinkStopOff   = 0 // turn the LED off
	BlinkStopOn    = 1 // turn the LED on
	BlinkStopLeave = 2 // leave it as it is
)

// Blinker drives a single LED, optionally blinking it from scheduler events.
type Blinker struct {
	sched   *Scheduler
	gpio    GPIODriver
	pin     GPIOPin
	on      bool
	handler *Handler
}

// NewBlinker creates a blinker on pin.
func NewBlinker(sched *Scheduler, gpio GPIODriver, pin GPIOPin) *Blinker {
	b := &Blinker{sched: sched, gpio: gpio, pin: pin}
	b.handler = NewHandler("led-blink", b.onTimer)
	return b
}

// Init configures the pin as an output with the LED off.
func (b *Blinker) Init() error {
	if err := b.gpio.ConfigureOutput(b.pin); err != nil {
		return err
	}
	b.Set(false)
	return nil
}

// Set turns the LED on or off.
func (b *Blinker) Set(on bool) {
	state := disableInterrupts()
	b.on = on
	b.gpio.SetPin(b.pin, on)
	restoreInterrupts(state)
}

// IsOn reports the LED state.
func (b *Blinker) IsOn() bool {
	state := disableInterrupts()
	on := b.on
	restoreInterrupts(state)
	return on
}

// Blink flashes the LED n times, starting from off.
func (b *Blinker) Blink(n uint32) {
	if n == 0 {
		return
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)

	b.sched.Cancel(b.handler)
	b.on = false
	b.gpio.SetPin(b.pin, false)
	b.sched.EnqueueRel(1, b.handler, n*2-1)
}

// Stop ends blinking and sets the LED according to mode.
func (b *Blinker) Stop(mode uint32) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	b.sched.Cancel(b.handler)
	switch mode {
	case BlinkStopOff:
		b.on = false
		b.gpio.SetPin(b.pin, false)
	case BlinkStopOn:
		b.on = true
		b.gpio.SetPin(b.pin, true)
	}
}

// onTimer toggles the LED; arg is the number of toggles still to come.
func (b *Blinker) onTimer(arg uint32) {
	b.on = !b.on
	b.gpio.SetPin(b.pin, b.on)
	if arg > 0 {
		b.sched.EnqueueRel(b.sched.Ticks(BlinkHalfPeriod), b.handler, arg-1)
	}
}
