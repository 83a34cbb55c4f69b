package core

// StepClock is a hardware timer that toggles a stepper driver's step pin
// on every compare match, so the motor runs at a fixed step rate without
// any interrupt load.
type StepClock interface {
	// Init configures the timer in toggle-on-compare mode with the clock
	// stopped and enables the step pin output.
	Init() error

	// Start runs the clock.
	Start()

	// Stop halts the clock, freezing the step pin.
	Stop()
}
