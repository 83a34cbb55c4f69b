package core

// Stepper motor backend for drivers with enable, direction and step inputs.
// The step rate is fixed; the door controller relies on the bolt sensor and
// the motor-sense channel instead of counting steps.

// StepperMotor drives a stepper driver with an active-low enable pin, a
// direction pin and a free-running step clock.
type StepperMotor struct {
	gpio    GPIODriver
	disable GPIOPin // high disables the driver
	dir     GPIOPin // high runs backward
	clock   StepClock
	current MotorDirection
}

// NewStepperMotor creates a stepper backend.
func NewStepperMotor(gpio GPIODriver, disablePin, dirPin GPIOPin, clock StepClock) *StepperMotor {
	return &StepperMotor{gpio: gpio, disable: disablePin, dir: dirPin, clock: clock}
}

// Init leaves the driver disabled with the direction set forward.
func (s *StepperMotor) Init() error {
	if err := s.gpio.SetPin(s.disable, true); err != nil {
		return err
	}
	if err := s.gpio.SetPin(s.dir, false); err != nil {
		return err
	}
	if err := s.gpio.ConfigureOutput(s.disable); err != nil {
		return err
	}
	if err := s.gpio.ConfigureOutput(s.dir); err != nil {
		return err
	}
	s.current = MotorStop
	return s.clock.Init()
}

func (s *StepperMotor) SetMotor(dir MotorDirection) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	switch dir {
	case MotorStop:
		s.gpio.SetPin(s.disable, true)
		s.clock.Stop()
	case MotorForward, MotorBackward:
		s.gpio.SetPin(s.dir, dir == MotorBackward)
		s.gpio.SetPin(s.disable, false)
		s.clock.Start()
	default:
		return
	}
	s.current = dir
}

// Direction returns the last direction applied.
func (s *StepperMotor) Direction() MotorDirection {
	state := disableInterrupts()
	d := s.current
	restoreInterrupts(state)
	return d
}
