package core

import "time"

// MotorDirection is the requested motion of the lock motor.
type MotorDirection uint8

const (
	MotorStop     MotorDirection = iota
	MotorForward                 // towards locked
	MotorBackward                // towards unlocked
)

func (d MotorDirection) String() string {
	switch d {
	case MotorStop:
		return "stop"
	case MotorForward:
		return "forward"
	case MotorBackward:
		return "backward"
	}
	return "invalid"
}

// Motor is the lock motor driver used by the door controller.
type Motor interface {
	Init() error
	SetMotor(dir MotorDirection)
}

// Servo pulse timing
const (
	ServoPeriod     = 20 * time.Millisecond
	ServoPulseLow   = 600 * time.Microsecond
	ServoPulseHigh  = 2350 * time.Microsecond
	ServoCenter     = 128
	servoPulseHigh  = 1 // handler arg: pin is high, end the pulse next
	servoPulseStart = 0 // handler arg: start a new pulse
)

// ServoMotor drives a hobby servo by bit-banging its control pulse from
// scheduler events. Forward and backward move to the two ends of travel;
// stop ends the pulse train and releases the pin.
type ServoMotor struct {
	sched *Scheduler
	gpio  GPIODriver
	pin   GPIOPin

	pulse   uint32 // current pulse width in ticks
	running bool
	handler *Handler
}

// NewServoMotor creates a servo on pin.
func NewServoMotor(sched *Scheduler, gpio GPIODriver, pin GPIOPin) *ServoMotor {
	s := &ServoMotor{sched: sched, gpio: gpio, pin: pin}
	s.handler = NewHandler("servo", s.onTimer)
	return s
}

// Init centers the servo and leaves the pin released.
func (s *ServoMotor) Init() error {
	s.SetPosition(ServoCenter)
	return s.gpio.ConfigureInputPullUp(s.pin)
}

// SetPosition maps 0..255 onto the pulse range.
func (s *ServoMotor) SetPosition(pos uint8) {
	low := s.sched.Ticks(ServoPulseLow)
	high := s.sched.Ticks(ServoPulseHigh)
	pulse := low + uint32(uint64(pos)*uint64(high-low)/255)

	state := disableInterrupts()
	s.pulse = pulse
	restoreInterrupts(state)
}

// Pulse returns the current pulse width in ticks.
func (s *ServoMotor) Pulse() uint32 {
	state := disableInterrupts()
	p := s.pulse
	restoreInterrupts(state)
	return p
}

// Running reports whether the pulse train is active.
func (s *ServoMotor) Running() bool {
	state := disableInterrupts()
	r := s.running
	restoreInterrupts(state)
	return r
}

func (s *ServoMotor) SetMotor(dir MotorDirection) {
	switch dir {
	case MotorForward:
		s.SetPosition(255)
		s.start()
	case MotorBackward:
		s.SetPosition(0)
		s.start()
	default:
		s.stop()
	}
}

func (s *ServoMotor) start() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if s.running {
		return
	}
	s.gpio.ConfigureOutput(s.pin)
	s.gpio.SetPin(s.pin, false)
	s.running = true
	s.onTimer(servoPulseStart)
}

func (s *ServoMotor) stop() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.sched.Cancel(s.handler)
	s.running = false
	s.gpio.ConfigureInputPullUp(s.pin)
}

func (s *ServoMotor) onTimer(arg uint32) {
	if !s.running {
		return
	}
	if arg == servoPulseStart {
		s.gpio.SetPin(s.pin, true)
		s.sched.EnqueueRel(s.pulse, s.handler, servoPulseHigh)
		return
	}
	s.gpio.SetPin(s.pin, false)
	s.sched.EnqueueRel(s.sched.Ticks(ServoPeriod)-s.pulse, s.handler, servoPulseStart)
}
