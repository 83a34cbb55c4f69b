package core

import (
	"errors"
	"time"
)

// DoorMode is what the lock motor is currently doing.
type DoorMode uint8

const (
	ModeIdle DoorMode = iota
	ModeLocking
	ModeUnlocking
	ModeLockRetract   // backing off after a stall while locking
	ModeUnlockRetract // backing off after a stall while unlocking
)

func (m DoorMode) String() string {
	switch m {
	case ModeIdle:
		return "idle"
	case ModeLocking:
		return "locking"
	case ModeUnlocking:
		return "unlocking"
	case ModeLockRetract:
		return "lock-retract"
	case ModeUnlockRetract:
		return "unlock-retract"
	}
	return "invalid"
}

// MotorFailReason classifies a motor-sense excursion.
type MotorFailReason uint8

const (
	FailStall               MotorFailReason = 1 // blocked before finishing
	FailNotRunning          MotorFailReason = 2 // powered but not turning
	FailRunningUnexpectedly MotorFailReason = 3 // turning while idle
)

func (r MotorFailReason) String() string {
	switch r {
	case FailStall:
		return "stall"
	case FailNotRunning:
		return "not-running"
	case FailRunningUnexpectedly:
		return "running-unexpectedly"
	}
	return "unknown"
}

// DoorEvents receives the results of the door controller. Calls are made
// from interrupt context.
type DoorEvents interface {
	DoorLocked(success bool)
	DoorUnlocked(success bool)
	DoorModeChanged(old DoorMode)
	MotorFailing(reason MotorFailReason)
}

var ErrQueueFull = errors.New("queue full")

// DoorConfig holds the board wiring and the calibrated timing and sense
// constants of the door controller.
type DoorConfig struct {
	ClosedPin    GPIOPin // low when the door is shut
	LockedPin    GPIOPin // low when the bolt is engaged
	SenseChannel uint8   // ADC channel on the motor supply

	MaxLock      time.Duration // give up locking after this long
	OverLock     time.Duration // keep driving after the bolt sensor trips
	MaxUnlock    time.Duration
	OverUnlock   time.Duration
	Retry        time.Duration // wait before retrying a failed lock
	CloseToLock  time.Duration // delay between door shut and locking
	UnlockToLock time.Duration // auto re-lock delay after a manual unlock
	Retract      time.Duration // reverse pulse after a stall

	StallConfirm      time.Duration
	NotRunningConfirm time.Duration
	RunningConfirm    time.Duration

	SenseRunning int16 // readings above this: motor not running
	SenseStall   int16 // readings below this: motor stalled
	SenseFuzz    int16 // hysteresis around both thresholds
}

// DefaultDoorConfig returns the settings of the reference board.
func DefaultDoorConfig() DoorConfig {
	return DoorConfig{
		ClosedPin:    2,
		LockedPin:    3,
		SenseChannel: 7,

		MaxLock:      3 * time.Second,
		OverLock:     500 * time.Millisecond,
		MaxUnlock:    24 * time.Second,
		OverUnlock:   18 * time.Second,
		Retry:        20 * time.Second,
		CloseToLock:  2 * time.Second,
		UnlockToLock: 8 * time.Second,
		Retract:      200 * time.Millisecond,

		StallConfirm:      250 * time.Millisecond,
		NotRunningConfirm: 2 * time.Second,
		RunningConfirm:    2 * time.Second,

		SenseRunning: 900,
		SenseStall:   720,
		SenseFuzz:    10,
	}
}

// lockEvent arguments
const (
	lockTimeout = 0 // give up, report the result
	lockRetry   = 1 // try locking again if the door is still shut
)

// Door is the lock state machine. It drives the motor, watches the motor
// supply voltage through the ADC watcher and reacts to the door and bolt
// sensors, which are always read live.
type Door struct {
	cfg    DoorConfig
	sched  *Scheduler
	watch  *Watcher
	gpio   GPIODriver
	motor  Motor
	events DoorEvents

	mode DoorMode

	lockEvent      *Handler
	motorFailEvent *Handler
	retractEnd     *Handler
}

// NewDoor wires a door controller. Call Init before use.
func NewDoor(cfg DoorConfig, sched *Scheduler, watch *Watcher, gpio GPIODriver, motor Motor, events DoorEvents) *Door {
	d := &Door{
		cfg:    cfg,
		sched:  sched,
		watch:  watch,
		gpio:   gpio,
		motor:  motor,
		events: events,
	}
	d.lockEvent = NewHandler("door-lock", d.handleLockEvent)
	d.motorFailEvent = NewHandler("door-mfail", d.handleMotorFail)
	d.retractEnd = NewHandler("door-retract", d.handleRetractEnd)
	return d
}

// Init configures the sensor pins and the motor and enters idle.
func (d *Door) Init() error {
	if err := d.gpio.ConfigureInputPullUp(d.cfg.ClosedPin); err != nil {
		return err
	}
	if err := d.gpio.ConfigureInputPullUp(d.cfg.LockedPin); err != nil {
		return err
	}
	if err := d.motor.Init(); err != nil {
		return err
	}
	state := disableInterrupts()
	d.mode = ModeIdle
	restoreInterrupts(state)
	return nil
}

// Config returns the controller settings.
func (d *Door) Config() DoorConfig {
	return d.cfg
}

// Mode returns the current mode.
func (d *Door) Mode() DoorMode {
	state := disableInterrupts()
	m := d.mode
	restoreInterrupts(state)
	return m
}

// IsLocked reads the bolt sensor.
func (d *Door) IsLocked() bool {
	return !d.gpio.ReadPin(d.cfg.LockedPin)
}

// IsClosed reads the door sensor.
func (d *Door) IsClosed() bool {
	return !d.gpio.ReadPin(d.cfg.ClosedPin)
}

// enterMode sets the motor for mode and watches the motor supply while the
// motor is meant to move.
func (d *Door) enterMode(mode DoorMode) {
	old := d.mode
	d.mode = mode
	switch mode {
	case ModeLocking, ModeUnlockRetract:
		d.motor.SetMotor(MotorForward)
	case ModeUnlocking, ModeLockRetract:
		d.motor.SetMotor(MotorBackward)
	default:
		d.motor.SetMotor(MotorStop)
	}

	if mode == ModeIdle {
		d.watch.RemoveChannel(d.cfg.SenseChannel)
	} else {
		d.watch.SetRange(d.cfg.SenseChannel, d.cfg.SenseStall, d.cfg.SenseRunning)
		d.watch.AddChannel(d.cfg.SenseChannel)
	}
	RecordTiming(EvtModeChange, mode.String(), d.sched.nowSync(), uint32(old), uint32(mode))
	d.events.DoorModeChanged(old)
}

// Lock starts driving the bolt out. If the timeout cannot be queued the
// motor is left stopped and ErrQueueFull is returned.
func (d *Door) Lock() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return d.start(ModeLocking, d.cfg.MaxLock)
}

// Unlock starts driving the bolt in.
func (d *Door) Unlock() error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return d.start(ModeUnlocking, d.cfg.MaxUnlock)
}

func (d *Door) start(mode DoorMode, limit time.Duration) error {
	d.sched.Cancel(d.lockEvent)
	d.sched.Cancel(d.retractEnd)
	if !d.sched.EnqueueRel(d.sched.Ticks(limit), d.lockEvent, lockTimeout) {
		if d.mode != ModeIdle {
			d.enterMode(ModeIdle)
		}
		return ErrQueueFull
	}
	d.enterMode(mode)
	return nil
}

// ScheduleLocking stops the motor and arranges a lock attempt after delay.
func (d *Door) ScheduleLocking(delay time.Duration) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return d.scheduleLocking(delay)
}

func (d *Door) scheduleLocking(delay time.Duration) error {
	d.sched.Cancel(d.lockEvent)
	d.enterMode(ModeIdle)
	if !d.sched.EnqueueRel(d.sched.Ticks(delay), d.lockEvent, lockRetry) {
		return ErrQueueFull
	}
	return nil
}

// SensorChanged handles a door sensor edge. A shut door is locked after
// a short delay; an open door always stops the motor.
func (d *Door) SensorChanged() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if d.IsClosed() {
		if d.scheduleLocking(d.cfg.CloseToLock) != nil {
			DebugPrintln("[DOOR] close-to-lock dropped: queue full")
		}
	} else {
		d.enterMode(ModeIdle)
	}
}

// BoltSensorChanged handles a bolt sensor edge. The sensor trips early, so
// reaching the target position only shortens the remaining drive time.
func (d *Door) BoltSensorChanged() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	locked := d.IsLocked()
	switch {
	case d.mode == ModeLocking && locked:
		d.sched.Cancel(d.lockEvent)
		d.enqueue(d.cfg.OverLock, d.lockEvent, lockTimeout, "[DOOR] over-lock dropped: queue full")
	case d.mode == ModeUnlocking && !locked:
		d.sched.Cancel(d.lockEvent)
		d.enqueue(d.cfg.OverUnlock, d.lockEvent, lockTimeout, "[DOOR] over-unlock dropped: queue full")
	case d.mode == ModeIdle && !locked:
		if d.scheduleLocking(d.cfg.UnlockToLock) != nil {
			DebugPrintln("[DOOR] re-lock dropped: queue full")
		}
	}
}

func (d *Door) handleLockEvent(arg uint32) {
	if arg == lockRetry {
		if d.IsClosed() {
			if d.start(ModeLocking, d.cfg.MaxLock) != nil {
				DebugPrintln("[DOOR] retry dropped: queue full")
			}
		}
		return
	}

	// The retry is queued before the mode change so the slot freed by the
	// timeout cannot be taken by a mode change listener.
	mode := d.mode
	locked := d.IsLocked()
	if mode == ModeLocking && !locked && d.IsClosed() {
		d.enqueue(d.cfg.Retry, d.lockEvent, lockRetry, "[DOOR] retry dropped: queue full")
	}
	d.enterMode(ModeIdle)
	switch mode {
	case ModeLocking:
		d.events.DoorLocked(locked)
	case ModeUnlocking:
		d.events.DoorUnlocked(!locked)
	}
}

// OnMotorSense classifies a motor supply reading that left its window,
// narrows the window around the new band and arms the confirmation timer
// for that band. Only the last classification is ever confirmed.
func (d *Door) OnMotorSense(value int16) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	c := &d.cfg
	var (
		reason   MotorFailReason
		low      int16
		high     int16
		confirm  time.Duration
		schedule bool
	)
	switch {
	case value < c.SenseStall:
		reason, low, high = FailStall, 0, c.SenseStall+c.SenseFuzz
		confirm, schedule = c.StallConfirm, true
	case value > c.SenseRunning:
		reason, low, high = FailNotRunning, c.SenseRunning-c.SenseFuzz, ADCMaxValue
		confirm, schedule = c.NotRunningConfirm, d.mode != ModeIdle
	default:
		reason, low, high = FailRunningUnexpectedly, c.SenseStall-c.SenseFuzz, c.SenseRunning+c.SenseFuzz
		confirm, schedule = c.RunningConfirm, d.mode == ModeIdle
	}

	d.watch.SetRange(c.SenseChannel, low, high)
	d.sched.Cancel(d.motorFailEvent)
	if schedule {
		d.enqueue(confirm, d.motorFailEvent, uint32(reason), "[DOOR] motor check dropped: queue full")
	}
}

// enqueue queues h(arg) after delay, printing msg when the queue is full.
// msg is a constant so nothing is allocated on the interrupt path.
func (d *Door) enqueue(delay time.Duration, h *Handler, arg uint32, msg string) bool {
	if d.sched.EnqueueRel(d.sched.Ticks(delay), h, arg) {
		return true
	}
	DebugPrintln(msg)
	return false
}

func (d *Door) reportMotorFail(reason MotorFailReason) {
	RecordTiming(EvtMotorFail, "", d.sched.nowSync(), uint32(reason), uint32(d.mode))
	d.events.MotorFailing(reason)
}

func (d *Door) handleMotorFail(arg uint32) {
	reason := MotorFailReason(arg)
	switch reason {
	case FailStall:
		mode := d.mode
		locked := d.IsLocked()
		if mode == ModeLocking || mode == ModeUnlocking {
			d.sched.Cancel(d.lockEvent)
		}
		if mode == ModeLocking && !locked && d.IsClosed() {
			d.enqueue(d.cfg.Retry, d.lockEvent, lockRetry, "[DOOR] retry dropped: queue full")
		}
		d.enterMode(ModeIdle)
		if mode == ModeIdle ||
			(mode == ModeLocking && !locked) ||
			(mode == ModeUnlocking && locked) {
			d.reportMotorFail(reason)
		}
		switch mode {
		case ModeLocking:
			d.startRetract(ModeLockRetract)
			d.events.DoorLocked(locked)
		case ModeUnlocking:
			d.startRetract(ModeUnlockRetract)
			d.events.DoorUnlocked(!locked)
		}
	case FailNotRunning:
		if d.mode != ModeIdle {
			d.reportMotorFail(reason)
		}
	case FailRunningUnexpectedly:
		if d.mode == ModeIdle {
			d.reportMotorFail(reason)
		}
	}
}

// startRetract reverses the motor briefly to free a jammed bolt.
func (d *Door) startRetract(mode DoorMode) {
	d.sched.Cancel(d.retractEnd)
	if !d.enqueue(d.cfg.Retract, d.retractEnd, 0, "[DOOR] retract dropped: queue full") {
		return
	}
	d.enterMode(mode)
}

func (d *Door) handleRetractEnd(uint32) {
	if d.mode == ModeLockRetract || d.mode == ModeUnlockRetract {
		d.enterMode(ModeIdle)
	}
}
