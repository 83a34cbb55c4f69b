package core

import (
	"time"

	"fablock/protocol"
)

// Hardware is the set of board drivers the firmware runs on.
type Hardware struct {
	Timer TimerDriver
	ADC   ADCDriver
	GPIO  GPIODriver
	Motor Motor
	Tone  ToneOutput
	Wake  WakeControl

	// NewMotor builds the motor when Motor is nil, for drivers such as
	// ServoMotor that run on the scheduler.
	NewMotor func(sched *Scheduler) Motor

	// SetBaud reprograms the serial link. Nil when the rate is fixed.
	SetBaud func(baud uint32) error
}

// Config is the firmware configuration.
type Config struct {
	Door DoorConfig

	QueueCapacity int
	Prescale      TimerPrescale
	ReadCount     uint8 // samples averaged per watched channel visit

	PinpadChannel uint8
	PinpadPin     GPIOPin // digital view of the pinpad line, for waking
	LEDPin        GPIOPin

	ReportDelay         time.Duration // settle time before a DOOR= state report
	BeepLength          time.Duration
	PinpadDebugInterval time.Duration
	OutputSize          int // serial transmit ring size
	SenseDebug          bool
}

// DefaultConfig returns the configuration of the reference board.
func DefaultConfig() Config {
	return Config{
		Door:                DefaultDoorConfig(),
		QueueCapacity:       16,
		Prescale:            PrescaleDiv1,
		ReadCount:           32,
		PinpadChannel:       4,
		PinpadPin:           18,
		LEDPin:              13,
		ReportDelay:         200 * time.Millisecond,
		BeepLength:          500 * time.Millisecond,
		PinpadDebugInterval: 100 * time.Millisecond,
		OutputSize:          protocol.OutputMax,
	}
}

// Firmware owns every subsystem of the lock and wires their events to the
// serial link.
type Firmware struct {
	cfg Config
	hw  Hardware

	sched   *Scheduler
	watch   *Watcher
	door    *Door
	pinpad  *Pinpad
	speaker *Speaker
	led     *Blinker

	registry *CommandRegistry
	lines    *protocol.LineReader
	tx       *protocol.FifoBuffer
	out      txOutput
	dropped  uint32

	recentClosed bool
	recentLocked bool

	reportEvent      *Handler
	pinpadDebugEvent *Handler
}

// txOutput stages protocol lines in the transmit ring.
type txOutput struct {
	fifo *protocol.FifoBuffer
}

func (o txOutput) Output(data []byte) {
	o.fifo.Write(data)
}

func (o txOutput) OutputString(s string) {
	for i := 0; i < len(s); i++ {
		o.fifo.PutByte(s[i])
	}
}

func (o txOutput) Free() int {
	return o.fifo.Free()
}

// NewFirmware builds the firmware on hw. Nothing runs until Start.
func NewFirmware(cfg Config, hw Hardware) (*Firmware, error) {
	sched, err := NewScheduler(hw.Timer, cfg.QueueCapacity)
	if err != nil {
		return nil, err
	}
	if cfg.OutputSize < 2 {
		cfg.OutputSize = protocol.OutputMax
	}

	f := &Firmware{
		cfg:      cfg,
		hw:       hw,
		sched:    sched,
		registry: NewCommandRegistry(),
		tx:       protocol.NewFifoBuffer(cfg.OutputSize),
	}
	if hw.Motor == nil && hw.NewMotor != nil {
		hw.Motor = hw.NewMotor(sched)
		f.hw.Motor = hw.Motor
	}
	f.out = txOutput{fifo: f.tx}
	f.lines = protocol.NewLineReader(f.handleLine)
	f.watch = NewWatcher(hw.ADC, f.onWatch)
	sinks := firmwareSinks{f}
	f.door = NewDoor(cfg.Door, sched, f.watch, hw.GPIO, hw.Motor, sinks)
	f.pinpad = NewPinpad(sched, f.watch, cfg.PinpadChannel, sinks, hw.Wake)
	f.speaker = NewSpeaker(sched, hw.Tone)
	f.led = NewBlinker(sched, hw.GPIO, cfg.LEDPin)
	f.reportEvent = NewHandler("report-state", f.onReportState)
	f.pinpadDebugEvent = NewHandler("pinpad-debug", f.onPinpadDebug)
	f.registerCommands()
	return f, nil
}

// Start brings up the subsystems in dependency order and starts the
// scheduler clock.
func (f *Firmware) Start() error {
	f.sched.Start(f.cfg.Prescale)

	if err := f.led.Init(); err != nil {
		return err
	}
	if err := f.hw.GPIO.ConfigureInput(f.cfg.PinpadPin); err != nil {
		return err
	}
	if err := f.door.Init(); err != nil {
		return err
	}

	state := disableInterrupts()
	f.recentClosed = f.door.IsClosed()
	f.recentLocked = f.door.IsLocked()
	restoreInterrupts(state)

	f.watch.Init(0)
	if err := f.watch.SetReadCount(f.cfg.ReadCount); err != nil {
		return err
	}
	f.pinpad.Init()
	f.watch.Start()
	DebugPrintln("[FW] started")
	return nil
}

// Scheduler returns the event scheduler. Its HandleCompare is the timer
// compare-match interrupt handler.
func (f *Firmware) Scheduler() *Scheduler { return f.sched }

// Watcher returns the ADC watcher. Its HandleConversion is the ADC
// interrupt handler.
func (f *Firmware) Watcher() *Watcher { return f.watch }

func (f *Firmware) Door() *Door { return f.door }

func (f *Firmware) Pinpad() *Pinpad { return f.pinpad }

func (f *Firmware) Speaker() *Speaker { return f.speaker }

func (f *Firmware) LED() *Blinker { return f.led }

// Commands returns the serial command registry.
func (f *Firmware) Commands() *CommandRegistry { return f.registry }

// Receive feeds bytes read from the serial link.
func (f *Firmware) Receive(data []byte) {
	f.lines.Receive(data)
}

// ReadOutput moves pending transmit bytes into p and returns the count.
func (f *Firmware) ReadOutput(p []byte) int {
	state := disableInterrupts()
	n := f.tx.Read(p)
	restoreInterrupts(state)
	return n
}

// OutputPending returns the number of bytes waiting to be sent.
func (f *Firmware) OutputPending() int {
	state := disableInterrupts()
	n := f.tx.Available()
	restoreInterrupts(state)
	return n
}

// Dropped returns how many output lines were discarded for lack of room.
func (f *Firmware) Dropped() uint32 {
	state := disableInterrupts()
	n := f.dropped
	restoreInterrupts(state)
	return n
}

// sent counts a line the encoder could not stage. Call with interrupts
// disabled.
func (f *Firmware) sent(ok bool) {
	if !ok {
		f.dropped++
	}
}

func (f *Firmware) handleLine(line []byte) {
	if line[0] != protocol.CommandMark {
		state := disableInterrupts()
		f.sent(protocol.EncodeEchoOff(f.out))
		restoreInterrupts(state)
		return
	}
	if err := f.registry.Dispatch(line); err != nil {
		state := disableInterrupts()
		f.sent(protocol.EncodeError(f.out, err.Error()))
		restoreInterrupts(state)
	}
}

// HandlePinChange is the pin-change interrupt handler for the sensor and
// pinpad lines. It compares the current levels with the last ones seen.
func (f *Firmware) HandlePinChange() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if f.pinpad.Asleep() && !f.hw.GPIO.ReadPin(f.cfg.PinpadPin) {
		f.pinpad.Wake()
	}

	closed := f.door.IsClosed()
	locked := f.door.IsLocked()
	closedChanged := closed != f.recentClosed
	lockedChanged := locked != f.recentLocked
	f.recentClosed = closed
	f.recentLocked = locked

	if closedChanged {
		f.door.SensorChanged()
	}
	if lockedChanged {
		f.door.BoltSensorChanged()
	}
	if closedChanged || lockedChanged {
		f.scheduleReport()
	}
}

// scheduleReport (re)arms the delayed state report.
func (f *Firmware) scheduleReport() {
	f.sched.Cancel(f.reportEvent)
	if !f.sched.After(f.cfg.ReportDelay, f.reportEvent, 0) {
		DebugPrintln("[FW] report dropped: queue full")
	}
}

func (f *Firmware) reportDoor(mode, result uint8) {
	f.sent(protocol.EncodeDoor(f.out, protocol.DoorReport{
		Locked: f.door.IsLocked(),
		Closed: f.door.IsClosed(),
		Mode:   mode,
		Result: result,
	}))
}

func (f *Firmware) onReportState(uint32) {
	f.reportDoor(uint8(f.door.mode), protocol.ResultStatus)
}

func (f *Firmware) onPinpadDebug(uint32) {
	f.sent(protocol.EncodePinpadDebug(f.out, f.watch.Value(f.cfg.PinpadChannel)))
	f.sched.After(f.cfg.PinpadDebugInterval, f.pinpadDebugEvent, 0)
}

// onWatch routes watcher excursions. Runs in the ADC interrupt.
func (f *Firmware) onWatch(channel uint8, value int16) {
	RecordTiming(EvtWatch, "", f.sched.nowSync(), uint32(channel), uint32(value))
	switch channel {
	case f.cfg.PinpadChannel:
		f.pinpad.OnReading(value)
	case f.cfg.Door.SenseChannel:
		f.door.OnMotorSense(value)
		if f.cfg.SenseDebug {
			f.sent(protocol.EncodeSense(f.out, value))
		}
	default:
		f.watch.SetRange(channel, value-2, value+2)
	}
}

// firmwareSinks receives door and pinpad events on behalf of the firmware.
type firmwareSinks struct {
	f *Firmware
}

func (s firmwareSinks) DoorLocked(success bool) {
	if success {
		s.f.speaker.Feedback(ToneWakeup)
		s.f.reportDoor(protocol.ReportLock, protocol.ResultSuccess)
	} else {
		s.f.speaker.Feedback(ToneSleep)
		s.f.reportDoor(protocol.ReportLock, protocol.ResultFailed)
	}
}

func (s firmwareSinks) DoorUnlocked(success bool) {
	if success {
		s.f.speaker.Feedback(ToneEnd)
		s.f.reportDoor(protocol.ReportUnlock, protocol.ResultSuccess)
	} else {
		s.f.speaker.Feedback(ToneBad)
		s.f.reportDoor(protocol.ReportUnlock, protocol.ResultFailed)
	}
}

func (s firmwareSinks) DoorModeChanged(DoorMode) {
	s.f.scheduleReport()
}

func (s firmwareSinks) MotorFailing(reason MotorFailReason) {
	s.f.sent(protocol.EncodeMotorFail(s.f.out, uint8(reason)))
}

func (s firmwareSinks) PinpadFeedback(tone int) {
	s.f.speaker.Feedback(tone)
}

func (s firmwareSinks) PinEntered(pin []byte) {
	s.f.sent(protocol.EncodePin(s.f.out, pin))
}

func (s firmwareSinks) LockRequested() {
	if s.f.door.Lock() != nil {
		DebugPrintln("[PINPAD] lock failed: queue full")
	}
}

func (s firmwareSinks) PinpadAwake(awake bool) {
	s.f.sent(protocol.EncodeAwake(s.f.out, awake))
}
