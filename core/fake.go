package core

import "time"

// FakeTimer is an in-memory 16-bit timer for tests and host simulation.
// Advance moves the counter forward, raising the overflow flag on every
// wrap and calling OnCompare whenever the counter reaches the compare value.
type FakeTimer struct {
	counter  uint16
	compare  uint16
	prescale TimerPrescale
	overflow bool

	// OnCompare is the compare-match interrupt handler.
	OnCompare func()

	// Compares counts compare-match interrupts.
	Compares int
}

func (f *FakeTimer) Init() {
	f.counter = 0
	f.overflow = false
}

func (f *FakeTimer) SetPrescale(p TimerPrescale) { f.prescale = p }
func (f *FakeTimer) Prescale() TimerPrescale { return f.prescale }
func (f *FakeTimer) Counter() uint16 { return f.counter }
func (f *FakeTimer) OverflowPending() bool { return f.overflow }
func (f *FakeTimer) ClearOverflow() { f.overflow = false }
func (f *FakeTimer) SetCompare(v uint16) { f.compare = v }

// CompareValue returns the programmed compare target.
func (f *FakeTimer) CompareValue() uint16 { return f.compare }

// SetCounter moves the counter without firing anything.
func (f *FakeTimer) SetCounter(v uint16) { f.counter = v }

// Advance runs the timer for n ticks. A stopped timer does not move.
func (f *FakeTimer) Advance(n uint32) {
	if f.prescale == PrescaleStopped {
		return
	}
	for n > 0 {
		toCompare := uint32(f.compare - f.counter)
		if toCompare == 0 {
			// Writing the current count blocks the match for a full cycle.
			toCompare = 1 << 16
		}
		toWrap := 1<<16 - uint32(f.counter)
		step := n
		if toCompare < step {
			step = toCompare
		}
		if toWrap < step {
			step = toWrap
		}
		f.counter += uint16(step)
		n -= step
		if step == toWrap {
			f.overflow = true
		}
		if step == toCompare {
			f.Compares++
			if f.OnCompare != nil {
				f.OnCompare()
			}
		}
	}
}

// AdvanceDuration runs the timer for d at the current prescale.
func (f *FakeTimer) AdvanceDuration(d time.Duration) {
	f.Advance(TicksFromDuration(d, f.prescale))
}

// FakeADC serves fixed per-channel levels and models the free-running
// conversion pipeline: the multiplexer is latched when a conversion starts,
// which is right after the previous one completes.
type FakeADC struct {
	Levels [ADCChannels]uint16

	running    bool
	irq        bool
	mux        uint8
	converting uint8
	value      uint16

	// OnConversion is the conversion-complete interrupt handler.
	OnConversion func()

	// Conversions counts completed continuous conversions per channel.
	Conversions [ADCChannels]int
}

func (f *FakeADC) StartContinuous(ch uint8, ref ADCReference) {
	f.mux = ch % ADCChannels
	f.converting = f.mux
	f.running = true
}

func (f *FakeADC) StopContinuous() { f.running = false }
func (f *FakeADC) EnableInterrupt(on bool) { f.irq = on }
func (f *FakeADC) SetChannel(ch uint8, ref ADCReference) { f.mux = ch % ADCChannels }
func (f *FakeADC) Value() uint16 { return f.value }
func (f *FakeADC) Read(ch uint8, ref ADCReference) uint16 { return f.Levels[ch%ADCChannels] }

// Running reports whether continuous conversions are on.
func (f *FakeADC) Running() bool { return f.running }

// InterruptEnabled reports whether the completion interrupt is on.
func (f *FakeADC) InterruptEnabled() bool { return f.irq }

// Channel returns the multiplexer setting.
func (f *FakeADC) Channel() uint8 { return f.mux }

// Run completes up to n conversions. It stops early when continuous mode
// is turned off.
func (f *FakeADC) Run(n int) {
	for i := 0; i < n && f.running; i++ {
		f.value = f.Levels[f.converting]
		f.Conversions[f.converting]++
		f.converting = f.mux
		if f.irq && f.OnConversion != nil {
			f.OnConversion()
		}
	}
}

// FakePinMode records how a FakeGPIO pin was configured.
type FakePinMode uint8

const (
	FakePinUnset FakePinMode = iota
	FakePinOutput
	FakePinInput
	FakePinInputPullUp
)

// FakeGPIO holds pin levels in memory. Unset input pins read high, as
// with the pull-ups enabled.
type FakeGPIO struct {
	levels map[GPIOPin]bool
	modes  map[GPIOPin]FakePinMode

	// Writes counts SetPin calls per pin.
	Writes map[GPIOPin]int
}

// NewFakeGPIO creates a FakeGPIO with every pin high.
func NewFakeGPIO() *FakeGPIO {
	return &FakeGPIO{
		levels: make(map[GPIOPin]bool),
		modes:  make(map[GPIOPin]FakePinMode),
		Writes: make(map[GPIOPin]int),
	}
}

func (f *FakeGPIO) ConfigureOutput(pin GPIOPin) error {
	f.modes[pin] = FakePinOutput
	return nil
}

func (f *FakeGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	f.modes[pin] = FakePinInputPullUp
	return nil
}

func (f *FakeGPIO) ConfigureInput(pin GPIOPin) error {
	f.modes[pin] = FakePinInput
	return nil
}

func (f *FakeGPIO) SetPin(pin GPIOPin, value bool) error {
	f.levels[pin] = value
	f.Writes[pin]++
	return nil
}

func (f *FakeGPIO) ReadPin(pin GPIOPin) bool {
	v, ok := f.levels[pin]
	if !ok {
		return true
	}
	return v
}

// Set drives an input pin from outside, like a sensor would.
func (f *FakeGPIO) Set(pin GPIOPin, value bool) {
	f.levels[pin] = value
}

// Mode returns how pin was last configured.
func (f *FakeGPIO) Mode(pin GPIOPin) FakePinMode {
	return f.modes[pin]
}

// FakeMotor records every direction it is given.
type FakeMotor struct {
	Dir     MotorDirection
	History []MotorDirection
	Inits   int
}

func (m *FakeMotor) Init() error {
	m.Inits++
	return nil
}

func (m *FakeMotor) SetMotor(dir MotorDirection) {
	m.Dir = dir
	m.History = append(m.History, dir)
}

// FakeTone counts speaker pin activity.
type FakeTone struct {
	Level   bool
	Toggles int
	Offs    int
}

func (t *FakeTone) On() error {
	t.Level = true
	return nil
}

func (t *FakeTone) Off() error {
	t.Level = false
	t.Offs++
	return nil
}

func (t *FakeTone) Toggle() error {
	t.Level = !t.Level
	t.Toggles++
	return nil
}

// FakeStepClock records whether the step clock runs.
type FakeStepClock struct {
	Running bool
	Starts  int
	Inits   int
}

func (c *FakeStepClock) Init() error {
	c.Inits++
	c.Running = false
	return nil
}

func (c *FakeStepClock) Start() {
	c.Running = true
	c.Starts++
}

func (c *FakeStepClock) Stop() { c.Running = false }
