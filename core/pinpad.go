package core

import "time"

// Pinpad decoding constants. A key press pulls the pinpad channel down to
// the key's level; the key is decided by the lowest level seen before the
// line returns to idle.
const (
	PinpadFuzz     = 23
	PinpadMaxValid = 586 + PinpadFuzz  // above the highest key
	PinpadMinIdle  = 1023 - PinpadFuzz // released
	PinpadMaxEntry = 32                // digits kept per entry
	PinpadTimeout  = 10 * time.Second  // inactivity before sleeping
	pinpadNoMin    = ADCMaxValue + 1   // no press in progress
	pinpadTrack    = 5                 // window half-width while pressed
	pinpadFaulty   = 0                 // key code for an undecodable press
)

var pinpadLevels = [12]int16{93, 170, 236, 292, 371, 410, 445, 476, 522, 545, 566, 586}
var pinpadKeys = [12]byte{'*', '7', '4', '1', '0', '8', '5', '2', '#', '9', '6', '3'}

// PinpadEvents receives what the pinpad decodes. Calls are made from
// interrupt context. The pin passed to PinEntered is the pinpad's own entry
// buffer and is only valid during the call.
type PinpadEvents interface {
	PinpadFeedback(tone int)
	PinEntered(pin []byte)
	LockRequested()
	PinpadAwake(awake bool)
}

// WakeControl enables or disables the pin-change interrupt on the pinpad
// line, which is read digitally while the pinpad sleeps.
type WakeControl func(enable bool)

// Pinpad reads a 12-key resistor ladder through one watched ADC channel and
// collects key presses into PIN entries. `*` clears the entry and `#`
// submits it.
type Pinpad struct {
	sched   *Scheduler
	watch   *Watcher
	channel uint8
	events  PinpadEvents
	wake    WakeControl

	minval   int16
	sleeping bool
	entry    [PinpadMaxEntry]byte
	entryLen int

	sleepEvent *Handler
}

// NewPinpad creates a pinpad on the given ADC channel.
func NewPinpad(sched *Scheduler, watch *Watcher, channel uint8, events PinpadEvents, wake WakeControl) *Pinpad {
	p := &Pinpad{
		sched:   sched,
		watch:   watch,
		channel: channel,
		events:  events,
		wake:    wake,
		minval:  pinpadNoMin,
	}
	p.sleepEvent = NewHandler("pinpad-sleep", p.onSleep)
	return p
}

// Init starts watching the pinpad channel.
func (p *Pinpad) Init() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	p.minval = pinpadNoMin
	p.entryLen = 0
	p.unsleep()
}

// DecodeKey returns the key whose level is nearest to value, or 0 when no
// key is within the fuzz.
func DecodeKey(value int16) byte {
	index := 0
	mindiff := int16(ADCMaxValue + 1)
	for i, level := range pinpadLevels {
		diff := value - level
		if diff < 0 {
			diff = -diff
		}
		if diff < mindiff {
			mindiff = diff
			index = i
		}
	}
	if mindiff < PinpadFuzz {
		return pinpadKeys[index]
	}
	return pinpadFaulty
}

// OnReading handles a watch event on the pinpad channel.
func (p *Pinpad) OnReading(value int16) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if p.minval == pinpadNoMin {
		p.watch.SetRange(p.channel, value-pinpadTrack, value+pinpadTrack)
	}
	if value < p.minval {
		p.minval = value
	}
	if value <= PinpadMinIdle {
		return
	}
	if p.minval < PinpadMinIdle {
		p.keyPressed(DecodeKey(p.minval))
	}
	p.minval = pinpadNoMin
	p.watch.SetRange(p.channel, PinpadMaxValid, ADCMaxValue)
}

func (p *Pinpad) keyPressed(key byte) {
	p.beUsed()
	if key == pinpadFaulty {
		p.events.PinpadFeedback(ToneBad)
		return
	}
	p.pressKey(key)
}

func (p *Pinpad) pressKey(key byte) {
	switch key {
	case '#':
		if p.entryLen < PinpadMaxEntry {
			p.submit()
		}
		p.entryLen = 0
		p.events.PinpadFeedback(ToneEnd)
	case '*':
		p.entryLen = 0
		p.events.PinpadFeedback(ToneStart)
	default:
		if p.entryLen >= PinpadMaxEntry {
			// Overlong entries are dropped on submit.
			return
		}
		p.entry[p.entryLen] = key
		p.entryLen++
		p.events.PinpadFeedback(ToneGood)
	}
}

func (p *Pinpad) submit() {
	if p.entryLen == 0 {
		return
	}
	if p.entryLen == 1 && p.entry[0] == '0' {
		p.events.LockRequested()
		return
	}
	p.events.PinEntered(p.entry[:p.entryLen])
}

// beUsed restarts the inactivity timer.
func (p *Pinpad) beUsed() {
	p.sched.Cancel(p.sleepEvent)
	p.sched.After(PinpadTimeout, p.sleepEvent, 0)
}

func (p *Pinpad) onSleep(uint32) {
	p.sleeping = true
	p.sleep()
	p.entryLen = 0
	p.events.PinpadFeedback(ToneSleep)
	p.events.PinpadAwake(false)
}

// Sleep stops reading the pinpad and arms the wake interrupt.
func (p *Pinpad) Sleep() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	p.sched.Cancel(p.sleepEvent)
	p.sleeping = true
	p.sleep()
	p.minval = pinpadNoMin
	p.entryLen = 0
}

func (p *Pinpad) sleep() {
	if p.wake != nil {
		p.wake(true)
	}
	p.watch.RemoveChannel(p.channel)
}

func (p *Pinpad) unsleep() {
	if p.wake != nil {
		p.wake(false)
	}
	p.watch.SetRange(p.channel, PinpadMaxValid, ADCMaxValue)
	p.watch.AddChannel(p.channel)
}

// Wake handles a falling edge on the pinpad line. It does nothing unless
// the pinpad is asleep.
func (p *Pinpad) Wake() bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if !p.sleeping {
		return false
	}
	p.sleeping = false
	p.unsleep()
	p.beUsed()
	p.events.PinpadFeedback(ToneWakeup)
	p.events.PinpadAwake(true)
	return true
}

// Asleep reports whether the pinpad is sleeping.
func (p *Pinpad) Asleep() bool {
	state := disableInterrupts()
	s := p.sleeping
	restoreInterrupts(state)
	return s
}

// Entry returns the digits typed so far.
func (p *Pinpad) Entry() string {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	if p.entryLen > PinpadMaxEntry {
		return ""
	}
	return string(p.entry[:p.entryLen])
}
