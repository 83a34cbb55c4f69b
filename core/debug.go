package core

import "fablock/protocol"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures one scheduler or door event for post-mortem analysis
type TimingEvent struct {
	EventType uint8
	Label     string // Handler or subsystem name
	Clock     uint32 // Scheduler time at the event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtEnqueue     = 1 // Event queued (time, queue length, position)
	EvtDispatch    = 2 // Event handler run (due time, arg)
	EvtCancel      = 3 // Events cancelled (removed, kept)
	EvtLateCompare = 4 // Compare target already past when armed
	EvtQueueFull   = 5 // Enqueue rejected
	EvtModeChange  = 6 // Door mode change (old, new)
	EvtMotorFail   = 7 // Motor failure reported (reason, mode)
	EvtWatch       = 8 // ADC watch excursion (channel, value)
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  = true
)

// SetDebugWriter sets the platform-specific debug output function
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// RecordTiming captures an event in the ring buffer. It never blocks and
// is safe to call from interrupt handlers.
func RecordTiming(eventType uint8, label string, clock, value1, value2 uint32) {
	if !timingEnabled {
		return
	}
	state := disableInterrupts()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Label:     label,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	restoreInterrupts(state)
}

func timingEventName(t uint8) string {
	switch t {
	case EvtEnqueue:
		return "ENQUEUE"
	case EvtDispatch:
		return "DISPATCH"
	case EvtCancel:
		return "CANCEL"
	case EvtLateCompare:
		return "LATE!"
	case EvtQueueFull:
		return "QFULL!"
	case EvtModeChange:
		return "MODE"
	case EvtMotorFail:
		return "MFAIL"
	case EvtWatch:
		return "WATCH"
	}
	return "UNKNOWN"
}

// DumpTimingRing writes the ring, oldest first, through w.
func DumpTimingRing(w DebugWriter) {
	if w == nil {
		return
	}

	w("[TIMING] dump")
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := &timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		line := "[TIMING] " + timingEventName(evt.EventType)
		if evt.Label != "" {
			line += " " + evt.Label
		}
		w(line +
			" clock=" + protocol.FormatHex(evt.Clock, 8) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	w("[TIMING] end")
}

// TimingEvents returns the recorded events, oldest first.
func TimingEvents() []TimingEvent {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	var out []TimingEvent
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType != 0 {
			out = append(out, evt)
		}
	}
	return out
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := disableInterrupts()
	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
	restoreInterrupts(state)
}
