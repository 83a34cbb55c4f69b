package core

import (
	"errors"
	"time"
)

// Handler identifies the code run for a scheduled event. Cancellation
// matches handlers by pointer, so each logical timer owns one *Handler.
type Handler struct {
	Name string
	Func func(arg uint32)
}

// NewHandler returns a handler that runs fn.
func NewHandler(name string, fn func(arg uint32)) *Handler {
	return &Handler{Name: name, Func: fn}
}

// Event is one scheduled callback.
type Event struct {
	Time    uint32
	Handler *Handler
	Arg     uint32
}

const (
	// MaxQueueCapacity keeps ring indices below the empty marker.
	MaxQueueCapacity = 254

	emptyIndex = 0xff

	// dispatchNudge is how far ahead the compare register is moved when the
	// next event's low word has already been passed during dispatch.
	dispatchNudge = 18
)

var ErrBadCapacity = errors.New("scheduler capacity must be between 1 and 254")

// Scheduler is a fixed-capacity, time-ordered event queue driven by one
// compare-match interrupt of a 16-bit hardware timer. The 16-bit counter is
// extended to 32 bits in software.
//
// The queue is a ring buffer from first to free (exclusive). Since
// first == free means both full and empty, an empty queue is marked with
// first == emptyIndex.
type Scheduler struct {
	hw       TimerDriver
	queue    []Event
	first    uint8
	free     uint8
	timeHigh uint16
	prescale TimerPrescale
}

// NewScheduler creates a stopped scheduler owning hw.
func NewScheduler(hw TimerDriver, capacity int) (*Scheduler, error) {
	if capacity < 1 || capacity > MaxQueueCapacity {
		return nil, ErrBadCapacity
	}
	return &Scheduler{
		hw:    hw,
		queue: make([]Event, capacity),
		first: emptyIndex,
	}, nil
}

// Start initializes the hardware timer, arms the compare register for the
// earliest pending event and starts counting at prescale p.
func (s *Scheduler) Start(p TimerPrescale) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.hw.Init()
	if s.first != emptyIndex {
		s.hw.SetCompare(uint16(s.queue[s.first].Time))
	} else {
		s.hw.SetCompare(0)
	}
	s.prescale = p
	s.hw.SetPrescale(p)
}

// Stop halts the hardware counter. Pending events stay queued.
func (s *Scheduler) Stop() {
	state := disableInterrupts()
	s.hw.SetPrescale(PrescaleStopped)
	restoreInterrupts(state)
}

// Clear drops every pending event.
func (s *Scheduler) Clear() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := range s.queue {
		s.queue[i] = Event{}
	}
	s.first = emptyIndex
	s.free = 0
}

// Prescale returns the prescale the scheduler was started with.
func (s *Scheduler) Prescale() TimerPrescale {
	return s.prescale
}

// Ticks converts d to ticks at the running prescale.
func (s *Scheduler) Ticks(d time.Duration) uint32 {
	return TicksFromDuration(d, s.prescale)
}

// Now returns the current 32-bit tick count.
func (s *Scheduler) Now() uint32 {
	state := disableInterrupts()
	now := s.nowSync()
	restoreInterrupts(state)
	return now
}

// nowSync reads the extended counter. The hardware keeps counting while
// interrupts are masked, so the overflow flag is sampled before and after
// the counter. If it turned on in between, the counter value may belong to
// either side of the wrap and is taken as 0 of the new cycle.
// Call with interrupts disabled.
func (s *Scheduler) nowSync() uint32 {
	high := s.timeHigh
	ovfBefore := s.hw.OverflowPending()
	low := s.hw.Counter()
	if s.hw.OverflowPending() {
		high++
		s.timeHigh = high
		s.hw.ClearOverflow()
		if !ovfBefore {
			low = 0
		}
	}
	return uint32(high)<<16 | uint32(low)
}

func (s *Scheduler) checkOverflow() {
	if s.hw.OverflowPending() {
		s.hw.ClearOverflow()
		s.timeHigh++
	}
}

// Len returns the number of pending events.
func (s *Scheduler) Len() int {
	state := disableInterrupts()
	n := s.length()
	restoreInterrupts(state)
	return n
}

// Pending returns how many events for h are queued.
func (s *Scheduler) Pending(h *Handler) int {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	count := 0
	n := s.length()
	for i := 0; i < n; i++ {
		if s.queue[s.slot(i)].Handler == h {
			count++
		}
	}
	return count
}

// Events returns a copy of the queue in dispatch order.
func (s *Scheduler) Events() []Event {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := s.length()
	out := make([]Event, n)
	for i := 0; i < n; i++ {
		out[i] = s.queue[s.slot(i)]
	}
	return out
}

func (s *Scheduler) length() int {
	if s.first == emptyIndex {
		return 0
	}
	n := int(s.free) - int(s.first)
	if n <= 0 {
		n += len(s.queue)
	}
	return n
}

// slot maps a position in dispatch order to a ring index.
func (s *Scheduler) slot(pos int) int {
	return (int(s.first) + pos) % len(s.queue)
}

func (s *Scheduler) succ(i uint8) uint8 {
	if int(i) == len(s.queue)-1 {
		return 0
	}
	return i + 1
}

// EnqueueAbs schedules h(arg) at tick t. It returns false, leaving the queue
// untouched, when the queue is full.
func (s *Scheduler) EnqueueAbs(t uint32, h *Handler, arg uint32) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.insert(t, h, arg)
}

// EnqueueRel schedules h(arg) delta ticks from now. Deltas past MaxDelay
// are clamped to it.
func (s *Scheduler) EnqueueRel(delta uint32, h *Handler, arg uint32) bool {
	if delta > MaxDelay {
		delta = MaxDelay
	}
	state := disableInterrupts()
	defer restoreInterrupts(state)
	return s.insert(s.nowSync()+delta, h, arg)
}

// After schedules h(arg) once d has elapsed.
func (s *Scheduler) After(d time.Duration, h *Handler, arg uint32) bool {
	return s.EnqueueRel(s.Ticks(d), h, arg)
}

// insert places the event after every queued event that is not later than
// t, so equal times dispatch in insertion order. Call with interrupts
// disabled.
func (s *Scheduler) insert(t uint32, h *Handler, arg uint32) bool {
	n := s.length()
	if n == len(s.queue) {
		RecordTiming(EvtQueueFull, h.Name, t, uint32(n), 0)
		return false
	}
	ev := Event{Time: t, Handler: h, Arg: arg}
	if n == 0 {
		s.first = 0
		s.free = s.succ(0)
		s.queue[0] = ev
		s.armCompare(t)
		RecordTiming(EvtEnqueue, h.Name, t, 1, 0)
		return true
	}

	pos := n
	for pos > 0 && !timeAtOrAfter(t, s.queue[s.slot(pos-1)].Time) {
		pos--
	}
	for i := n; i > pos; i-- {
		s.queue[s.slot(i)] = s.queue[s.slot(i-1)]
	}
	s.queue[s.slot(pos)] = ev
	s.free = s.succ(s.free)
	if pos == 0 {
		s.armCompare(t)
	}
	RecordTiming(EvtEnqueue, h.Name, t, uint32(n+1), uint32(pos))
	return true
}

// armCompare points the compare register at t. If t is already due by the
// time the register is written, the nearest safe future tick is used
// instead so the match is not missed for a whole counter cycle.
func (s *Scheduler) armCompare(t uint32) {
	s.hw.SetCompare(uint16(t))
	now := s.nowSync()
	if timeAtOrAfter(now, t) {
		late := now + s.hw.Prescale().leadDistance()
		s.hw.SetCompare(uint16(late))
		RecordTiming(EvtLateCompare, "", now, t, late)
	}
}

// Cancel removes every queued event for h, keeping the order of the rest.
// It reports whether anything was removed.
func (s *Scheduler) Cancel(h *Handler) bool {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	n := s.length()
	if n == 0 {
		return false
	}
	headRemoved := s.queue[s.first].Handler == h
	kept := 0
	for i := 0; i < n; i++ {
		ev := s.queue[s.slot(i)]
		if ev.Handler == h {
			continue
		}
		if kept != i {
			s.queue[s.slot(kept)] = ev
		}
		kept++
	}
	if kept == n {
		return false
	}
	for i := kept; i < n; i++ {
		s.queue[s.slot(i)] = Event{}
	}
	RecordTiming(EvtCancel, h.Name, s.nowSync(), uint32(n-kept), uint32(kept))

	if kept == 0 {
		// The stale compare value only causes one spurious interrupt.
		s.first = emptyIndex
		s.free = 0
		return true
	}
	s.free = uint8(s.slot(kept))
	if headRemoved {
		s.armCompare(s.queue[s.first].Time)
	}
	return true
}

// HandleCompare is the compare-match interrupt handler. It runs every due
// event in order and re-arms the compare register for the next one. Handlers
// may enqueue or cancel events; the head is re-read after every call.
func (s *Scheduler) HandleCompare() {
	for {
		state := disableInterrupts()
		if s.first == emptyIndex {
			s.checkOverflow()
			restoreInterrupts(state)
			return
		}
		ev := s.queue[s.first]
		now := s.nowSync()
		if !timeAtOrAfter(now, ev.Time) {
			// Early wakeup from a nudged or per-cycle match: aim at the
			// head again.
			s.armCompare(ev.Time)
			restoreInterrupts(state)
			return
		}

		s.queue[s.first] = Event{}
		next := s.succ(s.first)
		if next != s.free {
			low := uint16(s.queue[next].Time)
			s.hw.SetCompare(low)
			counter := s.hw.Counter()
			if int16(counter-low) >= 0 {
				s.hw.SetCompare(counter + dispatchNudge)
			}
			s.first = next
		} else {
			s.first = emptyIndex
		}
		restoreInterrupts(state)

		RecordTiming(EvtDispatch, ev.Handler.Name, now, ev.Time, ev.Arg)
		ev.Handler.Func(ev.Arg)
	}
}
