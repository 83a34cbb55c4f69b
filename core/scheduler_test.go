package core

import (
	"testing"
	"time"
)

// newTestScheduler returns a running scheduler on a fake timer at Div8
// (2 MHz ticks).
func newTestScheduler(t *testing.T, capacity int) (*Scheduler, *FakeTimer) {
	t.Helper()
	timer := &FakeTimer{}
	s, err := NewScheduler(timer, capacity)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	timer.OnCompare = s.HandleCompare
	s.Start(PrescaleDiv8)
	return s, timer
}

// recorder collects handler runs in dispatch order.
type recorder struct {
	runs []string
	args []uint32
}

func (r *recorder) handler(name string) *Handler {
	return NewHandler(name, func(arg uint32) {
		r.runs = append(r.runs, name)
		r.args = append(r.args, arg)
	})
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNewSchedulerCapacity(t *testing.T) {
	tests := []struct {
		capacity int
		wantErr  bool
	}{
		{0, true},
		{1, false},
		{16, false},
		{MaxQueueCapacity, false},
		{MaxQueueCapacity + 1, true},
	}
	for _, tt := range tests {
		_, err := NewScheduler(&FakeTimer{}, tt.capacity)
		if (err != nil) != tt.wantErr {
			t.Errorf("capacity %d: expected error %v, got %v", tt.capacity, tt.wantErr, err)
		}
	}
}

func TestTickConversions(t *testing.T) {
	tests := []struct {
		name     string
		d        time.Duration
		prescale TimerPrescale
		ticks    uint32
	}{
		{"1ms at div1", time.Millisecond, PrescaleDiv1, 16000},
		{"1ms at div8", time.Millisecond, PrescaleDiv8, 2000},
		{"1s at div64", time.Second, PrescaleDiv64, 250000},
		{"24s at div1", 24 * time.Second, PrescaleDiv1, 384000000},
		{"stopped", time.Second, PrescaleStopped, 0},
		{"negative", -time.Second, PrescaleDiv1, 0},
		{"below max delay at div8", 1073741823000 * time.Nanosecond, PrescaleDiv8, MaxDelay - 1},
		{"max delay at div8", 1073741823500 * time.Nanosecond, PrescaleDiv8, MaxDelay},
		{"one past max delay at div8", 1073741824000 * time.Nanosecond, PrescaleDiv8, MaxDelay},
		{"past max delay at div1", 135 * time.Second, PrescaleDiv1, MaxDelay},
		{"1h at div8", time.Hour, PrescaleDiv8, MaxDelay},
		{"longest duration", time.Duration(1<<63 - 1), PrescaleDiv1024, MaxDelay},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TicksFromDuration(tt.d, tt.prescale)
			if got != tt.ticks {
				t.Errorf("Expected %d ticks, got %d", tt.ticks, got)
			}
		})
	}

	if d := DurationFromTicks(2000, PrescaleDiv8); d != time.Millisecond {
		t.Errorf("Expected 1ms, got %v", d)
	}
}

func TestLongDelayStaysInFuture(t *testing.T) {
	tests := []struct {
		name string
		add  func(s *Scheduler, h *Handler) bool
	}{
		{"after 1h", func(s *Scheduler, h *Handler) bool { return s.After(time.Hour, h, 0) }},
		{"rel max delay", func(s *Scheduler, h *Handler) bool { return s.EnqueueRel(MaxDelay, h, 0) }},
		{"rel past max delay", func(s *Scheduler, h *Handler) bool { return s.EnqueueRel(1<<31+5, h, 0) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, timer := newTestScheduler(t, 4)
			rec := &recorder{}
			if !tt.add(s, rec.handler("late")) {
				t.Fatalf("Expected the event to be queued")
			}
			timer.Advance(100)
			if len(rec.runs) != 0 {
				t.Errorf("Expected no runs, got %v", rec.runs)
			}
			if s.Len() != 1 {
				t.Errorf("Expected 1 queued event, got %d", s.Len())
			}
		})
	}
}

func TestTimeAtOrAfterWraps(t *testing.T) {
	tests := []struct {
		a, b uint32
		want bool
	}{
		{10, 5, true},
		{5, 10, false},
		{7, 7, true},
		{0x00000010, 0xfffffff0, true},
		{0xfffffff0, 0x00000010, false},
	}
	for _, tt := range tests {
		if got := timeAtOrAfter(tt.a, tt.b); got != tt.want {
			t.Errorf("timeAtOrAfter(%#x, %#x): expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestSchedulerDispatchOrder(t *testing.T) {
	s, timer := newTestScheduler(t, 8)
	rec := &recorder{}

	s.EnqueueAbs(3000, rec.handler("c"), 0)
	s.EnqueueAbs(1000, rec.handler("a"), 0)
	s.EnqueueAbs(2000, rec.handler("b1"), 0)
	s.EnqueueAbs(2000, rec.handler("b2"), 0)
	s.EnqueueAbs(2000, rec.handler("b3"), 0)

	timer.Advance(999)
	if len(rec.runs) != 0 {
		t.Fatalf("Expected nothing dispatched before t=1000, got %v", rec.runs)
	}
	timer.Advance(1)
	if !equalStrings(rec.runs, []string{"a"}) {
		t.Fatalf("Expected [a] at t=1000, got %v", rec.runs)
	}

	timer.Advance(5000)
	want := []string{"a", "b1", "b2", "b3", "c"}
	if !equalStrings(rec.runs, want) {
		t.Errorf("Expected %v, got %v", want, rec.runs)
	}
	if s.Len() != 0 {
		t.Errorf("Expected empty queue, got %d events", s.Len())
	}
}

func TestSchedulerEnqueueRel(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}
	h := rec.handler("h")

	timer.Advance(500)
	if !s.EnqueueRel(100, h, 42) {
		t.Fatal("EnqueueRel failed")
	}
	ev := s.Events()
	if len(ev) != 1 || ev[0].Time != 600 || ev[0].Arg != 42 {
		t.Fatalf("Expected one event at 600 with arg 42, got %+v", ev)
	}
	timer.Advance(100)
	if len(rec.args) != 1 || rec.args[0] != 42 {
		t.Errorf("Expected handler run with 42, got %v", rec.args)
	}
}

func TestSchedulerAfter(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}

	s.After(5*time.Millisecond, rec.handler("h"), 0)
	timer.AdvanceDuration(4 * time.Millisecond)
	if len(rec.runs) != 0 {
		t.Fatal("Expected no dispatch after 4ms")
	}
	timer.AdvanceDuration(time.Millisecond)
	if len(rec.runs) != 1 {
		t.Errorf("Expected dispatch after 5ms, got %d runs", len(rec.runs))
	}
}

func TestSchedulerCancelKeepsOrder(t *testing.T) {
	s, timer := newTestScheduler(t, 8)
	rec := &recorder{}
	a := rec.handler("a")
	b := rec.handler("b")
	c := rec.handler("c")

	s.EnqueueAbs(100, a, 1)
	s.EnqueueAbs(200, b, 2)
	s.EnqueueAbs(300, a, 3)
	s.EnqueueAbs(400, c, 4)
	s.EnqueueAbs(500, a, 5)

	if s.Pending(a) != 3 {
		t.Errorf("Expected 3 pending for a, got %d", s.Pending(a))
	}
	if !s.Cancel(a) {
		t.Fatal("Expected Cancel to report removal")
	}
	if s.Pending(a) != 0 {
		t.Errorf("Expected 0 pending for a, got %d", s.Pending(a))
	}
	ev := s.Events()
	if len(ev) != 2 || ev[0].Handler != b || ev[1].Handler != c {
		t.Fatalf("Expected [b c] left, got %+v", ev)
	}
	if s.Cancel(a) {
		t.Error("Expected second Cancel to remove nothing")
	}

	timer.Advance(1000)
	if !equalStrings(rec.runs, []string{"b", "c"}) {
		t.Errorf("Expected [b c] dispatched, got %v", rec.runs)
	}
}

func TestSchedulerCancelEverything(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}
	a := rec.handler("a")

	s.EnqueueAbs(100, a, 0)
	s.EnqueueAbs(200, a, 0)
	s.Cancel(a)
	if s.Len() != 0 {
		t.Fatalf("Expected empty queue, got %d", s.Len())
	}

	// The queue must still work after being emptied by a cancel.
	s.EnqueueAbs(300, a, 7)
	timer.Advance(300)
	if len(rec.args) != 1 || rec.args[0] != 7 {
		t.Errorf("Expected one run with arg 7, got %v", rec.args)
	}
}

func TestSchedulerQueueFull(t *testing.T) {
	s, _ := newTestScheduler(t, 3)
	rec := &recorder{}
	h := rec.handler("h")

	for i := uint32(0); i < 3; i++ {
		if !s.EnqueueAbs(100*(i+1), h, i) {
			t.Fatalf("Enqueue %d failed", i)
		}
	}
	before := s.Events()
	if s.EnqueueAbs(50, h, 99) {
		t.Fatal("Expected enqueue on a full queue to fail")
	}
	if s.EnqueueRel(10, h, 99) {
		t.Fatal("Expected relative enqueue on a full queue to fail")
	}
	after := s.Events()
	if len(after) != len(before) {
		t.Fatalf("Expected %d events, got %d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("Event %d changed: %+v -> %+v", i, before[i], after[i])
		}
	}
}

func TestSchedulerRingWrap(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}
	h := rec.handler("h")

	// A standing far event keeps the ring from resetting to slot 0, so
	// the indices travel around the end of the buffer.
	s.EnqueueRel(1000000, NewHandler("far", func(uint32) {}), 0)
	for round := uint32(0); round < 10; round++ {
		base := s.Now()
		s.EnqueueAbs(base+30, h, round*3+2)
		s.EnqueueAbs(base+10, h, round*3)
		s.EnqueueAbs(base+20, h, round*3+1)
		timer.Advance(30)
	}
	if len(rec.args) != 30 {
		t.Fatalf("Expected 30 runs, got %d", len(rec.args))
	}
	for i, arg := range rec.args {
		if arg != uint32(i) {
			t.Fatalf("Run %d: expected arg %d, got %d", i, i, arg)
		}
	}
}

func TestSchedulerClockTracksOverflow(t *testing.T) {
	s, timer := newTestScheduler(t, 4)

	timer.Advance(200000)
	if now := s.Now(); now != 200000 {
		t.Errorf("Expected clock 200000, got %d", now)
	}

	// A far event keeps the compare busy; the clock must still follow.
	rec := &recorder{}
	s.EnqueueRel(1000000, rec.handler("far"), 0)
	timer.Advance(999999)
	if len(rec.runs) != 0 {
		t.Fatal("Far event dispatched early")
	}
	if now := s.Now(); now != 1199999 {
		t.Errorf("Expected clock 1199999, got %d", now)
	}
	timer.Advance(1)
	if len(rec.runs) != 1 {
		t.Error("Far event not dispatched on time")
	}
}

func TestSchedulerTimeWraparound(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	s.timeHigh = 0xffff
	timer.SetCounter(0xff00)
	timer.SetCompare(0xff00)

	rec := &recorder{}
	now := s.Now()
	if now != 0xffffff00 {
		t.Fatalf("Expected clock 0xffffff00, got %#x", now)
	}

	// Wraps past 2^32 but must still sort after the nearer event.
	s.EnqueueRel(0x300, rec.handler("late"), 0)
	s.EnqueueRel(0x80, rec.handler("early"), 0)

	timer.Advance(0x7f)
	if len(rec.runs) != 0 {
		t.Fatalf("Expected nothing yet, got %v", rec.runs)
	}
	timer.Advance(1)
	if !equalStrings(rec.runs, []string{"early"}) {
		t.Fatalf("Expected [early], got %v", rec.runs)
	}
	timer.Advance(0x27f)
	if len(rec.runs) != 1 {
		t.Fatalf("Expected late event still pending, got %v", rec.runs)
	}
	timer.Advance(1)
	if !equalStrings(rec.runs, []string{"early", "late"}) {
		t.Errorf("Expected [early late], got %v", rec.runs)
	}
	if now := s.Now(); now != 0x200 {
		t.Errorf("Expected clock 0x200 after wrap, got %#x", now)
	}
}

func TestSchedulerLateCompare(t *testing.T) {
	ClearTimingRing()
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}

	timer.Advance(1000)
	s.EnqueueAbs(500, rec.handler("past"), 0)
	if got := timer.CompareValue(); got != 1000+10 {
		t.Errorf("Expected compare at 1010, got %d", got)
	}
	timer.Advance(9)
	if len(rec.runs) != 0 {
		t.Fatal("Expected past event to wait for the lead distance")
	}
	timer.Advance(1)
	if len(rec.runs) != 1 {
		t.Fatal("Expected past event dispatched after the lead distance")
	}

	found := false
	for _, ev := range TimingEvents() {
		if ev.EventType == EvtLateCompare {
			found = true
		}
	}
	if !found {
		t.Error("Expected a late compare in the timing ring")
	}
}

func TestSchedulerHandlerReschedules(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	count := 0
	var tick *Handler
	tick = NewHandler("tick", func(arg uint32) {
		count++
		if arg > 0 {
			s.EnqueueRel(100, tick, arg-1)
		}
	})

	s.EnqueueRel(100, tick, 4)
	timer.Advance(10000)
	if count != 5 {
		t.Errorf("Expected 5 runs, got %d", count)
	}
}

func TestSchedulerHandlerCancelsOther(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}
	victim := rec.handler("victim")
	killer := NewHandler("killer", func(uint32) { s.Cancel(victim) })

	s.EnqueueAbs(100, killer, 0)
	s.EnqueueAbs(100, victim, 0)
	timer.Advance(200)
	if len(rec.runs) != 0 {
		t.Errorf("Expected victim cancelled, got %v", rec.runs)
	}
}

func TestSchedulerStop(t *testing.T) {
	s, timer := newTestScheduler(t, 4)
	rec := &recorder{}
	s.EnqueueRel(100, rec.handler("h"), 0)

	s.Stop()
	timer.Advance(1000)
	if len(rec.runs) != 0 {
		t.Fatal("Expected no dispatch while stopped")
	}
	if s.Len() != 1 {
		t.Errorf("Expected event kept while stopped, got %d", s.Len())
	}

	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Expected empty queue after Clear, got %d", s.Len())
	}
}
