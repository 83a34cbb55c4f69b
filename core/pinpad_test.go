package core

import (
	"strings"
	"testing"
	"time"
)

type pinpadRecorder struct {
	tones []int
	pins  []string
	locks int
	awake []bool
	wakes []bool // WakeControl calls
}

func (r *pinpadRecorder) PinpadFeedback(tone int) { r.tones = append(r.tones, tone) }
func (r *pinpadRecorder) PinEntered(pin []byte) { r.pins = append(r.pins, string(pin)) }
func (r *pinpadRecorder) LockRequested() { r.locks++ }
func (r *pinpadRecorder) PinpadAwake(awake bool) { r.awake = append(r.awake, awake) }

const testPinpadChannel = 4

var keyLevels = map[byte]int16{
	'*': 93, '7': 170, '4': 236, '1': 292, '0': 371, '8': 410,
	'5': 445, '2': 476, '#': 522, '9': 545, '6': 566, '3': 586,
}

func newTestPinpad(t *testing.T) (*Pinpad, *pinpadRecorder, *Watcher, *FakeTimer) {
	t.Helper()
	s, timer := newTestScheduler(t, 8)
	w := NewWatcher(&FakeADC{}, nil)
	rec := &pinpadRecorder{}
	p := NewPinpad(s, w, testPinpadChannel, rec, func(on bool) {
		rec.wakes = append(rec.wakes, on)
	})
	p.Init()
	return p, rec, w, timer
}

// press simulates a key going down to level and back up.
func press(p *Pinpad, level int16) {
	p.OnReading(level + 3)
	p.OnReading(level)
	p.OnReading(ADCMaxValue)
}

func typeKeys(p *Pinpad, keys string) {
	for i := 0; i < len(keys); i++ {
		press(p, keyLevels[keys[i]])
	}
}

func TestDecodeKey(t *testing.T) {
	tests := []struct {
		value int16
		want  byte
	}{
		{93, '*'},
		{100, '*'},
		{170, '7'},
		{300, '1'},
		{371, '0'},
		{586, '3'},
		{600, '3'},
		{330, 0}, // between 1 and 0
		{20, 0},
		{700, 0},
	}
	for _, tt := range tests {
		if got := DecodeKey(tt.value); got != tt.want {
			t.Errorf("DecodeKey(%d): expected %q, got %q", tt.value, tt.want, got)
		}
	}
}

func TestPinpadInitWatchesChannel(t *testing.T) {
	_, rec, w, _ := newTestPinpad(t)
	if w.Mask()&(1<<testPinpadChannel) == 0 {
		t.Error("Expected pinpad channel watched")
	}
	if min, max := w.Range(testPinpadChannel); min != PinpadMaxValid || max != ADCMaxValue {
		t.Errorf("Expected idle window %d..%d, got %d..%d", PinpadMaxValid, ADCMaxValue, min, max)
	}
	if len(rec.wakes) != 1 || rec.wakes[0] {
		t.Errorf("Expected wake interrupt disabled, got %v", rec.wakes)
	}
}

func TestPinpadTracksPress(t *testing.T) {
	p, rec, w, _ := newTestPinpad(t)

	p.OnReading(300)
	if min, max := w.Range(testPinpadChannel); min != 295 || max != 305 {
		t.Errorf("Expected tracking window 295..305, got %d..%d", min, max)
	}
	p.OnReading(292)
	if len(rec.tones) != 0 {
		t.Fatalf("Expected nothing before release, got %v", rec.tones)
	}
	p.OnReading(1010)
	if p.Entry() != "1" {
		t.Errorf("Expected entry \"1\", got %q", p.Entry())
	}
	if min, max := w.Range(testPinpadChannel); min != PinpadMaxValid || max != ADCMaxValue {
		t.Errorf("Expected idle window restored, got %d..%d", min, max)
	}
}

func TestPinpadEntersPin(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	typeKeys(p, "*1234#")

	if len(rec.pins) != 1 || rec.pins[0] != "1234" {
		t.Errorf("Expected PIN 1234, got %v", rec.pins)
	}
	want := []int{ToneStart, ToneGood, ToneGood, ToneGood, ToneGood, ToneEnd}
	if len(rec.tones) != len(want) {
		t.Fatalf("Expected tones %v, got %v", want, rec.tones)
	}
	for i := range want {
		if rec.tones[i] != want[i] {
			t.Errorf("Tone %d: expected %d, got %d", i, want[i], rec.tones[i])
		}
	}
	if p.Entry() != "" {
		t.Errorf("Expected entry cleared after submit, got %q", p.Entry())
	}
}

func TestPinpadStarClears(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	typeKeys(p, "99*12#")
	if len(rec.pins) != 1 || rec.pins[0] != "12" {
		t.Errorf("Expected PIN 12, got %v", rec.pins)
	}
}

func TestPinpadLockCode(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	typeKeys(p, "*0#")
	if rec.locks != 1 {
		t.Errorf("Expected one lock request, got %d", rec.locks)
	}
	if len(rec.pins) != 0 {
		t.Errorf("Expected no PIN report, got %v", rec.pins)
	}

	typeKeys(p, "00#")
	if len(rec.pins) != 1 || rec.pins[0] != "00" {
		t.Errorf("Expected PIN 00, got %v", rec.pins)
	}
}

func TestPinpadEmptySubmit(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	typeKeys(p, "#")
	if len(rec.pins) != 0 || rec.locks != 0 {
		t.Errorf("Expected nothing for an empty entry, got pins %v locks %d", rec.pins, rec.locks)
	}
	if len(rec.tones) != 1 || rec.tones[0] != ToneEnd {
		t.Errorf("Expected end tone, got %v", rec.tones)
	}
}

func TestPinpadFaultyPress(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	press(p, 330)
	if len(rec.tones) != 1 || rec.tones[0] != ToneBad {
		t.Errorf("Expected bad tone, got %v", rec.tones)
	}
	if p.Entry() != "" {
		t.Errorf("Expected entry unchanged, got %q", p.Entry())
	}
}

func TestPinpadOverlongEntry(t *testing.T) {
	p, rec, _, _ := newTestPinpad(t)
	typeKeys(p, strings.Repeat("5", PinpadMaxEntry))
	if len(rec.tones) != PinpadMaxEntry {
		t.Fatalf("Expected %d tones, got %d", PinpadMaxEntry, len(rec.tones))
	}
	typeKeys(p, "5")
	if len(rec.tones) != PinpadMaxEntry {
		t.Errorf("Expected extra digits ignored, got %d tones", len(rec.tones))
	}
	typeKeys(p, "#")
	if len(rec.pins) != 0 {
		t.Errorf("Expected overlong entry dropped, got %v", rec.pins)
	}
}

// pinSink keeps the last PIN in a fixed buffer.
type pinSink struct {
	last [PinpadMaxEntry]byte
	n    int
}

func (s *pinSink) PinpadFeedback(int) {}
func (s *pinSink) PinEntered(pin []byte) { s.n = copy(s.last[:], pin) }
func (s *pinSink) LockRequested() {}
func (s *pinSink) PinpadAwake(bool) {}

func TestPinpadEntryDoesNotAllocate(t *testing.T) {
	sched, _ := newTestScheduler(t, 8)
	sink := &pinSink{}
	p := NewPinpad(sched, NewWatcher(&FakeADC{}, nil), testPinpadChannel, sink, nil)
	p.Init()

	allocs := testing.AllocsPerRun(20, func() {
		typeKeys(p, "*1234#")
	})
	if allocs != 0 {
		t.Errorf("Expected 0 allocations per entry, got %v", allocs)
	}
	if got := string(sink.last[:sink.n]); got != "1234" {
		t.Errorf("Expected PIN 1234, got %q", got)
	}
}

func TestPinpadSleepsAfterInactivity(t *testing.T) {
	p, rec, w, timer := newTestPinpad(t)
	typeKeys(p, "12")

	timer.AdvanceDuration(PinpadTimeout - time.Millisecond)
	if p.Asleep() {
		t.Fatal("Expected pinpad awake before the timeout")
	}
	timer.AdvanceDuration(time.Millisecond)
	if !p.Asleep() {
		t.Fatal("Expected pinpad asleep after the timeout")
	}
	if len(rec.awake) != 1 || rec.awake[0] {
		t.Errorf("Expected AWAKE=0 report, got %v", rec.awake)
	}
	if rec.tones[len(rec.tones)-1] != ToneSleep {
		t.Errorf("Expected sleep tone last, got %v", rec.tones)
	}
	if w.Mask()&(1<<testPinpadChannel) != 0 {
		t.Error("Expected pinpad channel unwatched while asleep")
	}
	if rec.wakes[len(rec.wakes)-1] != true {
		t.Error("Expected wake interrupt enabled while asleep")
	}
	if p.Entry() != "" {
		t.Errorf("Expected entry dropped on sleep, got %q", p.Entry())
	}
}

func TestPinpadKeyRestartsTimeout(t *testing.T) {
	p, _, _, timer := newTestPinpad(t)
	typeKeys(p, "1")
	timer.AdvanceDuration(8 * time.Second)
	typeKeys(p, "2")
	timer.AdvanceDuration(8 * time.Second)
	if p.Asleep() {
		t.Error("Expected a key press to restart the timeout")
	}
}

func TestPinpadWake(t *testing.T) {
	p, rec, w, timer := newTestPinpad(t)
	if p.Wake() {
		t.Error("Expected Wake to do nothing while awake")
	}

	p.Sleep()
	if !p.Asleep() {
		t.Fatal("Expected pinpad asleep")
	}
	if !p.Wake() {
		t.Fatal("Expected Wake to wake a sleeping pinpad")
	}
	if p.Asleep() {
		t.Error("Expected pinpad awake")
	}
	if len(rec.awake) != 1 || !rec.awake[0] {
		t.Errorf("Expected AWAKE=1 report, got %v", rec.awake)
	}
	if rec.tones[len(rec.tones)-1] != ToneWakeup {
		t.Errorf("Expected wakeup tone, got %v", rec.tones)
	}
	if w.Mask()&(1<<testPinpadChannel) == 0 {
		t.Error("Expected pinpad channel watched again")
	}

	// Waking counts as use, so it falls asleep again.
	timer.AdvanceDuration(PinpadTimeout)
	if !p.Asleep() {
		t.Error("Expected pinpad asleep again after the timeout")
	}
}
