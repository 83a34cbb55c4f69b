package core

import "time"

// ToneOutput is the speaker pin. tinygo.org/x/drivers/buzzer.Device
// satisfies it.
type ToneOutput interface {
	On() error
	Off() error
	Toggle() error
}

// Note is one step of a melody. Pitch is a MIDI note number (69 = A4 at
// 440 Hz), or NoteRest for silence. Len is in melody time units.
type Note struct {
	Pitch uint8
	Len   uint8
}

// NoteRest marks a silent note.
const NoteRest = 0xff

// Feedback tones
const (
	ToneSleep = iota
	ToneBad
	ToneGood
	ToneStart
	ToneEnd
	ToneWakeup
	ToneGoodPin
	ToneBadPin
	ToneOther
)

// FeedbackUnit is the length of one melody unit in the feedback tones
// (480 units per minute).
const FeedbackUnit = time.Minute / 480

// MIDI numbers of the notes used by the feedback tones
const (
	noteG3  = 55
	noteA3  = 57
	noteB3  = 59
	noteC4  = 60
	noteA4  = 69
	noteCs5 = 73
	noteE5  = 76
	noteA5  = 81
	noteA6  = 93
)

var feedbackTones = [...][]Note{
	ToneSleep:   {{noteC4, 1}, {noteB3, 1}, {noteA3, 8}},
	ToneBad:     {{noteA3, 4}},
	ToneGood:    {{noteA4, 4}},
	ToneStart:   {{noteA5, 4}},
	ToneEnd:     {{noteE5, 4}},
	ToneWakeup:  {{noteA6, 4}},
	ToneGoodPin: {{noteA4, 2}, {noteCs5, 2}, {noteE5, 2}, {noteA5, 3}, {noteE5, 1}, {noteA5, 4}},
	ToneBadPin:  {{noteG3, 3}, {NoteRest, 1}, {noteG3, 3}, {NoteRest, 1}, {noteG3, 8}},
	ToneOther:   {{noteA4, 8}},
}

// octave4 holds the frequencies of MIDI notes 60..71 in centihertz.
var octave4 = [12]uint32{26163, 27718, 29366, 31113, 32963, 34923, 36999, 39200, 41530, 44000, 46616, 49388}

// NoteFreq returns the frequency of a MIDI note in centihertz.
func NoteFreq(pitch uint8) uint32 {
	n := int(pitch) - 60
	oct := n / 12
	idx := n % 12
	if idx < 0 {
		idx += 12
		oct--
	}
	f := octave4[idx]
	if oct >= 0 {
		return f << uint(oct)
	}
	return f >> uint(-oct)
}

// Speaker plays square waves by toggling the speaker pin from scheduler
// events, and strings them into melodies.
type Speaker struct {
	sched *Scheduler
	out   ToneOutput

	toggle    *Handler
	delay     uint32 // ticks between toggles
	remaining uint32 // toggles left in the current note
	silent    bool   // current note is a rest

	melody []Note
	unit   time.Duration
}

// NewSpeaker creates a silent speaker.
func NewSpeaker(sched *Scheduler, out ToneOutput) *Speaker {
	s := &Speaker{sched: sched, out: out}
	s.toggle = NewHandler("beep", s.onTimer)
	return s
}

// Beep plays freq Hz for d. Any running melody is dropped.
func (s *Speaker) Beep(freq uint32, d time.Duration) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.melody = nil
	if freq == 0 {
		s.stop()
		return
	}
	second := s.sched.Ticks(time.Second)
	ms := uint32(d / time.Millisecond)
	s.play(second/(2*freq), 2*freq*ms/1000, false)
}

// Play starts a melody, each unit lasting unit.
func (s *Speaker) Play(notes []Note, unit time.Duration) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	s.melody = notes
	s.unit = unit
	s.nextNote()
}

// Feedback plays one of the feedback tones. Out of range indices play
// ToneOther.
func (s *Speaker) Feedback(i int) {
	if i < 0 || i >= len(feedbackTones) {
		i = ToneOther
	}
	s.Play(feedbackTones[i], FeedbackUnit)
}

// Stop silences the speaker and drops any melody.
func (s *Speaker) Stop() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	s.melody = nil
	s.stop()
}

// Busy reports whether a tone or melody is playing.
func (s *Speaker) Busy() bool {
	state := disableInterrupts()
	busy := s.sched.Pending(s.toggle) > 0
	restoreInterrupts(state)
	return busy
}

func (s *Speaker) stop() {
	s.sched.Cancel(s.toggle)
	s.remaining = 0
	s.out.Off()
}

// play starts a note of count toggles, delay ticks apart.
func (s *Speaker) play(delay, count uint32, silent bool) {
	s.sched.Cancel(s.toggle)
	s.out.Off()
	s.delay = delay
	s.remaining = count
	s.silent = silent
	s.sched.EnqueueRel(1, s.toggle, 0)
}

func (s *Speaker) nextNote() {
	if len(s.melody) == 0 {
		s.melody = nil
		return
	}
	n := s.melody[0]
	s.melody = s.melody[1:]
	if n.Len == 0 {
		s.melody = nil
		return
	}
	ticks := s.sched.Ticks(s.unit) * uint32(n.Len)
	if n.Pitch == NoteRest {
		s.play(ticks, 1, true)
		return
	}
	second := s.sched.Ticks(time.Second)
	delay := uint32(uint64(second) * 100 / (2 * uint64(NoteFreq(n.Pitch))))
	if delay == 0 {
		delay = 1
	}
	s.play(delay, ticks/delay, false)
}

func (s *Speaker) onTimer(uint32) {
	if !s.silent {
		s.out.Toggle()
	}
	if s.remaining > 0 {
		s.remaining--
		s.sched.EnqueueRel(s.delay, s.toggle, 0)
		return
	}
	s.out.Off()
	s.nextNote()
}
