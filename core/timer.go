package core

import "time"

// CPUFreq is the system clock feeding the scheduler timer's prescaler.
const CPUFreq = 16000000

// MaxDelay is the longest relative delay in ticks. Event times compare on a
// wrapping 32-bit line, so anything at or past 2^31 ticks would read as
// already due.
const MaxDelay = 1<<31 - 1

// Divider returns the clock divider of p, or 0 for a stopped timer.
func (p TimerPrescale) Divider() uint32 {
	switch p {
	case PrescaleDiv1:
		return 1
	case PrescaleDiv8:
		return 8
	case PrescaleDiv64:
		return 64
	case PrescaleDiv256:
		return 256
	case PrescaleDiv1024:
		return 1024
	}
	return 0
}

// TickFreq returns the scheduler tick rate in Hz for prescale p.
func (p TimerPrescale) TickFreq() uint32 {
	div := p.Divider()
	if div == 0 {
		return 0
	}
	return CPUFreq / div
}

// leadDistance is the minimum number of ticks into the future a compare
// value must be when it is programmed late. Below that, the counter may pass
// the target before the register write lands and the match is missed for a
// whole 2^16 cycle.
func (p TimerPrescale) leadDistance() uint32 {
	switch p {
	case PrescaleDiv8:
		return 10
	case PrescaleDiv1:
		return 90
	}
	return 3
}

// TicksFromDuration converts d to scheduler ticks at prescale p, clamped to
// MaxDelay.
func TicksFromDuration(d time.Duration, p TimerPrescale) uint32 {
	if d <= 0 {
		return 0
	}
	freq := uint64(p.TickFreq())
	if freq == 0 {
		return 0
	}
	if uint64(d) > MaxDelay*uint64(time.Second)/freq {
		return MaxDelay
	}
	return uint32(uint64(d) * freq / uint64(time.Second))
}

// DurationFromTicks converts scheduler ticks at prescale p back to a duration.
func DurationFromTicks(ticks uint32, p TimerPrescale) time.Duration {
	freq := p.TickFreq()
	if freq == 0 {
		return 0
	}
	return time.Duration(uint64(ticks) * uint64(time.Second) / uint64(freq))
}

// timeAtOrAfter reports whether a is at or after b on the wrapping 32-bit
// tick line.
func timeAtOrAfter(a, b uint32) bool {
	return int32(a-b) >= 0
}
