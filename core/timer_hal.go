package core

// TimerPrescale selects the clock divider of the scheduler's hardware timer.
type TimerPrescale uint8

const (
	PrescaleStopped TimerPrescale = iota
	PrescaleDiv1
	PrescaleDiv8
	PrescaleDiv64
	PrescaleDiv256
	PrescaleDiv1024
)

// TimerDriver is the narrow view of the 16-bit hardware timer the scheduler
// owns. Implementations touch registers only; all ordering and locking is
// done by the Scheduler.
type TimerDriver interface {
	// Init resets the counter, selects normal (free-running) mode and
	// enables the compare-match interrupt. The timer stays stopped until
	// SetPrescale is called with a running prescale.
	Init()

	// SetPrescale starts, stops or re-clocks the counter.
	SetPrescale(p TimerPrescale)

	// Prescale reports the currently selected prescale.
	Prescale() TimerPrescale

	// Counter reads the free-running 16-bit counter.
	Counter() uint16

	// OverflowPending reports the hardware overflow flag.
	OverflowPending() bool

	// ClearOverflow clears the hardware overflow flag.
	ClearOverflow()

	// SetCompare programs the compare-match register.
	SetCompare(v uint16)
}
