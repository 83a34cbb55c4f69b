//go:build atmega328p

package main

import (
	"device/avr"

	"fablock/core"
)

// Timer1 bits
const (
	timsk1OCIE1A = 1 << 1
	tifr1TOV1    = 1 << 0
	tifr1OCF1A   = 1 << 1
	tccr1bCSMask = 0x07
)

// timer1 is the 16-bit Timer/Counter1 in normal mode, used as the
// scheduler clock. The prescale values match the CS1 bit encoding.
type timer1 struct{}

func (timer1) Init() {
	avr.TCCR1B.Set(0)
	avr.TCCR1A.Set(0)
	avr.TCNT1H.Set(0)
	avr.TCNT1L.Set(0)
	avr.TIFR1.Set(tifr1TOV1 | tifr1OCF1A)
	avr.TIMSK1.Set(timsk1OCIE1A)
}

func (timer1) SetPrescale(p core.TimerPrescale) {
	avr.TCCR1B.Set(avr.TCCR1B.Get()&^tccr1bCSMask | uint8(p)&tccr1bCSMask)
}

func (timer1) Prescale() core.TimerPrescale {
	return core.TimerPrescale(avr.TCCR1B.Get() & tccr1bCSMask)
}

// Counter reads TCNT1. The low byte must be read first; it latches the high
// byte.
func (timer1) Counter() uint16 {
	lo := avr.TCNT1L.Get()
	hi := avr.TCNT1H.Get()
	return uint16(hi)<<8 | uint16(lo)
}

func (timer1) OverflowPending() bool {
	return avr.TIFR1.HasBits(tifr1TOV1)
}

// ClearOverflow writes a one to the flag, which clears it.
func (timer1) ClearOverflow() {
	avr.TIFR1.Set(tifr1TOV1)
}

// SetCompare writes OCR1A, high byte first.
func (timer1) SetCompare(v uint16) {
	avr.OCR1AH.Set(uint8(v >> 8))
	avr.OCR1AL.Set(uint8(v))
}
