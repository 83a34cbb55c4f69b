//go:build atmega328p

package main

import "device/avr"

// Pin-change interrupt bits
const (
	pcicrPCIE1 = 1 << 1 // port C
	pcicrPCIE2 = 1 << 2 // port D

	pcmsk1Pinpad = 1 << 4 // PCINT12, PC4
	pcmsk2Closed = 1 << 2 // PCINT18, PD2
	pcmsk2Locked = 1 << 3 // PCINT19, PD3
)

// initPinChange enables the door and bolt switch interrupts. The pinpad
// line is enabled only while the pinpad sleeps.
func initPinChange() {
	avr.PCMSK2.SetBits(pcmsk2Closed | pcmsk2Locked)
	avr.PCICR.SetBits(pcicrPCIE2 | pcicrPCIE1)
}

// pinpadWake is the core.WakeControl of the pinpad line.
func pinpadWake(enable bool) {
	if enable {
		avr.PCMSK1.SetBits(pcmsk1Pinpad)
	} else {
		avr.PCMSK1.ClearBits(pcmsk1Pinpad)
	}
}
