//go:build atmega328p

package main

import (
	"device/avr"

	"fablock/core"
)

// ADC bits
const (
	admuxREFS0 = 1 << 6
	admuxREFS1 = 1 << 7
	admuxMux   = 0x07

	adcsraADEN  = 1 << 7
	adcsraADSC  = 1 << 6
	adcsraADATE = 1 << 5
	adcsraADIF  = 1 << 4
	adcsraADIE  = 1 << 3
	adcsraDiv   = 0x07 // clock/128: 125 kHz at 16 MHz
)

// adcDriver implements core.ADCDriver on the ATmega328P converter.
type adcDriver struct{}

func refBits(ref core.ADCReference) uint8 {
	switch ref {
	case core.ADCRefVCC:
		return admuxREFS0
	case core.ADCRefInternal:
		return admuxREFS0 | admuxREFS1
	}
	return 0
}

func (adcDriver) SetChannel(ch uint8, ref core.ADCReference) {
	avr.ADMUX.Set(refBits(ref) | ch&admuxMux)
}

func (d adcDriver) StartContinuous(ch uint8, ref core.ADCReference) {
	d.SetChannel(ch, ref)
	avr.ADCSRB.Set(0) // free running
	ie := avr.ADCSRA.Get() & adcsraADIE
	avr.ADCSRA.Set(adcsraADEN | adcsraADSC | adcsraADATE | adcsraADIF | ie | adcsraDiv)
}

func (adcDriver) StopContinuous() {
	avr.ADCSRA.ClearBits(adcsraADATE)
}

func (adcDriver) EnableInterrupt(on bool) {
	if on {
		avr.ADCSRA.SetBits(adcsraADIE)
	} else {
		avr.ADCSRA.ClearBits(adcsraADIE)
	}
}

// Value reads ADCL before ADCH, which locks the result registers until
// both are read.
func (adcDriver) Value() uint16 {
	lo := avr.ADCL.Get()
	hi := avr.ADCH.Get()
	return uint16(hi)<<8 | uint16(lo)
}

func (d adcDriver) Read(ch uint8, ref core.ADCReference) uint16 {
	d.SetChannel(ch, ref)
	avr.ADCSRA.SetBits(adcsraADEN | adcsraDiv)
	avr.ADCSRA.SetBits(adcsraADSC)
	for avr.ADCSRA.HasBits(adcsraADSC) {
	}
	return d.Value()
}
