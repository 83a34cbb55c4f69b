//go:build atmega328p

package main

import (
	"device/avr"
	"runtime/interrupt"
	"time"

	"fablock/core"
)

var (
	fw *core.Firmware

	// Debug counters
	panics uint32
)

func main() {
	initUART()
	core.SetDebugWriter(func(s string) {
		uart.Write([]byte(s))
		uart.Write([]byte{'\n'})
	})

	var err error
	fw, err = core.NewFirmware(boardConfig(), core.Hardware{
		Timer:    timer1{},
		ADC:      adcDriver{},
		GPIO:     gpioDriver{},
		Tone:     initSpeaker(),
		Wake:     pinpadWake,
		NewMotor: newMotor,
		SetBaud:  setBaud,
	})
	if err != nil {
		fail(err)
	}

	interrupt.New(avr.IRQ_TIMER1_COMPA, func(interrupt.Interrupt) {
		fw.Scheduler().HandleCompare()
	})
	interrupt.New(avr.IRQ_ADC, func(interrupt.Interrupt) {
		fw.Watcher().HandleConversion()
	})
	interrupt.New(avr.IRQ_PCINT1, func(interrupt.Interrupt) {
		fw.HandlePinChange()
	})
	interrupt.New(avr.IRQ_PCINT2, func(interrupt.Interrupt) {
		fw.HandlePinChange()
	})

	if err := fw.Start(); err != nil {
		fail(err)
	}
	initPinChange()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					panics++
					core.DebugPrintln("[FW] recovered")
				}
			}()
			readUART()
			writeUART()
		}()

		time.Sleep(100 * time.Microsecond)
	}
}

// fail reports err and blinks the LED forever.
func fail(err error) {
	uart.Write([]byte("ERR " + err.Error() + "\n"))
	gpio := gpioDriver{}
	gpio.ConfigureOutput(pinLED)
	for on := true; ; on = !on {
		gpio.SetPin(pinLED, on)
		time.Sleep(100 * time.Millisecond)
	}
}
