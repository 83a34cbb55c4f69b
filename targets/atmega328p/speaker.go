//go:build atmega328p

package main

import (
	"machine"

	"tinygo.org/x/drivers/buzzer"
)

var speaker buzzer.Device

// initSpeaker returns the speaker as a core.ToneOutput. Tones are made by
// toggling it from scheduler events.
func initSpeaker() *buzzer.Device {
	pin := boardPin(pinSpeaker)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	speaker = buzzer.New(pin)
	speaker.Off()
	return &speaker
}
