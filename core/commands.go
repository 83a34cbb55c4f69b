package core

import "fablock/protocol"

// registerCommands registers every serial command of the lock.
func (f *Firmware) registerCommands() {
	f.registry.Register(protocol.CmdVersion, "version", f.handleVersion)
	f.registry.Register(protocol.CmdDoor, "door", f.handleDoor)
	f.registry.Register(protocol.CmdDoorState, "door_state", f.handleDoorState)
	f.registry.Register(protocol.CmdChannel, "channel", f.handleChannel)
	f.registry.Register(protocol.CmdTime, "time", f.handleTime)
	f.registry.Register(protocol.CmdBeep, "beep", f.handleBeep)
	f.registry.Register(protocol.CmdFeedback, "feedback", f.handleFeedback)
	f.registry.Register(protocol.CmdBlink, "blink", f.handleBlink)
	f.registry.Register(protocol.CmdBlinkStop, "blink_stop", f.handleBlinkStop)
	f.registry.Register(protocol.CmdPinpadDebug, "pinpad_debug", f.handlePinpadDebug)
	f.registry.Register(protocol.CmdDumpTiming, "dump_timing", f.handleDumpTiming)
	f.registry.Register(protocol.CmdBaud, "baud", f.handleBaud)
}

// MaxBaud is the fastest serial rate the UART reaches in double speed mode.
const MaxBaud = CPUFreq / 8

// handleBaud switches the serial link to a new rate. The OK goes out at
// the new rate, so the host has to follow before it can see it.
func (f *Firmware) handleBaud(args CommandArgs) error {
	baud := args.Hex()
	if baud == 0 || baud > MaxBaud || f.hw.SetBaud == nil {
		return ErrBadParam
	}
	if err := f.hw.SetBaud(baud); err != nil {
		return err
	}
	state := disableInterrupts()
	f.sent(protocol.EncodeOK(f.out))
	restoreInterrupts(state)
	return nil
}

// handleVersion answers the protocol ping
func (f *Firmware) handleVersion(CommandArgs) error {
	state := disableInterrupts()
	f.sent(protocol.EncodeVersion(f.out))
	restoreInterrupts(state)
	return nil
}

// handleDoor unlocks for a non-zero parameter and locks otherwise
func (f *Firmware) handleDoor(args CommandArgs) error {
	var err error
	if args.Hex() != 0 {
		err = f.door.Unlock()
	} else {
		err = f.door.Lock()
	}
	if err != nil {
		return err
	}
	state := disableInterrupts()
	f.sent(protocol.EncodeOK(f.out))
	restoreInterrupts(state)
	return nil
}

// handleDoorState asks for a delayed state report
func (f *Firmware) handleDoorState(CommandArgs) error {
	state := disableInterrupts()
	f.scheduleReport()
	restoreInterrupts(state)
	return nil
}

// handleChannel echoes the query and the smoothed value of channel n%8
func (f *Firmware) handleChannel(args CommandArgs) error {
	value := f.watch.Value(uint8(args.Hex() % ADCChannels))
	state := disableInterrupts()
	f.sent(protocol.EncodeChannel(f.out, string(args.Line), uint32(value)))
	restoreInterrupts(state)
	return nil
}

// handleTime reports the scheduler clock, which shows whether the lock
// was reset
func (f *Firmware) handleTime(CommandArgs) error {
	state := disableInterrupts()
	f.sent(protocol.EncodeTime(f.out, f.sched.nowSync()))
	restoreInterrupts(state)
	return nil
}

func (f *Firmware) handleBeep(args CommandArgs) error {
	f.speaker.Beep(args.Hex(), f.cfg.BeepLength)
	return nil
}

func (f *Firmware) handleFeedback(args CommandArgs) error {
	i := args.Hex()
	if i >= uint32(len(feedbackTones)) {
		i = ToneOther
	}
	f.speaker.Feedback(int(i))
	return nil
}

func (f *Firmware) handleBlink(args CommandArgs) error {
	f.led.Blink(args.Hex())
	return nil
}

// handleBlinkStop ends blinking, leaving the LED off (0), on (1) or as it
// is (2)
func (f *Firmware) handleBlinkStop(args CommandArgs) error {
	mode := args.Hex()
	if mode > BlinkStopLeave {
		return ErrBadParam
	}
	f.led.Stop(mode)
	return nil
}

// handlePinpadDebug starts printing the raw pinpad level every interval
func (f *Firmware) handlePinpadDebug(CommandArgs) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	f.sched.Cancel(f.pinpadDebugEvent)
	f.sched.After(f.cfg.PinpadDebugInterval, f.pinpadDebugEvent, 0)
	f.sent(protocol.EncodeOK(f.out))
	return nil
}

// handleDumpTiming writes the timing ring to the serial link
func (f *Firmware) handleDumpTiming(CommandArgs) error {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	DumpTimingRing(func(s string) {
		f.sent(protocol.EncodeDebug(f.out, s))
	})
	return nil
}
