package core

import "errors"

// WatchState is the position of the watcher in its sampling cycle.
type WatchState uint8

const (
	WatchStopped   WatchState = iota // conversions are ignored
	WatchInit                        // discarding the first conversion after a channel switch
	WatchReading                     // accumulating samples on the current channel
	WatchSwitching                   // multiplexer moved; this conversion is the last of the channel
	WatchIdle                        // nothing to watch, converter off
)

// DefaultReadCount is the number of samples averaged per channel visit.
const DefaultReadCount = 10

// WatchFunc receives a smoothed reading that left its channel's range.
// It runs in interrupt context.
type WatchFunc func(channel uint8, value int16)

var (
	ErrBadChannel     = errors.New("adc channel out of range")
	ErrBadReadCount   = errors.New("adc read count must be at least 1")
	ErrWatcherRunning = errors.New("adc is busy with continuous conversions")
)

// Watcher round-robins the ADC over a mask of channels, averages a fixed
// number of samples per visit and reports smoothed values that fall outside
// a per-channel window. It owns the ADC peripheral and advances one step per
// conversion-complete interrupt.
type Watcher struct {
	hw      ADCDriver
	ref     ADCReference
	onWatch WatchFunc

	state       WatchState
	channel     uint8
	nextChannel uint8
	mask        uint8
	count       uint8
	maxCount    uint8
	acc         uint32

	// seeded has a bit set for every channel that holds a real average
	seeded uint8
	values [ADCChannels]int16
	min    [ADCChannels]int16
	max    [ADCChannels]int16
}

// NewWatcher creates a stopped watcher with an empty mask.
func NewWatcher(hw ADCDriver, onWatch WatchFunc) *Watcher {
	w := &Watcher{hw: hw, ref: ADCRefVCC, onWatch: onWatch}
	w.Init(0)
	return w
}

// Init resets every channel to "always alert" and stops the watcher.
func (w *Watcher) Init(mask uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	for i := 0; i < ADCChannels; i++ {
		w.values[i] = 0
		w.min[i] = 32767
		w.max[i] = -1
	}
	w.seeded = 0
	w.channel = 0
	w.nextChannel = 0
	w.count = 0
	w.acc = 0
	w.mask = mask
	w.maxCount = DefaultReadCount - 1
	w.state = WatchStopped
}

// SetWatchFunc replaces the excursion callback.
func (w *Watcher) SetWatchFunc(fn WatchFunc) {
	state := disableInterrupts()
	w.onWatch = fn
	restoreInterrupts(state)
}

// Start begins watching the current mask, or goes idle if it is empty.
func (w *Watcher) Start() {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if w.mask != 0 {
		w.unidle()
	} else {
		w.state = WatchIdle
	}
}

// Stop turns the converter off. Later conversions are ignored until Start.
func (w *Watcher) Stop() {
	state := disableInterrupts()
	defer restoreInterrupts(state)
	w.stop()
}

func (w *Watcher) stop() {
	w.hw.StopContinuous()
	w.hw.EnableInterrupt(false)
	w.state = WatchStopped
}

func (w *Watcher) idle() {
	w.hw.StopContinuous()
	w.hw.EnableInterrupt(false)
	w.state = WatchIdle
}

// unidle restarts conversions on the lowest channel in the mask.
func (w *Watcher) unidle() {
	if w.mask == 0 {
		return
	}
	c := uint8(0)
	for c < ADCChannels-1 && w.mask&(1<<c) == 0 {
		c++
	}
	w.channel = c
	w.state = WatchInit
	w.hw.EnableInterrupt(true)
	w.hw.StartContinuous(c, w.ref)
}

// SetMask replaces the set of watched channels. An empty mask idles the
// converter; a non-empty mask wakes an idle watcher.
func (w *Watcher) SetMask(mask uint8) {
	state := disableInterrupts()
	defer restoreInterrupts(state)

	if mask == 0 {
		if w.state != WatchStopped {
			w.idle()
		}
		w.mask = 0
		return
	}
	w.mask = mask
	if w.state == WatchIdle {
		w.unidle()
	}
}

// Mask returns the watched channels.
func (w *Watcher) Mask() uint8 {
	state := disableInterrupts()
	m := w.mask
	restoreInterrupts(state)
	return m
}

// AddChannel adds ch to the mask.
func (w *Watcher) AddChannel(ch uint8) {
	if ch >= ADCChannels {
		return
	}
	state := disableInterrupts()
	w.SetMask(w.mask | 1<<ch)
	restoreInterrupts(state)
}

// RemoveChannel drops ch from the mask.
func (w *Watcher) RemoveChannel(ch uint8) {
	if ch >= ADCChannels {
		return
	}
	state := disableInterrupts()
	w.SetMask(w.mask &^ (1 << ch))
	restoreInterrupts(state)
}

// SetRange sets the window [min, max] outside which readings of ch are
// reported. It applies from the next completed average.
func (w *Watcher) SetRange(ch uint8, min, max int16) {
	if ch >= ADCChannels {
		return
	}
	state := disableInterrupts()
	w.min[ch] = min
	w.max[ch] = max
	restoreInterrupts(state)
}

// Range returns the window of ch.
func (w *Watcher) Range(ch uint8) (min, max int16) {
	ch %= ADCChannels
	state := disableInterrupts()
	min, max = w.min[ch], w.max[ch]
	restoreInterrupts(state)
	return min, max
}

// SetReadCount sets how many samples are averaged per channel visit.
func (w *Watcher) SetReadCount(n uint8) error {
	if n < 1 {
		return ErrBadReadCount
	}
	state := disableInterrupts()
	w.maxCount = n - 1
	restoreInterrupts(state)
	return nil
}

// Value returns the last smoothed reading of channel ch%8.
func (w *Watcher) Value(ch uint8) int16 {
	ch %= ADCChannels
	state := disableInterrupts()
	v := w.values[ch]
	restoreInterrupts(state)
	return v
}

// State returns the current machine state.
func (w *Watcher) State() WatchState {
	state := disableInterrupts()
	s := w.state
	restoreInterrupts(state)
	return s
}

// Sample performs a one-shot conversion. It is only allowed while the
// watcher is not driving the converter.
func (w *Watcher) Sample(ch uint8) (uint16, error) {
	if ch >= ADCChannels {
		return 0, ErrBadChannel
	}
	state := disableInterrupts()
	running := w.state != WatchStopped && w.state != WatchIdle
	restoreInterrupts(state)
	if running {
		return 0, ErrWatcherRunning
	}
	return w.hw.Read(ch, w.ref), nil
}

// HandleConversion is the conversion-complete interrupt handler.
func (w *Watcher) HandleConversion() {
	switch w.state {
	case WatchStopped:
		// Result of a conversion that was already running when stopped

	case WatchInit:
		// Settling conversion on the new channel, discarded
		w.count = 0
		w.acc = 0
		if w.mask == 0 {
			w.idle()
			return
		}
		c := w.channel
		for {
			c = (c + 1) % ADCChannels
			if w.mask&(1<<c) != 0 {
				break
			}
		}
		w.nextChannel = c
		if w.maxCount == 0 {
			w.state = WatchSwitching
			w.hw.SetChannel(w.nextChannel, w.ref)
		} else {
			w.state = WatchReading
		}

	case WatchReading:
		w.acc += uint32(w.hw.Value())
		w.count++
		if w.count >= w.maxCount {
			// The conversion already running stays on this channel.
			w.state = WatchSwitching
			w.hw.SetChannel(w.nextChannel, w.ref)
		}

	case WatchSwitching:
		avg := int16((w.acc + uint32(w.hw.Value())) / (uint32(w.count) + 1))
		ch := w.channel
		bit := uint8(1) << ch
		val := avg
		if w.seeded&bit != 0 {
			val = (w.values[ch] + avg) / 2
		}
		w.seeded |= bit
		w.values[ch] = val
		w.channel = w.nextChannel
		w.state = WatchInit
		if w.mask&bit != 0 && (val > w.max[ch] || val < w.min[ch]) && w.onWatch != nil {
			w.onWatch(ch, val)
		}

	case WatchIdle:
		// Raced with going idle
		w.idle()

	default:
		w.stop()
	}
}
