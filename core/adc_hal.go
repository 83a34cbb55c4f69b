package core

// ADCReference selects the conversion reference voltage.
type ADCReference uint8

const (
	ADCRefAREF     ADCReference = iota // external AREF pin
	ADCRefVCC                          // AVCC with external capacitor
	ADCRefInternal                     // internal 1.1V bandgap
)

// ADCMaxValue is the largest reading of the 10-bit converter.
const ADCMaxValue = 1023

// ADCChannels is the number of multiplexer inputs the watcher can visit.
const ADCChannels = 8

// ADCDriver is the abstract ADC interface that core code uses.
//
// In continuous (free-running) mode the next conversion starts as soon as
// the previous one completes, and the multiplexer setting is latched when a
// conversion starts. A channel change made from the conversion-complete
// interrupt therefore only affects the conversion after the one already
// running.
type ADCDriver interface {
	// StartContinuous selects ch and starts free-running conversions.
	StartContinuous(ch uint8, ref ADCReference)

	// StopContinuous ends free-running mode after the current conversion.
	StopContinuous()

	// EnableInterrupt turns the conversion-complete interrupt on or off.
	EnableInterrupt(on bool)

	// SetChannel changes the multiplexer without stopping conversions.
	SetChannel(ch uint8, ref ADCReference)

	// Value returns the result of the last completed conversion.
	Value() uint16

	// Read performs a blocking one-shot conversion on ch. Only valid while
	// continuous mode is stopped.
	Read(ch uint8, ref ADCReference) uint16
}
