//go:build !tinygo

package core

// irqState stands in for the saved interrupt flag when running under go test
// or in the host simulator, where there are no interrupts to mask.
type irqState uintptr

func disableInterrupts() irqState {
	return 0
}

func restoreInterrupts(irqState) {}
