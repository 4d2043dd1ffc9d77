//go:build tinygo

package core

import "runtime/interrupt"

// disableInterrupts masks interrupts and returns the previous mask
func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

// restoreInterrupts restores a mask returned by disableInterrupts
func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}

// lockRing guards the timing ring against the timer interrupt
func lockRing() interrupt.State {
	return interrupt.Disable()
}

func unlockRing(state interrupt.State) {
	interrupt.Restore(state)
}
