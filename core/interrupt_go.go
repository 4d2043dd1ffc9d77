//go:build !tinygo

package core

import "sync"

// State is a placeholder for the interrupt mask on host builds
type State uintptr

// Host builds have no timer interrupt: the simulator loop arms, cancels and
// dispatches timers from a single goroutine, so masking is a no-op.
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}

// The timing ring is also written by the sync reader goroutine
var ringMu sync.Mutex

func lockRing() State {
	ringMu.Lock()
	return 0
}

func unlockRing(state State) {
	ringMu.Unlock()
}
