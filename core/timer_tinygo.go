//go:build tinygo

package core

// systemTime is written from the main loop after reading the hardware timer.
// 64-bit loads are not atomic on Cortex-M0+, so reads mask interrupts.
var systemTime uint64

func getSystemTime() uint64 {
	state := disableInterrupts()
	now := systemTime
	restoreInterrupts(state)
	return now
}

func setSystemTime(us uint64) {
	state := disableInterrupts()
	systemTime = us
	restoreInterrupts(state)
}
