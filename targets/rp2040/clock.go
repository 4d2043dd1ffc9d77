//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"harpclock/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x24 // Raw timer high word, no latch
	timerTIMERAWL = timerBase + 0x28 // Raw timer low word, no latch
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// hardwareClock is the 1MHz 64-bit timer, the device's system clock
type hardwareClock struct{}

func (hardwareClock) NowUS() uint64 {
	return GetHardwareUptime()
}

// GetHardwareUptime reads the full 64-bit microsecond timer
func GetHardwareUptime() uint64 {
	// High, low, high: retry if the low word rolled over in between
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// UpdateSystemTime copies the hardware timer into the core clock. Timers
// are dispatched against this value.
func UpdateSystemTime() {
	core.SetTime(GetHardwareUptime())
}

// InitClock starts the core clock
func InitClock() {
	UpdateSystemTime()
	core.TimerInit()
}
