//go:build !tinygo

package core

import "sync/atomic"

// Host builds share the clock between the simulator loop, the sync reader
// goroutine and tests, so it is kept in an atomic.
var systemTimeValue atomic.Uint64

func getSystemTime() uint64 {
	return systemTimeValue.Load()
}

func setSystemTime(us uint64) {
	systemTimeValue.Store(us)
}
