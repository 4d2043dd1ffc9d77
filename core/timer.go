package core

// System time is a 64-bit microsecond count since boot. On the RP2040 it
// mirrors the hardware TIMERAWH/TIMERAWL pair; host builds advance it by hand.
const (
	TimerFreq = 1000000 // 1MHz, one tick per microsecond

	// USPerSecond is the number of system ticks in one second
	USPerSecond = 1000000
)

var bootTime uint64

// GetTime returns the current system time in microseconds
func GetTime() uint64 {
	return getSystemTime()
}

// SetTime sets the current system time (platform clock code and tests)
func SetTime(us uint64) {
	setSystemTime(us)
}

// AdvanceTime moves the system time forward by us microseconds
func AdvanceTime(us uint64) uint64 {
	now := getSystemTime() + us
	setSystemTime(now)
	return now
}

// GetUptime returns microseconds elapsed since TimerInit
func GetUptime() uint64 {
	return GetTime() - bootTime
}

// TimerInit records the boot instant
func TimerInit() {
	bootTime = GetTime()
}

// ProcessTimers runs every timer on the default queue whose wake time has passed
func ProcessTimers() {
	TimerDispatch()
}

// SystemClock exposes the platform clock to packages that take a clock value
type SystemClock struct{}

// NowUS returns the current system time in microseconds
func (SystemClock) NowUS() uint64 {
	return GetTime()
}
