package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a timing-critical event for post-mortem analysis
type TimingEvent struct {
	EventType uint8
	Clock     uint64 // system time at the event
	Value1    uint64 // context-dependent value
	Value2    uint64 // context-dependent value
}

// Event type codes
const (
	EvtSyncWait    = 1 // startup barrier released (v1 = spins)
	EvtAlarmArm    = 2 // broadcast alarm armed (v1 = harp boundary, v2 = system wake)
	EvtAlarmFire   = 3 // broadcast alarm fired (v1 = harp time read)
	EvtFrameSent   = 4 // frame written (v1 = broadcast second)
	EvtTimerPast   = 5 // timer ran late (v1 = intended wake)
	EvtWriteError  = 6 // frame write failed (v1 = broadcast second)
	EvtSyncPulse   = 7 // bridge corrected (v1 = harp time, v2 = rate ppb)
	EvtAlarmCancel = 8 // broadcast alarm canceled
)

const (
	TimingRingSize = 32 // keep the last 32 events
)

var (
	// debugPrintln is the platform debug output, a no-op until set
	debugPrintln DebugWriter = func(s string) {}

	// debugEnabled gates DebugPrintln; the timing ring is always on
	debugEnabled bool = false

	timingRing     [TimingRingSize]TimingEvent
	timingRingHead uint8
	timingEnabled  bool = true

	debugChan chan string
)

// SetDebugWriter redirects debug output to UART, USB, a host logger, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine.
// Call this from main() after SetDebugWriter.
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform writer.
// Blocks for as long as the writer does; use DebugAsync from timer handlers.
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message, dropping it if the queue is full
func DebugAsync(msg string) {
	if !debugEnabled {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordTiming captures an event in the ring buffer. Never blocks.
func RecordTiming(eventType uint8, clock, value1, value2 uint64) {
	if !timingEnabled {
		return
	}
	state := lockRing()
	idx := timingRingHead
	timingRing[idx] = TimingEvent{
		EventType: eventType,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	timingRingHead = (idx + 1) % TimingRingSize
	unlockRing(state)
}

// TimingEvents returns the recorded events, oldest first
func TimingEvents() []TimingEvent {
	state := lockRing()
	defer unlockRing(state)

	events := make([]TimingEvent, 0, TimingRingSize)
	start := timingRingHead
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := timingRing[(start+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue
		}
		events = append(events, evt)
	}
	return events
}

// TimingEventName returns the dump label for an event code
func TimingEventName(eventType uint8) string {
	switch eventType {
	case EvtSyncWait:
		return "SYNC_WAIT"
	case EvtAlarmArm:
		return "ALARM_ARM"
	case EvtAlarmFire:
		return "ALARM_FIRE"
	case EvtFrameSent:
		return "FRAME_SENT"
	case EvtTimerPast:
		return "TIMER_PAST!"
	case EvtWriteError:
		return "WRITE_ERR!"
	case EvtSyncPulse:
		return "SYNC_PULSE"
	case EvtAlarmCancel:
		return "ALARM_CANCEL"
	default:
		return "UNKNOWN"
	}
}

// DumpTimingRing writes the ring buffer through the debug writer.
// Call it outside time-critical code.
func DumpTimingRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range TimingEvents() {
		debugPrintln("[TIMING] " + TimingEventName(evt.EventType) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// ClearTimingRing clears the timing buffer
func ClearTimingRing() {
	state := lockRing()
	defer unlockRing(state)

	for i := range timingRing {
		timingRing[i] = TimingEvent{}
	}
	timingRingHead = 0
}
