// Package broadcast emits harp-time seconds on a serial line, one frame at
// every harp second boundary.
//
// The schedule is a chain of one-shot alarms. Each firing reads harp time
// fresh, sends its truncated seconds, then derives the next boundary from the
// second it just sent and converts that boundary to system time through the
// bridge again. No period is ever reused, so a correction applied between two
// firings moves the very next alarm.
package broadcast

import (
	"io"

	"harpclock/core"
)

// Bridge is the clock-domain collaborator. Implementations must return a
// consistent mapping to concurrent readers.
type Bridge interface {
	HasSynchronized() bool
	HarpTimeUS() uint64
	HarpToSystemUS(harpUS uint64) uint64
}

// Timers arms one-shot alarms on the system clock. A handler returning
// core.SF_DONE is not repeated by the timer subsystem.
type Timers interface {
	ScheduleTimer(t *core.Timer)
	CancelTimer(t *core.Timer) bool
}

// Stats counts broadcaster activity
type Stats struct {
	Frames      uint32 // frames handed to the writer
	WriteErrors uint32 // writes that failed or came up short
	LastSecond  uint32 // BroadcastSecond of the latest frame
	NextHarpUS  uint64 // harp boundary of the pending alarm
	NextSysUS   uint64 // system wake time of the pending alarm
}

// Broadcaster runs the broadcast-and-reschedule chain.
//
// The frame write happens inside the timer handler and may block until the
// UART has taken all four bytes. That delay only pushes back this firing;
// the following boundary is computed from the second just sent, not from
// elapsed time. Hand it a buffered writer (for example the PIO transmitter)
// when the timer context must not stall.
type Broadcaster struct {
	bridge Bridge
	timers Timers
	out    io.Writer

	alarm   core.Timer
	started bool
	stats   Stats
}

// New creates a broadcaster writing frames to out
func New(bridge Bridge, timers Timers, out io.Writer) *Broadcaster {
	b := &Broadcaster{
		bridge: bridge,
		timers: timers,
		out:    out,
	}
	b.alarm.Handler = b.fire
	return b
}

// WaitForSync spins until the bridge has seen a synchronization pulse. There
// is no timeout: before the first pulse harp time is meaningless and sending
// it would be worse than sending nothing. idle, if not nil, runs on every
// spin so cooperative runtimes keep feeding the bridge.
func (b *Broadcaster) WaitForSync(idle func()) {
	var spins uint64
	for !b.bridge.HasSynchronized() {
		if idle != nil {
			idle()
		}
		spins++
	}
	core.RecordTiming(core.EvtSyncWait, core.GetTime(), spins, 0)
	core.DebugAsync("broadcast: synchronized after " + core.Utoa(spins) + " spins")
}

// Start arms the first alarm on the next harp second boundary. Call it once,
// after WaitForSync.
func (b *Broadcaster) Start() {
	if b.started {
		return
	}
	b.started = true
	b.arm(FirstBoundary(b.bridge.HarpTimeUS()))
}

// Run waits for synchronization and starts the chain
func (b *Broadcaster) Run(idle func()) {
	b.WaitForSync(idle)
	b.Start()
}

// Stop disarms the pending alarm. Firmware never calls it; the host
// simulator does on shutdown.
func (b *Broadcaster) Stop() {
	if b.timers.CancelTimer(&b.alarm) {
		core.RecordTiming(core.EvtAlarmCancel, core.GetTime(), b.stats.NextHarpUS, 0)
	}
	b.started = false
}

// Stats returns a copy of the counters
func (b *Broadcaster) Stats() Stats {
	return b.stats
}

// fire is the alarm handler: send the current second, then arm the next
func (b *Broadcaster) fire(t *core.Timer) uint8 {
	// Read fresh: the mapping may have moved since this alarm was armed
	harpUS := b.bridge.HarpTimeUS()
	second := TruncateSeconds(harpUS)
	core.RecordTiming(core.EvtAlarmFire, t.WakeTime, harpUS, b.stats.NextHarpUS)

	b.transmit(second)
	b.arm(NextBoundary(harpUS))

	// Rescheduling is explicit above; the timer must not repeat this one
	return core.SF_DONE
}

func (b *Broadcaster) transmit(second uint32) {
	frame := EncodeFrame(second)
	n, err := b.out.Write(frame[:])
	b.stats.LastSecond = second
	if err != nil || n != FrameSize {
		b.stats.WriteErrors++
		core.RecordTiming(core.EvtWriteError, core.GetTime(), uint64(second), uint64(n))
		if err != nil {
			core.DebugAsync("broadcast: write second " + core.Utoa(uint64(second)) + ": " + err.Error())
		}
		return
	}
	b.stats.Frames++
	core.RecordTiming(core.EvtFrameSent, core.GetTime(), uint64(second), 0)
}

// arm converts a harp boundary through the bridge's current mapping and
// schedules the single pending alarm there
func (b *Broadcaster) arm(boundaryUS uint64) {
	wake := b.bridge.HarpToSystemUS(boundaryUS)
	b.alarm.WakeTime = wake
	b.stats.NextHarpUS = boundaryUS
	b.stats.NextSysUS = wake
	b.timers.ScheduleTimer(&b.alarm)
	core.RecordTiming(core.EvtAlarmArm, core.GetTime(), boundaryUS, wake)
}
