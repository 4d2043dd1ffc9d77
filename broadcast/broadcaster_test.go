package broadcast

import (
	"bytes"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harpclock/core"
)

// simBridge maps harp = sys + offset against a simulated system clock
type simBridge struct {
	now    uint64
	offset int64
	synced bool

	harpReads   int
	conversions int
}

func (b *simBridge) HasSynchronized() bool { return b.synced }

func (b *simBridge) HarpTimeUS() uint64 {
	b.harpReads++
	return uint64(int64(b.now) + b.offset)
}

func (b *simBridge) HarpToSystemUS(harpUS uint64) uint64 {
	b.conversions++
	return uint64(int64(harpUS) - b.offset)
}

// countingTimers records every arm and fire and checks that no more than one
// alarm is ever pending
type countingTimers struct {
	t       *testing.T
	pending []*core.Timer
	arms    int
	fires   int
	maxLive int
}

func (c *countingTimers) ScheduleTimer(tm *core.Timer) {
	for _, p := range c.pending {
		if p == tm {
			c.t.Fatalf("timer armed twice")
		}
	}
	c.pending = append(c.pending, tm)
	c.arms++
	if len(c.pending) > c.maxLive {
		c.maxLive = len(c.pending)
	}
}

func (c *countingTimers) CancelTimer(tm *core.Timer) bool {
	for i, p := range c.pending {
		if p == tm {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// fireNext consumes the pending alarm and runs its handler
func (c *countingTimers) fireNext() *core.Timer {
	require.Len(c.t, c.pending, 1)
	tm := c.pending[0]
	c.pending = c.pending[1:]
	c.fires++
	result := tm.Handler(tm)
	assert.Equal(c.t, uint8(core.SF_DONE), result)
	return tm
}

type frameRecorder struct {
	bytes.Buffer
}

func (r *frameRecorder) seconds() []uint32 {
	var out []uint32
	data := r.Bytes()
	for len(data) >= FrameSize {
		var f Frame
		copy(f[:], data[:FrameSize])
		out = append(out, DecodeFrame(f))
		data = data[FrameSize:]
	}
	return out
}

func TestStartArmsFirstBoundary(t *testing.T) {
	bridge := &simBridge{now: 2_000_000, offset: 41_300_000, synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	b.Start()
	b.Start() // second call is ignored

	require.Len(t, timers.pending, 1)
	assert.Equal(t, 1, timers.arms)
	// harp 43.3s -> boundary 44s -> system 2.7s
	assert.Equal(t, uint64(2_700_000), timers.pending[0].WakeTime)
	assert.Equal(t, uint64(44_000_000), b.Stats().NextHarpUS)
	assert.Zero(t, out.Len())
}

func TestFireSendsAndReschedules(t *testing.T) {
	bridge := &simBridge{offset: 100_000_000, synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	bridge.now = 500_000
	b.Start()

	for i := 0; i < 5; i++ {
		bridge.now = timers.pending[0].WakeTime
		timers.fireNext()
	}

	assert.Equal(t, []uint32{101, 102, 103, 104, 105}, out.seconds())
	assert.Equal(t, uint64(106_000_000), b.Stats().NextHarpUS)
	assert.Equal(t, uint64(6_000_000), b.Stats().NextSysUS)
	assert.Equal(t, uint32(5), b.Stats().Frames)
}

func TestRescheduleIgnoresFiringLateness(t *testing.T) {
	bridge := &simBridge{synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	bridge.now = 10_200_000
	b.Start()

	// Fire 350ms late, then 10us early relative to the armed boundary
	bridge.now = timers.pending[0].WakeTime + 350_000
	timers.fireNext()
	assert.Equal(t, uint64(12_000_000), timers.pending[0].WakeTime)

	bridge.now = timers.pending[0].WakeTime - 10
	timers.fireNext()
	// Early read lands in second 11, so the next boundary is 12s again
	assert.Equal(t, uint64(12_000_000), timers.pending[0].WakeTime)
	assert.Equal(t, []uint32{11, 11}, out.seconds())
}

func TestFireUsesFreshHarpAndConversion(t *testing.T) {
	bridge := &simBridge{offset: 5_000_000, synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	bridge.now = 1_000_000
	b.Start()
	armedAt := timers.pending[0].WakeTime
	require.Equal(t, uint64(2_000_000), armedAt) // harp 7s

	// A correction arrives between arm and fire: harp jumps 250ms ahead
	bridge.offset += 250_000
	bridge.now = armedAt
	readsBefore, convBefore := bridge.harpReads, bridge.conversions
	timers.fireNext()

	assert.Equal(t, readsBefore+1, bridge.harpReads)
	assert.Equal(t, convBefore+1, bridge.conversions)
	// Frame carries harp 7.25s -> 7; next boundary 8s under the new mapping
	assert.Equal(t, []uint32{7}, out.seconds())
	assert.Equal(t, uint64(8_000_000-5_250_000), timers.pending[0].WakeTime)
}

func TestWrapAround(t *testing.T) {
	const last = uint64(0xFFFFFFFF) * USPerSecond
	bridge := &simBridge{offset: int64(last) - 300_000, synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	bridge.now = 0
	b.Start()
	for i := 0; i < 3; i++ {
		bridge.now = timers.pending[0].WakeTime
		timers.fireNext()
	}

	assert.Equal(t, []uint32{0xFFFFFFFF, 0, 1}, out.seconds())
	assert.Equal(t, []byte{
		0xFF, 0xFF, 0xFF, 0xFF,
		0x00, 0x00, 0x00, 0x00,
		0x01, 0x00, 0x00, 0x00,
	}, out.Bytes())
}

type failingWriter struct {
	calls int
}

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	if w.calls%2 == 1 {
		return 0, errors.New("uart stalled")
	}
	return 2, nil
}

func TestWriteErrorsDoNotBreakChain(t *testing.T) {
	bridge := &simBridge{synced: true}
	timers := &countingTimers{t: t}
	w := &failingWriter{}
	b := New(bridge, timers, w)

	b.Start()
	for i := 0; i < 4; i++ {
		bridge.now = timers.pending[0].WakeTime
		timers.fireNext()
	}

	assert.Equal(t, 4, w.calls)
	assert.Equal(t, uint32(4), b.Stats().WriteErrors)
	assert.Equal(t, uint32(0), b.Stats().Frames)
	assert.Len(t, timers.pending, 1)
}

func TestSingleFlightAcrossFirings(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(7))

	bridge := &simBridge{offset: 3_000_000_000, synced: true}
	timers := &countingTimers{t: t}
	var out frameRecorder
	b := New(bridge, timers, &out)

	b.Start()
	for i := 0; i < n; i++ {
		// Random jitter on when the platform actually fires, plus the
		// occasional correction
		bridge.now = timers.pending[0].WakeTime + uint64(rng.Intn(900))
		if i%17 == 0 {
			bridge.offset += int64(rng.Intn(2000)) - 1000
		}
		timers.fireNext()
		require.Len(t, timers.pending, 1)
	}

	assert.Equal(t, n+1, timers.arms)
	assert.Equal(t, n, timers.fires)
	assert.Equal(t, 1, timers.maxLive)
	assert.Len(t, out.seconds(), n)
}

func TestStartupGating(t *testing.T) {
	rng := rand.New(rand.NewSource(11))

	for trial := 0; trial < 25; trial++ {
		queue := core.NewTimerQueue()
		bridge := &simBridge{offset: 9_000_000}
		var out frameRecorder
		b := New(bridge, queue, &out)

		syncAfter := rng.Intn(500)
		spins := 0
		idle := func() {
			// Simulated main loop: time passes and due timers run
			bridge.now += uint64(rng.Intn(5000))
			queue.Dispatch(bridge.now)
			require.Zero(t, out.Len(), "frame sent before synchronization")
			spins++
			if spins >= syncAfter {
				bridge.synced = true
			}
		}

		b.Run(idle)
		require.True(t, bridge.synced)
		assert.Zero(t, out.Len())
		assert.Equal(t, 1, queue.Pending())

		bridge.now += 3 * USPerSecond
		queue.Dispatch(bridge.now)
		assert.NotZero(t, out.Len())
	}
}

func TestChainOnTimerQueue(t *testing.T) {
	queue := core.NewTimerQueue()
	bridge := &simBridge{offset: 1_000_000_000, synced: true}
	var out frameRecorder
	b := New(bridge, queue, &out)

	b.Start()
	for step := 0; step < 10_000; step++ {
		bridge.now += 1_000
		queue.Dispatch(bridge.now)
		require.Equal(t, 1, queue.Pending())
	}

	// 10 simulated seconds from harp 1000.0s
	assert.Equal(t, []uint32{1001, 1002, 1003, 1004, 1005, 1006, 1007, 1008, 1009, 1010}, out.seconds())

	stats := queue.Stats()
	assert.Equal(t, stats.Armed, stats.Fired+1)

	b.Stop()
	assert.Equal(t, 0, queue.Pending())
}

func TestChainFollowsCorrectionJumps(t *testing.T) {
	queue := core.NewTimerQueue()
	bridge := &simBridge{offset: 20_000_000, synced: true}
	var out frameRecorder
	b := New(bridge, queue, &out)

	b.Start()
	advance := func(us uint64) {
		for end := bridge.now + us; bridge.now < end; {
			bridge.now += 100
			queue.Dispatch(bridge.now)
		}
	}

	advance(2_500_000) // sends 21, 22
	bridge.offset += 3_000_000
	advance(1_000_000)
	bridge.offset -= 400_000
	advance(1_000_000)

	secs := out.seconds()
	require.NotEmpty(t, secs)
	assert.Equal(t, []uint32{21, 22}, secs[:2])
	// After the forward jump the very next frame reports the new second
	assert.Equal(t, uint32(26), secs[2])
	for i := 1; i < len(secs); i++ {
		assert.GreaterOrEqual(t, secs[i], secs[i-1])
	}
	assert.Equal(t, 1, queue.Pending())
}
