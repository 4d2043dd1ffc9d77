// Package harp maintains the mapping between the device clock and harp time.
//
// Harp time is the distributed clock shared by every device on a Harp
// synchronization bus. A clock master sends a frame each second; every frame
// pins harp time to the device clock at the instant it arrived. Between
// frames the Bridge extrapolates along the last mapping.
package harp

import (
	"sync/atomic"

	"harpclock/core"
)

const (
	// MaxRatePPB bounds the estimated rate correction to +/-500 ppm
	MaxRatePPB = 500000

	ppbScale = 1000000000
)

// Clock reads the device's monotonic system time in microseconds
type Clock interface {
	NowUS() uint64
}

// Mapping is one immutable snapshot of the system/harp relation:
//
//	harp = HarpRef + (sys - SysRef) * (1 + RatePPB/1e9)
type Mapping struct {
	SysRef  uint64
	HarpRef uint64
	RatePPB int64
}

// ToHarp converts a system instant to harp time under m
func (m *Mapping) ToHarp(sysUS uint64) uint64 {
	delta := int64(sysUS - m.SysRef)
	return uint64(int64(m.HarpRef) + delta + scalePPB(delta, m.RatePPB))
}

// ToSystem converts a harp instant to system time under m. The result is the
// earliest system instant whose harp time is at or past harpUS, so an alarm
// armed there never reads harp time short of harpUS.
func (m *Mapping) ToSystem(harpUS uint64) uint64 {
	delta := int64(harpUS - m.HarpRef)
	if m.RatePPB == 0 {
		return uint64(int64(m.SysRef) + delta)
	}
	// sys delta = harp delta / (1 + r) = harp delta - harp delta * r / (1 + r),
	// off by at most a microsecond or two after truncation
	sysUS := uint64(int64(m.SysRef) + delta - scalePPB(delta, m.RatePPB*ppbScale/(ppbScale+m.RatePPB)))

	// ToHarp is non-decreasing, so step to the smallest instant that reaches harpUS
	for int64(m.ToHarp(sysUS)-harpUS) < 0 {
		sysUS++
	}
	for int64(m.ToHarp(sysUS-1)-harpUS) >= 0 {
		sysUS--
	}
	return sysUS
}

// scalePPB returns delta*ppb/1e9 without overflowing for any delta a uint64
// microsecond clock can produce in practice
func scalePPB(delta, ppb int64) int64 {
	if ppb == 0 {
		return 0
	}
	whole := delta / ppbScale
	frac := delta % ppbScale
	return whole*ppb + frac*ppb/ppbScale
}

// BridgeOptions configures how pulses update the mapping
type BridgeOptions struct {
	// EstimateRate derives RatePPB from consecutive pulses when true.
	// Otherwise every pulse only moves the offset.
	EstimateRate bool

	// MaxPulseGapUS is the longest gap between pulses still used for rate
	// estimation. A longer gap resets the estimate.
	MaxPulseGapUS uint64
}

// Bridge converts between system time and harp time. Pulses may arrive on a
// different goroutine (or interrupt) than the readers; every reader observes
// one consistent Mapping.
type Bridge struct {
	clock   Clock
	opts    BridgeOptions
	mapping atomic.Pointer[Mapping]
	synced  atomic.Bool
	pulses  atomic.Uint32

	// previous pulse, written only by Correct
	lastSys  uint64
	lastHarp uint64
}

// NewBridge creates a Bridge that reads the system clock from clock. Until
// the first pulse, harp time equals system time.
func NewBridge(clock Clock, opts BridgeOptions) *Bridge {
	if opts.MaxPulseGapUS == 0 {
		opts.MaxPulseGapUS = 3 * core.USPerSecond
	}
	b := &Bridge{clock: clock, opts: opts}
	b.mapping.Store(&Mapping{})
	return b
}

// HasSynchronized reports whether at least one pulse has been applied
func (b *Bridge) HasSynchronized() bool {
	return b.synced.Load()
}

// HarpTimeUS returns the current harp time
func (b *Bridge) HarpTimeUS() uint64 {
	return b.mapping.Load().ToHarp(b.clock.NowUS())
}

// HarpToSystemUS converts a harp instant to the system instant at which the
// current mapping reaches it
func (b *Bridge) HarpToSystemUS(harpUS uint64) uint64 {
	return b.mapping.Load().ToSystem(harpUS)
}

// SystemToHarpUS converts a system instant to harp time
func (b *Bridge) SystemToHarpUS(sysUS uint64) uint64 {
	return b.mapping.Load().ToHarp(sysUS)
}

// Mapping returns the current snapshot
func (b *Bridge) Mapping() Mapping {
	return *b.mapping.Load()
}

// Pulses returns the number of corrections applied
func (b *Bridge) Pulses() uint32 {
	return b.pulses.Load()
}

// Correct pins harp time harpUS to system instant sysUS. Calls must come from
// a single producer (the sync receiver).
func (b *Bridge) Correct(sysUS, harpUS uint64) {
	next := &Mapping{SysRef: sysUS, HarpRef: harpUS}

	if b.opts.EstimateRate && b.synced.Load() {
		prev := b.mapping.Load()
		sysGap := sysUS - b.lastSys
		if sysUS > b.lastSys && sysGap <= b.opts.MaxPulseGapUS {
			harpGap := int64(harpUS - b.lastHarp)
			rate := (harpGap - int64(sysGap)) * ppbScale / int64(sysGap)
			// Average with the running estimate to smooth pulse jitter
			rate = (rate + prev.RatePPB) / 2
			if rate > MaxRatePPB {
				rate = MaxRatePPB
			} else if rate < -MaxRatePPB {
				rate = -MaxRatePPB
			}
			next.RatePPB = rate
		}
	}

	b.lastSys = sysUS
	b.lastHarp = harpUS
	b.mapping.Store(next)
	b.pulses.Add(1)
	b.synced.Store(true)

	core.RecordTiming(core.EvtSyncPulse, sysUS, harpUS, uint64(next.RatePPB))
}

// SetHarpTimeUS moves harp time so that it reads harpUS now, without marking
// the bridge synchronized. Used when the host writes the timestamp register.
func (b *Bridge) SetHarpTimeUS(harpUS uint64) {
	prev := b.mapping.Load()
	b.mapping.Store(&Mapping{SysRef: b.clock.NowUS(), HarpRef: harpUS, RatePPB: prev.RatePPB})
}
