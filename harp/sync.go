package harp

import (
	"io"
	"sync/atomic"

	"harpclock/core"
)

// Sync frame layout: two header bytes then the harp second, little-endian
const (
	SyncHeader0   = 0xAA
	SyncHeader1   = 0xAF
	SyncFrameSize = 6
	SyncBaudRate  = 100000
	DefaultLeadUS = 672 // frame end precedes the announced second boundary

	// SyncByteUS is one 10-bit UART character at SyncBaudRate. A polled
	// receiver stamps a byte up to its poll period plus one SyncByteUS late;
	// that error lands directly in the offset and the rate estimate.
	SyncByteUS = 10 * 1000000 / SyncBaudRate
)

const (
	syncStateIdle uint8 = iota
	syncStateHdr
	syncStateBytes
)

// SyncDecoder turns the bytes of a synchronization line into bridge
// corrections. A frame carrying second s ends LeadUS before harp second s+1
// begins, so the instant its last byte arrives is pinned to (s+1)*1e6-LeadUS.
type SyncDecoder struct {
	bridge *Bridge
	clock  Clock
	leadUS uint64

	state   uint8
	seconds uint32
	count   uint8

	frames  atomic.Uint32
	dropped atomic.Uint32
}

// NewSyncDecoder creates a decoder that corrects bridge. clock must be the
// same system clock the bridge reads.
func NewSyncDecoder(bridge *Bridge, clock Clock, leadUS uint64) *SyncDecoder {
	return &SyncDecoder{bridge: bridge, clock: clock, leadUS: leadUS}
}

// Feed consumes one byte received at system instant sysUS. It returns true
// when the byte completed a frame and the bridge was corrected.
func (d *SyncDecoder) Feed(b byte, sysUS uint64) bool {
	switch d.state {
	case syncStateIdle:
		if b == SyncHeader0 {
			d.state = syncStateHdr
		} else {
			d.dropped.Add(1)
		}
	case syncStateHdr:
		switch b {
		case SyncHeader1:
			d.state = syncStateBytes
			d.seconds = 0
			d.count = 0
		case SyncHeader0:
			// repeated first header byte, stay put
			d.dropped.Add(1)
		default:
			// the pending header byte and this one
			d.state = syncStateIdle
			d.dropped.Add(2)
		}
	case syncStateBytes:
		d.seconds |= uint32(b) << (8 * d.count)
		d.count++
		if d.count == SyncFrameSize-2 {
			d.state = syncStateIdle
			d.frames.Add(1)
			harpUS := (uint64(d.seconds)+1)*core.USPerSecond - d.leadUS
			d.bridge.Correct(sysUS, harpUS)
			return true
		}
	}
	return false
}

// ByteArrival estimates when a byte arrived from the instant it was read.
// behind is the number of bytes still queued after it; each of those took
// byteUS on the wire, so the byte itself finished that much earlier.
func ByteArrival(readUS uint64, behind int, byteUS uint64) uint64 {
	back := uint64(behind) * byteUS
	if back > readUS {
		return 0
	}
	return readUS - back
}

// Write feeds p as if every byte arrived now. It never fails, which lets a
// decoder sit behind io.Copy from a serial port.
func (d *SyncDecoder) Write(p []byte) (int, error) {
	now := d.clock.NowUS()
	for _, b := range p {
		d.Feed(b, now)
	}
	return len(p), nil
}

// Frames returns the number of complete frames decoded
func (d *SyncDecoder) Frames() uint32 {
	return d.frames.Load()
}

// Dropped returns the number of bytes discarded while hunting for a header
func (d *SyncDecoder) Dropped() uint32 {
	return d.dropped.Load()
}

// ReadFrom pumps r into the decoder until r fails. The timestamp of a frame is
// taken when the read that delivered its last byte returns.
func (d *SyncDecoder) ReadFrom(r io.Reader) (int64, error) {
	buf := make([]byte, 64)
	var total int64
	for {
		n, err := r.Read(buf)
		if n > 0 {
			d.Write(buf[:n])
			total += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				return total, nil
			}
			return total, err
		}
	}
}
