package harp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func syncFrame(seconds uint32) []byte {
	return []byte{SyncHeader0, SyncHeader1,
		byte(seconds), byte(seconds >> 8), byte(seconds >> 16), byte(seconds >> 24)}
}

func TestSyncDecoderCorrectsBridge(t *testing.T) {
	clock := &manualClock{now: 2_000_000}
	b := NewBridge(clock, BridgeOptions{})
	d := NewSyncDecoder(b, clock, DefaultLeadUS)

	frame := syncFrame(1000)
	for i, c := range frame {
		done := d.Feed(c, 2_000_000)
		assert.Equal(t, i == len(frame)-1, done)
	}

	require.True(t, b.HasSynchronized())
	assert.Equal(t, uint64(1001*1_000_000-DefaultLeadUS), b.HarpTimeUS())
	assert.Equal(t, uint32(1), d.Frames())
}

func TestSyncDecoderResyncsOnGarbage(t *testing.T) {
	clock := &manualClock{now: 10}
	b := NewBridge(clock, BridgeOptions{})
	d := NewSyncDecoder(b, clock, 0)

	stream := append([]byte{0x01, SyncHeader0, 0x02, SyncHeader0}, syncFrame(7)...)
	n, err := d.Write(stream)
	require.NoError(t, err)
	assert.Equal(t, len(stream), n)

	assert.Equal(t, uint32(1), d.Frames())
	assert.Equal(t, uint32(4), d.Dropped())
	assert.Equal(t, uint64(8_000_000), b.HarpTimeUS())
}

func TestSyncDecoderReadFrom(t *testing.T) {
	clock := &manualClock{now: 1}
	b := NewBridge(clock, BridgeOptions{})
	d := NewSyncDecoder(b, clock, 0)

	var stream bytes.Buffer
	stream.Write(syncFrame(1))
	stream.Write(syncFrame(2))

	n, err := d.ReadFrom(&stream)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	assert.Equal(t, uint32(2), d.Frames())
	assert.Equal(t, uint32(2), b.Pulses())
}

func TestByteArrival(t *testing.T) {
	assert.Equal(t, uint64(100), uint64(SyncByteUS))
	assert.Equal(t, uint64(5_000_000), ByteArrival(5_000_000, 0, SyncByteUS))
	assert.Equal(t, uint64(4_999_700), ByteArrival(5_000_000, 3, SyncByteUS))
	assert.Equal(t, uint64(0), ByteArrival(50, 1, SyncByteUS))
}

func TestSyncDecoderBacklogStamps(t *testing.T) {
	clock := &manualClock{}
	b := NewBridge(clock, BridgeOptions{})
	d := NewSyncDecoder(b, clock, DefaultLeadUS)

	// The whole frame was read in one batch at 2_000_900; its last byte was
	// the newest, so it keeps the read instant
	frame := syncFrame(41)
	for i, by := range frame {
		d.Feed(by, ByteArrival(2_000_900, len(frame)-1-i, SyncByteUS))
	}
	require.Equal(t, uint32(1), d.Frames())
	assert.Equal(t, uint64(2_000_900), b.Mapping().SysRef)
}

func TestSyncDecoderFalseHeaderDropsBothBytes(t *testing.T) {
	d := NewSyncDecoder(NewBridge(&manualClock{}, BridgeOptions{}), &manualClock{}, 0)

	// SyncHeader0 then a non-header byte: exactly those two are discarded
	_, _ = d.Write([]byte{SyncHeader0, 0x10})
	assert.Equal(t, uint32(2), d.Dropped())

	// A repeated SyncHeader0 discards only the earlier copy
	_, _ = d.Write(append([]byte{SyncHeader0}, syncFrame(3)...))
	assert.Equal(t, uint32(3), d.Dropped())
	assert.Equal(t, uint32(1), d.Frames())
}
