package broadcast

import "encoding/binary"

// FrameSize is the length of one broadcast frame on the wire
const FrameSize = 4

// USPerSecond is one harp second in microseconds
const USPerSecond = 1000000

// Frame is the raw little-endian encoding of a broadcast second. There is no
// header, checksum or acknowledgment: a receiver that misses a frame cannot
// tell from the stream alone.
type Frame [FrameSize]byte

// EncodeFrame encodes second little-endian
func EncodeFrame(second uint32) Frame {
	var f Frame
	binary.LittleEndian.PutUint32(f[:], second)
	return f
}

// DecodeFrame is the receiver-side inverse of EncodeFrame
func DecodeFrame(f Frame) uint32 {
	return binary.LittleEndian.Uint32(f[:])
}

// TruncateSeconds returns the whole harp seconds in harpUS, wrapped to 32
// bits. The wrap is part of the wire contract; receivers handle rollover.
func TruncateSeconds(harpUS uint64) uint32 {
	return uint32(harpUS / USPerSecond)
}

// FirstBoundary returns the first whole harp second strictly after harpUS.
// A sample that lands exactly on a boundary schedules the following one.
func FirstBoundary(harpUS uint64) uint64 {
	return harpUS + (USPerSecond - harpUS%USPerSecond)
}

// NextBoundary returns the boundary that follows the second containing
// harpUS. It is computed from the full second count rather than the
// truncated BroadcastSecond so the schedule keeps moving forward across the
// 32-bit rollover; below the rollover the two agree exactly.
func NextBoundary(harpUS uint64) uint64 {
	return (harpUS/USPerSecond + 1) * USPerSecond
}
