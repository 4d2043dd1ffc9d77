// Package protocol implements the Harp binary message protocol spoken on the
// device's register port
package protocol

// Version is the firmware protocol version string
const Version = "0.1.0"

// Message types. The error flag is OR'd into a reply's type.
const (
	MessageRead  = 0x01
	MessageWrite = 0x02
	MessageEvent = 0x03
	ErrorFlag    = 0x08
	messageMask  = 0x07
)

// Frame layout
const (
	MessageMax        = 256 // largest reply the scratch buffer holds
	MessageMin        = 6   // type, length, address, port, payload type, checksum
	MessageHeaderSize = 5   // type, length, address, port, payload type
	TimestampSize     = 6   // uint32 seconds + uint16 32us ticks
	DefaultPort       = 0xFF
	MaxPayload        = MessageMax - MessageHeaderSize - TimestampSize - 1
	timestampTickUS   = 32
)

// PayloadType encodes element size, signedness and the timestamp flag
type PayloadType uint8

const (
	TypeU8    PayloadType = 0x01
	TypeS8    PayloadType = 0x81
	TypeU16   PayloadType = 0x02
	TypeS16   PayloadType = 0x82
	TypeU32   PayloadType = 0x04
	TypeS32   PayloadType = 0x84
	TypeU64   PayloadType = 0x08
	TypeS64   PayloadType = 0x88
	TypeFloat PayloadType = 0x44

	HasTimestamp PayloadType = 0x10
	sizeMask     PayloadType = 0x0F
)

// ElementSize returns the size in bytes of one payload element
func (p PayloadType) ElementSize() int {
	return int(p & sizeMask)
}

// Timestamped reports whether the timestamp flag is set
func (p PayloadType) Timestamped() bool {
	return p&HasTimestamp != 0
}

// Base strips the timestamp flag
func (p PayloadType) Base() PayloadType {
	return p &^ HasTimestamp
}
