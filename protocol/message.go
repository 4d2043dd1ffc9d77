package protocol

import (
	"encoding/binary"
	"errors"
)

var (
	ErrShortMessage  = errors.New("incomplete harp message")
	ErrBadLength     = errors.New("harp message length out of range")
	ErrBadChecksum   = errors.New("harp message checksum mismatch")
	ErrPayloadLength = errors.New("payload not a multiple of element size")
)

// Timestamp is a harp time stamp: whole seconds plus 32us ticks
type Timestamp struct {
	Seconds uint32
	Ticks   uint16
}

// TimestampFromUS splits a harp time in microseconds
func TimestampFromUS(harpUS uint64) Timestamp {
	return Timestamp{
		Seconds: uint32(harpUS / 1000000),
		Ticks:   uint16((harpUS % 1000000) / timestampTickUS),
	}
}

// US returns the timestamp in microseconds
func (ts Timestamp) US() uint64 {
	return uint64(ts.Seconds)*1000000 + uint64(ts.Ticks)*timestampTickUS
}

// Message is one decoded Harp message
type Message struct {
	Type        uint8
	Address     uint8
	Port        uint8
	PayloadType PayloadType
	Timestamp   Timestamp
	Payload     []byte
}

// IsError reports whether the error flag is set
func (m *Message) IsError() bool {
	return m.Type&ErrorFlag != 0
}

// Command returns the type without the error flag
func (m *Message) Command() uint8 {
	return m.Type & messageMask
}

// ParseMessage decodes the message at the front of data and returns it with
// the number of bytes it occupied. The payload aliases data.
// ErrShortMessage means more bytes are needed; any other error means the
// front of data is not a message.
func ParseMessage(data []byte) (Message, int, error) {
	if len(data) < 2 {
		return Message{}, 0, ErrShortMessage
	}

	// Length counts every byte after itself, checksum included
	total := int(data[1]) + 2
	if total < MessageMin || total > MessageMax {
		return Message{}, 0, ErrBadLength
	}
	if len(data) < total {
		return Message{}, 0, ErrShortMessage
	}

	frame := data[:total]
	if Checksum(frame[:total-1]) != frame[total-1] {
		return Message{}, 0, ErrBadChecksum
	}

	msg := Message{
		Type:        frame[0],
		Address:     frame[2],
		Port:        frame[3],
		PayloadType: PayloadType(frame[4]),
	}

	body := frame[MessageHeaderSize : total-1]
	if msg.PayloadType.Timestamped() {
		if len(body) < TimestampSize {
			return Message{}, 0, ErrBadLength
		}
		msg.Timestamp = Timestamp{
			Seconds: binary.LittleEndian.Uint32(body[0:4]),
			Ticks:   binary.LittleEndian.Uint16(body[4:6]),
		}
		body = body[TimestampSize:]
	}

	if size := msg.PayloadType.ElementSize(); size > 0 && len(body)%size != 0 {
		return Message{}, 0, ErrPayloadLength
	}
	msg.Payload = body

	return msg, total, nil
}

// EncodeMessage appends msg to output, computing length and checksum. The
// timestamp is written when msg.PayloadType carries HasTimestamp.
func EncodeMessage(output OutputBuffer, msg *Message) {
	start := output.CurPosition()

	length := 3 + len(msg.Payload) + 1
	if msg.PayloadType.Timestamped() {
		length += TimestampSize
	}

	output.Output([]byte{msg.Type, uint8(length), msg.Address, msg.Port, uint8(msg.PayloadType)})
	if msg.PayloadType.Timestamped() {
		var ts [TimestampSize]byte
		binary.LittleEndian.PutUint32(ts[0:4], msg.Timestamp.Seconds)
		binary.LittleEndian.PutUint16(ts[4:6], msg.Timestamp.Ticks)
		output.Output(ts[:])
	}
	output.Output(msg.Payload)
	output.Output([]byte{Checksum(output.DataSince(start))})
}

// AppendMessage encodes msg onto dst
func AppendMessage(dst []byte, msg *Message) []byte {
	out := NewScratchOutput()
	EncodeMessage(out, msg)
	return append(dst, out.Result()...)
}
