package protocol

import "sync/atomic"

// RequestHandler answers one request. The returned reply's Type, Address,
// PayloadType and Payload are used; the transport stamps it and sets Port.
type RequestHandler func(req *Message) Message

// Transport is the device side of the register port: it splits the input
// stream into messages, hands each to the handler and queues stamped replies.
type Transport struct {
	output  OutputBuffer
	handler RequestHandler
	now     func() uint64 // current harp time in microseconds

	flushCallback func()

	received uint32 // atomic
	dropped  uint32 // atomic, bytes discarded while resynchronizing
}

// NewTransport creates a Transport. now supplies the harp time used to stamp
// replies.
func NewTransport(output OutputBuffer, handler RequestHandler, now func() uint64) *Transport {
	return &Transport{
		output:  output,
		handler: handler,
		now:     now,
	}
}

// Receive parses every complete message in input. A frame with a bad length
// or checksum costs one byte: the parser slides forward until a valid
// message lines up again.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	consumed := 0

	for len(data) > 0 {
		msg, n, err := ParseMessage(data)
		if err == ErrShortMessage {
			break
		}
		if err != nil {
			atomic.AddUint32(&t.dropped, 1)
			data = data[1:]
			consumed++
			continue
		}

		data = data[n:]
		consumed += n
		atomic.AddUint32(&t.received, 1)
		t.dispatch(&msg)
	}

	if consumed > 0 {
		input.Pop(consumed)
	}
}

func (t *Transport) dispatch(req *Message) {
	if t.handler == nil {
		return
	}
	reply := t.handler(req)
	t.SendMessage(&reply)
}

// SendMessage stamps msg with the current harp time and queues it
func (t *Transport) SendMessage(msg *Message) {
	msg.Port = DefaultPort
	msg.PayloadType |= HasTimestamp
	msg.Timestamp = TimestampFromUS(t.now())
	EncodeMessage(t.output, msg)

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// SetFlushCallback sets a callback that pushes queued replies to the port
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}

// Received returns the number of well-formed messages parsed
func (t *Transport) Received() uint32 {
	return atomic.LoadUint32(&t.received)
}

// Dropped returns the number of bytes skipped while resynchronizing
func (t *Transport) Dropped() uint32 {
	return atomic.LoadUint32(&t.dropped)
}
