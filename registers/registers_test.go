package registers

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harpclock/protocol"
)

type fakeClock struct {
	harpUS uint64
}

func (c *fakeClock) HarpTimeUS() uint64          { return c.harpUS }
func (c *fakeClock) SetHarpTimeUS(harpUS uint64) { c.harpUS = harpUS }

func testDevice(clock *fakeClock) *Device {
	return NewDevice(Identity{
		WhoAmI:       1234,
		SerialNumber: 0xCAFE,
		Name:         "Example C App",
	}, AppDefaults{TestByte: 3, TestUint: 0xDEADBEEF}, clock)
}

func read(d *Device, address uint8) protocol.Message {
	return d.Handle(&protocol.Message{Type: protocol.MessageRead, Address: address, Port: protocol.DefaultPort})
}

func write(d *Device, address uint8, typ protocol.PayloadType, payload []byte) protocol.Message {
	return d.Handle(&protocol.Message{Type: protocol.MessageWrite, Address: address, Port: protocol.DefaultPort, PayloadType: typ, Payload: payload})
}

func TestIdentityRegisters(t *testing.T) {
	d := testDevice(&fakeClock{})

	reply := read(d, AddrWhoAmI)
	assert.False(t, reply.IsError())
	assert.Equal(t, protocol.TypeU16, reply.PayloadType)
	assert.Equal(t, uint16(1234), binary.LittleEndian.Uint16(reply.Payload))

	reply = read(d, AddrSerialNumber)
	assert.Equal(t, []byte{0xFE, 0xCA}, reply.Payload)

	reply = read(d, AddrDeviceName)
	require.Len(t, reply.Payload, DeviceNameSize)
	assert.Equal(t, "Example C App", string(reply.Payload[:13]))
	assert.Zero(t, reply.Payload[13])
}

func TestReadWriteAppRegister(t *testing.T) {
	d := testDevice(&fakeClock{})

	writes := 0
	d.OnWrite = func(reg *Register) { writes++ }

	reply := write(d, AppRegBase, protocol.TypeU8, []byte{42})
	assert.False(t, reply.IsError())
	assert.Equal(t, uint8(protocol.MessageWrite), reply.Type)
	assert.Equal(t, uint8(42), d.TestByte())
	assert.Equal(t, 1, writes)

	reply = read(d, AppRegBase)
	assert.Equal(t, []byte{42}, reply.Payload)
}

func TestWriteToReadOnlyRegister(t *testing.T) {
	d := testDevice(&fakeClock{})

	reply := write(d, AppRegBase+1, protocol.TypeU32, []byte{1, 0, 0, 0})
	assert.True(t, reply.IsError())
	assert.Equal(t, uint8(protocol.MessageWrite|protocol.ErrorFlag), reply.Type)
	// The error reply reports the unchanged value
	assert.Equal(t, uint32(0xDEADBEEF), binary.LittleEndian.Uint32(reply.Payload))
	assert.Equal(t, uint32(0xDEADBEEF), d.TestUint())
	assert.Equal(t, uint32(1), d.Errors())

	// A normal ack for comparison
	ack := write(d, AppRegBase, protocol.TypeU8, []byte{1})
	assert.False(t, ack.IsError())
	assert.NotEqual(t, reply.Type, ack.Type)
}

func TestSetReportsReason(t *testing.T) {
	d := testDevice(&fakeClock{})

	assert.NoError(t, d.Set(AppRegBase, protocol.TypeU8, []byte{9}))
	assert.ErrorIs(t, d.Set(AppRegBase+1, protocol.TypeU32, []byte{1, 2, 3, 4}), ErrReadOnly)
	assert.ErrorIs(t, d.Set(AppRegBase, protocol.TypeU16, []byte{1, 2}), ErrTypeMismatch)
	assert.ErrorIs(t, d.Set(AppRegBase, protocol.TypeU8, []byte{1, 2}), ErrSizeMismatch)
	assert.ErrorIs(t, d.Set(200, protocol.TypeU8, []byte{1}), ErrUnknownAddress)
}

func TestUnknownAddressAndCommand(t *testing.T) {
	d := testDevice(&fakeClock{})

	reply := read(d, 99)
	assert.True(t, reply.IsError())
	assert.Empty(t, reply.Payload)

	reply = d.Handle(&protocol.Message{Type: protocol.MessageEvent, Address: AppRegBase})
	assert.True(t, reply.IsError())
}

func TestTimestampRegisters(t *testing.T) {
	clock := &fakeClock{harpUS: 1_700_000_123_000_640}
	d := testDevice(clock)

	reply := read(d, AddrTimestampSecond)
	assert.Equal(t, uint32(1_700_000_123), binary.LittleEndian.Uint32(reply.Payload))

	reply = read(d, AddrTimestampMicro)
	assert.Equal(t, uint16(20), binary.LittleEndian.Uint16(reply.Payload))

	reply = write(d, AddrTimestampSecond, protocol.TypeU32, []byte{10, 0, 0, 0})
	assert.False(t, reply.IsError())
	assert.Equal(t, uint64(10_000_000), clock.harpUS)
}

func TestOperationControl(t *testing.T) {
	d := testDevice(&fakeClock{})
	assert.True(t, d.LEDEnabled())

	require.NoError(t, d.Set(AddrOperationControl, protocol.TypeU8, []byte{OpVisualEn | 0x01}))
	assert.False(t, d.LEDEnabled())
	assert.Equal(t, uint8(OpVisualEn|0x01), d.OperationControl())
}

func TestDeviceOverTransport(t *testing.T) {
	clock := &fakeClock{harpUS: 5_000_000}
	d := testDevice(clock)
	out := protocol.NewScratchOutput()
	tr := protocol.NewTransport(out, d.Handle, clock.HarpTimeUS)

	req := protocol.AppendMessage(nil, &protocol.Message{
		Type: protocol.MessageWrite, Address: AppRegBase + 1, Port: protocol.DefaultPort,
		PayloadType: protocol.TypeU32, Payload: []byte{0, 0, 0, 0},
	})
	tr.Receive(protocol.NewSliceInputBuffer(req))

	reply, _, err := protocol.ParseMessage(out.Result())
	require.NoError(t, err)
	assert.True(t, reply.IsError())
	assert.Equal(t, uint32(5), reply.Timestamp.Seconds)
}
