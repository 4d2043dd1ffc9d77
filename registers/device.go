package registers

import (
	"encoding/binary"

	"harpclock/protocol"
)

// Core register addresses shared by every Harp device
const (
	AddrWhoAmI           = 0
	AddrHwVersionH       = 1
	AddrHwVersionL       = 2
	AddrAssemblyVersion  = 3
	AddrCoreVersionH     = 4
	AddrCoreVersionL     = 5
	AddrFwVersionH       = 6
	AddrFwVersionL       = 7
	AddrTimestampSecond  = 8
	AddrTimestampMicro   = 9
	AddrOperationControl = 10
	AddrDeviceName       = 12
	AddrSerialNumber     = 13

	AppRegBase = 32

	DeviceNameSize = 25
)

// OperationControl bits
const (
	OpModeMask   = 0x03
	OpDump       = 1 << 3
	OpMuteReply  = 1 << 4
	OpVisualEn   = 1 << 5
	OpLEDEnable  = 1 << 6
	OpAliveEvent = 1 << 7
)

// HarpClock is the time source behind the timestamp registers
type HarpClock interface {
	HarpTimeUS() uint64
	SetHarpTimeUS(harpUS uint64)
}

// Identity is the read-only description a device reports about itself
type Identity struct {
	WhoAmI           uint16
	HwVersionMajor   uint8
	HwVersionMinor   uint8
	AssemblyVersion  uint8
	CoreVersionMajor uint8
	CoreVersionMinor uint8
	FwVersionMajor   uint8
	FwVersionMinor   uint8
	SerialNumber     uint16
	Name             string
}

// AppDefaults seeds the application registers
type AppDefaults struct {
	TestByte uint8
	TestUint uint32
}

// Device is the full register table of the firmware: the Harp core set plus
// two application registers, test_byte (read-write) and test_uint
// (read-only).
type Device struct {
	*Table

	clock HarpClock
	opctl [1]byte
}

// NewDevice builds the register table
func NewDevice(id Identity, app AppDefaults, clock HarpClock) *Device {
	d := &Device{Table: NewTable(), clock: clock}
	d.opctl[0] = OpVisualEn | OpLEDEnable

	d.readOnly("who_am_i", AddrWhoAmI, protocol.TypeU16, u16(id.WhoAmI))
	d.readOnly("hw_version_h", AddrHwVersionH, protocol.TypeU8, []byte{id.HwVersionMajor})
	d.readOnly("hw_version_l", AddrHwVersionL, protocol.TypeU8, []byte{id.HwVersionMinor})
	d.readOnly("assembly_version", AddrAssemblyVersion, protocol.TypeU8, []byte{id.AssemblyVersion})
	d.readOnly("core_version_h", AddrCoreVersionH, protocol.TypeU8, []byte{id.CoreVersionMajor})
	d.readOnly("core_version_l", AddrCoreVersionL, protocol.TypeU8, []byte{id.CoreVersionMinor})
	d.readOnly("fw_version_h", AddrFwVersionH, protocol.TypeU8, []byte{id.FwVersionMajor})
	d.readOnly("fw_version_l", AddrFwVersionL, protocol.TypeU8, []byte{id.FwVersionMinor})
	d.readOnly("serial_number", AddrSerialNumber, protocol.TypeU16, u16(id.SerialNumber))

	d.Add(&Register{
		Layout: Layout{Name: "timestamp_second", Address: AddrTimestampSecond, Type: protocol.TypeU32, Data: make([]byte, 4)},
		Read:   d.readTimestampSecond,
		Write:  d.writeTimestampSecond,
	})
	d.Add(&Register{
		Layout: Layout{Name: "timestamp_micro", Address: AddrTimestampMicro, Type: protocol.TypeU16, Data: make([]byte, 2)},
		Read:   d.readTimestampMicro,
		Write:  WriteToReadOnlyError,
	})
	d.Add(&Register{
		Layout: Layout{Name: "operation_control", Address: AddrOperationControl, Type: protocol.TypeU8, Data: d.opctl[:]},
	})

	name := make([]byte, DeviceNameSize)
	copy(name[:DeviceNameSize-1], id.Name)
	d.Add(&Register{
		Layout: Layout{Name: "device_name", Address: AddrDeviceName, Type: protocol.TypeU8, Data: name},
	})

	d.Add(&Register{
		Layout: Layout{Name: "test_byte", Address: AppRegBase, Type: protocol.TypeU8, Data: []byte{app.TestByte}},
	})
	testUint := make([]byte, 4)
	binary.LittleEndian.PutUint32(testUint, app.TestUint)
	d.Add(&Register{
		Layout: Layout{Name: "test_uint", Address: AppRegBase + 1, Type: protocol.TypeU32, Data: testUint},
		Write:  WriteToReadOnlyError,
	})

	return d
}

func (d *Device) readOnly(name string, address uint8, typ protocol.PayloadType, data []byte) {
	d.Add(&Register{
		Layout: Layout{Name: name, Address: address, Type: typ, Data: data},
		Write:  WriteToReadOnlyError,
	})
}

func (d *Device) readTimestampSecond(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	binary.LittleEndian.PutUint32(reg.Data, uint32(d.clock.HarpTimeUS()/1000000))
	return ReadGeneric(t, reg, req)
}

// writeTimestampSecond sets harp time to the start of the given second. A
// synchronization pulse overrides it.
func (d *Device) writeTimestampSecond(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	if err := Check(reg, req); err != nil {
		return t.ErrorReply(req, reg)
	}
	seconds := binary.LittleEndian.Uint32(req.Payload)
	d.clock.SetHarpTimeUS(uint64(seconds) * 1000000)
	copy(reg.Data, req.Payload)
	return protocol.Message{
		Type:        protocol.MessageWrite,
		Address:     reg.Address,
		PayloadType: reg.Type,
		Payload:     reg.Data,
	}
}

func (d *Device) readTimestampMicro(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	ts := protocol.TimestampFromUS(d.clock.HarpTimeUS())
	binary.LittleEndian.PutUint16(reg.Data, ts.Ticks)
	return ReadGeneric(t, reg, req)
}

// OperationControl returns the operation control bits
func (d *Device) OperationControl() uint8 {
	return d.opctl[0]
}

// LEDEnabled reports whether the host allows the status LED
func (d *Device) LEDEnabled() bool {
	return d.opctl[0]&OpLEDEnable != 0
}

// TestByte returns application register 0
func (d *Device) TestByte() uint8 {
	reg, _ := d.Lookup(AppRegBase)
	return reg.Data[0]
}

// TestUint returns application register 1
func (d *Device) TestUint() uint32 {
	reg, _ := d.Lookup(AppRegBase + 1)
	return binary.LittleEndian.Uint32(reg.Data)
}

func u16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}
