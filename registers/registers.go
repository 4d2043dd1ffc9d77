// Package registers implements the device's Harp register table: a list of
// typed storage slots, each with a read and a write handler.
package registers

import (
	"errors"

	"harpclock/protocol"
)

var (
	ErrReadOnly       = errors.New("register is read-only")
	ErrUnknownAddress = errors.New("no register at address")
	ErrTypeMismatch   = errors.New("payload type does not match register")
	ErrSizeMismatch   = errors.New("payload size does not match register")
)

// Layout describes one register: where its bytes live and how they are typed
type Layout struct {
	Name    string
	Address uint8
	Type    protocol.PayloadType
	Data    []byte // little-endian storage, len = element size * count
}

// ReadFunc produces the reply to a read of reg
type ReadFunc func(t *Table, reg *Register, req *protocol.Message) protocol.Message

// WriteFunc applies a write to reg and produces the reply
type WriteFunc func(t *Table, reg *Register, req *protocol.Message) protocol.Message

// Register pairs a layout with its handlers
type Register struct {
	Layout
	Read  ReadFunc
	Write WriteFunc
}

// Table dispatches requests to registers by address
type Table struct {
	regs [256]*Register

	// OnWrite runs after a successful generic write
	OnWrite func(reg *Register)

	errors uint32
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{}
}

// Add installs reg. A nil handler defaults to the generic one.
func (t *Table) Add(reg *Register) {
	if reg.Read == nil {
		reg.Read = ReadGeneric
	}
	if reg.Write == nil {
		reg.Write = WriteGeneric
	}
	t.regs[reg.Address] = reg
}

// Lookup returns the register at address
func (t *Table) Lookup(address uint8) (*Register, bool) {
	reg := t.regs[address]
	return reg, reg != nil
}

// Errors returns the number of error replies sent
func (t *Table) Errors() uint32 {
	return t.errors
}

// Handle answers one request. It has the protocol.RequestHandler shape.
func (t *Table) Handle(req *protocol.Message) protocol.Message {
	reg, ok := t.Lookup(req.Address)
	if !ok {
		return t.ErrorReply(req, nil)
	}

	switch req.Command() {
	case protocol.MessageRead:
		return reg.Read(t, reg, req)
	case protocol.MessageWrite:
		return reg.Write(t, reg, req)
	default:
		return t.ErrorReply(req, reg)
	}
}

// ErrorReply builds an error reply echoing the request's type and address.
// When reg is known the reply carries its current contents.
func (t *Table) ErrorReply(req *protocol.Message, reg *Register) protocol.Message {
	t.errors++
	reply := protocol.Message{
		Type:        req.Command() | protocol.ErrorFlag,
		Address:     req.Address,
		PayloadType: req.PayloadType.Base(),
	}
	if reg != nil {
		reply.PayloadType = reg.Type
		reply.Payload = reg.Data
	}
	return reply
}

// Check validates a write payload against reg
func Check(reg *Register, req *protocol.Message) error {
	if req.PayloadType.Base() != reg.Type {
		return ErrTypeMismatch
	}
	if len(req.Payload) != len(reg.Data) {
		return ErrSizeMismatch
	}
	return nil
}

// ReadGeneric replies with the register's storage
func ReadGeneric(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	return protocol.Message{
		Type:        protocol.MessageRead,
		Address:     reg.Address,
		PayloadType: reg.Type,
		Payload:     reg.Data,
	}
}

// WriteGeneric copies a correctly typed payload into storage and echoes it
func WriteGeneric(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	if err := Check(reg, req); err != nil {
		return t.ErrorReply(req, reg)
	}
	copy(reg.Data, req.Payload)
	if t.OnWrite != nil {
		t.OnWrite(reg)
	}
	return protocol.Message{
		Type:        protocol.MessageWrite,
		Address:     reg.Address,
		PayloadType: reg.Type,
		Payload:     reg.Data,
	}
}

// WriteToReadOnlyError rejects every write with an error reply carrying the
// unchanged contents
func WriteToReadOnlyError(t *Table, reg *Register, req *protocol.Message) protocol.Message {
	return t.ErrorReply(req, reg)
}

// Set writes payload through the register's write handler, as a request
// from the host would, and reports why a refused write was refused
func (t *Table) Set(address uint8, typ protocol.PayloadType, payload []byte) error {
	reg, ok := t.Lookup(address)
	if !ok {
		return ErrUnknownAddress
	}
	req := protocol.Message{
		Type:        protocol.MessageWrite,
		Address:     address,
		PayloadType: typ,
		Payload:     payload,
	}
	reply := reg.Write(t, reg, &req)
	if !reply.IsError() {
		return nil
	}
	if err := Check(reg, &req); err != nil {
		return err
	}
	return ErrReadOnly
}
