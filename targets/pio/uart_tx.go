//go:build rp2040

// Package pio drives the broadcast output line from a PIO state machine.
package pio

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

// ErrTxFull is returned when the TX FIFO cannot take the whole write
var ErrTxFull = errors.New("pio uart: tx fifo full")

// TxFIFODepth is the number of bytes the state machine can queue
const TxFIFODepth = 4

// buildUARTTxProgram assembles an 8N1 transmitter. One byte per FIFO word,
// least significant bit first; the remaining 24 bits are discarded by the
// next pull.
func buildUARTTxProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),                   // 0: pull block
		asm.Set(rp2pio.SetDestX, 7).Encode(),             // 1: set x, 7
		asm.Set(rp2pio.SetDestPins, 0).Delay(7).Encode(), // 2: set pins, 0 [7]  start bit
		// bitloop:
		asm.Out(rp2pio.OutDestPins, 1).Delay(6).Encode(), // 3: out pins, 1 [6]
		asm.Jmp(3, rp2pio.JmpXNZeroDec).Encode(),         // 4: jmp x--, bitloop
		asm.Set(rp2pio.SetDestPins, 1).Delay(7).Encode(), // 5: set pins, 1 [7]  stop bit
		// .wrap
	}
}

// Jumps are absolute, so the program must sit at offset 0
const uartTxOrigin = 0

// UARTTx is a transmit-only UART on one PIO state machine. Write never waits:
// the 4-byte broadcast frame fits the TX FIFO, so the caller returns as soon
// as the words are queued.
type UARTTx struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

// NewUARTTx selects PIO0 or PIO1 and a state machine 0-3
func NewUARTTx(pioNum, smNum uint8) *UARTTx {
	hw := rp2pio.PIO0
	if pioNum != 0 {
		hw = rp2pio.PIO1
	}
	return &UARTTx{
		pio: hw,
		sm:  hw.StateMachine(smNum),
	}
}

// Configure loads the program and starts the state machine with pin idle high
func (u *UARTTx) Configure(pin uint8, baud uint32) error {
	u.pin = machine.Pin(pin)

	u.sm.TryClaim()

	program := buildUARTTxProgram()
	offset, err := u.pio.AddProgram(program, uartTxOrigin)
	if err != nil {
		return err
	}
	u.offset = offset

	u.pin.Configure(machine.PinConfig{Mode: u.pio.PinMode()})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetSetPins(u.pin, 1)
	cfg.SetOutPins(u.pin, 1)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	whole, frac := clockDivider(machine.CPUFrequency(), baud)
	cfg.SetClkDivIntFrac(whole, frac)

	u.sm.Init(offset, cfg)
	u.sm.SetPindirsConsecutive(u.pin, 1, true)
	u.sm.SetPinsConsecutive(u.pin, 1, true)
	u.sm.SetEnabled(true)
	return nil
}

// Write queues p. Bytes that do not fit are not sent and ErrTxFull is
// returned with the count that was queued.
func (u *UARTTx) Write(p []byte) (int, error) {
	for i, b := range p {
		if u.sm.IsTxFIFOFull() {
			return i, ErrTxFull
		}
		u.sm.TxPut(uint32(b))
	}
	return len(p), nil
}

// Reset drops anything queued and restarts the program
func (u *UARTTx) Reset() {
	u.sm.SetEnabled(false)
	u.sm.ClearFIFOs()
	u.sm.Restart()
	u.sm.SetPinsConsecutive(u.pin, 1, true)
	u.sm.SetEnabled(true)
}
