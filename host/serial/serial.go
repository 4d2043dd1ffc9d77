// Package serial opens the host-side serial lines: the synchronization
// input, the frame output and the register port.
package serial

import (
	"bytes"
	"io"
	"sync"
)

// Port is a serial line
type Port interface {
	io.ReadWriteCloser

	// Flush discards unread input and unsent output
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns a blocking configuration for device
func DefaultConfig(device string, baud int) *Config {
	return &Config{
		Device: device,
		Baud:   baud,
	}
}

// MemPort is an in-memory Port. Writes are appended to Written; reads
// drain data queued with Feed and return io.EOF once closed and empty.
type MemPort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	input   bytes.Buffer
	written bytes.Buffer
	closed  bool
}

// NewMemPort creates an empty MemPort
func NewMemPort() *MemPort {
	p := &MemPort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Feed queues bytes for Read
func (p *MemPort) Feed(b []byte) {
	p.mu.Lock()
	p.input.Write(b)
	p.mu.Unlock()
	p.cond.Broadcast()
}

// Read blocks until input is queued or the port is closed
func (p *MemPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for p.input.Len() == 0 && !p.closed {
		p.cond.Wait()
	}
	if p.input.Len() == 0 {
		return 0, io.EOF
	}
	return p.input.Read(b)
}

// Write records b
func (p *MemPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	return p.written.Write(b)
}

// Written returns a copy of everything written so far
func (p *MemPort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return bytes.Clone(p.written.Bytes())
}

// Flush drops queued input
func (p *MemPort) Flush() error {
	p.mu.Lock()
	p.input.Reset()
	p.mu.Unlock()
	return nil
}

// Close wakes blocked readers
func (p *MemPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.cond.Broadcast()
	return nil
}
