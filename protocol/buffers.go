package protocol

import "errors"

// ErrBufferFull is returned when a FifoBuffer cannot take every byte
var ErrBufferFull = errors.New("fifo buffer full")

// InputBuffer is received data waiting to be parsed
type InputBuffer interface {
	// Data returns the buffered bytes without consuming them
	Data() []byte

	// Available returns the number of buffered bytes
	Available() int

	// Pop consumes n bytes from the front
	Pop(n int)
}

// OutputBuffer collects reply bytes
type OutputBuffer interface {
	Output(data []byte)
	CurPosition() int
	DataSince(pos int) []byte
}

// SliceInputBuffer is an InputBuffer over a fixed slice
type SliceInputBuffer struct {
	data []byte
}

// NewSliceInputBuffer creates a new SliceInputBuffer
func NewSliceInputBuffer(data []byte) *SliceInputBuffer {
	return &SliceInputBuffer{data: data}
}

func (s *SliceInputBuffer) Data() []byte {
	return s.data
}

func (s *SliceInputBuffer) Available() int {
	return len(s.data)
}

func (s *SliceInputBuffer) Pop(n int) {
	if n > len(s.data) {
		n = len(s.data)
	}
	s.data = s.data[n:]
}

// ScratchOutput is an OutputBuffer backed by a fixed array so replies never
// allocate. Bytes beyond MessageMax are dropped and flagged.
type ScratchOutput struct {
	buf        [MessageMax]byte
	pos        int
	overflowed bool
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
	if n < len(data) {
		s.overflowed = true
	}
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Truncate rewinds the write position, discarding a partial reply
func (s *ScratchOutput) Truncate(pos int) {
	if pos < s.pos {
		s.pos = pos
	}
}

// Overflowed reports whether any output was dropped since the last Reset
func (s *ScratchOutput) Overflowed() bool {
	return s.overflowed
}

// Result returns the accumulated output
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
	s.overflowed = false
}

// FifoBuffer is a ring buffer between a serial reader and the parser. One
// producer and one consumer; the caller serializes access.
type FifoBuffer struct {
	buf   []byte
	flat  []byte
	read  int
	write int
}

// NewFifoBuffer creates a FifoBuffer that holds capacity-1 bytes
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		flat: make([]byte, 0, capacity),
	}
}

// Write appends as much of p as fits
func (f *FifoBuffer) Write(p []byte) (int, error) {
	for i, b := range p {
		next := (f.write + 1) % len(f.buf)
		if next == f.read {
			return i, ErrBufferFull
		}
		f.buf[f.write] = b
		f.write = next
	}
	return len(p), nil
}

// WriteByte appends one byte
func (f *FifoBuffer) WriteByte(b byte) error {
	_, err := f.Write([]byte{b})
	return err
}

// Available returns the number of buffered bytes
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return len(f.buf) - f.read + f.write
}

// Free returns the number of bytes that can still be written
func (f *FifoBuffer) Free() int {
	return len(f.buf) - f.Available() - 1
}

// Data returns the buffered bytes as one contiguous slice. A wrapped ring is
// flattened into an internal scratch slice that stays valid until the next
// call.
func (f *FifoBuffer) Data() []byte {
	if f.read <= f.write {
		return f.buf[f.read:f.write]
	}
	f.flat = append(f.flat[:0], f.buf[f.read:]...)
	f.flat = append(f.flat, f.buf[:f.write]...)
	return f.flat
}

// Pop consumes n bytes from the front
func (f *FifoBuffer) Pop(n int) {
	if avail := f.Available(); n > avail {
		n = avail
	}
	f.read = (f.read + n) % len(f.buf)
}

// IsEmpty returns true if nothing is buffered
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset discards everything buffered
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
