package protocol

// OutputBuffer provides an abstraction for writing outgoing protocol lines
type OutputBuffer interface {
	// Output writes data to the buffer
	Output(data []byte)

	// OutputString writes s to the buffer
	OutputString(s string)

	// Free returns the number of bytes that can still be written
	Free() int
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer.
// Writes that do not fit are truncated; the line encoders check Free first
// so a report is either staged whole or dropped whole.
type ScratchOutput struct {
	buf [OutputMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{}
}

func (s *ScratchOutput) Output(data []byte) {
	n := copy(s.buf[s.pos:], data)
	s.pos += n
}

func (s *ScratchOutput) OutputString(str string) {
	n := copy(s.buf[s.pos:], str)
	s.pos += n
}

func (s *ScratchOutput) Free() int {
	return len(s.buf) - s.pos
}

// Result returns the accumulated output data
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}

// FifoBuffer is a circular byte buffer for serial I/O. One slot stays
// unused so that read == write always means empty.
type FifoBuffer struct {
	buf   []byte
	read  int
	write int
	size  int
}

// NewFifoBuffer creates a new FifoBuffer with the specified capacity
func NewFifoBuffer(capacity int) *FifoBuffer {
	return &FifoBuffer{
		buf:  make([]byte, capacity),
		size: capacity,
	}
}

// PutByte appends one byte. It returns false when the buffer is full.
func (f *FifoBuffer) PutByte(b byte) bool {
	next := (f.write + 1) % f.size
	if next == f.read {
		return false
	}
	f.buf[f.write] = b
	f.write = next
	return true
}

// Write appends data to the FIFO buffer and returns how much fit
func (f *FifoBuffer) Write(data []byte) int {
	written := 0
	for _, b := range data {
		if !f.PutByte(b) {
			break
		}
		written++
	}
	return written
}

// GetByte removes and returns the oldest byte.
func (f *FifoBuffer) GetByte() (byte, bool) {
	if f.read == f.write {
		return 0, false
	}
	b := f.buf[f.read]
	f.read = (f.read + 1) % f.size
	return b, true
}

// Read reads up to len(data) bytes from the FIFO buffer
func (f *FifoBuffer) Read(data []byte) int {
	read := 0
	for i := range data {
		b, ok := f.GetByte()
		if !ok {
			break
		}
		data[i] = b
		read++
	}
	return read
}

// Available returns the number of bytes available for reading
func (f *FifoBuffer) Available() int {
	if f.write >= f.read {
		return f.write - f.read
	}
	return f.size - f.read + f.write
}

// Free returns the number of bytes available for writing
func (f *FifoBuffer) Free() int {
	return f.size - f.Available() - 1
}

// IsEmpty returns true if the buffer is empty
func (f *FifoBuffer) IsEmpty() bool {
	return f.read == f.write
}

// Reset clears the buffer
func (f *FifoBuffer) Reset() {
	f.read = 0
	f.write = 0
}
