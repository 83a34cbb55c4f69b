package protocol

// LineHandler receives one complete input line without its terminator.
// The slice is only valid for the duration of the call.
type LineHandler func(line []byte)

// LineReader splits a byte stream into lines terminated by CR or LF.
//
// Lines longer than LineMax, and lines carrying a byte below 0x20 or above
// 0x80, are dropped whole: the rest of such a line is swallowed up to the
// next terminator. Empty lines are not delivered.
type LineReader struct {
	buf     [LineMax]byte
	n       int
	discard bool
	handler LineHandler
}

// NewLineReader creates a LineReader delivering lines to handler
func NewLineReader(handler LineHandler) *LineReader {
	return &LineReader{handler: handler}
}

// Feed consumes one byte.
func (r *LineReader) Feed(b byte) {
	if b == '\n' || b == '\r' {
		if !r.discard && r.n > 0 && r.handler != nil {
			r.handler(r.buf[:r.n])
		}
		r.n = 0
		r.discard = false
		return
	}
	if r.discard {
		return
	}
	if b < 0x20 || b > 0x80 || r.n == len(r.buf) {
		r.discard = true
		return
	}
	r.buf[r.n] = b
	r.n++
}

// Receive consumes every byte of data.
func (r *LineReader) Receive(data []byte) {
	for _, b := range data {
		r.Feed(b)
	}
}

// Reset drops any partial line.
func (r *LineReader) Reset() {
	r.n = 0
	r.discard = false
}
