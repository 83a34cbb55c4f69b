package protocol

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// MessageHandler receives every line the lock sends, after any pending
// request has had a chance to claim it.
type MessageHandler func(msg Message)

var (
	ErrTimeout = errors.New("response timeout")
	ErrClosed  = errors.New("transport closed")
)

// HostTransport handles the lock protocol from the host side: it writes
// command lines and splits the returned byte stream into parsed messages.
type HostTransport struct {
	port io.ReadWriteCloser

	writeMutex sync.Mutex

	// Requests waiting for a matching reply, oldest first
	waitMutex sync.Mutex
	waiters   []*waiter

	handlerMutex sync.RWMutex
	handler      MessageHandler

	reader *LineReader

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

type waiter struct {
	match func(Message) bool
	ch    chan Message
}

// NewHostTransport creates a host-side transport and starts its reader.
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:     port,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	t.reader = NewLineReader(t.handleLine)

	go t.readLoop()

	return t
}

// SetMessageHandler sets a callback for unsolicited messages
func (t *HostTransport) SetMessageHandler(handler MessageHandler) {
	t.handlerMutex.Lock()
	t.handler = handler
	t.handlerMutex.Unlock()
}

// Send writes one command line.
func (t *HostTransport) Send(line []byte) error {
	select {
	case <-t.stopChan:
		return ErrClosed
	default:
	}

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(line)
	if err != nil {
		return err
	}
	if n != len(line) {
		return fmt.Errorf("incomplete write: %d/%d bytes", n, len(line))
	}
	return nil
}

// Request sends line and waits for the first message accepted by match.
func (t *HostTransport) Request(line []byte, match func(Message) bool, timeout time.Duration) (Message, error) {
	w := &waiter{match: match, ch: make(chan Message, 1)}
	t.waitMutex.Lock()
	t.waiters = append(t.waiters, w)
	t.waitMutex.Unlock()

	if err := t.Send(line); err != nil {
		t.dropWaiter(w)
		return Message{}, fmt.Errorf("failed to send command: %w", err)
	}

	select {
	case msg := <-w.ch:
		return msg, nil
	case <-time.After(timeout):
		t.dropWaiter(w)
		return Message{}, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-t.stopChan:
		t.dropWaiter(w)
		return Message{}, ErrClosed
	}
}

func (t *HostTransport) dropWaiter(w *waiter) {
	t.waitMutex.Lock()
	defer t.waitMutex.Unlock()
	for i, x := range t.waiters {
		if x == w {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			return
		}
	}
}

// readLoop continuously reads from the port and feeds the line splitter.
// A read that returns nothing, which is how a serial read timeout shows up,
// is retried until the transport is closed.
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.reader.Receive(buffer[:n])
		}
		if err != nil {
			select {
			case <-t.stopChan:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}
}

// handleLine parses one line and hands it to the oldest matching request,
// or to the message handler.
func (t *HostTransport) handleLine(line []byte) {
	msg, err := ParseMessage(string(line))
	if err != nil {
		msg.Kind = KindUnknown
	}

	t.waitMutex.Lock()
	for i, w := range t.waiters {
		if w.match(msg) {
			t.waiters = append(t.waiters[:i], t.waiters[i+1:]...)
			t.waitMutex.Unlock()
			w.ch <- msg
			return
		}
	}
	t.waitMutex.Unlock()

	t.handlerMutex.RLock()
	handler := t.handler
	t.handlerMutex.RUnlock()
	if handler != nil {
		handler(msg)
	}
}

// Close stops the transport and closes the port.
func (t *HostTransport) Close() error {
	var err error
	t.stopOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan
	})
	return err
}
