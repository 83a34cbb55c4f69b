// Package lock is the host-side client of the door lock's serial protocol.
package lock

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"fablock/host/serial"
	"fablock/protocol"
)

// DefaultTimeout is how long a request waits for its reply. State reports
// arrive 200 ms after the request.
const DefaultTimeout = time.Second

// subscriberBuffer is the channel depth of a subscription; a subscriber
// that falls further behind misses messages.
const subscriberBuffer = 16

var ErrNotConnected = errors.New("not connected to lock")

// Client talks to one lock over a serial link.
type Client struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	timeout   time.Duration

	// Last state report seen, solicited or not
	stateMu   sync.RWMutex
	state     protocol.DoorReport
	haveState bool

	subMu sync.Mutex
	subs  map[chan protocol.Message]struct{}

	connected atomic.Bool
}

// Connect opens the serial port described by cfg and returns a client on it.
func Connect(cfg *serial.Config) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	// Drop whatever the lock printed before we were listening.
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}
	return NewClient(port), nil
}

// NewClient creates a client on an already open port.
func NewClient(port io.ReadWriteCloser) *Client {
	c := &Client{
		port:    port,
		timeout: DefaultTimeout,
		subs:    make(map[chan protocol.Message]struct{}),
	}
	c.connected.Store(true)
	c.transport = protocol.NewHostTransport(port)
	c.transport.SetMessageHandler(c.handleMessage)
	return c
}

// SetTimeout changes how long requests wait for a reply.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// Close closes the connection and every subscription.
func (c *Client) Close() error {
	if !c.connected.CompareAndSwap(true, false) {
		return nil
	}
	err := c.transport.Close()

	c.subMu.Lock()
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.subMu.Unlock()
	return err
}

// IsConnected returns whether the client is open
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Subscribe returns a channel receiving every unsolicited message from the
// lock, and a function that ends the subscription.
func (c *Client) Subscribe() (<-chan protocol.Message, func()) {
	ch := make(chan protocol.Message, subscriberBuffer)
	c.subMu.Lock()
	c.subs[ch] = struct{}{}
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
			c.subMu.Unlock()
		})
	}
	return ch, cancel
}

// State returns the last door state report, if any has been seen.
func (c *Client) State() (protocol.DoorReport, bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state, c.haveState
}

func (c *Client) recordState(msg protocol.Message) {
	if msg.Kind != protocol.KindDoor {
		return
	}
	c.stateMu.Lock()
	c.state = msg.Door
	c.haveState = true
	c.stateMu.Unlock()
}

// handleMessage fans unsolicited messages out to the subscribers.
func (c *Client) handleMessage(msg protocol.Message) {
	c.recordState(msg)

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- msg:
		default:
		}
	}
}

func (c *Client) request(line []byte, match func(protocol.Message) bool) (protocol.Message, error) {
	if !c.connected.Load() {
		return protocol.Message{}, ErrNotConnected
	}
	msg, err := c.transport.Request(line, match, c.timeout)
	if err != nil {
		return msg, err
	}
	c.recordState(msg)
	return msg, nil
}

func (c *Client) send(line []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}
	return c.transport.Send(line)
}

func isKind(kinds ...protocol.Kind) func(protocol.Message) bool {
	return func(m protocol.Message) bool {
		for _, k := range kinds {
			if m.Kind == k {
				return true
			}
		}
		return false
	}
}

// acknowledged sends a command answered by OK. or ERR.
func (c *Client) acknowledged(name string, line []byte) error {
	msg, err := c.request(line, isKind(protocol.KindOK, protocol.KindError))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if msg.Kind == protocol.KindError {
		return fmt.Errorf("%s: lock replied %q", name, msg.Text)
	}
	return nil
}

// Version returns the protocol version the lock speaks.
func (c *Client) Version() (uint32, error) {
	msg, err := c.request(protocol.FormatCommand(protocol.CmdVersion), isKind(protocol.KindVersion))
	if err != nil {
		return 0, fmt.Errorf("version: %w", err)
	}
	return msg.Value, nil
}

// Lock starts locking the door. The result arrives later as a DOOR report.
func (c *Client) Lock() error {
	return c.acknowledged("lock", protocol.FormatCommand(protocol.CmdDoor))
}

// Unlock starts unlocking the door.
func (c *Client) Unlock() error {
	return c.acknowledged("unlock", protocol.FormatCommand(protocol.CmdDoor, 1))
}

// RequestState asks for a state report and waits for it.
func (c *Client) RequestState() (protocol.DoorReport, error) {
	msg, err := c.request(protocol.FormatCommand(protocol.CmdDoorState), func(m protocol.Message) bool {
		return m.Kind == protocol.KindDoor && m.Door.IsStatus()
	})
	if err != nil {
		return protocol.DoorReport{}, fmt.Errorf("state: %w", err)
	}
	return msg.Door, nil
}

// Time returns the lock's tick counter, which restarts on every reset.
func (c *Client) Time() (uint32, error) {
	msg, err := c.request(protocol.FormatCommand(protocol.CmdTime), isKind(protocol.KindTime))
	if err != nil {
		return 0, fmt.Errorf("time: %w", err)
	}
	return msg.Value, nil
}

// Channel returns the smoothed reading of ADC channel ch.
func (c *Client) Channel(ch uint8) (uint32, error) {
	ch %= 8
	msg, err := c.request(protocol.FormatCommand(protocol.CmdChannel, uint32(ch)), func(m protocol.Message) bool {
		return m.Kind == protocol.KindChannel && m.Channel == ch
	})
	if err != nil {
		return 0, fmt.Errorf("channel %d: %w", ch, err)
	}
	return msg.Value, nil
}

// Beep plays freq Hz for half a second. The lock does not reply.
func (c *Client) Beep(freq uint32) error {
	return c.send(protocol.FormatCommand(protocol.CmdBeep, freq))
}

// Feedback plays one of the lock's feedback tones.
func (c *Client) Feedback(tone uint32) error {
	return c.send(protocol.FormatCommand(protocol.CmdFeedback, tone))
}

// Blink flashes the status LED n times.
func (c *Client) Blink(n uint32) error {
	return c.send(protocol.FormatCommand(protocol.CmdBlink, n))
}

// Stop modes for StopBlink
const (
	LEDOff   = 0
	LEDOn    = 1
	LEDLeave = 2
)

// StopBlink ends blinking and leaves the LED off, on or as it is.
func (c *Client) StopBlink(mode uint32) error {
	if mode > LEDLeave {
		return fmt.Errorf("stop blink: invalid mode %d", mode)
	}
	return c.send(protocol.FormatCommand(protocol.CmdBlinkStop, mode))
}

// PinpadDebug starts the periodic raw pinpad readings.
func (c *Client) PinpadDebug() error {
	return c.acknowledged("pinpad debug", protocol.FormatCommand(protocol.CmdPinpadDebug))
}

// DumpTiming asks the lock to print its timing ring. The lines arrive as
// KindDebug messages on the subscriptions.
func (c *Client) DumpTiming() error {
	return c.send(protocol.FormatCommand(protocol.CmdDumpTiming))
}

// SetBaud switches the lock's serial rate. The lock acknowledges at the new
// rate, so the port has to be reopened at baud before talking to it again.
func (c *Client) SetBaud(baud uint32) error {
	if baud == 0 {
		return fmt.Errorf("set baud: invalid rate %d", baud)
	}
	return c.send(protocol.FormatCommand(protocol.CmdBaud, baud))
}

// Raw sends line as is, adding the terminator.
func (c *Client) Raw(line string) error {
	return c.send([]byte(line + "\n"))
}
