package lock

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"fablock/protocol"
)

// fakeLock answers command lines on the far end of a pipe and records them.
type fakeLock struct {
	conn    net.Conn
	replies map[string]string

	mu    sync.Mutex
	lines []string
}

func newFakeLock(t *testing.T, replies map[string]string) (*Client, *fakeLock) {
	t.Helper()
	host, lockEnd := net.Pipe()
	f := &fakeLock{conn: lockEnd, replies: replies}
	go f.serve()

	c := NewClient(host)
	c.SetTimeout(500 * time.Millisecond)
	t.Cleanup(func() {
		c.Close()
		lockEnd.Close()
	})
	return c, f
}

func (f *fakeLock) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		line := scanner.Text()
		f.mu.Lock()
		f.lines = append(f.lines, line)
		f.mu.Unlock()
		if reply, ok := f.replies[line]; ok {
			if _, err := f.conn.Write([]byte(reply)); err != nil {
				return
			}
		}
	}
}

// say sends an unsolicited line to the host.
func (f *fakeLock) say(line string) {
	f.conn.Write([]byte(line + "\n"))
}

// received waits until n lines have arrived and returns them.
func (f *fakeLock) received(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.lines) >= n {
			out := append([]string(nil), f.lines...)
			f.mu.Unlock()
			return out
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d lines at the lock", n)
	return nil
}

func TestClientVersion(t *testing.T) {
	c, _ := newFakeLock(t, map[string]string{"!0": "VERSION 3\n"})

	v, err := c.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if v != protocol.Version {
		t.Errorf("Expected version %d, got %d", protocol.Version, v)
	}
}

func TestClientLockUnlock(t *testing.T) {
	c, f := newFakeLock(t, map[string]string{
		"!D":  "OK.\n",
		"!D1": "OK.\n",
	})

	if err := c.Lock(); err != nil {
		t.Errorf("Lock failed: %v", err)
	}
	if err := c.Unlock(); err != nil {
		t.Errorf("Unlock failed: %v", err)
	}
	lines := f.received(t, 2)
	if lines[0] != "!D" || lines[1] != "!D1" {
		t.Errorf("Expected !D then !D1, got %q", lines)
	}
}

func TestClientErrorReply(t *testing.T) {
	c, _ := newFakeLock(t, map[string]string{"!D": "ERR queue full\n"})

	err := c.Lock()
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !strings.Contains(err.Error(), "queue full") {
		t.Errorf("Expected the lock's error text, got %v", err)
	}
}

func TestClientRequestState(t *testing.T) {
	// A result report may arrive before the status report.
	c, _ := newFakeLock(t, map[string]string{"!d": "DOOR=1111\nDOOR=1102\n"})

	state, err := c.RequestState()
	if err != nil {
		t.Fatalf("RequestState failed: %v", err)
	}
	if !state.Locked || !state.Closed || !state.IsStatus() {
		t.Errorf("Unexpected state %+v", state)
	}
	last, ok := c.State()
	if !ok || last != state {
		t.Errorf("Expected cached state %+v, got %+v (%v)", state, last, ok)
	}
}

func TestClientTimeAndChannel(t *testing.T) {
	c, _ := newFakeLock(t, map[string]string{
		"!T":  "TIME=0001e240\n",
		"!G7": "!G7 000000384\n",
	})

	ticks, err := c.Time()
	if err != nil || ticks != 123456 {
		t.Errorf("Expected 123456, got %d (%v)", ticks, err)
	}
	v, err := c.Channel(15)
	if err != nil || v != 900 {
		t.Errorf("Expected channel 7 = 900, got %d (%v)", v, err)
	}
}

func TestClientTimeout(t *testing.T) {
	c, _ := newFakeLock(t, nil)

	_, err := c.Time()
	if !errors.Is(err, protocol.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestClientFireAndForget(t *testing.T) {
	c, f := newFakeLock(t, nil)

	tests := []struct {
		name string
		call func() error
		want string
	}{
		{"beep", func() error { return c.Beep(1000) }, "!t3e8"},
		{"feedback", func() error { return c.Feedback(6) }, "!m6"},
		{"blink", func() error { return c.Blink(3) }, "!f3"},
		{"stop blink", func() error { return c.StopBlink(LEDOn) }, "!F1"},
		{"timing", c.DumpTiming, "!x"},
		{"baud", func() error { return c.SetBaud(57600) }, "!be100"},
		{"raw", func() error { return c.Raw("!G2") }, "!G2"},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("Call failed: %v", err)
			}
			lines := f.received(t, i+1)
			if lines[i] != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, lines[i])
			}
		})
	}

	if err := c.StopBlink(3); err == nil {
		t.Error("Expected an error for an invalid stop mode")
	}
	if err := c.SetBaud(0); err == nil {
		t.Error("Expected an error for a zero rate")
	}
}

func TestClientSubscribe(t *testing.T) {
	c, f := newFakeLock(t, nil)
	msgs, cancel := c.Subscribe()

	f.say("MFAIL=1")
	f.say("PIN=1234")
	f.say("DOOR=0010")

	want := []protocol.Kind{protocol.KindMotorFail, protocol.KindPin, protocol.KindDoor}
	for i, kind := range want {
		select {
		case m := <-msgs:
			if m.Kind != kind {
				t.Errorf("Message %d: expected %v, got %v", i, kind, m.Kind)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for message %d", i)
		}
	}

	state, ok := c.State()
	if !ok || state.Locked || state.Result != protocol.ResultFailed {
		t.Errorf("Expected failed lock result cached, got %+v", state)
	}

	cancel()
	cancel()
	if _, open := <-msgs; open {
		t.Error("Expected subscription closed")
	}
}

func TestClientClosed(t *testing.T) {
	c, _ := newFakeLock(t, nil)
	msgs, _ := c.Subscribe()
	c.Close()

	if c.IsConnected() {
		t.Error("Expected client disconnected")
	}
	if _, err := c.Version(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if _, open := <-msgs; open {
		t.Error("Expected subscriptions closed with the client")
	}
}

func TestClientCloseWhileRequesting(t *testing.T) {
	c, _ := newFakeLock(t, map[string]string{"!0": "VERSION 3\n"})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.Version()
		}()
		go func() {
			defer wg.Done()
			c.Close()
		}()
	}
	wg.Wait()

	if c.IsConnected() {
		t.Error("Expected client disconnected")
	}
	if _, err := c.Version(); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}
