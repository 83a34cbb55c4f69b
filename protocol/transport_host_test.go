package protocol

import (
	"bufio"
	"errors"
	"net"
	"testing"
	"time"
)

// fakeLock answers command lines on the far end of a pipe.
func fakeLock(t *testing.T, conn net.Conn, replies map[string]string) {
	t.Helper()
	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			if reply, ok := replies[scanner.Text()]; ok {
				if _, err := conn.Write([]byte(reply)); err != nil {
					return
				}
			}
		}
	}()
}

func TestHostTransportRequest(t *testing.T) {
	host, lock := net.Pipe()
	defer lock.Close()

	fakeLock(t, lock, map[string]string{
		"!0": "hello\r\nVERSION 3\r\n",
		"!d": "DOOR=1102\n",
	})

	tr := NewHostTransport(host)
	defer tr.Close()

	unsolicited := make(chan Message, 4)
	tr.SetMessageHandler(func(m Message) { unsolicited <- m })

	msg, err := tr.Request(FormatCommand(CmdVersion), func(m Message) bool {
		return m.Kind == KindVersion
	}, time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if msg.Value != Version {
		t.Errorf("Expected version %d, got %d", Version, msg.Value)
	}

	select {
	case m := <-unsolicited:
		if m.Raw != "hello" {
			t.Errorf("Expected unsolicited 'hello', got %q", m.Raw)
		}
	case <-time.After(time.Second):
		t.Error("Expected unsolicited line to reach the handler")
	}

	msg, err = tr.Request(FormatCommand(CmdDoorState), func(m Message) bool {
		return m.Kind == KindDoor
	}, time.Second)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	if !msg.Door.Locked || !msg.Door.Closed || !msg.Door.IsStatus() {
		t.Errorf("Unexpected door report %+v", msg.Door)
	}
}

func TestHostTransportTimeout(t *testing.T) {
	host, lock := net.Pipe()
	defer lock.Close()
	fakeLock(t, lock, nil)

	tr := NewHostTransport(host)
	defer tr.Close()

	_, err := tr.Request(FormatCommand(CmdTime), func(m Message) bool {
		return m.Kind == KindTime
	}, 50*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestHostTransportClose(t *testing.T) {
	host, lock := net.Pipe()
	defer lock.Close()

	tr := NewHostTransport(host)
	if err := tr.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := tr.Send([]byte("!0\n")); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed after close, got %v", err)
	}
	// Second close is a no-op
	if err := tr.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}
}
