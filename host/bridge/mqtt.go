// Package bridge publishes the lock's state and events to MQTT and accepts
// lock and unlock commands from it.
package bridge

import (
	"encoding/json"
	"time"

	"fablock/core"
	"fablock/protocol"
)

// Topics below the configured prefix
const (
	TopicState   = "state"
	TopicEvent   = "event"
	TopicCommand = "command"
)

// Publisher publishes payloads to MQTT.
type Publisher interface {
	// Publish sends payload to topic. Errors should not stop the bridge.
	Publish(topic string, retained bool, payload []byte) error

	// Subscribe calls handler with the payload of every message on topic.
	Subscribe(topic string, handler func(payload []byte)) error

	// Close disconnects from the broker.
	Close() error
}

// StatePayload is the retained state message.
type StatePayload struct {
	Timestamp string `json:"timestamp"`
	Locked    bool   `json:"locked"`
	Closed    bool   `json:"closed"`
	Mode      string `json:"mode"`
}

// EventPayload is a one-off event message.
type EventPayload struct {
	Timestamp string `json:"timestamp"`
	Event     string `json:"event"`
	Success   *bool  `json:"success,omitempty"`
	Locked    *bool  `json:"locked,omitempty"`
	Closed    *bool  `json:"closed,omitempty"`
	Reason    string `json:"reason,omitempty"`
	PIN       string `json:"pin,omitempty"`
	Awake     *bool  `json:"awake,omitempty"`
}

// Event names
const (
	EventLock      = "lock"
	EventUnlock    = "unlock"
	EventMotorFail = "motor_fail"
	EventPIN       = "pin"
	EventAwake     = "awake"
)

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// FormatState creates the JSON state payload for a status report.
func FormatState(r protocol.DoorReport, now time.Time) ([]byte, error) {
	return json.Marshal(StatePayload{
		Timestamp: timestamp(now),
		Locked:    r.Locked,
		Closed:    r.Closed,
		Mode:      core.DoorMode(r.Mode).String(),
	})
}

// FormatEvent creates the JSON event payload for msg. It returns nil for
// messages that are not events.
func FormatEvent(msg protocol.Message, now time.Time) ([]byte, error) {
	ev := EventPayload{Timestamp: timestamp(now)}
	switch msg.Kind {
	case protocol.KindDoor:
		r := msg.Door
		switch {
		case r.IsStatus():
			return nil, nil
		case r.Mode == protocol.ReportLock:
			ev.Event = EventLock
		case r.Mode == protocol.ReportUnlock:
			ev.Event = EventUnlock
		default:
			return nil, nil
		}
		success := r.Result == protocol.ResultSuccess
		ev.Success = &success
		ev.Locked = &r.Locked
		ev.Closed = &r.Closed
	case protocol.KindMotorFail:
		ev.Event = EventMotorFail
		ev.Reason = core.MotorFailReason(msg.Value).String()
	case protocol.KindPin:
		ev.Event = EventPIN
		ev.PIN = msg.Text
	case protocol.KindAwake:
		ev.Event = EventAwake
		awake := msg.Value != 0
		ev.Awake = &awake
	default:
		return nil, nil
	}
	return json.Marshal(ev)
}
