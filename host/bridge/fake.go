package bridge

import "sync"

// Message is one recorded publication.
type Message struct {
	Topic    string
	Retained bool
	Payload  []byte
}

// FakePublisher records publications and lets tests inject messages.
type FakePublisher struct {
	mu sync.Mutex

	// Published contains every message published so far.
	Published []Message

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool

	handlers map[string]func([]byte)
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{handlers: make(map[string]func([]byte))}
}

// Publish records the message.
func (f *FakePublisher) Publish(topic string, retained bool, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Published = append(f.Published, Message{Topic: topic, Retained: retained, Payload: payload})
	return nil
}

// Subscribe records handler for topic.
func (f *FakePublisher) Subscribe(topic string, handler func(payload []byte)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[topic] = handler
	return nil
}

// Deliver passes payload to the handler subscribed to topic, as if it came
// from the broker. It reports whether a handler was found.
func (f *FakePublisher) Deliver(topic string, payload []byte) bool {
	f.mu.Lock()
	h := f.handlers[topic]
	f.mu.Unlock()
	if h == nil {
		return false
	}
	h(payload)
	return true
}

// Messages returns a copy of the published messages on topic.
func (f *FakePublisher) Messages(topic string) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.Published {
		if m.Topic == topic {
			out = append(out, m)
		}
	}
	return out
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// NopPublisher drops everything. It stands in when MQTT is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(string, bool, []byte) error { return nil }

func (NopPublisher) Subscribe(string, func(payload []byte)) error { return nil }

func (NopPublisher) Close() error { return nil }
