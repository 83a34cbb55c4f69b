package bridge

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"fablock/protocol"
)

// Lock is the part of the lock client the bridge drives.
type Lock interface {
	Lock() error
	Unlock() error
	RequestState() (protocol.DoorReport, error)
}

// Bridge relays between one lock and an MQTT broker.
type Bridge struct {
	lock   Lock
	pub    Publisher
	prefix string
	now    func() time.Time

	mu        sync.Mutex
	listeners []func(payload []byte)
	lastState []byte
}

// New creates a bridge publishing below prefix.
func New(lock Lock, pub Publisher, prefix string) *Bridge {
	return &Bridge{
		lock:   lock,
		pub:    pub,
		prefix: strings.TrimSuffix(prefix, "/"),
		now:    time.Now,
	}
}

// Topic returns the full topic for name.
func (b *Bridge) Topic(name string) string {
	return b.prefix + "/" + name
}

// OnState registers fn to receive every state payload the bridge publishes.
func (b *Bridge) OnState(fn func(payload []byte)) {
	b.mu.Lock()
	b.listeners = append(b.listeners, fn)
	b.mu.Unlock()
}

// LastState returns the last state payload, or nil before the first report.
func (b *Bridge) LastState() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastState
}

// Start subscribes to the command topic.
func (b *Bridge) Start() error {
	return b.pub.Subscribe(b.Topic(TopicCommand), b.HandleCommand)
}

// Run relays msgs until ctx is done or msgs is closed, asking for a state
// report every poll interval. A zero interval disables polling.
func (b *Bridge) Run(ctx context.Context, msgs <-chan protocol.Message, poll time.Duration) error {
	var tick <-chan time.Time
	if poll > 0 {
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		tick = ticker.C
	}
	if err := b.Poll(); err != nil {
		log.Printf("bridge: initial state: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			b.HandleMessage(msg)
		case <-tick:
			if err := b.Poll(); err != nil {
				log.Printf("bridge: poll: %v", err)
			}
		}
	}
}

// Poll asks the lock for its state and publishes it.
func (b *Bridge) Poll() error {
	r, err := b.lock.RequestState()
	if err != nil {
		return err
	}
	b.publishState(r)
	return nil
}

// HandleMessage publishes a message from the lock. Status reports go to
// the state topic, results and notifications to the event topic.
func (b *Bridge) HandleMessage(msg protocol.Message) {
	if msg.Kind == protocol.KindDoor && msg.Door.IsStatus() {
		b.publishState(msg.Door)
		return
	}
	payload, err := FormatEvent(msg, b.now())
	if err != nil {
		log.Printf("bridge: format event: %v", err)
		return
	}
	if payload == nil {
		return
	}
	if err := b.pub.Publish(b.Topic(TopicEvent), false, payload); err != nil {
		log.Printf("bridge: %v", err)
	}
}

func (b *Bridge) publishState(r protocol.DoorReport) {
	payload, err := FormatState(r, b.now())
	if err != nil {
		log.Printf("bridge: format state: %v", err)
		return
	}

	b.mu.Lock()
	b.lastState = payload
	listeners := append(([]func([]byte))(nil), b.listeners...)
	b.mu.Unlock()

	if err := b.pub.Publish(b.Topic(TopicState), true, payload); err != nil {
		log.Printf("bridge: %v", err)
	}
	for _, fn := range listeners {
		fn(payload)
	}
}

// HandleCommand runs a command received on the command topic: "lock",
// "unlock" or "state".
func (b *Bridge) HandleCommand(payload []byte) {
	cmd := strings.ToLower(strings.TrimSpace(string(payload)))
	var err error
	switch cmd {
	case "lock":
		err = b.lock.Lock()
	case "unlock":
		err = b.lock.Unlock()
	case "state":
		err = b.Poll()
	default:
		log.Printf("bridge: unknown command %q", cmd)
		return
	}
	if err != nil {
		log.Printf("bridge: %s: %v", cmd, err)
	}
}
