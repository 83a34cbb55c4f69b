package bridge

import (
	"fmt"
	"log"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// BrokerConfig holds the connection settings of a RealPublisher.
type BrokerConfig struct {
	Broker   string // tcp://host:port
	ClientID string
	Username string
	Password string
}

// RealPublisher publishes to an actual MQTT broker.
type RealPublisher struct {
	client paho.Client

	mu   sync.Mutex
	subs map[string]func([]byte)
}

// NewRealPublisher creates a publisher connected to the configured broker.
// Subscriptions are restored after every reconnect.
func NewRealPublisher(cfg BrokerConfig) (*RealPublisher, error) {
	p := &RealPublisher{subs: make(map[string]func([]byte))}

	opts := paho.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.handleConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Printf("mqtt: connection lost: %v", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, fmt.Errorf("connection timeout")
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}
	return p, nil
}

func (p *RealPublisher) handleConnect(client paho.Client) {
	log.Printf("mqtt: connected")
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, handler := range p.subs {
		if err := p.subscribe(topic, handler); err != nil {
			log.Printf("mqtt: %v", err)
		}
	}
}

func (p *RealPublisher) subscribe(topic string, handler func([]byte)) error {
	token := p.client.Subscribe(topic, 1, func(_ paho.Client, msg paho.Message) {
		handler(msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	return nil
}

// Publish sends payload to topic with QoS 1.
func (p *RealPublisher) Publish(topic string, retained bool, payload []byte) error {
	token := p.client.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe registers handler for topic.
func (p *RealPublisher) Subscribe(topic string, handler func(payload []byte)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subs[topic] = handler
	return p.subscribe(topic, handler)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
