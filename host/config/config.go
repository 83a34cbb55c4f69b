// Package config loads the host-side configuration of the lock tools.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"fablock/host/serial"
)

// Config is the configuration shared by fablock-host and fablock-bridge.
type Config struct {
	// Serial link to the lock
	Serial SerialConfig `yaml:"serial"`

	// MQTT broker settings; an empty host disables publishing
	MQTT MQTTConfig `yaml:"mqtt"`

	// Status page settings
	HTTP HTTPConfig `yaml:"http"`

	// How often the bridge asks the lock for a state report
	PollInterval time.Duration `yaml:"poll_interval"`

	// How long to wait for a reply from the lock
	ReplyTimeout time.Duration `yaml:"reply_timeout"`
}

// SerialConfig holds the serial port settings.
type SerialConfig struct {
	Device      string `yaml:"device"`
	Baud        int    `yaml:"baud"`
	ReadTimeout int    `yaml:"read_timeout_ms"`
}

// MQTTConfig holds MQTT broker connection settings.
type MQTTConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
}

// HTTPConfig holds the status page settings. An empty address disables it.
type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

// Defaults
const (
	DefaultDevice       = "/dev/ttyUSB0"
	DefaultMQTTPort     = 1883
	DefaultClientID     = "fablock"
	DefaultTopicPrefix  = "fablock"
	DefaultPollInterval = time.Minute
	DefaultReplyTimeout = time.Second
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data and fills in defaults for missing fields.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.UnmarshalStrict(data, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Serial.Device == "" {
		c.Serial.Device = DefaultDevice
	}
	if c.Serial.Baud == 0 {
		c.Serial.Baud = serial.DefaultBaud
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = 100
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = DefaultMQTTPort
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = DefaultClientID
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = DefaultTopicPrefix
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.ReplyTimeout == 0 {
		c.ReplyTimeout = DefaultReplyTimeout
	}
}

// Validate checks values that have no sensible fallback.
func (c *Config) Validate() error {
	if c.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", c.Serial.Baud)
	}
	if c.MQTT.Port < 1 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port)
	}
	if c.PollInterval < 0 {
		return fmt.Errorf("poll_interval must not be negative")
	}
	// The lock delays state reports by 200 ms.
	if c.ReplyTimeout < 300*time.Millisecond {
		return fmt.Errorf("reply_timeout must be at least 300ms, got %v", c.ReplyTimeout)
	}
	return nil
}

// SerialPort returns the serial port configuration.
func (c *Config) SerialPort() *serial.Config {
	return &serial.Config{
		Device:      c.Serial.Device,
		Baud:        c.Serial.Baud,
		ReadTimeout: c.Serial.ReadTimeout,
	}
}

// Broker returns the MQTT broker URL, or "" when MQTT is disabled.
func (c *Config) Broker() string {
	if c.MQTT.Host == "" {
		return ""
	}
	return fmt.Sprintf("tcp://%s:%d", c.MQTT.Host, c.MQTT.Port)
}
