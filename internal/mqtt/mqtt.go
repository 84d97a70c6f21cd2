// Package mqtt publishes review events to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/gigshield/reviewcore/internal/conf"
	"github.com/gigshield/reviewcore/internal/logger"
)

// Client defines the interface for MQTT client operations.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends a message to the specified topic on the MQTT broker.
	Publish(ctx context.Context, topic string, payload []byte) error

	// IsConnected returns true if the client is currently connected to the MQTT broker.
	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	Retain      bool
	QoS         byte

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnect      time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		TopicPrefix:       "reviewcore",
		QoS:               1,
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnect:      5 * time.Minute,
	}
}

// ConfigFromSettings maps MQTT settings onto the defaults.
func ConfigFromSettings(s *conf.MQTTSettings) Config {
	cfg := DefaultConfig()
	cfg.Broker = s.Broker
	cfg.ClientID = s.ClientID
	cfg.Username = s.Username
	cfg.Password = s.Password
	cfg.Retain = s.Retain
	if s.TopicPrefix != "" {
		cfg.TopicPrefix = s.TopicPrefix
	}
	return cfg
}

// GetLogger returns the MQTT module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
