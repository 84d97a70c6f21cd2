package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/logger"
	"github.com/gigshield/reviewcore/internal/observability/metrics"
)

const componentName = "mqtt"

// clientFactory builds the underlying paho client.
type clientFactory func(opts *mqtt.ClientOptions) mqtt.Client

// client implements the Client interface.
type client struct {
	config         Config
	newClient      clientFactory
	internalClient mqtt.Client
	mu             sync.Mutex
	metrics        *metrics.PublisherMetrics
	log            logger.Logger
}

// NewClient creates a disconnected client. m may be nil.
func NewClient(cfg Config, m *metrics.PublisherMetrics) Client {
	return newClientWithFactory(cfg, m, mqtt.NewClient)
}

func newClientWithFactory(cfg Config, m *metrics.PublisherMetrics, factory clientFactory) *client {
	def := DefaultConfig()
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}
	if cfg.DisconnectTimeout <= 0 {
		cfg.DisconnectTimeout = def.DisconnectTimeout
	}
	if cfg.MaxReconnect <= 0 {
		cfg.MaxReconnect = def.MaxReconnect
	}
	return &client{
		config:    cfg,
		newClient: factory,
		metrics:   m,
		log:       GetLogger().With(logger.String("broker", cfg.Broker)),
	}
}

// Connect establishes the broker session. Paho reconnects on its own after
// a lost connection.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	u, err := url.Parse(c.config.Broker)
	if err != nil || u.Host == "" {
		return errors.Newf("invalid broker URL %q", c.config.Broker).
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnect)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)

	c.internalClient = c.newClient(opts)
	if err := c.wait(ctx, c.internalClient.Connect(), c.config.ConnectTimeout); err != nil {
		c.recordError()
		return errors.New(fmt.Errorf("connect to %s: %w", c.config.Broker, err)).
			Component(componentName).
			Category(errors.CategoryMQTTConnection).
			Build()
	}

	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
	return nil
}

// Publish sends payload to topic.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}

	token := c.internalClient.Publish(topic, c.config.QoS, c.config.Retain, payload)
	if err := c.wait(ctx, token, c.config.PublishTimeout); err != nil {
		c.recordError()
		c.log.Warn("publish failed", logger.String("topic", topic), logger.Error(err))
		return errors.New(fmt.Errorf("publish to %s: %w", topic, err)).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	if c.metrics != nil {
		c.metrics.RecordDelivered(len(payload))
	}
	c.log.Trace("published", logger.String("topic", topic), logger.Int("bytes", len(payload)))
	return nil
}

// wait blocks until token completes, ctx ends or timeout passes.
func (c *client) wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %v", timeout)
	}
}

// IsConnected returns true if the client is currently connected to the MQTT broker.
func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isConnected()
}

func (c *client) isConnected() bool {
	return c.internalClient != nil && c.internalClient.IsConnected()
}

// Disconnect closes the connection to the MQTT broker.
func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internalClient == nil {
		return
	}
	c.internalClient.Disconnect(uint(c.config.DisconnectTimeout / time.Millisecond))
	c.internalClient = nil
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
	c.log.Info("disconnected from MQTT broker")
}

func (c *client) onConnect(mqtt.Client) {
	c.log.Info("connected to MQTT broker")
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(true)
	}
}

func (c *client) onConnectionLost(_ mqtt.Client, err error) {
	c.log.Warn("connection to MQTT broker lost", logger.Error(err))
	if c.metrics != nil {
		c.metrics.UpdateConnectionStatus(false)
	}
	c.recordError()
}

func (c *client) recordError() {
	if c.metrics != nil {
		c.metrics.IncrementErrors()
	}
}
