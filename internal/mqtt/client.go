package mqtt

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/privacy"
)

// client implements Client on top of paho. Reconnection is left to paho's auto reconnect.
type client struct {
	config   Config
	internal paho.Client
	mu       sync.Mutex
	recorder Recorder
	log      logger.Logger
}

// NewClient creates an MQTT client. A nil recorder disables statistics.
func NewClient(cfg Config, recorder Recorder) (Client, error) {
	u, err := url.Parse(cfg.Broker)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid broker URL %q", privacy.RedactURL(cfg.Broker)).
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
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
	if cfg.MaxReconnectDelay <= 0 {
		cfg.MaxReconnectDelay = def.MaxReconnectDelay
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &client{config: cfg, recorder: recorder, log: getLogger()}, nil
}

func (c *client) options() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(c.config.Broker)
	opts.SetClientID(c.config.ClientID)
	opts.SetUsername(c.config.Username)
	opts.SetPassword(c.config.Password)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.config.MaxReconnectDelay)
	opts.SetConnectTimeout(c.config.ConnectTimeout)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(func(paho.Client, *paho.ClientOptions) {
		c.recorder.IncrementReconnectAttempts()
	})
	return opts
}

// Connect establishes the broker connection, giving up when ctx ends.
func (c *client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.internal == nil {
		c.internal = paho.NewClient(c.options())
	}
	token := c.internal.Connect()
	if err := wait(ctx, token, c.config.ConnectTimeout); err != nil {
		c.recorder.IncrementErrors()
		return errors.New(fmt.Errorf("connect to %s: %w", privacy.RedactURL(c.config.Broker), err)).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("broker", privacy.RedactURL(c.config.Broker)).
			Build()
	}
	c.recorder.UpdateConnectionStatus(true)
	return nil
}

// Publish sends one message at QoS 0.
func (c *client) Publish(ctx context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	internal := c.internal
	c.mu.Unlock()

	if internal == nil || !internal.IsConnected() {
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}

	token := internal.Publish(topic, 0, c.config.Retain, payload)
	if err := wait(ctx, token, c.config.PublishTimeout); err != nil {
		c.recorder.IncrementErrors()
		return errors.New(fmt.Errorf("publish %s: %w", topic, err)).
			Component("mqtt").
			Category(errors.CategoryNetwork).
			Context("topic", topic).
			Build()
	}
	return nil
}

func (c *client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.internal != nil && c.internal.IsConnected()
}

func (c *client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.internal != nil && c.internal.IsConnected() {
		c.internal.Disconnect(uint(c.config.DisconnectTimeout.Milliseconds()))
		c.recorder.UpdateConnectionStatus(false)
	}
}

func (c *client) onConnect(paho.Client) {
	c.log.Info("connected to MQTT broker", logger.String("broker", privacy.RedactURL(c.config.Broker)))
	c.recorder.UpdateConnectionStatus(true)
}

func (c *client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("connection to MQTT broker lost",
		logger.String("broker", privacy.RedactURL(c.config.Broker)),
		logger.Error(err))
	c.recorder.UpdateConnectionStatus(false)
	c.recorder.IncrementErrors()
}

// wait blocks until the token completes, ctx ends or timeout elapses.
func wait(ctx context.Context, token paho.Token, timeout time.Duration) error {
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
