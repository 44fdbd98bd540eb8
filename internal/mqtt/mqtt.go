// Package mqtt bridges engine signals to an MQTT broker.
package mqtt

import (
	"context"
	"time"

	"github.com/ringneck/libwebphone/internal/logger"
)

// Client defines the broker operations the bridge needs.
type Client interface {
	// Connect attempts to connect to the MQTT broker.
	Connect(ctx context.Context) error

	// Publish sends payload to topic and waits for the broker acknowledgement.
	Publish(ctx context.Context, topic string, payload []byte) error

	IsConnected() bool

	// Disconnect closes the connection to the MQTT broker.
	Disconnect()
}

// Config holds the configuration for the MQTT client.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // prefix for every signal topic
	Retain   bool

	ConnectTimeout    time.Duration
	PublishTimeout    time.Duration
	DisconnectTimeout time.Duration
	MaxReconnectDelay time.Duration
}

// DefaultConfig returns a Config with reasonable default values
func DefaultConfig() Config {
	return Config{
		Topic:             "libwebphone",
		ConnectTimeout:    30 * time.Second,
		PublishTimeout:    10 * time.Second,
		DisconnectTimeout: 250 * time.Millisecond,
		MaxReconnectDelay: 5 * time.Minute,
	}
}

// Recorder receives connection and publish statistics.
type Recorder interface {
	UpdateConnectionStatus(connected bool)
	RecordPublish(signal string, size int, latency time.Duration)
	IncrementErrors()
	IncrementReconnectAttempts()
}

type nopRecorder struct{}

func (nopRecorder) UpdateConnectionStatus(bool)              {}
func (nopRecorder) RecordPublish(string, int, time.Duration) {}
func (nopRecorder) IncrementErrors()                         {}
func (nopRecorder) IncrementReconnectAttempts()              {}

func getLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
