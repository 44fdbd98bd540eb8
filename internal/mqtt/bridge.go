package mqtt

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/events"
	"github.com/ringneck/libwebphone/internal/logger"
)

// Bridge publishes bus signals to "<prefix>/<signal path>", with the dots of the
// signal name turned into topic levels: "audio.input.muted" becomes
// "libwebphone/audio/input/muted".
type Bridge struct {
	client   Client
	prefix   string
	timeout  time.Duration
	recorder Recorder
	log      logger.Logger
}

// NewBridge creates a bridge consumer. A nil recorder disables statistics.
func NewBridge(client Client, cfg Config, recorder Recorder) *Bridge {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	prefix := strings.TrimSuffix(cfg.Topic, "/")
	if prefix == "" {
		prefix = DefaultConfig().Topic
	}
	return &Bridge{
		client:   client,
		prefix:   prefix,
		timeout:  timeout,
		recorder: recorder,
		log:      getLogger(),
	}
}

// Name implements events.Consumer.
func (b *Bridge) Name() string { return "mqtt" }

// Topic returns the topic a signal is published on.
func (b *Bridge) Topic(signal string) string {
	return b.prefix + "/" + strings.ReplaceAll(signal, ".", "/")
}

// ProcessSignal publishes one signal. Signals are dropped while disconnected.
func (b *Bridge) ProcessSignal(sig events.Signal) error {
	if !b.client.IsConnected() {
		b.log.Trace("broker disconnected, dropping signal", logger.String("signal", sig.Name))
		return nil
	}

	at := sig.Time
	if at.IsZero() {
		at = time.Now()
	}
	payload, err := json.Marshal(NewSignalDTO(sig.Name, sig.Payload, at))
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryGeneric).
			Context("signal", sig.Name).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	defer cancel()

	start := time.Now()
	if err := b.client.Publish(ctx, b.Topic(sig.Name), payload); err != nil {
		return err
	}
	b.recorder.RecordPublish(sig.Name, len(payload), time.Since(start))
	return nil
}

func controlVolume(v float64) int {
	return audiograph.ToControl(v)
}
