// Package events provides the asynchronous signal bus the media engine uses to
// notify renderers, the call layer and telemetry without blocking device work.
package events

import (
	"time"
)

// Signal is one named notification with an optional payload.
// Names follow the dotted form used by the engine, e.g. "audio.input.muted".
type Signal struct {
	Name    string
	Payload any
	Time    time.Time
}

// Consumer processes signals on a bus worker goroutine
type Consumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessSignal handles a single signal; errors are logged and counted
	ProcessSignal(sig Signal) error
}

// ConsumerFunc adapts a function into a Consumer
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(Signal) error
}

func (f ConsumerFunc) Name() string                 { return f.ConsumerName }
func (f ConsumerFunc) ProcessSignal(s Signal) error { return f.Fn(s) }

// Stats contains runtime statistics for monitoring
type Stats struct {
	SignalsPublished uint64
	SignalsProcessed uint64
	SignalsDropped   uint64
	ConsumerErrors   uint64
}
