package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
)

// mockTransport implements sentry.Transport for testing.
type mockTransport struct {
	mu     sync.RWMutex
	events []*sentry.Event
}

func (t *mockTransport) Configure(sentry.ClientOptions) {}

func (t *mockTransport) SendEvent(event *sentry.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, event)
}

func (t *mockTransport) Flush(time.Duration) bool { return true }

func (t *mockTransport) FlushWithContext(context.Context) bool { return true }

func (t *mockTransport) Close() {}

// Events returns a copy of the captured events.
func (t *mockTransport) Events() []*sentry.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*sentry.Event, len(t.events))
	copy(out, t.events)
	return out
}
