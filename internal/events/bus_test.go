package events

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/testutil"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type recordingConsumer struct {
	name    string
	failOn  string
	mu      sync.Mutex
	signals []Signal
	count   atomic.Int32
}

func (r *recordingConsumer) Name() string { return r.name }

func (r *recordingConsumer) ProcessSignal(sig Signal) error {
	r.mu.Lock()
	r.signals = append(r.signals, sig)
	r.mu.Unlock()
	r.count.Add(1)
	if sig.Name == r.failOn {
		return fmt.Errorf("refusing %s", sig.Name)
	}
	if sig.Name == "panic" {
		panic("boom")
	}
	return nil
}

func (r *recordingConsumer) names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.signals))
	for _, s := range r.signals {
		out = append(out, s.Name)
	}
	return out
}

func newTestBus(t *testing.T, cfg *Config) *Bus {
	t.Helper()
	b := NewBus(cfg, logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("events"))
	t.Cleanup(func() { _ = b.Shutdown(time.Second) })
	return b
}

// waitForCount polls until the consumer saw n signals
func waitForCount(t *testing.T, c *recordingConsumer, n int32) {
	t.Helper()
	require.Eventually(t, func() bool { return c.count.Load() >= n }, time.Second, 5*time.Millisecond)
}

func TestSubscribeReceivesInOrder(t *testing.T) {
	b := newTestBus(t, nil)
	ch, unsubscribe := b.Subscribe(8)
	defer unsubscribe()

	b.Publish("audio.input.started", "a")
	b.Publish("audio.input.muted", "b")

	first := testutil.Receive(t, ch, testutil.ShortTestTimeout, "first signal")
	second := testutil.Receive(t, ch, testutil.ShortTestTimeout, "second signal")
	assert.Equal(t, "audio.input.started", first.Name)
	assert.Equal(t, "a", first.Payload)
	assert.Equal(t, "audio.input.muted", second.Name)
	assert.False(t, first.Time.IsZero())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := newTestBus(t, nil)
	ch, unsubscribe := b.Subscribe(1)
	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok)
	assert.True(t, b.Publish("streams.stop", nil))
}

func TestFullSubscriberDropsWithoutBlocking(t *testing.T) {
	b := newTestBus(t, nil)
	_, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	assert.True(t, b.Publish("one", nil))
	assert.False(t, b.Publish("two", nil))
	assert.Equal(t, uint64(1), b.GetStats().SignalsDropped)
	assert.Equal(t, uint64(2), b.GetStats().SignalsPublished)
}

func TestConsumersProcessAndRecover(t *testing.T) {
	b := newTestBus(t, nil)
	c := &recordingConsumer{name: "recorder", failOn: "bad"}
	require.NoError(t, b.RegisterConsumer(c))
	require.Error(t, b.RegisterConsumer(&recordingConsumer{name: "recorder"}))

	b.Publish("good", nil)
	b.Publish("bad", nil)
	b.Publish("panic", nil)
	b.Publish("after", nil)

	waitForCount(t, c, 4)
	assert.Equal(t, []string{"good", "bad", "panic", "after"}, c.names())

	require.Eventually(t, func() bool {
		s := b.GetStats()
		return s.ConsumerErrors == 2 && s.SignalsProcessed == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPublishAfterShutdown(t *testing.T) {
	b := NewBus(nil, logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module("events"))
	ch, _ := b.Subscribe(1)
	require.NoError(t, b.Shutdown(time.Second))
	require.NoError(t, b.Shutdown(time.Second))

	_, ok := <-ch
	assert.False(t, ok, "subscriber channels are closed on shutdown")
	assert.False(t, b.Publish("late", nil))
}

func TestDedupConsumerSuppressesRepeats(t *testing.T) {
	inner := &recordingConsumer{name: "sentry"}
	d := NewDedupConsumer(inner, time.Minute, nil)

	denied := fmt.Errorf("permission denied")
	require.NoError(t, d.ProcessSignal(Signal{Name: "getUserMedia.error", Payload: denied}))
	require.NoError(t, d.ProcessSignal(Signal{Name: "getUserMedia.error", Payload: denied}))
	require.NoError(t, d.ProcessSignal(Signal{Name: "getUserMedia.error", Payload: fmt.Errorf("busy")}))

	assert.Equal(t, "sentry", d.Name())
	assert.Equal(t, int32(2), inner.count.Load())
	assert.Equal(t, uint64(1), d.Suppressed())
}

func TestConsumerFunc(t *testing.T) {
	var got string
	c := ConsumerFunc{ConsumerName: "fn", Fn: func(s Signal) error { got = s.Name; return nil }}
	require.NoError(t, c.ProcessSignal(Signal{Name: "x"}))
	assert.Equal(t, "fn", c.Name())
	assert.Equal(t, "x", got)
}
