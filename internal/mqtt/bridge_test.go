package mqtt

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/events"
	"github.com/ringneck/libwebphone/internal/mediadevices"
	"github.com/ringneck/libwebphone/internal/observability/metrics"
)

type published struct {
	topic   string
	payload []byte
}

// fakeClient records publishes instead of talking to a broker.
type fakeClient struct {
	mu        sync.Mutex
	connected bool
	failWith  error
	messages  []published
}

func (f *fakeClient) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeClient) Publish(_ context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return f.failWith
	}
	f.messages = append(f.messages, published{topic: topic, payload: payload})
	return nil
}

func (f *fakeClient) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeClient) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
}

func decode(t *testing.T, payload []byte) map[string]any {
	t.Helper()
	var doc map[string]any
	require.NoError(t, json.Unmarshal(payload, &doc))
	return doc
}

func TestBridgeTopics(t *testing.T) {
	b := NewBridge(&fakeClient{}, Config{Topic: "office/phone/"}, nil)
	assert.Equal(t, "office/phone/audio/input/muted", b.Topic("audio.input.muted"))
	assert.Equal(t, "office/phone/getUserMedia/error", b.Topic(mediadevices.SignalGetUserMediaError))

	b = NewBridge(&fakeClient{}, Config{}, nil)
	assert.Equal(t, "libwebphone/created", b.Topic("created"))
	assert.Equal(t, "mqtt", b.Name())
}

func TestBridgePublishesVolumeChange(t *testing.T) {
	client := &fakeClient{connected: true}
	b := NewBridge(client, DefaultConfig(), nil)

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	err := b.ProcessSignal(events.Signal{
		Name:    mediadevices.VolumeSignal(audiograph.ChannelRinger),
		Payload: mediadevices.VolumeChange{Channel: audiograph.ChannelRinger, Volume: 0.42},
		Time:    at,
	})
	require.NoError(t, err)

	require.Len(t, client.messages, 1)
	assert.Equal(t, "libwebphone/volume/ringer/change", client.messages[0].topic)
	doc := decode(t, client.messages[0].payload)
	assert.Equal(t, "volume.ringer.change", doc["signal"])
	assert.Equal(t, "2026-03-01T12:00:00Z", doc["time"])
	assert.Equal(t, map[string]any{"channel": "ringer", "volume": float64(420)}, doc["data"])
}

func TestBridgeDropsWhileDisconnected(t *testing.T) {
	client := &fakeClient{}
	b := NewBridge(client, DefaultConfig(), nil)

	require.NoError(t, b.ProcessSignal(events.Signal{Name: mediadevices.SignalCreated}))
	assert.Empty(t, client.messages)
}

func TestBridgeReturnsPublishErrors(t *testing.T) {
	client := &fakeClient{connected: true, failWith: assert.AnError}
	b := NewBridge(client, DefaultConfig(), nil)

	err := b.ProcessSignal(events.Signal{Name: mediadevices.SignalLoaded})
	assert.ErrorIs(t, err, assert.AnError)
}

func TestBridgeRecordsPublishMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m, err := metrics.NewMQTTMetrics(registry)
	require.NoError(t, err)

	client := &fakeClient{connected: true}
	b := NewBridge(client, DefaultConfig(), m)
	require.NoError(t, b.ProcessSignal(events.Signal{Name: mediadevices.SignalStreamsStop}))

	families, err := registry.Gather()
	require.NoError(t, err)
	var counter *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "mqtt_bridge_published_total" {
			counter = f
		}
	}
	require.NotNil(t, counter)
	require.Len(t, counter.GetMetric(), 1)
	assert.InDelta(t, 1, counter.GetMetric()[0].GetCounter().GetValue(), 0)
	assert.Equal(t, "streams.stop", counter.GetMetric()[0].GetLabel()[0].GetValue())
}

func TestConvertPayload(t *testing.T) {
	dev := mediadevices.Device{ID: "hw:1,0", Class: mediadevices.AudioOutput, Name: "USB Speaker"}
	params := &mediadevices.TrackParameters{
		TrackKind: mediadevices.KindAudio,
		Label:     "Headset Mic",
		Enabled:   true,
		Active:    true,
		Settings:  mediadevices.TrackSettings{DeviceID: "mic-1"},
	}

	tests := []struct {
		name    string
		payload any
		want    any
	}{
		{"nil", nil, nil},
		{"track", params, &TrackDTO{Kind: "audio", DeviceID: "mic-1", Label: "Headset Mic", Enabled: true, Active: true}},
		{"track removed", mediadevices.TrackChange{Previous: params}, ChangeDTO[TrackDTO]{
			Previous: &TrackDTO{Kind: "audio", DeviceID: "mic-1", Label: "Headset Mic", Enabled: true, Active: true},
		}},
		{"output change", mediadevices.OutputChange{Current: dev}, ChangeDTO[DeviceDTO]{
			Current: &DeviceDTO{ID: "hw:1,0", Class: "audiooutput", Name: "USB Speaker"},
		}},
		{"device", dev, &DeviceDTO{ID: "hw:1,0", Class: "audiooutput", Name: "USB Speaker"}},
		{"capture error", &mediadevices.CaptureError{
			Kinds: []mediadevices.TrackKind{mediadevices.KindAudio, mediadevices.KindVideo},
			Err:   mediadevices.ErrCaptureFailed,
		}, CaptureErrorDTO{Kinds: []string{"audio", "video"}, Error: "media capture failed"}},
		{"opaque", struct{ x int }{1}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertPayload(tt.payload))
		})
	}
}
