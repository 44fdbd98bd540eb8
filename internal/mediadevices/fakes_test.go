package mediadevices

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/logger"
)

type fakeTrack struct {
	id       string
	kind     TrackKind
	label    string
	deviceID string
	cons     Constraints

	mu      sync.Mutex
	enabled bool
	state   ReadyState
	stopped bool
}

func (t *fakeTrack) ID() string      { return t.id }
func (t *fakeTrack) Kind() TrackKind { return t.kind }
func (t *fakeTrack) Label() string   { return t.label }

func (t *fakeTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *fakeTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *fakeTrack) ReadyState() ReadyState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *fakeTrack) Settings() TrackSettings  { return TrackSettings{DeviceID: t.deviceID} }
func (t *fakeTrack) Constraints() Constraints { return t.cons }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	t.state = TrackEnded
}

// end simulates the device vanishing underneath a live track
func (t *fakeTrack) end() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = TrackEnded
}

func (t *fakeTrack) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// hardware fakes enumeration, capture and sink selection over one device list
type hardware struct {
	mu       sync.Mutex
	devices  []EnumeratedDevice
	requests []ConstraintSet
	sinks    []string
	tracks   []*fakeTrack

	captureErr func(ConstraintSet) error
	sinkErr    error
	delay      time.Duration

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newHardware(devices ...EnumeratedDevice) *hardware {
	return &hardware{devices: devices}
}

func (h *hardware) setDevices(devices ...EnumeratedDevice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.devices = devices
}

func (h *hardware) EnumerateDevices(context.Context) ([]EnumeratedDevice, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]EnumeratedDevice(nil), h.devices...), nil
}

func (h *hardware) enter() func() {
	n := h.inFlight.Add(1)
	for {
		m := h.maxInFlight.Load()
		if n <= m || h.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	return func() { h.inFlight.Add(-1) }
}

func (h *hardware) labelFor(class DeviceClass, id string) string {
	for _, d := range h.devices {
		if d.Class == class && d.ID == id {
			return d.Label
		}
	}
	return ""
}

func (h *hardware) Capture(_ context.Context, cs ConstraintSet) ([]Track, error) {
	defer h.enter()()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.requests = append(h.requests, cs.Clone())
	if h.captureErr != nil {
		if err := h.captureErr(cs); err != nil {
			return nil, err
		}
	}

	var out []Track
	for _, kind := range cs.Kinds() {
		c := cs[kind]
		id := c.DeviceID
		if id == "" {
			id = "default"
		}
		t := &fakeTrack{
			id:       uuid.NewString(),
			kind:     kind,
			label:    h.labelFor(kind.InputClass(), id),
			deviceID: id,
			cons:     c,
			state:    TrackLive,
		}
		h.tracks = append(h.tracks, t)
		out = append(out, t)
	}
	return out, nil
}

func (h *hardware) SetSink(_ context.Context, id string) error {
	defer h.enter()()

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sinkErr != nil {
		return h.sinkErr
	}
	h.sinks = append(h.sinks, id)
	return nil
}

func (h *hardware) captureRequests() []ConstraintSet {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]ConstraintSet(nil), h.requests...)
}

func (h *hardware) sinkCalls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.sinks...)
}

type published struct {
	name    string
	payload any
}

type recordingPublisher struct {
	mu      sync.Mutex
	signals []published
}

func (p *recordingPublisher) Publish(name string, payload any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signals = append(p.signals, published{name: name, payload: payload})
	return true
}

func (p *recordingPublisher) names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.signals))
	for _, s := range p.signals {
		out = append(out, s.name)
	}
	return out
}

func (p *recordingPublisher) last(name string) (any, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := len(p.signals) - 1; i >= 0; i-- {
		if p.signals[i].name == name {
			return p.signals[i].payload, true
		}
	}
	return nil, false
}

func (p *recordingPublisher) count(name string) int {
	n := 0
	for _, s := range p.names() {
		if s == name {
			n++
		}
	}
	return n
}

type memoryPrefs struct {
	mu     sync.Mutex
	stored map[DeviceClass][]string
	saves  int
}

func (s *memoryPrefs) Load() (map[DeviceClass][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, nil
}

func (s *memoryPrefs) Save(order map[DeviceClass][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = order
	s.saves++
	return nil
}

func mic(id, label string) EnumeratedDevice {
	return EnumeratedDevice{ID: id, Label: label, Class: AudioInput}
}

func speaker(id, label string) EnumeratedDevice {
	return EnumeratedDevice{ID: id, Label: label, Class: AudioOutput}
}

func camera(id, label string) EnumeratedDevice {
	return EnumeratedDevice{ID: id, Label: label, Class: VideoInput}
}

type harness struct {
	m   *Manager
	hw  *hardware
	pub *recordingPublisher
}

func testLogger() logger.Logger {
	return logger.NewWriterLogger(io.Discard, logger.LogLevelError).Module(componentName)
}

func newHarness(t *testing.T, cfg Config, hw *hardware, prefs PreferenceStore) *harness {
	t.Helper()
	graph, err := audiograph.New(audiograph.Config{SampleRate: 8000}, testLogger())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	m, err := New(Options{
		Config:      cfg,
		Enumerator:  hw,
		Capturer:    hw,
		Sink:        hw,
		Graph:       graph,
		Publisher:   pub,
		Preferences: prefs,
		Logger:      testLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return &harness{m: m, hw: hw, pub: pub}
}

func startedHarness(t *testing.T, cfg Config, hw *hardware) *harness {
	t.Helper()
	h := newHarness(t, cfg, hw, nil)
	require.NoError(t, h.m.Start(context.Background()))
	return h
}

// requireInvariants checks that no class has more than one active device
func requireInvariants(t *testing.T, r *Registry) {
	t.Helper()
	for _, class := range DeviceClasses {
		active := 0
		for _, d := range r.Devices(class) {
			if d.Active {
				active++
			}
		}
		require.LessOrEqual(t, active, 1, "class %s has %d active devices", class, active)
	}
}

func activeID(t *testing.T, r *Registry, class DeviceClass) string {
	t.Helper()
	d, ok := r.Active(class)
	if !ok {
		return ""
	}
	return d.ID
}

// setPreference forces a preference value for scenario setup
func setPreference(r *Registry, class DeviceClass, id string, pref int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d := r.findLocked(class, id); d != nil {
		d.Preference = pref
	}
}

func errDenied(kinds ...TrackKind) func(ConstraintSet) error {
	return func(cs ConstraintSet) error {
		for _, k := range kinds {
			if cs.Has(k) {
				return fmt.Errorf("NotAllowedError: %s permission denied", k)
			}
		}
		return nil
	}
}
