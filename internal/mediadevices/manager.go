// Package mediadevices arbitrates capture and playback devices for the
// softphone and keeps the shared media stream's tracks in line with the
// chosen devices.
//
// A Manager owns one Registry, one Stream and one Guard for its lifetime.
// Every operation that changes which device is active, or that asks the
// Capturer or SinkSelector for something, runs under the Guard in FIFO order.
// Read-only queries do not take the Guard and may observe a state between
// two operations; renderers refresh on every published signal anyway.
package mediadevices

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

// Options wires a Manager to its collaborators. Enumerator and Capturer are required.
type Options struct {
	Config      Config
	Enumerator  Enumerator
	Capturer    Capturer
	Sink        SinkSelector
	Graph       *audiograph.Graph
	Publisher   Publisher
	Metrics     Metrics
	Preferences PreferenceStore
	Logger      logger.Logger
}

// Manager is the media devices engine.
type Manager struct {
	cfg   Config
	reg   *Registry
	guard *Guard
	lc    *lifecycle
	arb   *arbitrator
	graph *audiograph.Graph
	pub   Publisher
	prefs PreferenceStore
	log   logger.Logger

	loaded atomic.Bool
	closed atomic.Bool
}

// New builds a Manager. It does not touch any device until Start.
func New(opts Options) (*Manager, error) {
	if opts.Enumerator == nil || opts.Capturer == nil {
		return nil, errors.Newf("enumerator and capturer are required").
			Component(componentName).
			Category(errors.CategoryConfiguration).
			Build()
	}

	cfg := opts.Config
	if cfg.Classes == nil {
		cfg = DefaultConfig()
	}
	log := opts.Logger
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	pub := opts.Publisher
	if pub == nil {
		pub = nopPublisher{}
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	graph := opts.Graph
	if graph == nil {
		var err error
		graph, err = audiograph.New(audiograph.DefaultConfig(), log.Module("audiograph"))
		if err != nil {
			return nil, err
		}
	}

	preferred := make(map[DeviceClass][]string, len(cfg.Classes))
	for class, cc := range cfg.Classes {
		preferred[class] = cc.PreferredDeviceIDs
	}
	reg := NewRegistry(NewNamer(cfg.Locale, cfg.placeholders()), preferred)
	guard := NewGuard(metrics.ObserveGuardWait)

	m := &Manager{
		cfg:   cfg,
		reg:   reg,
		guard: guard,
		graph: graph,
		pub:   pub,
		prefs: opts.Preferences,
		log:   log,
	}
	m.lc = &lifecycle{
		cfg:      &m.cfg,
		reg:      reg,
		stream:   newStream(),
		capturer: opts.Capturer,
		graph:    graph,
		pub:      pub,
		metrics:  metrics,
		log:      log,
	}
	m.arb = &arbitrator{
		reg:     reg,
		lc:      m.lc,
		guard:   guard,
		enum:    opts.Enumerator,
		sink:    opts.Sink,
		prefs:   opts.Preferences,
		pub:     pub,
		metrics: metrics,
		log:     log,
	}

	pub.Publish(SignalCreated, nil)
	return m, nil
}

// Registry exposes the device catalog for read-only queries.
func (m *Manager) Registry() *Registry { return m.reg }

// Stream returns the shared media stream.
func (m *Manager) Stream() *Stream { return m.lc.stream }

// Graph returns the audio graph the engine mixes into.
func (m *Manager) Graph() *audiograph.Graph { return m.graph }

// Loaded reports whether Start has completed.
func (m *Manager) Loaded() bool { return m.loaded.Load() }

// Start loads persisted preferences, enumerates devices and activates a
// default device per class. Calling it again performs a refresh.
func (m *Manager) Start(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.loaded.Load() {
		return m.RefreshAvailableDevices(ctx)
	}

	m.loadPreferences()

	devices, err := m.arb.enum.EnumerateDevices(ctx)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate").
			Build()
	}

	err = m.guard.Do(ctx, func() error {
		m.reg.MarkAllDisconnected()
		m.reg.Import(devices)
		m.reg.SortByPreference()
		m.arb.promoteDefaults()
		m.arb.publishCounts()
		return nil
	})
	if err != nil {
		return err
	}

	m.loaded.Store(true)
	m.log.Info("media devices loaded", logger.Int("devices", len(devices)))
	m.pub.Publish(SignalLoaded, nil)

	switch {
	case m.cfg.StartStreams:
		_, err = m.StartStreams(ctx)
	case m.cfg.StartPreview:
		err = m.StartPreviews(ctx)
	}
	return err
}

// loadPreferences puts persisted selections ahead of the configured ranking.
func (m *Manager) loadPreferences() {
	if m.prefs == nil {
		return
	}
	stored, err := m.prefs.Load()
	if err != nil {
		m.log.Warn("failed to load device preferences", logger.Error(err))
		return
	}
	for _, class := range DeviceClasses {
		merged := slices.Clone(stored[class])
		for _, id := range m.cfg.class(class).PreferredDeviceIDs {
			if !slices.Contains(merged, id) {
				merged = append(merged, id)
			}
		}
		m.reg.SetPreferredOrder(class, merged)
	}
}

// RefreshAvailableDevices reconciles the registry with a fresh enumeration.
// Hot-plug watchers call it whenever the device set may have changed.
func (m *Manager) RefreshAvailableDevices(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if !m.loaded.Load() {
		return ErrNotLoaded
	}
	return m.arb.refresh(ctx)
}

// ChangeDevice selects a device explicitly and raises its preference.
func (m *Manager) ChangeDevice(ctx context.Context, class DeviceClass, id string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return m.arb.changeDevice(ctx, class, id)
}

// Devices returns the devices of a class in preference order.
func (m *Manager) Devices(class DeviceClass) []Device {
	return m.reg.Devices(class)
}

// TrackParameters snapshots the track of kind, or returns nil if there is none.
func (m *Manager) TrackParameters(kind TrackKind) *TrackParameters {
	t, ok := m.lc.stream.Track(kind)
	if !ok {
		return nil
	}
	return NewTrackParameters(m.lc.stream, t)
}

// PreviewActive reports whether previews hold the inputs.
func (m *Manager) PreviewActive() bool { return m.lc.previewActive.Load() }

// StreamsActive reports whether a call holds the inputs.
func (m *Manager) StreamsActive() bool { return m.lc.streamsActive.Load() }

// ensureRunning starts the graph and announces it the first time.
func (m *Manager) ensureRunning() {
	if m.graph.EnsureRunning() {
		m.pub.Publish(SignalAudioContextStarted, nil)
	}
}

// StartPreviews captures the inputs for local preview. It does nothing while streams are active.
func (m *Manager) StartPreviews(ctx context.Context) error {
	return m.guard.Do(ctx, func() error {
		if m.lc.streamsActive.Load() {
			return nil
		}
		m.ensureRunning()
		if m.cfg.LoopbackOnPreview {
			m.setLoopback(true)
		}
		if m.cfg.ToneOnPreview {
			m.setTone(true)
		}

		err := m.lc.startInputStreams(ctx, nil, nil)
		m.lc.previewActive.Store(true)
		m.pub.Publish(SignalPreviewStarted, nil)
		return err
	})
}

// StopPreviews silences the preview paths and releases inputs not held by streams.
func (m *Manager) StopPreviews(ctx context.Context) error {
	return m.guard.Do(ctx, func() error {
		m.stopPreviewsLocked()
		return nil
	})
}

func (m *Manager) stopPreviewsLocked() {
	m.setLoopback(false)
	m.setTone(false)
	if !m.lc.streamsActive.Load() {
		m.lc.stopAllInputs()
	}
	m.lc.previewActive.Store(false)
	m.pub.Publish(SignalPreviewStop, nil)
}

// StartStreams captures inputs for a call, honoring per-class start mute,
// and publishes the stream with the microphone monitor destination.
// Running previews are stopped first.
func (m *Manager) StartStreams(ctx context.Context) (*Stream, error) {
	err := m.guard.Do(ctx, func() error {
		if m.lc.previewActive.Load() {
			m.stopPreviewsLocked()
		}
		m.ensureRunning()

		var muted []TrackKind
		for _, class := range DeviceClasses {
			if !m.cfg.class(class).StartMuted {
				continue
			}
			if class == AudioOutput {
				m.setOutputMuted(true)
				continue
			}
			muted = append(muted, class.TrackKind())
		}

		err := m.lc.startInputStreams(ctx, nil, muted)
		m.lc.streamsActive.Store(true)
		m.pub.Publish(SignalStreamsStarted, StreamsStarted{
			Stream:  m.lc.stream,
			Monitor: m.graph.Monitor(),
		})
		return err
	})
	return m.lc.stream, err
}

// StopStreams releases the inputs unless previews still hold them.
func (m *Manager) StopStreams(ctx context.Context) error {
	return m.guard.Do(ctx, func() error {
		if !m.lc.previewActive.Load() {
			m.lc.stopAllInputs()
		}
		m.lc.streamsActive.Store(false)
		m.pub.Publish(SignalStreamsStop, nil)
		return nil
	})
}

// Mute mutes a class: the output stage for audio output, the input track otherwise.
func (m *Manager) Mute(class DeviceClass) {
	if class == AudioOutput {
		m.setOutputMuted(true)
		return
	}
	m.MuteInput(class.TrackKind())
}

// Unmute reverses Mute.
func (m *Manager) Unmute(class DeviceClass) {
	if class == AudioOutput {
		m.setOutputMuted(false)
		return
	}
	m.UnmuteInput(class.TrackKind())
}

// ToggleMute flips the mute state of a class.
func (m *Manager) ToggleMute(class DeviceClass) {
	if class == AudioOutput {
		m.setOutputMuted(!m.graph.OutputMuted())
		return
	}
	m.ToggleMuteInput(class.TrackKind())
}

// MuteInput disables the tracks of the given kinds, or of every kind.
// Capture keeps running so unmuting is immediate.
func (m *Manager) MuteInput(kinds ...TrackKind) int {
	return m.lc.setEnabled(kinds, func(bool) bool { return false })
}

// UnmuteInput enables the tracks of the given kinds, or of every kind.
func (m *Manager) UnmuteInput(kinds ...TrackKind) int {
	return m.lc.setEnabled(kinds, func(bool) bool { return true })
}

// ToggleMuteInput flips the tracks of the given kinds, or of every kind.
func (m *Manager) ToggleMuteInput(kinds ...TrackKind) int {
	return m.lc.setEnabled(kinds, func(enabled bool) bool { return !enabled })
}

// OutputMuted reports whether the master stage is muted.
func (m *Manager) OutputMuted() bool { return m.graph.OutputMuted() }

func (m *Manager) setOutputMuted(muted bool) {
	m.graph.SetOutputMuted(muted)
	var payload any
	if d, ok := m.reg.Active(AudioOutput); ok {
		payload = d
	}
	if muted {
		m.pub.Publish(SignalOutputMuted, payload)
	} else {
		m.pub.Publish(SignalOutputUnmuted, payload)
	}
}

// StartPreviewTone makes the preview oscillator audible.
func (m *Manager) StartPreviewTone() {
	m.ensureRunning()
	m.setTone(true)
}

// StopPreviewTone silences the preview oscillator.
func (m *Manager) StopPreviewTone() { m.setTone(false) }

// PreviewToneActive reports whether the preview tone is audible.
func (m *Manager) PreviewToneActive() bool { return m.graph.ToneActive() }

func (m *Manager) setTone(active bool) {
	m.graph.SetToneActive(active)
	if active {
		m.pub.Publish(SignalPreviewToneStarted, nil)
	} else {
		m.pub.Publish(SignalPreviewToneStop, nil)
	}
}

// StartPreviewLoopback plays the microphone back after the configured delay.
func (m *Manager) StartPreviewLoopback() {
	m.ensureRunning()
	m.setLoopback(true)
}

// StopPreviewLoopback stops the delayed microphone playback.
func (m *Manager) StopPreviewLoopback() { m.setLoopback(false) }

// TogglePreviewLoopback flips the loopback preview.
func (m *Manager) TogglePreviewLoopback() {
	if m.graph.LoopbackActive() {
		m.StopPreviewLoopback()
	} else {
		m.StartPreviewLoopback()
	}
}

// PreviewLoopbackActive reports whether the loopback preview is audible.
func (m *Manager) PreviewLoopbackActive() bool { return m.graph.LoopbackActive() }

func (m *Manager) setLoopback(active bool) {
	m.graph.SetLoopbackActive(active)
	if active {
		m.pub.Publish(SignalPreviewLoopbackStarted, nil)
	} else {
		m.pub.Publish(SignalPreviewLoopbackStop, nil)
	}
}

// PlayTone plays the DTMF tones of digits on the DTMF channel.
func (m *Manager) PlayTone(digits string) error {
	m.ensureRunning()
	return m.graph.PlayDTMF(digits)
}

// PlayFrequencies plays one DTMF-length tone summing the given frequencies.
func (m *Manager) PlayFrequencies(frequencies ...float64) {
	m.ensureRunning()
	m.graph.PlayTone(frequencies...)
}

// StartRinging starts the ringer cadence.
func (m *Manager) StartRinging() {
	m.ensureRunning()
	if m.graph.StartRinging() {
		m.pub.Publish(SignalRingingStarted, nil)
	}
}

// StopRinging stops the ringer cadence.
func (m *Manager) StopRinging() {
	if m.graph.StopRinging() {
		m.pub.Publish(SignalRingingStop, nil)
	}
}

// AttachRemoteAudio routes call audio through the remote channel, replacing any previous source.
// A nil src only detaches.
func (m *Manager) AttachRemoteAudio(src audiograph.Source) {
	if prev := m.graph.SetRemote(src); prev != nil {
		m.pub.Publish(SignalRemoteAudioRemoved, prev)
	}
	if src != nil {
		m.pub.Publish(SignalRemoteAudioAdded, src)
	}
}

// DetachRemoteAudio disconnects call audio.
func (m *Manager) DetachRemoteAudio() {
	m.AttachRemoteAudio(nil)
}

// ChangeVolume sets a channel volume, rounded to two decimals.
func (m *Manager) ChangeVolume(ch audiograph.Channel, v float64) error {
	v = audiograph.RoundVolume(v)
	if err := m.graph.SetVolume(ch, v); err != nil {
		return err
	}
	m.pub.Publish(VolumeSignal(ch), VolumeChange{Channel: ch, Volume: v})
	return nil
}

// Volume returns a channel volume in [0,1].
func (m *Manager) Volume(ch audiograph.Channel) float64 {
	return m.graph.Volume(ch)
}

// SetControlVolume sets a channel volume from its [0,1000] control value.
func (m *Manager) SetControlVolume(ch audiograph.Channel, c int) error {
	if c < audiograph.ControlMin || c > audiograph.ControlMax {
		return errors.Newf("control volume %d out of range [%d,%d]", c, audiograph.ControlMin, audiograph.ControlMax).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("channel", string(ch)).
			Build()
	}
	return m.ChangeVolume(ch, audiograph.FromControl(c))
}

// ControlVolume returns a channel volume as its [0,1000] control value.
func (m *Manager) ControlVolume(ch audiograph.Channel) int {
	return audiograph.ToControl(m.graph.Volume(ch))
}

// Close stops previews and streams and releases every track. The graph stops rendering.
func (m *Manager) Close(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	err := m.guard.Do(ctx, func() error {
		m.lc.stopAllInputs()
		m.lc.previewActive.Store(false)
		m.lc.streamsActive.Store(false)
		return nil
	})
	m.graph.SetToneActive(false)
	m.graph.SetLoopbackActive(false)
	m.graph.StopRinging()
	m.graph.Stop()
	m.log.Info("media devices closed")
	return err
}
