package soundcard

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	"github.com/google/uuid"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// Capture opens the microphone named by the audio constraints. Only audio is
// supported; a request containing any other kind fails as a whole.
func (b *Backend) Capture(ctx context.Context, cs mediadevices.ConstraintSet) ([]mediadevices.Track, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, kind := range cs.Kinds() {
		if kind != mediadevices.KindAudio {
			return nil, errors.Newf("soundcard cannot capture %s", kind).
				Component(componentName).
				Category(errors.CategoryCapture).
				Context("kind", kind.String()).
				Build()
		}
	}
	c, ok := cs[mediadevices.KindAudio]
	if !ok {
		return nil, nil
	}

	t, err := b.openCapture(c)
	if err != nil {
		return nil, err
	}
	return []mediadevices.Track{t}, nil
}

func (b *Backend) openCapture(c mediadevices.Constraints) (*captureTrack, error) {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, errors.Newf("soundcard backend closed").
			Component(componentName).
			Category(errors.CategoryState).
			Build()
	}

	info, ok := b.lookup(mediadevices.AudioInput, c.DeviceID)
	if !ok {
		return nil, errors.Newf("audio input %q not found", c.DeviceID).
			Component(componentName).
			Category(errors.CategoryNotFound).
			Context("device", c.DeviceID).
			Build()
	}

	channels := 1
	if c.ChannelCount > 0 {
		channels = c.ChannelCount
	}
	rate := b.graph.SampleRate()

	t := &captureTrack{
		id:       uuid.NewString(),
		label:    info.Name(),
		cons:     c,
		channels: channels,
		queue:    audiograph.NewSampleQueue(int(b.cfg.BufferSeconds * float64(rate))),
		log:      b.log,
	}
	t.enabled.Store(true)

	devID := info.ID
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatF32
	cfg.Capture.Channels = uint32(channels)
	cfg.Capture.DeviceID = devID.Pointer()
	cfg.SampleRate = uint32(rate)
	cfg.PeriodSizeInMilliseconds = b.cfg.PeriodMillis
	cfg.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(b.mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: t.onData,
		Stop: t.onStop,
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryCapture).
			Context("device", info.Name()).
			Context("operation", "init_capture").
			Build()
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryCapture).
			Context("device", info.Name()).
			Context("operation", "start_capture").
			Build()
	}

	t.device = device
	t.settings = mediadevices.TrackSettings{
		DeviceID:     encodeID(info.ID),
		SampleRate:   int(device.SampleRate()),
		ChannelCount: channels,
	}
	b.log.Info("audio capture started",
		logger.String("device", info.Name()),
		logger.Int("sample_rate", t.settings.SampleRate),
		logger.Int("channels", channels))
	return t, nil
}

// captureTrack is a live microphone. Disabled tracks keep the device open
// and deliver silence.
type captureTrack struct {
	id       string
	label    string
	cons     mediadevices.Constraints
	settings mediadevices.TrackSettings
	channels int
	queue    *audiograph.SampleQueue
	device   *malgo.Device
	log      logger.Logger

	enabled  atomic.Bool
	ended    atomic.Bool
	stopOnce sync.Once

	// callback goroutine only
	mono []float32
}

func (t *captureTrack) ID() string                            { return t.id }
func (t *captureTrack) Kind() mediadevices.TrackKind          { return mediadevices.KindAudio }
func (t *captureTrack) Label() string                         { return t.label }
func (t *captureTrack) Enabled() bool                         { return t.enabled.Load() }
func (t *captureTrack) SetEnabled(enabled bool)               { t.enabled.Store(enabled) }
func (t *captureTrack) Settings() mediadevices.TrackSettings  { return t.settings }
func (t *captureTrack) Constraints() mediadevices.Constraints { return t.cons }

func (t *captureTrack) ReadyState() mediadevices.ReadyState {
	if t.ended.Load() {
		return mediadevices.TrackEnded
	}
	return mediadevices.TrackLive
}

func (t *captureTrack) Capabilities() map[string]any {
	return map[string]any{
		"sampleRate":   t.settings.SampleRate,
		"channelCount": t.channels,
	}
}

// ReadSamples feeds the graph microphone input.
func (t *captureTrack) ReadSamples(dst []float32) int {
	return t.queue.ReadSamples(dst)
}

// Stop closes the device. It is safe to call more than once.
func (t *captureTrack) Stop() {
	t.stopOnce.Do(func() {
		t.ended.Store(true)
		if t.device != nil {
			_ = t.device.Stop()
			t.device.Uninit()
		}
		t.queue.Reset()
	})
}

func (t *captureTrack) onData(_, in []byte, frames uint32) {
	n := int(frames)
	if cap(t.mono) < n {
		t.mono = make([]float32, n)
	}
	mono := t.mono[:n]
	if t.enabled.Load() {
		downmixF32(in, t.channels, mono)
	} else {
		clear(mono)
	}
	t.queue.Write(mono)
}

// onStop fires when the device goes away underneath the track.
func (t *captureTrack) onStop() {
	if !t.ended.Swap(true) {
		t.log.Warn("audio capture device stopped", logger.String("track", t.id))
	}
}

// downmixF32 averages interleaved little-endian float32 frames into dst.
func downmixF32(in []byte, channels int, dst []float32) {
	frameBytes := 4 * channels
	frames := min(len(dst), len(in)/frameBytes)
	for i := range frames {
		var sum float32
		for c := range channels {
			off := i*frameBytes + 4*c
			sum += math.Float32frombits(binary.LittleEndian.Uint32(in[off:]))
		}
		dst[i] = sum / float32(channels)
	}
	clear(dst[frames:])
}
