// Package soundcard enumerates, captures from and plays to audio devices
// through miniaudio. It provides the audio halves of the media devices
// collaborators: an Enumerator, a Capturer for audio tracks and a
// SinkSelector that plays the audio graph on the chosen output.
package soundcard

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/patrickmn/go-cache"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const componentName = "soundcard"

// Config tunes the devices opened by a Backend.
type Config struct {
	// PeriodMillis is the device callback period.
	PeriodMillis uint32
	// BufferSeconds bounds how much captured audio a track keeps before dropping the oldest.
	BufferSeconds float64
	// DeviceTTL is how long enumerated device details are reused when opening a device.
	DeviceTTL time.Duration
}

// DefaultConfig returns a 10ms period with one second of capture buffering.
func DefaultConfig() Config {
	return Config{
		PeriodMillis:  10,
		BufferSeconds: 1,
		DeviceTTL:     time.Minute,
	}
}

// Backend owns one miniaudio context for enumeration, capture and playback.
type Backend struct {
	cfg   Config
	mctx  *malgo.AllocatedContext
	graph *audiograph.Graph
	log   logger.Logger
	infos *cache.Cache

	mu       sync.Mutex
	playback *malgo.Device
	sinkID   string
	closed   bool
}

// backendsForPlatform lists the miniaudio backends tried on this OS, best first.
func backendsForPlatform() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendPulseaudio, malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// New initializes a miniaudio context. graph is rendered to the output chosen by SetSink.
func New(cfg Config, graph *audiograph.Graph, log logger.Logger) (*Backend, error) {
	def := DefaultConfig()
	if cfg.PeriodMillis == 0 {
		cfg.PeriodMillis = def.PeriodMillis
	}
	if cfg.BufferSeconds <= 0 {
		cfg.BufferSeconds = def.BufferSeconds
	}
	if cfg.DeviceTTL <= 0 {
		cfg.DeviceTTL = def.DeviceTTL
	}
	if log == nil {
		log = logger.Global().Module(componentName)
	}

	mctx, err := malgo.InitContext(backendsForPlatform(), malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "init_context").
			Context("os", runtime.GOOS).
			Build()
	}

	return &Backend{
		cfg:   cfg,
		mctx:  mctx,
		graph: graph,
		log:   log,
		infos: cache.New(cfg.DeviceTTL, 2*cfg.DeviceTTL),
	}, nil
}

func infoKey(class mediadevices.DeviceClass, id string) string {
	return class.String() + "/" + id
}

// EnumerateDevices lists playback and capture devices.
func (b *Backend) EnumerateDevices(ctx context.Context) ([]mediadevices.EnumeratedDevice, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []mediadevices.EnumeratedDevice
	for _, class := range []mediadevices.DeviceClass{mediadevices.AudioOutput, mediadevices.AudioInput} {
		devices, err := b.list(class)
		if err != nil {
			return nil, err
		}
		out = append(out, devices...)
	}
	return out, nil
}

func deviceType(class mediadevices.DeviceClass) malgo.DeviceType {
	if class == mediadevices.AudioOutput {
		return malgo.Playback
	}
	return malgo.Capture
}

func (b *Backend) list(class mediadevices.DeviceClass) ([]mediadevices.EnumeratedDevice, error) {
	infos, err := b.mctx.Devices(deviceType(class))
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate_devices").
			Context("class", class.String()).
			Build()
	}

	out := make([]mediadevices.EnumeratedDevice, 0, len(infos))
	seen := make(map[string]bool, len(infos))
	for i := range infos {
		name := infos[i].Name()
		// ALSA lists a null sink that swallows everything
		if strings.Contains(name, "Discard all samples") {
			continue
		}
		id := encodeID(infos[i].ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		b.infos.Set(infoKey(class, id), infos[i], cache.DefaultExpiration)
		out = append(out, mediadevices.EnumeratedDevice{ID: id, Label: name, Class: class})
	}
	return out, nil
}

// lookup resolves an id to device details, re-enumerating on a cache miss.
// An empty id selects the system default.
func (b *Backend) lookup(class mediadevices.DeviceClass, id string) (malgo.DeviceInfo, bool) {
	if id == "" {
		return b.defaultDevice(class)
	}
	if v, ok := b.infos.Get(infoKey(class, id)); ok {
		return v.(malgo.DeviceInfo), true
	}
	if _, err := b.list(class); err != nil {
		b.log.Warn("device lookup failed", logger.String("device", id), logger.Error(err))
		return malgo.DeviceInfo{}, false
	}
	v, ok := b.infos.Get(infoKey(class, id))
	if !ok {
		return malgo.DeviceInfo{}, false
	}
	return v.(malgo.DeviceInfo), true
}

func (b *Backend) defaultDevice(class mediadevices.DeviceClass) (malgo.DeviceInfo, bool) {
	infos, err := b.mctx.Devices(deviceType(class))
	if err != nil || len(infos) == 0 {
		return malgo.DeviceInfo{}, false
	}
	for i := range infos {
		if infos[i].IsDefault == 1 {
			return infos[i], true
		}
	}
	return infos[0], true
}

// Close stops playback and releases the miniaudio context. Tracks must be stopped first.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	if b.playback != nil {
		_ = b.playback.Stop()
		b.playback.Uninit()
		b.playback = nil
	}
	err := b.mctx.Uninit()
	b.mctx.Free()
	return err
}
