package soundcard

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/gen2brain/malgo"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const playbackChannels = 2

// SetSink plays the audio graph on the output id. The new device is opened
// before the old one is closed, so a failure leaves the current output playing.
func (b *Backend) SetSink(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, ok := b.lookup(mediadevices.AudioOutput, id)
	if !ok {
		return errors.Newf("audio output %q not found", id).
			Component(componentName).
			Category(errors.CategoryNotFound).
			Context("device", id).
			Build()
	}

	device, err := b.openPlayback(info)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		device.Uninit()
		return errors.Newf("soundcard backend closed").
			Component(componentName).
			Category(errors.CategoryState).
			Build()
	}
	old := b.playback
	b.playback = device
	b.sinkID = id
	b.mu.Unlock()

	if err := device.Start(); err != nil {
		b.log.Warn("failed to start playback", logger.String("device", info.Name()), logger.Error(err))
	}
	if old != nil {
		_ = old.Stop()
		old.Uninit()
	}
	b.log.Info("audio output switched", logger.String("device", info.Name()))
	return nil
}

// Sink returns the id of the output currently playing the graph.
func (b *Backend) Sink() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sinkID
}

func (b *Backend) openPlayback(info malgo.DeviceInfo) (*malgo.Device, error) {
	devID := info.ID
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatF32
	cfg.Playback.Channels = playbackChannels
	cfg.Playback.DeviceID = devID.Pointer()
	cfg.SampleRate = uint32(b.graph.SampleRate())
	cfg.PeriodSizeInMilliseconds = b.cfg.PeriodMillis
	cfg.Alsa.NoMMap = 1

	var scratch []float32
	device, err := malgo.InitDevice(b.mctx.Context, cfg, malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frames uint32) {
			scratch = renderF32(b.graph, scratch, out, int(frames))
		},
	})
	if err != nil {
		return nil, errors.New(err).
			Component(componentName).
			Category(errors.CategorySink).
			Context("device", info.Name()).
			Context("operation", "init_playback").
			Build()
	}
	return device, nil
}

// renderF32 renders frames of interleaved stereo into out as little-endian
// float32 and returns the scratch buffer for reuse.
func renderF32(g *audiograph.Graph, scratch []float32, out []byte, frames int) []float32 {
	n := frames * playbackChannels
	if cap(scratch) < n {
		scratch = make([]float32, n)
	}
	buf := scratch[:n]
	g.Render(buf)
	limit := min(n, len(out)/4)
	for i := range limit {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(buf[i]))
	}
	return scratch
}
