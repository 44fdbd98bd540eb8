package audiograph

import (
	"io"
	"math"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/ringneck/libwebphone/internal/errors"
)

const (
	exportBitDepth = 16
	exportChannels = 2
	wavFormatPCM   = 1
)

// PendingToneDuration returns how long the queued DTMF audio will play.
func (g *Graph) PendingToneDuration() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	var samples int
	for _, seg := range g.dtmf {
		samples += max(seg.remaining, 0)
	}
	return time.Duration(samples) * time.Second / time.Duration(g.cfg.SampleRate)
}

// RenderWAV renders d of graph output and encodes it as 16-bit stereo PCM WAV.
// The graph is started if it is not already running.
func (g *Graph) RenderWAV(w io.WriteSeeker, d time.Duration) error {
	if d <= 0 {
		return errors.Newf("render duration must be positive, got %s", d).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}
	g.EnsureRunning()

	frames := samplesFor(d, g.cfg.SampleRate)
	mixed := make([]float32, frames*exportChannels)
	g.Render(mixed)

	format := &audio.Format{SampleRate: g.cfg.SampleRate, NumChannels: exportChannels}
	buf := &audio.IntBuffer{
		Data:           floatToPCM16(mixed),
		Format:         format,
		SourceBitDepth: exportBitDepth,
	}

	enc := wav.NewEncoder(w, g.cfg.SampleRate, exportBitDepth, exportChannels, wavFormatPCM)
	if err := enc.Write(buf); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "wav_write").
			Build()
	}
	if err := enc.Close(); err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryFileIO).
			Context("operation", "wav_close").
			Build()
	}
	return nil
}

func floatToPCM16(samples []float32) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		out[i] = int(math.Round(float64(clampSample(s)) * math.MaxInt16))
	}
	return out
}
