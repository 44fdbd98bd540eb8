// Package audiograph implements the softphone's fixed mixing topology in software.
//
// Preview tone, delayed preview loopback, remote call audio, ringer, DTMF and
// talkback each pass through their own gain stage, are summed, and leave
// through a single master gain as one stereo output. The microphone passes
// through the microphone gain before feeding the loopback, the talkback path
// and the outgoing monitor destination.
//
// Gains are stored normalized in [0,1]; control surfaces use ToControl and
// FromControl to work with integers in [0,1000].
package audiograph

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

const componentName = "audiograph"

// Source produces mono float32 samples at the graph sample rate.
// ReadSamples fills dst and returns how many samples were valid; the rest is treated as silence.
type Source interface {
	ReadSamples(dst []float32) int
}

// Config describes the graph. Zero values are replaced by DefaultConfig
// values, except LoopbackDelay where zero means no delay.
type Config struct {
	SampleRate    int
	ToneFrequency float64
	ToneWaveform  Waveform
	LoopbackDelay time.Duration
	Volumes       map[Channel]float64
}

// DefaultConfig returns the stock graph settings.
func DefaultConfig() Config {
	return Config{
		SampleRate:    48000,
		ToneFrequency: 440,
		ToneWaveform:  WaveSine,
		LoopbackDelay: 500 * time.Millisecond,
		Volumes: map[Channel]float64{
			ChannelMaster:     1,
			ChannelRinger:     1,
			ChannelDTMF:       1,
			ChannelRemote:     1,
			ChannelTalkback:   0,
			ChannelMicrophone: 1,
			ChannelTone:       0.25,
			ChannelLoopback:   1,
		},
	}
}

// Graph is the software mixer. Control methods are safe for concurrent use
// with Render, which is normally driven by the output device callback.
type Graph struct {
	cfg   Config
	gains map[Channel]*gainStage
	block int

	running        atomic.Bool
	outputMuted    atomic.Bool
	toneActive     atomic.Bool
	loopbackActive atomic.Bool

	mu         sync.Mutex // guards everything below and serializes Render
	tone       *oscillator
	dtmf       []*toneSegment
	ring       *ringCadence
	microphone Source
	remote     Source
	loopback   *delayLine
	monitor    *sampleFIFO

	micBuf, loopBuf, remoteBuf []float32

	log logger.Logger
}

// New builds a graph. It renders silence until EnsureRunning is called.
func New(cfg Config, log logger.Logger) (*Graph, error) {
	def := DefaultConfig()
	if cfg.SampleRate == 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.ToneFrequency == 0 {
		cfg.ToneFrequency = def.ToneFrequency
	}
	if cfg.ToneWaveform == "" {
		cfg.ToneWaveform = def.ToneWaveform
	}
	if cfg.SampleRate < 8000 || cfg.SampleRate > 192000 {
		return nil, errors.Newf("sample rate %d out of range", cfg.SampleRate).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}
	if cfg.LoopbackDelay < 0 {
		return nil, errors.Newf("negative loopback delay %s", cfg.LoopbackDelay).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}
	if _, err := ParseWaveform(string(cfg.ToneWaveform)); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.Global().Module(componentName)
	}

	g := &Graph{
		cfg:   cfg,
		gains: make(map[Channel]*gainStage, len(Channels)),
		block: cfg.SampleRate / 50,
		log:   log,
	}
	for _, ch := range Channels {
		v, ok := cfg.Volumes[ch]
		if !ok {
			v = def.Volumes[ch]
		}
		g.gains[ch] = newGainStage(clampUnit(v))
	}

	g.tone = newOscillator(cfg.ToneWaveform, cfg.ToneFrequency, cfg.SampleRate)
	g.loopback = newDelayLine(samplesFor(cfg.LoopbackDelay, cfg.SampleRate), g.block)
	g.monitor = newSampleFIFO(cfg.SampleRate)
	g.micBuf = make([]float32, g.block)
	g.loopBuf = make([]float32, g.block)
	g.remoteBuf = make([]float32, g.block)

	return g, nil
}

// SampleRate returns the graph sample rate.
func (g *Graph) SampleRate() int {
	return g.cfg.SampleRate
}

// EnsureRunning starts the graph. It is idempotent and reports whether this call started it.
func (g *Graph) EnsureRunning() bool {
	if g.running.Swap(true) {
		return false
	}
	g.log.Debug("audio graph running", logger.Int("sample_rate", g.cfg.SampleRate))
	return true
}

// Stop makes Render produce silence until EnsureRunning is called again.
func (g *Graph) Stop() {
	g.running.Store(false)
}

// Running reports whether EnsureRunning has been called.
func (g *Graph) Running() bool {
	return g.running.Load()
}

// SetVolume sets a channel gain. Values outside [0,1] are rejected.
func (g *Graph) SetVolume(ch Channel, v float64) error {
	stage, ok := g.gains[ch]
	if !ok {
		_, err := ParseChannel(string(ch))
		return err
	}
	if v < 0 || v > 1 {
		return errors.Newf("volume %.2f out of range [0,1]", v).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("channel", string(ch)).
			Build()
	}
	stage.set(v)
	return nil
}

// Volume returns a channel gain.
func (g *Graph) Volume(ch Channel) float64 {
	if stage, ok := g.gains[ch]; ok {
		return stage.get()
	}
	return 0
}

// SetOutputMuted silences the master stage without changing the master volume.
func (g *Graph) SetOutputMuted(muted bool) {
	g.outputMuted.Store(muted)
}

// OutputMuted reports whether the output is muted.
func (g *Graph) OutputMuted() bool {
	return g.outputMuted.Load()
}

// SetToneActive toggles the preview tone.
func (g *Graph) SetToneActive(active bool) {
	g.toneActive.Store(active)
}

// ToneActive reports whether the preview tone is audible.
func (g *Graph) ToneActive() bool {
	return g.toneActive.Load()
}

// SetLoopbackActive toggles the delayed microphone loopback preview.
// Turning it on starts from a fresh delay line so stale audio is not replayed.
func (g *Graph) SetLoopbackActive(active bool) {
	if active && !g.loopbackActive.Load() {
		g.mu.Lock()
		g.loopback.reset()
		g.mu.Unlock()
	}
	g.loopbackActive.Store(active)
}

// LoopbackActive reports whether the loopback preview is audible.
func (g *Graph) LoopbackActive() bool {
	return g.loopbackActive.Load()
}

// PlayTone queues one DTMF-length segment of the summed frequencies on the DTMF channel.
func (g *Graph) PlayTone(frequencies ...float64) {
	n := samplesFor(DTMFToneDuration, g.cfg.SampleRate)
	g.mu.Lock()
	g.dtmf = append(g.dtmf, newToneSegment(frequencies, n, g.cfg.SampleRate))
	g.mu.Unlock()
}

// PlayDTMF queues the tones for each digit, separated by short gaps.
func (g *Graph) PlayDTMF(digits string) error {
	segments := make([]*toneSegment, 0, 2*len(digits))
	toneLen := samplesFor(DTMFToneDuration, g.cfg.SampleRate)
	gapLen := samplesFor(dtmfGap, g.cfg.SampleRate)

	for i, d := range digits {
		freqs, ok := DTMFFrequencies(d)
		if !ok {
			return errors.Newf("invalid DTMF digit %q", d).
				Component(componentName).
				Category(errors.CategoryValidation).
				Context("digits", digits).
				Build()
		}
		if i > 0 {
			segments = append(segments, newToneSegment(nil, gapLen, g.cfg.SampleRate))
		}
		segments = append(segments, newToneSegment(freqs[:], toneLen, g.cfg.SampleRate))
	}

	g.mu.Lock()
	g.dtmf = append(g.dtmf, segments...)
	g.mu.Unlock()
	return nil
}

// StopTones drops any queued DTMF audio.
func (g *Graph) StopTones() {
	g.mu.Lock()
	g.dtmf = nil
	g.mu.Unlock()
}

// StartRinging starts the ring cadence on the ringer channel. It returns false if already ringing.
func (g *Graph) StartRinging() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ring != nil {
		return false
	}
	g.ring = newRingCadence(g.cfg.SampleRate)
	return true
}

// StopRinging stops the ring cadence. It returns false if it was not ringing.
func (g *Graph) StopRinging() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ring == nil {
		return false
	}
	g.ring = nil
	return true
}

// Ringing reports whether the ring cadence is playing.
func (g *Graph) Ringing() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ring != nil
}

// SetMicrophone connects the captured microphone, or disconnects it when src is nil.
func (g *Graph) SetMicrophone(src Source) {
	g.mu.Lock()
	g.microphone = src
	g.mu.Unlock()
}

// SetRemote connects remote call audio, or disconnects it when src is nil.
// It returns the previously attached source.
func (g *Graph) SetRemote(src Source) Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	prev := g.remote
	g.remote = src
	return prev
}

// Remote returns the attached remote source, if any.
func (g *Graph) Remote() Source {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.remote
}

// Monitor returns the outgoing destination carrying the gained microphone.
func (g *Graph) Monitor() *Destination {
	return &Destination{graph: g}
}

// Render mixes len(out)/2 stereo frames into out (interleaved L,R).
// A graph that is not running renders silence.
func (g *Graph) Render(out []float32) {
	frames := len(out) / 2
	if !g.running.Load() {
		clear(out)
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	for done := 0; done < frames; {
		n := min(g.block, frames-done)
		g.renderBlock(out[2*done:2*(done+n)], n)
		done += n
	}
}

func (g *Graph) renderBlock(out []float32, n int) {
	mic := g.micBuf[:n]
	if g.microphone != nil {
		got := g.microphone.ReadSamples(mic)
		clear(mic[got:])
	} else {
		clear(mic)
	}
	micGain := float32(g.gains[ChannelMicrophone].get())
	for i := range mic {
		mic[i] *= micGain
	}
	g.monitor.write(mic)

	loop := g.loopBuf[:n]
	g.loopback.process(mic, loop)

	remote := g.remoteBuf[:n]
	if g.remote != nil {
		got := g.remote.ReadSamples(remote)
		clear(remote[got:])
	} else {
		clear(remote)
	}

	var (
		toneGain     float32
		loopbackGain float32
		remoteGain   = float32(g.gains[ChannelRemote].get())
		ringerGain   = float32(g.gains[ChannelRinger].get())
		dtmfGain     = float32(g.gains[ChannelDTMF].get())
		talkbackGain = float32(g.gains[ChannelTalkback].get())
		master       = float32(g.gains[ChannelMaster].get())
	)
	if g.toneActive.Load() {
		toneGain = float32(g.gains[ChannelTone].get())
	}
	if g.loopbackActive.Load() {
		loopbackGain = float32(g.gains[ChannelLoopback].get())
	}
	if g.outputMuted.Load() {
		master = 0
	}

	for i := range n {
		tone := g.tone.next()
		var ring, dtmf float32
		if g.ring != nil {
			ring = g.ring.next()
		}
		dtmf = g.nextDTMF()

		s := tone*toneGain +
			loop[i]*loopbackGain +
			remote[i]*remoteGain +
			ring*ringerGain +
			dtmf*dtmfGain +
			mic[i]*talkbackGain
		s = clampSample(s * master)

		out[2*i] = s
		out[2*i+1] = s
	}
}

func (g *Graph) nextDTMF() float32 {
	for len(g.dtmf) > 0 && g.dtmf[0].remaining <= 0 {
		g.dtmf = g.dtmf[1:]
	}
	if len(g.dtmf) == 0 {
		return 0
	}
	return g.dtmf[0].next()
}

func clampSample(s float32) float32 {
	if s > 1 {
		return 1
	}
	if s < -1 {
		return -1
	}
	return s
}

// Destination is the outgoing microphone feed handed to the call layer.
type Destination struct {
	graph *Graph
}

// ReadSamples drains gained microphone samples captured by Render.
func (d *Destination) ReadSamples(dst []float32) int {
	d.graph.mu.Lock()
	defer d.graph.mu.Unlock()
	return d.graph.monitor.read(dst)
}

// Buffered returns how many samples are waiting.
func (d *Destination) Buffered() int {
	d.graph.mu.Lock()
	defer d.graph.mu.Unlock()
	return d.graph.monitor.length()
}
