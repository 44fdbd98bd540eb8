package audiograph

import (
	"math"
	"strings"
	"time"

	"github.com/ringneck/libwebphone/internal/errors"
)

// Waveform selects the preview oscillator shape.
type Waveform string

const (
	WaveSine     Waveform = "sine"
	WaveSquare   Waveform = "square"
	WaveSawtooth Waveform = "sawtooth"
	WaveTriangle Waveform = "triangle"
)

// ParseWaveform validates a waveform name; empty selects sine.
func ParseWaveform(s string) (Waveform, error) {
	switch w := Waveform(strings.ToLower(s)); w {
	case "":
		return WaveSine, nil
	case WaveSine, WaveSquare, WaveSawtooth, WaveTriangle:
		return w, nil
	default:
		return "", errors.Newf("unknown waveform %q", s).
			Component(componentName).
			Category(errors.CategoryValidation).
			Build()
	}
}

// oscillator is a phase accumulator producing one waveform at one frequency.
type oscillator struct {
	wave      Waveform
	frequency float64
	phase     float64 // [0,1)
	step      float64
}

func newOscillator(wave Waveform, frequency float64, sampleRate int) *oscillator {
	return &oscillator{
		wave:      wave,
		frequency: frequency,
		step:      frequency / float64(sampleRate),
	}
}

func (o *oscillator) next() float32 {
	p := o.phase
	o.phase += o.step
	if o.phase >= 1 {
		o.phase -= math.Floor(o.phase)
	}

	switch o.wave {
	case WaveSquare:
		if p < 0.5 {
			return 1
		}
		return -1
	case WaveSawtooth:
		return float32(2*p - 1)
	case WaveTriangle:
		return float32(1 - 4*math.Abs(p-0.5))
	default:
		return float32(math.Sin(2 * math.Pi * p))
	}
}

// DTMFToneDuration is how long each dialed tone plays.
const DTMFToneDuration = 150 * time.Millisecond

// dtmfGap separates consecutive digits of one PlayDTMF call.
const dtmfGap = 50 * time.Millisecond

var dtmfFrequencies = map[rune][2]float64{
	'1': {697, 1209}, '2': {697, 1336}, '3': {697, 1477}, 'A': {697, 1633},
	'4': {770, 1209}, '5': {770, 1336}, '6': {770, 1477}, 'B': {770, 1633},
	'7': {852, 1209}, '8': {852, 1336}, '9': {852, 1477}, 'C': {852, 1633},
	'*': {941, 1209}, '0': {941, 1336}, '#': {941, 1477}, 'D': {941, 1633},
}

// DTMFFrequencies returns the row and column frequency of a keypad digit.
func DTMFFrequencies(digit rune) ([2]float64, bool) {
	f, ok := dtmfFrequencies[toUpperRune(digit)]
	return f, ok
}

func toUpperRune(r rune) rune {
	if r >= 'a' && r <= 'd' {
		return r - 'a' + 'A'
	}
	return r
}

// toneSegment is a finite run of summed sine tones, or silence when no frequencies are set.
type toneSegment struct {
	oscs      []*oscillator
	remaining int
}

func newToneSegment(frequencies []float64, samples, sampleRate int) *toneSegment {
	seg := &toneSegment{remaining: samples}
	for _, f := range frequencies {
		seg.oscs = append(seg.oscs, newOscillator(WaveSine, f, sampleRate))
	}
	return seg
}

func (s *toneSegment) next() float32 {
	s.remaining--
	if len(s.oscs) == 0 {
		return 0
	}
	var sum float32
	for _, o := range s.oscs {
		sum += o.next()
	}
	return sum / float32(len(s.oscs))
}

// ringCadence loops a dual tone with an on/off pattern until stopped.
type ringCadence struct {
	oscs   [2]*oscillator
	on     int
	period int
	pos    int
}

// North American ring: 440+480 Hz, 2 s on, 4 s off.
const (
	ringOn  = 2 * time.Second
	ringOff = 4 * time.Second
)

func newRingCadence(sampleRate int) *ringCadence {
	on := samplesFor(ringOn, sampleRate)
	return &ringCadence{
		oscs: [2]*oscillator{
			newOscillator(WaveSine, 440, sampleRate),
			newOscillator(WaveSine, 480, sampleRate),
		},
		on:     on,
		period: on + samplesFor(ringOff, sampleRate),
	}
}

func (r *ringCadence) next() float32 {
	pos := r.pos
	r.pos = (r.pos + 1) % r.period
	if pos >= r.on {
		return 0
	}
	return (r.oscs[0].next() + r.oscs[1].next()) / 2
}

func samplesFor(d time.Duration, sampleRate int) int {
	return int(d.Seconds() * float64(sampleRate))
}
