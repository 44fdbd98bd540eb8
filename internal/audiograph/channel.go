package audiograph

import (
	"math"
	"sync/atomic"

	"github.com/ringneck/libwebphone/internal/errors"
)

// Channel names one independently gained path through the graph.
type Channel string

const (
	ChannelMaster     Channel = "master"
	ChannelRinger     Channel = "ringer"
	ChannelDTMF       Channel = "dtmf"
	ChannelRemote     Channel = "remote"
	ChannelTalkback   Channel = "talkback"
	ChannelMicrophone Channel = "microphone"
	ChannelTone       Channel = "tone"
	ChannelLoopback   Channel = "loopback"
)

// Channels lists every channel in control-surface order.
var Channels = []Channel{
	ChannelMaster,
	ChannelRinger,
	ChannelDTMF,
	ChannelRemote,
	ChannelTalkback,
	ChannelMicrophone,
	ChannelTone,
	ChannelLoopback,
}

// ParseChannel validates a channel name.
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", errors.Newf("unknown volume channel %q", name).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("channel", name).
		Build()
}

// Control surfaces see volumes as integers in [ControlMin, ControlMax].
const (
	ControlMin   = 0
	ControlMax   = 1000
	controlScale = 1000.0
)

// ToControl converts a normalized volume to its control-surface integer.
func ToControl(v float64) int {
	return int(math.Round(clampUnit(v) * controlScale))
}

// FromControl converts a control-surface integer to a normalized volume.
// Out-of-range values are clamped.
func FromControl(c int) float64 {
	return clampUnit(float64(c) / controlScale)
}

// RoundVolume keeps two decimals, which is the precision volumes are stored at.
func RoundVolume(v float64) float64 {
	return math.Round(v*100) / 100
}

func clampUnit(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// gainStage holds a gain as float64 bits so the render loop reads it without locking.
type gainStage struct {
	bits atomic.Uint64
}

func newGainStage(v float64) *gainStage {
	g := &gainStage{}
	g.set(v)
	return g
}

func (g *gainStage) set(v float64) {
	g.bits.Store(math.Float64bits(v))
}

func (g *gainStage) get() float64 {
	return math.Float64frombits(g.bits.Load())
}
