package mediadevices

import (
	"slices"
)

// Constraints narrows what a capture request may return. Zero values mean "no constraint".
type Constraints struct {
	DeviceID         string  `json:"deviceId,omitempty" yaml:"deviceid,omitempty" mapstructure:"deviceid"`
	SampleRate       int     `json:"sampleRate,omitempty" yaml:"samplerate,omitempty" mapstructure:"samplerate"`
	ChannelCount     int     `json:"channelCount,omitempty" yaml:"channelcount,omitempty" mapstructure:"channelcount"`
	Width            int     `json:"width,omitempty" yaml:"width,omitempty" mapstructure:"width"`
	Height           int     `json:"height,omitempty" yaml:"height,omitempty" mapstructure:"height"`
	FrameRate        float64 `json:"frameRate,omitempty" yaml:"framerate,omitempty" mapstructure:"framerate"`
	EchoCancellation *bool   `json:"echoCancellation,omitempty" yaml:"echocancellation,omitempty" mapstructure:"echocancellation"`
	NoiseSuppression *bool   `json:"noiseSuppression,omitempty" yaml:"noisesuppression,omitempty" mapstructure:"noisesuppression"`
	AutoGainControl  *bool   `json:"autoGainControl,omitempty" yaml:"autogaincontrol,omitempty" mapstructure:"autogaincontrol"`
}

// Merge returns c with every non-zero field of over applied on top.
func (c Constraints) Merge(over Constraints) Constraints {
	if over.DeviceID != "" {
		c.DeviceID = over.DeviceID
	}
	if over.SampleRate != 0 {
		c.SampleRate = over.SampleRate
	}
	if over.ChannelCount != 0 {
		c.ChannelCount = over.ChannelCount
	}
	if over.Width != 0 {
		c.Width = over.Width
	}
	if over.Height != 0 {
		c.Height = over.Height
	}
	if over.FrameRate != 0 {
		c.FrameRate = over.FrameRate
	}
	if over.EchoCancellation != nil {
		c.EchoCancellation = over.EchoCancellation
	}
	if over.NoiseSuppression != nil {
		c.NoiseSuppression = over.NoiseSuppression
	}
	if over.AutoGainControl != nil {
		c.AutoGainControl = over.AutoGainControl
	}
	return c
}

// ConstraintSet is a capture request keyed by track kind. A kind that is
// absent is not requested.
type ConstraintSet map[TrackKind]Constraints

// Kinds returns the requested kinds, audio first.
func (s ConstraintSet) Kinds() []TrackKind {
	kinds := make([]TrackKind, 0, len(s))
	for k := range s {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Has reports whether kind is requested.
func (s ConstraintSet) Has(kind TrackKind) bool {
	_, ok := s[kind]
	return ok
}

// Clone returns an independent copy.
func (s ConstraintSet) Clone() ConstraintSet {
	out := make(ConstraintSet, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Only returns the subset of s restricted to kinds.
func (s ConstraintSet) Only(kinds ...TrackKind) ConstraintSet {
	out := make(ConstraintSet, len(kinds))
	for _, k := range kinds {
		if c, ok := s[k]; ok {
			out[k] = c
		}
	}
	return out
}

func (s ConstraintSet) String() string {
	if len(s) == 0 {
		return "none"
	}
	return kindList(s.Kinds())
}
