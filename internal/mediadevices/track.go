package mediadevices

// ReadyState is the lifecycle state of a track.
type ReadyState uint8

const (
	TrackLive ReadyState = iota
	TrackEnded
)

func (s ReadyState) String() string {
	if s == TrackLive {
		return "live"
	}
	return "ended"
}

// TrackSettings is what a track is actually delivering.
type TrackSettings struct {
	DeviceID     string  `json:"deviceId"`
	SampleRate   int     `json:"sampleRate,omitempty"`
	ChannelCount int     `json:"channelCount,omitempty"`
	Width        int     `json:"width,omitempty"`
	Height       int     `json:"height,omitempty"`
	FrameRate    float64 `json:"frameRate,omitempty"`
}

// Track is one live capture handed back by a Capturer.
// Enabled only gates whether samples flow; Stop releases the hardware.
type Track interface {
	ID() string
	Kind() TrackKind
	Label() string
	Enabled() bool
	SetEnabled(enabled bool)
	ReadyState() ReadyState
	Settings() TrackSettings
	Constraints() Constraints
	Stop()
}

// CapabilityReporter is implemented by tracks that can describe the ranges they support.
type CapabilityReporter interface {
	Capabilities() map[string]any
}

// TrackParameters is a snapshot of a track within the shared stream.
// It is rebuilt on every query and never stored.
type TrackParameters struct {
	TrackID      string         `json:"trackId"`
	TrackKind    TrackKind      `json:"trackKind"`
	Active       bool           `json:"active"`
	Enabled      bool           `json:"enabled"`
	DeviceClass  DeviceClass    `json:"deviceClass"`
	Label        string         `json:"label"`
	Settings     TrackSettings  `json:"settings"`
	Constraints  Constraints    `json:"constraints"`
	Capabilities map[string]any `json:"capabilities,omitempty"`
	StreamID     string         `json:"streamId"`

	Track  Track   `json:"-"`
	Stream *Stream `json:"-"`
}

// NewTrackParameters snapshots t as a member of s. It returns nil when either is nil.
func NewTrackParameters(s *Stream, t Track) *TrackParameters {
	if s == nil || t == nil {
		return nil
	}
	p := &TrackParameters{
		TrackID:     t.ID(),
		TrackKind:   t.Kind(),
		Active:      t.ReadyState() == TrackLive,
		Enabled:     t.Enabled(),
		DeviceClass: t.Kind().InputClass(),
		Label:       t.Label(),
		Settings:    t.Settings(),
		Constraints: t.Constraints(),
		StreamID:    s.ID(),
		Track:       t,
		Stream:      s,
	}
	if cr, ok := t.(CapabilityReporter); ok {
		p.Capabilities = cr.Capabilities()
	}
	return p
}
