package mediadevices

import (
	"github.com/ringneck/libwebphone/internal/audiograph"
)

// Signal names published by the engine.
const (
	SignalCreated                = "created"
	SignalLoaded                 = "devices.loaded"
	SignalDevicesRefreshed       = "devices.refreshed"
	SignalAudioContextStarted    = "audio.context.started"
	SignalPreviewStarted         = "preview.started"
	SignalPreviewStop            = "preview.stop"
	SignalPreviewToneStarted     = "preview.tone.started"
	SignalPreviewToneStop        = "preview.tone.stop"
	SignalPreviewLoopbackStarted = "preview.loopback.started"
	SignalPreviewLoopbackStop    = "preview.loopback.stop"
	SignalStreamsStarted         = "streams.started"
	SignalStreamsStop            = "streams.stop"
	SignalOutputChanged          = "audio.output.changed"
	SignalOutputMuted            = "audio.output.muted"
	SignalOutputUnmuted          = "audio.output.unmuted"
	SignalGetUserMediaError      = "getUserMedia.error"
	SignalRemoteAudioAdded       = "remote.audio.added"
	SignalRemoteAudioRemoved     = "remote.audio.removed"
	SignalRingingStarted         = "ringing.started"
	SignalRingingStop            = "ringing.stop"
)

// Input track events, combined with a kind by InputSignal.
const (
	InputStarted = "started"
	InputStopped = "stopped"
	InputMuted   = "muted"
	InputUnmuted = "unmuted"
	InputChanged = "changed"
)

// InputSignal names a track event, e.g. "video.input.muted".
func InputSignal(kind TrackKind, event string) string {
	return kind.String() + ".input." + event
}

// VolumeSignal names a volume change, e.g. "volume.ringer.change".
func VolumeSignal(ch audiograph.Channel) string {
	return "volume." + string(ch) + ".change"
}

// TrackChange is the payload of "<kind>.input.changed". Either side may be nil.
type TrackChange struct {
	Current  *TrackParameters
	Previous *TrackParameters
}

// OutputChange is the payload of "audio.output.changed".
type OutputChange struct {
	Current  Device
	Previous *Device
}

// StreamsStarted is the payload of "streams.started".
type StreamsStarted struct {
	Stream  *Stream
	Monitor *audiograph.Destination
}

// VolumeChange is the payload of "volume.<channel>.change".
type VolumeChange struct {
	Channel audiograph.Channel
	Volume  float64
}
