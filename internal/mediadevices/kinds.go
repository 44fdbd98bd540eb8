package mediadevices

import (
	"github.com/ringneck/libwebphone/internal/errors"
)

// DeviceClass is the category a device is exposed as.
type DeviceClass uint8

const (
	AudioOutput DeviceClass = iota
	AudioInput
	VideoInput
)

// DeviceClasses lists every class in render order.
var DeviceClasses = []DeviceClass{AudioOutput, AudioInput, VideoInput}

func (c DeviceClass) String() string {
	switch c {
	case AudioOutput:
		return "audiooutput"
	case AudioInput:
		return "audioinput"
	case VideoInput:
		return "videoinput"
	default:
		return "unknown"
	}
}

// ParseDeviceClass accepts the wire names "audiooutput", "audioinput" and "videoinput".
func ParseDeviceClass(s string) (DeviceClass, error) {
	for _, c := range DeviceClasses {
		if c.String() == s {
			return c, nil
		}
	}
	return 0, errors.New(ErrUnsupportedClass).
		Component(componentName).
		Category(errors.CategoryValidation).
		Context("class", s).
		Build()
}

func (c DeviceClass) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *DeviceClass) UnmarshalText(b []byte) error {
	parsed, err := ParseDeviceClass(string(b))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TrackKind maps a class to the kind of live track it backs.
// Both audio classes map to audio.
func (c DeviceClass) TrackKind() TrackKind {
	switch c {
	case AudioOutput, AudioInput:
		return KindAudio
	case VideoInput:
		return KindVideo
	}
	panic("mediadevices: unhandled device class " + c.String())
}

// IsInput reports whether devices of this class are captured from.
func (c DeviceClass) IsInput() bool {
	return c == AudioInput || c == VideoInput
}

// TrackKind is the type of a live media track.
type TrackKind uint8

const (
	KindAudio TrackKind = iota
	KindVideo
)

// TrackKinds lists both kinds.
var TrackKinds = []TrackKind{KindAudio, KindVideo}

func (k TrackKind) String() string {
	switch k {
	case KindAudio:
		return "audio"
	case KindVideo:
		return "video"
	default:
		return "unknown"
	}
}

// ParseTrackKind accepts "audio" and "video".
func ParseTrackKind(s string) (TrackKind, error) {
	for _, k := range TrackKinds {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, errors.Newf("unknown track kind %q", s).
		Component(componentName).
		Category(errors.CategoryValidation).
		Build()
}

func (k TrackKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *TrackKind) UnmarshalText(b []byte) error {
	parsed, err := ParseTrackKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// InputClass is the capture class that produces tracks of this kind.
func (k TrackKind) InputClass() DeviceClass {
	switch k {
	case KindAudio:
		return AudioInput
	case KindVideo:
		return VideoInput
	}
	panic("mediadevices: unhandled track kind " + k.String())
}
