package mediadevices

import (
	"github.com/ringneck/libwebphone/internal/errors"
)

const componentName = "mediadevices"

var (
	ErrDeviceNotFound     = errors.NewStd("device not found")
	ErrDeviceNotConnected = errors.NewStd("device not connected")
	ErrUnsupportedClass   = errors.NewStd("unsupported device class")
	ErrCaptureFailed      = errors.NewStd("media capture failed")
	ErrSinkUnsupported    = errors.NewStd("output sink selection failed")
	ErrNotLoaded          = errors.NewStd("devices not loaded")
	ErrClosed             = errors.NewStd("media devices closed")
)

// CaptureError is the payload of the getUserMedia.error signal.
type CaptureError struct {
	Kinds []TrackKind
	Err   error
}

func (e *CaptureError) Error() string {
	return "capture " + kindList(e.Kinds) + ": " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error { return e.Err }

func kindList(kinds []TrackKind) string {
	s := ""
	for i, k := range kinds {
		if i > 0 {
			s += "+"
		}
		s += k.String()
	}
	return s
}
