package mediadevices

import (
	"context"
	"time"
)

// Enumerator lists the devices currently present.
type Enumerator interface {
	EnumerateDevices(ctx context.Context) ([]EnumeratedDevice, error)
}

// Capturer opens capture for every kind in the set and returns one track per kind.
// It fails as a whole on permission or hardware errors.
type Capturer interface {
	Capture(ctx context.Context, constraints ConstraintSet) ([]Track, error)
}

// SinkSelector redirects audio output to a device.
type SinkSelector interface {
	SetSink(ctx context.Context, deviceID string) error
}

// Publisher receives engine signals. Publish must not block.
type Publisher interface {
	Publish(name string, payload any) bool
}

// Metrics records engine activity.
type Metrics interface {
	RecordCaptureRequest(kinds, result string)
	RecordDeviceSwitch(class, reason string)
	SetDeviceCounts(class string, connected, active int)
	ObserveGuardWait(wait time.Duration)
}

// PreferenceStore persists explicit device selections as ids per class, highest preference first.
type PreferenceStore interface {
	Load() (map[DeviceClass][]string, error)
	Save(order map[DeviceClass][]string) error
}

type nopPublisher struct{}

func (nopPublisher) Publish(string, any) bool { return true }

type nopMetrics struct{}

func (nopMetrics) RecordCaptureRequest(string, string) {}
func (nopMetrics) RecordDeviceSwitch(string, string)   {}
func (nopMetrics) SetDeviceCounts(string, int, int)    {}
func (nopMetrics) ObserveGuardWait(time.Duration)      {}
