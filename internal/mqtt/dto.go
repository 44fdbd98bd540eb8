package mqtt

import (
	"time"

	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// SignalDTO is the JSON document published for every bridged signal.
// Field names are part of the topic contract consumed by automations.
type SignalDTO struct {
	Signal string    `json:"signal"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// TrackDTO describes one input track.
type TrackDTO struct {
	Kind     string `json:"kind"`
	DeviceID string `json:"deviceId"`
	Label    string `json:"label,omitempty"`
	Enabled  bool   `json:"enabled"`
	Active   bool   `json:"active"`
}

// DeviceDTO describes one device.
type DeviceDTO struct {
	ID    string `json:"id"`
	Class string `json:"class"`
	Name  string `json:"name"`
}

// ChangeDTO carries the current and previous value of a change signal.
type ChangeDTO[T any] struct {
	Current  *T `json:"current,omitempty"`
	Previous *T `json:"previous,omitempty"`
}

// VolumeDTO reports a channel volume on the 0-1000 control scale.
type VolumeDTO struct {
	Channel string `json:"channel"`
	Volume  int    `json:"volume"`
}

// CaptureErrorDTO reports a failed capture.
type CaptureErrorDTO struct {
	Kinds []string `json:"kinds"`
	Error string   `json:"error"`
}

// NewSignalDTO converts a signal into its published form. Payloads that carry
// live handles (streams, graph nodes) are reduced to plain data or dropped.
func NewSignalDTO(name string, payload any, at time.Time) SignalDTO {
	return SignalDTO{Signal: name, Time: at.UTC(), Data: convertPayload(payload)}
}

func convertPayload(payload any) any {
	switch p := payload.(type) {
	case nil:
		return nil
	case *mediadevices.TrackParameters:
		return trackDTO(p)
	case mediadevices.TrackChange:
		return ChangeDTO[TrackDTO]{Current: trackDTO(p.Current), Previous: trackDTO(p.Previous)}
	case mediadevices.OutputChange:
		return ChangeDTO[DeviceDTO]{Current: deviceDTO(&p.Current), Previous: deviceDTO(p.Previous)}
	case mediadevices.Device:
		return deviceDTO(&p)
	case mediadevices.VolumeChange:
		return VolumeDTO{Channel: string(p.Channel), Volume: controlVolume(p.Volume)}
	case *mediadevices.CaptureError:
		kinds := make([]string, 0, len(p.Kinds))
		for _, k := range p.Kinds {
			kinds = append(kinds, k.String())
		}
		return CaptureErrorDTO{Kinds: kinds, Error: p.Err.Error()}
	case mediadevices.StreamsStarted:
		if p.Stream == nil {
			return nil
		}
		return map[string]string{"streamId": p.Stream.ID()}
	case error:
		return map[string]string{"error": p.Error()}
	case string, bool, int, float64:
		return p
	default:
		return nil
	}
}

func trackDTO(p *mediadevices.TrackParameters) *TrackDTO {
	if p == nil {
		return nil
	}
	return &TrackDTO{
		Kind:     p.TrackKind.String(),
		DeviceID: p.Settings.DeviceID,
		Label:    p.Label,
		Enabled:  p.Enabled,
		Active:   p.Active,
	}
}

func deviceDTO(d *mediadevices.Device) *DeviceDTO {
	if d == nil {
		return nil
	}
	return &DeviceDTO{ID: d.ID, Class: d.Class.String(), Name: d.Name}
}
