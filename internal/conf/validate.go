// validate.go contains the settings validation logic
package conf

import (
	"fmt"
	"net"
	"strings"

	"golang.org/x/text/language"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/logger"
)

// ValidationError collects every problem found in one pass.
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %v", ve.Errors)
}

// ValidateSettings checks the whole settings tree.
func ValidateSettings(s *Settings) error {
	ve := ValidationError{}

	ve.Errors = append(ve.Errors, validateMediaDevices(&s.MediaDevices)...)

	if s.API.Enabled {
		if _, _, err := net.SplitHostPort(s.API.Listen); err != nil {
			ve.Errors = append(ve.Errors, fmt.Sprintf("api.listen %q: %v", s.API.Listen, err))
		}
	}
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		ve.Errors = append(ve.Errors, "sentry.dsn is required when sentry is enabled")
	}
	if s.MQTT.Enabled {
		if s.MQTT.Broker == "" {
			ve.Errors = append(ve.Errors, "mqtt.broker is required when mqtt is enabled")
		}
		if strings.TrimSpace(s.MQTT.Topic) == "" {
			ve.Errors = append(ve.Errors, "mqtt.topic must not be empty")
		}
	}

	if len(ve.Errors) > 0 {
		GetLogger().Warn("configuration rejected", logger.Int("problems", len(ve.Errors)))
		return ve
	}
	return nil
}

func validateMediaDevices(md *MediaDevicesSettings) []string {
	var errs []string

	for name, v := range map[string]float64{
		"master":     md.Volume.Master,
		"ringer":     md.Volume.Ringer,
		"dtmf":       md.Volume.DTMF,
		"remote":     md.Volume.Remote,
		"talkback":   md.Volume.Talkback,
		"microphone": md.Volume.Microphone,
		"tone":       md.Volume.Tone,
		"loopback":   md.Volume.Loopback,
	} {
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Sprintf("mediadevices.volume.%s must be between 0 and 1, got %g", name, v))
		}
	}

	if md.Audio.SampleRate < 8000 || md.Audio.SampleRate > 192000 {
		errs = append(errs, fmt.Sprintf("mediadevices.audio.samplerate must be between 8000 and 192000, got %d", md.Audio.SampleRate))
	}
	if md.Audio.Channels != 1 && md.Audio.Channels != 2 {
		errs = append(errs, fmt.Sprintf("mediadevices.audio.channels must be 1 or 2, got %d", md.Audio.Channels))
	}

	if md.DetectDeviceChanges && md.HotPlug.RateLimit <= 0 {
		errs = append(errs, "mediadevices.hotplug.ratelimit must be positive")
	}
	if md.HotPlug.Debounce < 0 {
		errs = append(errs, "mediadevices.hotplug.debounce must not be negative")
	}

	if _, err := audiograph.ParseWaveform(md.Preview.Tone.Type); err != nil {
		errs = append(errs, fmt.Sprintf("mediadevices.preview.tone.type: %v", err))
	}
	nyquist := float64(md.Audio.SampleRate) / 2
	if md.Preview.Tone.Frequency <= 0 || (nyquist > 0 && md.Preview.Tone.Frequency >= nyquist) {
		errs = append(errs, fmt.Sprintf("mediadevices.preview.tone.frequency %g is out of range", md.Preview.Tone.Frequency))
	}
	if md.Preview.Loopback.Delay < 0 {
		errs = append(errs, "mediadevices.preview.loopback.delay must not be negative")
	}

	if md.Locale != "" {
		if _, err := language.Parse(md.Locale); err != nil {
			errs = append(errs, fmt.Sprintf("mediadevices.locale %q: %v", md.Locale, err))
		}
	}
	return errs
}
