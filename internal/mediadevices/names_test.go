package mediadevices

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNamerLocales(t *testing.T) {
	tests := []struct {
		locale string
		want   string
		none   string
	}{
		{"en", "Microphone 2", "None"},
		{"de-AT", "Mikrofon 2", "Keine"},
		{"es", "Micrófono 2", "Ninguno"},
		{"fr-CA", "Microphone 2", "Aucun"},
		{"xx-invalid-tag!", "Microphone 2", "None"},
		{"", "Microphone 2", "None"},
	}
	for _, tt := range tests {
		t.Run(tt.locale, func(t *testing.T) {
			n := NewNamer(tt.locale, nil)
			assert.Equal(t, tt.want, n.Placeholder(AudioInput, 2))
			assert.Equal(t, tt.none, n.None())
		})
	}
}

func TestNamerOverride(t *testing.T) {
	n := NewNamer("en", map[DeviceClass]string{VideoInput: "Webcam"})
	assert.Equal(t, "Webcam 3", n.Placeholder(VideoInput, 3))
	assert.Equal(t, "Speaker 1", n.Placeholder(AudioOutput, 1))
}

func TestDeviceCountPlural(t *testing.T) {
	n := NewNamer("en", nil)
	assert.Equal(t, "no devices", n.DeviceCount(0))
	assert.Equal(t, "1 device", n.DeviceCount(1))
	assert.Equal(t, "3 devices", n.DeviceCount(3))
}
