package conf

import (
	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/hotplug"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// EngineConfig converts the settings into the device engine's config.
func (s *MediaDevicesSettings) EngineConfig() mediadevices.Config {
	audioIn := s.AudioInput.classConfig()
	if audioIn.Constraints.ChannelCount == 0 {
		audioIn.Constraints.ChannelCount = s.Audio.Channels
	}
	if audioIn.Constraints.SampleRate == 0 {
		audioIn.Constraints.SampleRate = s.Audio.SampleRate
	}
	return mediadevices.Config{
		Classes: map[mediadevices.DeviceClass]mediadevices.ClassConfig{
			mediadevices.AudioOutput: s.AudioOutput.classConfig(),
			mediadevices.AudioInput:  audioIn,
			mediadevices.VideoInput:  s.VideoInput.classConfig(),
		},
		Locale:            s.Locale,
		StartPreview:      s.StartPreview,
		StartStreams:      s.StartStreams,
		ToneOnPreview:     s.Preview.Tone.StartOnPreview,
		LoopbackOnPreview: s.Preview.Loopback.StartOnPreview,
	}
}

func (c ClassSettings) classConfig() mediadevices.ClassConfig {
	return mediadevices.ClassConfig{
		Enabled:            c.Enabled,
		StartMuted:         c.StartMuted,
		PreferredDeviceIDs: append([]string(nil), c.PreferredDeviceIDs...),
		Constraints:        c.Constraints,
		Placeholder:        c.Placeholder,
	}
}

// GraphConfig converts the settings into the mixer config. The waveform must
// already be validated.
func (s *MediaDevicesSettings) GraphConfig() audiograph.Config {
	wave, err := audiograph.ParseWaveform(s.Preview.Tone.Type)
	if err != nil {
		wave = audiograph.WaveSine
	}
	return audiograph.Config{
		SampleRate:    s.Audio.SampleRate,
		ToneFrequency: s.Preview.Tone.Frequency,
		ToneWaveform:  wave,
		LoopbackDelay: s.Preview.Loopback.Delay,
		Volumes:       s.Volume.channels(),
	}
}

func (v VolumeSettings) channels() map[audiograph.Channel]float64 {
	return map[audiograph.Channel]float64{
		audiograph.ChannelMaster:     v.Master,
		audiograph.ChannelRinger:     v.Ringer,
		audiograph.ChannelDTMF:       v.DTMF,
		audiograph.ChannelRemote:     v.Remote,
		audiograph.ChannelTalkback:   v.Talkback,
		audiograph.ChannelMicrophone: v.Microphone,
		audiograph.ChannelTone:       v.Tone,
		audiograph.ChannelLoopback:   v.Loopback,
	}
}

// HotPlugConfig converts the watcher settings.
func (s *MediaDevicesSettings) HotPlugConfig() hotplug.Config {
	return hotplug.Config{
		Paths:         append([]string(nil), s.HotPlug.Paths...),
		Debounce:      s.HotPlug.Debounce,
		RatePerSecond: s.HotPlug.RateLimit,
	}
}
