// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for every key so environment overrides apply.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)

	v.SetDefault("mediadevices.detectdevicechanges", true)
	v.SetDefault("mediadevices.hotplug.debounce", 500*time.Millisecond)
	v.SetDefault("mediadevices.hotplug.paths", []string{"/dev", "/dev/snd"})
	v.SetDefault("mediadevices.hotplug.ratelimit", 2.0)

	for _, class := range []string{"audiooutput", "audioinput", "videoinput"} {
		prefix := "mediadevices." + class + "."
		v.SetDefault(prefix+"enabled", true)
		v.SetDefault(prefix+"startmuted", class == "videoinput")
		v.SetDefault(prefix+"preferreddeviceids", []string{})
		v.SetDefault(prefix+"placeholder", "")
	}

	v.SetDefault("mediadevices.volume.master", 1.0)
	v.SetDefault("mediadevices.volume.ringer", 1.0)
	v.SetDefault("mediadevices.volume.dtmf", 1.0)
	v.SetDefault("mediadevices.volume.remote", 1.0)
	v.SetDefault("mediadevices.volume.talkback", 0.0)
	v.SetDefault("mediadevices.volume.microphone", 1.0)
	v.SetDefault("mediadevices.volume.tone", 0.25)
	v.SetDefault("mediadevices.volume.loopback", 1.0)

	v.SetDefault("mediadevices.preview.tone.frequency", 440.0)
	v.SetDefault("mediadevices.preview.tone.type", "sine")
	v.SetDefault("mediadevices.preview.tone.startonpreview", false)
	v.SetDefault("mediadevices.preview.loopback.delay", 500*time.Millisecond)
	v.SetDefault("mediadevices.preview.loopback.startonpreview", true)

	v.SetDefault("mediadevices.audio.samplerate", 48000)
	v.SetDefault("mediadevices.audio.channels", 2)

	v.SetDefault("mediadevices.startpreview", false)
	v.SetDefault("mediadevices.startstreams", false)
	v.SetDefault("mediadevices.locale", "en")

	v.SetDefault("preferences.enabled", true)
	v.SetDefault("preferences.path", "")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", "127.0.0.1:8089")
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")
	v.SetDefault("sentry.dsnfile", "")

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.topic", "libwebphone")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.passwordfile", "")

	v.SetDefault("logging.defaultlevel", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.fileoutput.enabled", false)
	v.SetDefault("logging.fileoutput.path", "logs/libwebphone.log")
	v.SetDefault("logging.fileoutput.level", "info")
}
