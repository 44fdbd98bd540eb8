// Package conf loads libwebphone settings from config files, the environment and flags.
package conf

import (
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
	"github.com/ringneck/libwebphone/internal/secrets"
)

// EnvPrefix prefixes environment overrides, e.g. LIBWEBPHONE_API_LISTEN.
const EnvPrefix = "LIBWEBPHONE"

// Settings is the root of the configuration tree.
type Settings struct {
	Debug bool `yaml:"debug"`

	MediaDevices MediaDevicesSettings `yaml:"mediadevices"`
	Preferences  PreferencesSettings  `yaml:"preferences"`
	API          APISettings          `yaml:"api"`
	Metrics      MetricsSettings      `yaml:"metrics"`
	Sentry       SentrySettings       `yaml:"sentry"`
	MQTT         MQTTSettings         `yaml:"mqtt"`
	Logging      logger.LoggingConfig `yaml:"logging"`
}

// MediaDevicesSettings configures the device engine.
type MediaDevicesSettings struct {
	DetectDeviceChanges bool            `yaml:"detectdevicechanges"`
	HotPlug             HotPlugSettings `yaml:"hotplug"`

	AudioOutput ClassSettings `yaml:"audiooutput"`
	AudioInput  ClassSettings `yaml:"audioinput"`
	VideoInput  ClassSettings `yaml:"videoinput"`

	Volume  VolumeSettings  `yaml:"volume"`
	Preview PreviewSettings `yaml:"preview"`
	Audio   AudioSettings   `yaml:"audio"`

	StartPreview bool   `yaml:"startpreview"`
	StartStreams bool   `yaml:"startstreams"`
	Locale       string `yaml:"locale"`
}

// HotPlugSettings controls the device node watcher.
type HotPlugSettings struct {
	Debounce  time.Duration `yaml:"debounce"`
	Paths     []string      `yaml:"paths"`
	RateLimit float64       `yaml:"ratelimit"` // refreshes per second
}

// ClassSettings configures one device class.
type ClassSettings struct {
	Enabled            bool                     `yaml:"enabled"`
	StartMuted         bool                     `yaml:"startmuted"`
	PreferredDeviceIDs []string                 `yaml:"preferreddeviceids"` // highest priority first
	Constraints        mediadevices.Constraints `yaml:"constraints"`
	Placeholder        string                   `yaml:"placeholder"` // name for unlabeled devices, numbered
}

// VolumeSettings holds the initial gain of every mixer channel, each in [0,1].
type VolumeSettings struct {
	Master     float64 `yaml:"master"`
	Ringer     float64 `yaml:"ringer"`
	DTMF       float64 `yaml:"dtmf"`
	Remote     float64 `yaml:"remote"`
	Talkback   float64 `yaml:"talkback"`
	Microphone float64 `yaml:"microphone"`
	Tone       float64 `yaml:"tone"`
	Loopback   float64 `yaml:"loopback"`
}

// PreviewSettings configures the preview tone and microphone loopback.
type PreviewSettings struct {
	Tone     ToneSettings     `yaml:"tone"`
	Loopback LoopbackSettings `yaml:"loopback"`
}

type ToneSettings struct {
	Frequency      float64 `yaml:"frequency"`
	Type           string  `yaml:"type"`
	StartOnPreview bool    `yaml:"startonpreview"`
}

type LoopbackSettings struct {
	Delay          time.Duration `yaml:"delay"`
	StartOnPreview bool          `yaml:"startonpreview"`
}

type AudioSettings struct {
	SampleRate int `yaml:"samplerate"`
	Channels   int `yaml:"channels"`
}

// PreferencesSettings controls persistence of explicit device selections.
type PreferencesSettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // empty selects the XDG data file
}

// APISettings configures the HTTP control API.
type APISettings struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

type MetricsSettings struct {
	Enabled bool `yaml:"enabled"`
}

// SentrySettings enables error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`     // may reference ${VAR}
	DSNFile string `yaml:"dsnfile"` // takes precedence over DSN
}

// MQTTSettings configures the signal bridge.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"` // may reference ${VAR}
	// PasswordFile takes precedence over Password, e.g. /run/secrets/mqtt_password.
	PasswordFile string `yaml:"passwordfile"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration into the global viper instance and validates it.
// configFile overrides the search path when set.
func Load(configFile string) (*Settings, error) {
	settings, err := LoadFrom(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}
	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// LoadFrom is Load against an explicit viper instance.
func LoadFrom(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryValidation).
			Build()
	}
	return settings, nil
}

// resolveSecrets expands credential references of enabled integrations only,
// so an unset variable in a disabled section does not block startup.
func resolveSecrets(s *Settings) error {
	if s.Sentry.Enabled {
		dsn, err := secrets.Resolve(s.Sentry.DSNFile, s.Sentry.DSN)
		if err != nil {
			return err
		}
		s.Sentry.DSN = dsn
	}
	if s.MQTT.Enabled {
		password, err := secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password)
		if err != nil {
			return err
		}
		s.MQTT.Password = password
	}
	return nil
}

// initViper registers defaults, environment overrides and reads the config file if there is one.
func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		for _, path := range DefaultConfigPaths() {
			v.AddConfigPath(path)
		}
	}

	err := v.ReadInConfig()
	if err == nil {
		GetLogger().Info("configuration loaded", logger.String("file", v.ConfigFileUsed()))
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if configFile == "" && errors.As(err, &notFound) {
		GetLogger().Debug("no config file found, using defaults")
		return nil
	}
	return errors.New(err).
		Component("conf").
		Category(errors.CategoryConfiguration).
		Context("file", configFile).
		Build()
}

// GetSettings returns the settings from the last successful Load.
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
