package mediadevices

// ClassConfig configures one device class.
type ClassConfig struct {
	Enabled    bool
	StartMuted bool
	// PreferredDeviceIDs ranks device ids, highest priority first.
	PreferredDeviceIDs []string
	// Constraints are merged under the chosen device's own constraints.
	Constraints Constraints
	// Placeholder replaces the translated name given to unlabeled devices.
	Placeholder string
}

// Config drives the Manager.
type Config struct {
	Classes           map[DeviceClass]ClassConfig
	Locale            string
	StartPreview      bool
	StartStreams      bool
	ToneOnPreview     bool
	LoopbackOnPreview bool
}

// DefaultConfig enables every class. Video starts muted.
func DefaultConfig() Config {
	return Config{
		Classes: map[DeviceClass]ClassConfig{
			AudioOutput: {Enabled: true},
			AudioInput:  {Enabled: true},
			VideoInput:  {Enabled: true, StartMuted: true},
		},
		Locale:            "en",
		LoopbackOnPreview: true,
	}
}

func (c *Config) class(cl DeviceClass) ClassConfig {
	return c.Classes[cl]
}

func (c *Config) placeholders() map[DeviceClass]string {
	out := make(map[DeviceClass]string, len(c.Classes))
	for cl, cc := range c.Classes {
		if cc.Placeholder != "" {
			out[cl] = cc.Placeholder
		}
	}
	return out
}
