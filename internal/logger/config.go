package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	DefaultLevel  string                  `yaml:"default_level" mapstructure:"defaultlevel"` // default log level for all modules
	Timezone      string                  `yaml:"timezone" mapstructure:"timezone"`          // "Local", "UTC", or IANA timezone name
	Console       *ConsoleOutput          `yaml:"console" mapstructure:"console"`            // console output configuration
	FileOutput    *FileOutput             `yaml:"file_output" mapstructure:"fileoutput"`     // file output configuration
	ModuleOutputs map[string]ModuleOutput `yaml:"modules" mapstructure:"modules"`            // per-module output configuration
	ModuleLevels  map[string]string       `yaml:"module_levels" mapstructure:"modulelevels"` // per-module log levels
}

// ConsoleOutput represents console logging configuration.
// Console output uses a human-readable text format.
type ConsoleOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// FileOutput represents file logging configuration. File output is JSON.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"`
}

// ModuleOutput routes one module to a dedicated file
type ModuleOutput struct {
	Enabled     bool   `yaml:"enabled" mapstructure:"enabled"`
	FilePath    string `yaml:"file_path" mapstructure:"filepath"`
	Level       string `yaml:"level" mapstructure:"level"`
	ConsoleAlso bool   `yaml:"console_also" mapstructure:"consolealso"`
}

const (
	DefaultLogLevel       = "info"
	DefaultLogPath        = "logs/libwebphone.log"
	DefaultConsoleEnabled = true
	DefaultFileEnabled    = false
)

// applyConfigDefaults fills nil sections so a partial config still produces console output.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg == nil {
		return
	}

	if cfg.DefaultLevel == "" {
		cfg.DefaultLevel = DefaultLogLevel
	}

	if cfg.Console == nil {
		cfg.Console = &ConsoleOutput{
			Enabled: DefaultConsoleEnabled,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.FileOutput == nil {
		cfg.FileOutput = &FileOutput{
			Enabled: DefaultFileEnabled,
			Path:    DefaultLogPath,
			Level:   cfg.DefaultLevel,
		}
	}

	if cfg.ModuleOutputs == nil {
		cfg.ModuleOutputs = make(map[string]ModuleOutput)
	}
}
