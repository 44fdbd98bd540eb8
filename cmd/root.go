package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ringneck/libwebphone/cmd/devices"
	"github.com/ringneck/libwebphone/cmd/monitor"
	"github.com/ringneck/libwebphone/cmd/tone"
	"github.com/ringneck/libwebphone/cmd/version"
	"github.com/ringneck/libwebphone/internal/buildinfo"
	"github.com/ringneck/libwebphone/internal/conf"
	"github.com/ringneck/libwebphone/internal/logger"
)

// RootCommand creates and returns the root command
func RootCommand(build *buildinfo.Context) *cobra.Command {
	settings := &conf.Settings{}
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "libwebphone",
		Short:         "Softphone media device engine",
		Long:          "Arbitrate audio and video devices, preview them and drive the softphone media stream.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	versionCmd := version.Command(build)
	subcommands := []*cobra.Command{
		devices.Command(settings),
		monitor.Command(settings, build),
		tone.Command(settings),
		versionCmd,
	}
	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// version needs neither configuration nor logging
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return initialize(configFile, settings)
	}

	return rootCmd
}

// initialize loads settings after flags are parsed, so bound flags take
// precedence over the config file and environment, then installs the global logger.
func initialize(configFile string, settings *conf.Settings) error {
	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	if settings.Debug {
		settings.Logging.DefaultLevel = "debug"
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = "debug"
		}
	}

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	rootCmd.PersistentFlags().StringVarP(configFile, "config", "c", "", "Path to the config file (default: search ., $XDG_CONFIG_HOME/libwebphone, /etc/libwebphone)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	rootCmd.PersistentFlags().String("locale", "", "Locale used for placeholder device names")

	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	if err := viper.BindPFlag("mediadevices.locale", rootCmd.PersistentFlags().Lookup("locale")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
