package monitor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/ringneck/libwebphone/internal/api"
	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/backend"
	"github.com/ringneck/libwebphone/internal/backend/soundcard"
	"github.com/ringneck/libwebphone/internal/buildinfo"
	"github.com/ringneck/libwebphone/internal/conf"
	"github.com/ringneck/libwebphone/internal/events"
	"github.com/ringneck/libwebphone/internal/hotplug"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
	"github.com/ringneck/libwebphone/internal/mqtt"
	"github.com/ringneck/libwebphone/internal/observability"
	"github.com/ringneck/libwebphone/internal/preferences"
	"github.com/ringneck/libwebphone/internal/privacy"
	"github.com/ringneck/libwebphone/internal/telemetry"
)

const (
	busShutdownTimeout = 5 * time.Second
	closeTimeout       = 5 * time.Second
)

// Command creates the monitor command, which runs the engine until interrupted.
func Command(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the media devices engine",
		Long:  "Load devices, follow hot-plug changes and serve the control API until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, settings, build)
		},
	}

	// Set up flags specific to the 'monitor' command
	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the monitor command.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().Bool("api", false, "Serve the control API")
	cmd.Flags().String("listen", "", "Listen address and port of the control API")
	cmd.Flags().Bool("metrics", false, "Expose Prometheus metrics on the control API")
	cmd.Flags().Bool("hotplug", false, "Refresh devices when device nodes change")
	cmd.Flags().Bool("preview", false, "Start previews once devices are loaded")
	cmd.Flags().Bool("streams", false, "Start the media streams once devices are loaded")

	// Bind flags to the viper settings
	bindings := map[string]string{
		"api":     "api.enabled",
		"listen":  "api.listen",
		"metrics": "metrics.enabled",
		"hotplug": "mediadevices.detectdevicechanges",
		"preview": "mediadevices.startpreview",
		"streams": "mediadevices.startstreams",
	}
	for flag, key := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
	}
	return nil
}

// Run wires the engine to its collaborators and blocks until ctx is done or a component fails.
func Run(ctx context.Context, settings *conf.Settings, build *buildinfo.Context) error {
	log := logger.Global().Module("monitor")
	log.Info("starting libwebphone", logger.String("version", build.GetVersion()))

	var metrics *observability.Metrics
	if settings.Metrics.Enabled {
		var err error
		if metrics, err = observability.NewMetrics(); err != nil {
			return err
		}
		if !settings.API.Enabled {
			log.Warn("metrics are enabled but the control API is not, /metrics will not be served")
		}
	}

	bus := events.NewBus(events.DefaultConfig(), log.Module("events"))
	defer func() {
		if err := bus.Shutdown(busShutdownTimeout); err != nil {
			log.Warn("signal bus did not drain", logger.Error(err))
		}
	}()

	if err := bus.RegisterConsumer(signalLogger(log.Module("signals"))); err != nil {
		return err
	}
	if metrics != nil {
		if err := bus.RegisterConsumer(metrics.MediaDevices); err != nil {
			return err
		}
	}

	if settings.Sentry.Enabled {
		reporter, err := telemetry.New(telemetry.Options{
			DSN:         settings.Sentry.DSN,
			Release:     build.Release(),
			Environment: build.Environment(),
		}, log.Module("telemetry"))
		if err != nil {
			return err
		}
		reporter.Install()
		defer reporter.Close()
		if err := bus.RegisterConsumer(reporter.CaptureConsumer()); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if settings.MQTT.Enabled {
		var recorder mqtt.Recorder
		if metrics != nil {
			recorder = metrics.MQTT
		}
		mqttCfg := mqttConfig(&settings.MQTT)
		client, err := mqtt.NewClient(mqttCfg, recorder)
		if err != nil {
			return err
		}
		defer client.Disconnect()
		if err := bus.RegisterConsumer(mqtt.NewBridge(client, mqttCfg, recorder)); err != nil {
			return err
		}
		// A broker that is down at startup is not fatal; the bridge drops signals until it connects.
		g.Go(func() error {
			if err := client.Connect(gctx); err != nil {
				log.Warn("mqtt connect failed", logger.String("broker", privacy.RedactURL(mqttCfg.Broker)), logger.Error(err))
			}
			return nil
		})
	}

	var prefs mediadevices.PreferenceStore
	if settings.Preferences.Enabled {
		store, err := preferences.New(settings.Preferences.Path, log.Module("preferences"))
		if err != nil {
			return err
		}
		log.Debug("device preferences", logger.String("path", store.Path()))
		prefs = store
	}

	graph, err := audiograph.New(settings.MediaDevices.GraphConfig(), log.Module("audiograph"))
	if err != nil {
		return err
	}
	sys, err := backend.NewSystem(soundcard.DefaultConfig(), graph, log.Module("backend"))
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			log.Warn("failed to close sound card backend", logger.Error(err))
		}
	}()

	opts := mediadevices.Options{
		Config:      settings.MediaDevices.EngineConfig(),
		Enumerator:  sys.Enumerator(),
		Capturer:    sys.Capturer(),
		Sink:        sys.Sink(),
		Graph:       graph,
		Publisher:   bus,
		Preferences: prefs,
		Logger:      log.Module("mediadevices"),
	}
	if metrics != nil {
		opts.Metrics = metrics.MediaDevices
	}
	engine, err := mediadevices.New(opts)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if err := engine.Close(closeCtx); err != nil {
			log.Warn("engine close failed", logger.Error(err))
		}
	}()

	if err := engine.Start(ctx); err != nil {
		return err
	}

	if settings.MediaDevices.DetectDeviceChanges {
		watcher := hotplug.New(settings.MediaDevices.HotPlugConfig(), engine, log.Module("hotplug"))
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if settings.API.Enabled {
		serverOpts := []api.ServerOption{api.WithLogger(log.Module("api"))}
		if metrics != nil {
			serverOpts = append(serverOpts, api.WithMetrics(metrics.Handler()))
		}
		server, err := api.New(api.ConfigFromSettings(settings), engine, serverOpts...)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return server.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err = g.Wait()
	log.Info("shutting down", logger.Any("stats", bus.GetStats()))
	return err
}

func mqttConfig(s *conf.MQTTSettings) mqtt.Config {
	cfg := mqtt.DefaultConfig()
	cfg.Broker = s.Broker
	cfg.Username = s.Username
	cfg.Password = s.Password
	if s.Topic != "" {
		cfg.Topic = s.Topic
	}
	cfg.ClientID = "libwebphone-" + uuid.NewString()[:8]
	return cfg
}

// signalLogger logs every engine signal at debug level.
func signalLogger(log logger.Logger) events.Consumer {
	return events.ConsumerFunc{
		ConsumerName: "log",
		Fn: func(sig events.Signal) error {
			log.Debug("signal", logger.String("name", sig.Name))
			return nil
		},
	}
}
