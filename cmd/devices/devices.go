package devices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/backend"
	"github.com/ringneck/libwebphone/internal/backend/soundcard"
	"github.com/ringneck/libwebphone/internal/conf"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

const enumerateTimeout = 10 * time.Second

// Command creates the devices command, which lists every device the engine would arbitrate between.
func Command(settings *conf.Settings) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List audio and video devices",
		Long:  "Enumerate sound cards and cameras and show which device of each class the engine would pick.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), settings, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the device listing as JSON")
	return cmd
}

func run(ctx context.Context, out io.Writer, settings *conf.Settings, asJSON bool) error {
	log := logger.Global().Module("devices")

	cfg := settings.MediaDevices.EngineConfig()
	cfg.StartPreview = false
	cfg.StartStreams = false

	graph, err := audiograph.New(settings.MediaDevices.GraphConfig(), log.Module("audiograph"))
	if err != nil {
		return err
	}
	sys, err := backend.NewSystem(soundcard.DefaultConfig(), graph, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			log.Warn("failed to close sound card backend", logger.Error(err))
		}
	}()

	m, err := mediadevices.New(mediadevices.Options{
		Config:     cfg,
		Enumerator: sys.Enumerator(),
		Capturer:   sys.Capturer(),
		Graph:      graph,
		Logger:     log.Module("mediadevices"),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, enumerateTimeout)
	defer cancel()
	if err := m.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = m.Close(context.Background()) }()

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(m.RenderData().Classes)
	}
	return printClasses(out, m)
}

func printClasses(out io.Writer, m *mediadevices.Manager) error {
	for _, cr := range m.RenderData().Classes {
		state := ""
		if !cr.Enabled {
			state = " (disabled)"
		}
		if _, err := fmt.Fprintf(out, "%s%s\n", cr.Class, state); err != nil {
			return err
		}

		preferred, _ := m.Registry().Preferred(cr.Class)
		for _, d := range cr.Devices {
			marker := " "
			if d.ID == preferred.ID {
				marker = "*"
			}
			connected := ""
			if !d.Connected {
				connected = " [disconnected]"
			}
			if _, err := fmt.Fprintf(out, "  %s %-40s %s%s\n", marker, d.Name, d.ID, connected); err != nil {
				return err
			}
		}
	}
	return nil
}
