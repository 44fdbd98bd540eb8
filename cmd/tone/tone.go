package tone

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/conf"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

// tailPadding keeps the last tone from ending exactly on the file boundary.
const tailPadding = 100 * time.Millisecond

// Command creates the tone command, which renders DTMF digits to a WAV file.
func Command(settings *conf.Settings) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "tone <digits>",
		Short: "Render DTMF tones to a WAV file",
		Long:  "Render the dial tones for digits (0-9, *, #, A-D) through the audio graph and write them as 16-bit PCM WAV.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := render(settings, args[0], output); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return err
		},
	}

	if err := setupFlags(cmd, &output); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func setupFlags(cmd *cobra.Command, output *string) error {
	cmd.Flags().StringVarP(output, "output", "o", "dtmf.wav", "WAV file to write")
	cmd.Flags().Float64("volume", 1.0, "DTMF channel volume between 0.0 and 1.0")

	// Bind flags to the viper settings
	if err := viper.BindPFlag("mediadevices.volume.dtmf", cmd.Flags().Lookup("volume")); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func render(settings *conf.Settings, digits, output string) error {
	log := logger.Global().Module("tone")

	graph, err := audiograph.New(settings.MediaDevices.GraphConfig(), log.Module("audiograph"))
	if err != nil {
		return err
	}
	if err := graph.PlayDTMF(digits); err != nil {
		return err
	}
	d := graph.PendingToneDuration()
	if d == 0 {
		return errors.Newf("no playable digits in %q", digits).
			Component("tone").
			Category(errors.CategoryValidation).
			Build()
	}

	f, err := os.Create(output)
	if err != nil {
		return errors.New(err).
			Component("tone").
			Category(errors.CategoryFileIO).
			Context("path", output).
			Build()
	}
	if err := graph.RenderWAV(f, d+tailPadding); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.New(err).
			Component("tone").
			Category(errors.CategoryFileIO).
			Context("path", output).
			Build()
	}

	log.Info("rendered dtmf tones",
		logger.String("digits", digits),
		logger.String("path", output),
		logger.Duration("duration", d))
	return nil
}
