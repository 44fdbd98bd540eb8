package backend

import (
	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/backend/soundcard"
	"github.com/ringneck/libwebphone/internal/backend/v4l"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// System is the host's sound cards and cameras wired as engine collaborators.
type System struct {
	Sound   *soundcard.Backend
	Cameras *v4l.Cameras
}

// NewSystem opens the sound card backend. graph is what plays on the selected output.
func NewSystem(cfg soundcard.Config, graph *audiograph.Graph, log logger.Logger) (*System, error) {
	if log == nil {
		log = logger.Global().Module(componentName)
	}
	sound, err := soundcard.New(cfg, graph, log.Module("soundcard"))
	if err != nil {
		return nil, err
	}
	return &System{Sound: sound, Cameras: v4l.New()}, nil
}

// Enumerator lists sound cards first, then cameras.
func (s *System) Enumerator() mediadevices.Enumerator {
	return Enumerators{s.Sound, s.Cameras}
}

// Capturer routes audio to the sound cards and video to the cameras.
func (s *System) Capturer() mediadevices.Capturer {
	return Capturers{
		mediadevices.KindAudio: s.Sound,
		mediadevices.KindVideo: s.Cameras,
	}
}

// Sink selects the output device the audio graph plays on.
func (s *System) Sink() mediadevices.SinkSelector {
	return s.Sound
}

// Close releases the sound card backend.
func (s *System) Close() error {
	return s.Sound.Close()
}
