package mediadevices

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Stream is the single shared media stream. Tracks come and go but the
// stream itself is never replaced, so holders of a *Stream never rebind.
type Stream struct {
	id     string
	mu     sync.RWMutex
	tracks []Track
}

func newStream() *Stream {
	return &Stream{id: uuid.NewString()}
}

// ID returns the stream identifier.
func (s *Stream) ID() string {
	return s.id
}

// Tracks returns the current tracks in insertion order.
func (s *Stream) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tracks)
}

// Track returns the first track of kind regardless of its ready state.
func (s *Stream) Track(kind TrackKind) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.Kind() == kind {
			return t, true
		}
	}
	return nil, false
}

// LiveTrack returns the first live track of kind.
func (s *Stream) LiveTrack(kind TrackKind) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tracks {
		if t.Kind() == kind && t.ReadyState() == TrackLive {
			return t, true
		}
	}
	return nil, false
}

func (s *Stream) add(t Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tracks = append(s.tracks, t)
}

func (s *Stream) remove(t Track) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.tracks, t)
	if i < 0 {
		return false
	}
	s.tracks = slices.Delete(s.tracks, i, i+1)
	return true
}
