package mediadevices

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

// lifecycle owns the tracks of the shared stream. Callers that add or
// remove tracks must hold the Guard; the mute family only flips Enabled.
type lifecycle struct {
	cfg      *Config
	reg      *Registry
	stream   *Stream
	capturer Capturer
	graph    *audiograph.Graph
	pub      Publisher
	metrics  Metrics
	log      logger.Logger

	streamsActive atomic.Bool
	previewActive atomic.Bool
}

// inputsHeld reports whether anything currently needs captured inputs.
func (l *lifecycle) inputsHeld() bool {
	return l.streamsActive.Load() || l.previewActive.Load()
}

// createConstraints builds a request for every enabled input class from the
// active device, else the preferred one, else the class defaults. Devices
// passed in override the registry choice for their class. A class whose
// choice is the "none" sentinel is left out.
func (l *lifecycle) createConstraints(overrides ...Device) ConstraintSet {
	cs := make(ConstraintSet, len(TrackKinds))
	for _, kind := range TrackKinds {
		class := kind.InputClass()
		cc := l.cfg.class(class)
		if !cc.Enabled {
			continue
		}

		dev, ok := l.reg.Active(class)
		if ok && !dev.Connected {
			ok = false
		}
		if !ok {
			dev, ok = l.reg.Preferred(class)
		}
		for _, o := range overrides {
			if o.Class == class {
				dev, ok = o, true
			}
		}

		c := cc.Constraints
		if ok {
			if dev.IsNone() {
				continue
			}
			c = c.Merge(dev.Constraints).Merge(Constraints{DeviceID: dev.ID})
		}
		cs[kind] = c
	}
	return cs
}

// startInputStreams captures every kind in cs that has no live track yet.
// A nil cs is derived from the registry. Dead tracks are removed first.
// When a combined audio and video request fails it is retried once with audio only.
func (l *lifecycle) startInputStreams(ctx context.Context, cs ConstraintSet, muted []TrackKind) error {
	if cs == nil {
		cs = l.createConstraints()
	} else {
		cs = cs.Clone()
	}

	for _, t := range l.stream.Tracks() {
		if t.ReadyState() == TrackLive {
			delete(cs, t.Kind())
		} else {
			l.removeTrack(t, true)
		}
	}
	if len(cs) == 0 {
		return nil
	}

	requested := cs.Kinds()
	err := l.capture(ctx, cs, muted)
	if err != nil && cs.Has(KindAudio) && cs.Has(KindVideo) {
		l.log.Info("retrying capture without video")
		err = l.capture(ctx, cs.Only(KindAudio), muted)
	}

	for _, kind := range requested {
		if _, live := l.stream.LiveTrack(kind); !live {
			l.reg.ClearActive(kind.InputClass())
		}
	}
	l.updateInputChain()
	return err
}

func (l *lifecycle) capture(ctx context.Context, cs ConstraintSet, muted []TrackKind) error {
	kinds := cs.String()
	tracks, err := l.capturer.Capture(ctx, cs)
	if err != nil {
		l.metrics.RecordCaptureRequest(kinds, "error")
		cerr := &CaptureError{Kinds: cs.Kinds(), Err: err}
		l.pub.Publish(SignalGetUserMediaError, cerr)
		l.log.Warn("media capture failed",
			logger.String("kinds", kinds),
			logger.Error(err))
		return errors.New(fmt.Errorf("%w: %w", ErrCaptureFailed, cerr)).
			Component(componentName).
			Category(errors.CategoryCapture).
			Context("kinds", kinds).
			Build()
	}

	l.metrics.RecordCaptureRequest(kinds, "ok")
	for _, t := range tracks {
		t.SetEnabled(!slices.Contains(muted, t.Kind()))
		l.addTrack(t)
	}
	l.log.Debug("media captured",
		logger.String("kinds", kinds),
		logger.Int("tracks", len(tracks)))
	return nil
}

// addTrack attaches t to the stream and makes its device the active one.
func (l *lifecycle) addTrack(t Track) {
	l.stream.add(t)
	p := NewTrackParameters(l.stream, t)
	l.reg.trackStarted(p)

	l.pub.Publish(InputSignal(t.Kind(), InputStarted), p)
	if t.Enabled() {
		l.pub.Publish(InputSignal(t.Kind(), InputUnmuted), p)
	} else {
		l.pub.Publish(InputSignal(t.Kind(), InputMuted), p)
	}
}

// removeTrack disables, stops and detaches t. With updateActive the class
// loses its active device ("none" becomes active for video).
func (l *lifecycle) removeTrack(t Track, updateActive bool) {
	p := NewTrackParameters(l.stream, t)

	t.SetEnabled(false)
	t.Stop()
	l.stream.remove(t)

	if updateActive {
		l.reg.trackStopped(p)
	}
	l.pub.Publish(InputSignal(t.Kind(), InputStopped), p)
}

// stopAllInputs releases every track of the given kinds, or all tracks when
// none are given. Device activity is left as is.
func (l *lifecycle) stopAllInputs(kinds ...TrackKind) {
	for _, t := range l.stream.Tracks() {
		if len(kinds) == 0 || slices.Contains(kinds, t.Kind()) {
			l.removeTrack(t, false)
		}
	}
	l.updateInputChain()
}

// updateInputChain feeds the live audio track, if any, to the graph microphone input.
func (l *lifecycle) updateInputChain() {
	if l.graph == nil {
		return
	}
	if t, ok := l.stream.LiveTrack(KindAudio); ok {
		if src, ok := t.(audiograph.Source); ok {
			l.graph.SetMicrophone(src)
			return
		}
	}
	l.graph.SetMicrophone(nil)
}

// setEnabled applies fn to the Enabled flag of matching tracks and publishes
// the resulting muted or unmuted signal. It returns how many tracks matched.
func (l *lifecycle) setEnabled(kinds []TrackKind, fn func(enabled bool) bool) int {
	n := 0
	for _, t := range l.stream.Tracks() {
		if len(kinds) > 0 && !slices.Contains(kinds, t.Kind()) {
			continue
		}
		t.SetEnabled(fn(t.Enabled()))
		p := NewTrackParameters(l.stream, t)
		if p.Enabled {
			l.pub.Publish(InputSignal(t.Kind(), InputUnmuted), p)
		} else {
			l.pub.Publish(InputSignal(t.Kind(), InputMuted), p)
		}
		n++
	}
	return n
}
