package mediadevices

import (
	"context"
	"fmt"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
)

// Switch reasons recorded in metrics and logs.
const (
	reasonDisconnected = "disconnected"
	reasonPreferred    = "preferred"
	reasonPromoted     = "promoted"
	reasonSelected     = "selected"
)

// arbitrator decides which device is active per class and drives the
// lifecycle to match, always under the guard.
type arbitrator struct {
	reg     *Registry
	lc      *lifecycle
	guard   *Guard
	enum    Enumerator
	sink    SinkSelector
	prefs   PreferenceStore
	pub     Publisher
	metrics Metrics
	log     logger.Logger
}

// refresh re-enumerates, re-arbitrates each class and re-captures only the
// kinds whose device changed. The guard is held until capture settles.
func (a *arbitrator) refresh(ctx context.Context) error {
	devices, err := a.enum.EnumerateDevices(ctx)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryAudioDevice).
			Context("operation", "enumerate").
			Build()
	}

	release, err := a.guard.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	a.reg.MarkAllDisconnected()
	a.reg.Import(devices)

	altered := make(map[TrackKind]bool, len(TrackKinds))
	var output *outputSwitch

	for _, class := range DeviceClasses {
		active, hasActive := a.reg.Active(class)
		if !hasActive {
			continue
		}
		preferred, hasPreferred := a.reg.Preferred(class)

		var reason string
		switch {
		case !active.Connected:
			reason = reasonDisconnected
		case hasPreferred && active.Preference < preferred.Preference:
			reason = reasonPreferred
		default:
			continue
		}

		if class == AudioOutput {
			output = &outputSwitch{previous: active, reason: reason}
			if hasPreferred {
				output.target = &preferred
			}
			continue
		}

		if hasPreferred {
			a.reg.SetActive(class, preferred.ID)
		} else {
			a.reg.ClearActive(class)
		}
		a.metrics.RecordDeviceSwitch(class.String(), reason)
		a.log.Info("active device switched",
			logger.String("class", class.String()),
			logger.String("reason", reason),
			logger.String("from", active.ID),
			logger.String("to", preferred.ID))
		altered[class.TrackKind()] = true
	}

	constraints := a.lc.createConstraints()
	var startMuted []TrackKind
	for _, t := range a.lc.stream.Tracks() {
		kind := t.Kind()
		if !t.Enabled() {
			startMuted = append(startMuted, kind)
		}

		stale := t.ReadyState() != TrackLive
		active, ok := a.reg.Active(kind.InputClass())
		if ok {
			stale = stale || active.ID != t.Settings().DeviceID || active.Label != t.Label()
		}
		if stale {
			altered[kind] = true
			a.lc.removeTrack(t, true)
		}
	}

	var kinds []TrackKind
	for _, kind := range TrackKinds {
		if altered[kind] {
			kinds = append(kinds, kind)
		}
	}
	reacquire := constraints.Only(kinds...)

	var captureErr error
	if len(reacquire) > 0 {
		captureErr = a.lc.startInputStreams(ctx, reacquire, startMuted)
		if !a.lc.inputsHeld() {
			a.lc.stopAllInputs()
		}
	}

	if output != nil {
		a.applyOutput(ctx, output)
	}

	a.reg.SortByPreference()
	a.publishCounts()
	a.pub.Publish(SignalDevicesRefreshed, nil)
	return captureErr
}

// outputSwitch is an output change decided by refresh but not yet applied.
type outputSwitch struct {
	previous Device
	target   *Device
	reason   string
}

// applyOutput moves the sink to the refresh target. The registry follows the
// sink: if the sink cannot move, the previous output stays active while it is
// still connected and the class is cleared otherwise.
func (a *arbitrator) applyOutput(ctx context.Context, sw *outputSwitch) {
	fallback := func() {
		if sw.previous.Connected {
			a.reg.SetActive(AudioOutput, sw.previous.ID)
			return
		}
		a.reg.ClearActive(AudioOutput)
		a.metrics.RecordDeviceSwitch(AudioOutput.String(), sw.reason)
	}

	if sw.target == nil {
		fallback()
		return
	}
	if a.sink == nil {
		a.log.Debug("no sink selector, output left unchanged",
			logger.String("device", sw.target.ID))
		fallback()
		return
	}
	if err := a.sink.SetSink(ctx, sw.target.ID); err != nil {
		a.log.Warn("failed to apply output sink",
			logger.String("device", sw.target.ID),
			logger.Error(err))
		fallback()
		return
	}

	a.reg.SetActive(AudioOutput, sw.target.ID)
	current := *sw.target
	current.Active = true
	previous := sw.previous
	a.metrics.RecordDeviceSwitch(AudioOutput.String(), sw.reason)
	a.log.Info("active device switched",
		logger.String("class", AudioOutput.String()),
		logger.String("reason", sw.reason),
		logger.String("from", previous.ID),
		logger.String("to", current.ID))
	a.pub.Publish(SignalOutputChanged, OutputChange{Current: current, Previous: &previous})
}

// changeDevice makes an explicit user selection. Unknown or unplugged
// devices are rejected before any state changes.
func (a *arbitrator) changeDevice(ctx context.Context, class DeviceClass, id string) error {
	if _, err := a.lookupConnected(class, id); err != nil {
		return err
	}

	release, err := a.guard.Acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	// the device may have been unplugged while waiting
	if _, err := a.lookupConnected(class, id); err != nil {
		return err
	}

	pref, _ := a.reg.Prefer(class, id)
	a.log.Debug("device preferred",
		logger.String("class", class.String()),
		logger.String("device", id),
		logger.Int("preference", pref))
	a.persist()

	dev, _ := a.reg.Find(class, id)
	if class == AudioOutput {
		err = a.changeOutputDevice(ctx, dev)
	} else {
		err = a.changeInputDevice(ctx, dev)
	}
	a.publishCounts()
	return err
}

func (a *arbitrator) lookupConnected(class DeviceClass, id string) (Device, error) {
	if class != AudioOutput && !class.IsInput() {
		return Device{}, errors.New(ErrUnsupportedClass).
			Component(componentName).
			Category(errors.CategoryValidation).
			Context("class", class.String()).
			Build()
	}
	dev, ok := a.reg.Find(class, id)
	if !ok {
		return Device{}, errors.New(fmt.Errorf("%w: %s %s", ErrDeviceNotFound, class, id)).
			Component(componentName).
			Category(errors.CategoryNotFound).
			Context("class", class.String()).
			Context("device", id).
			Build()
	}
	if !dev.Connected {
		return Device{}, errors.New(fmt.Errorf("%w: %s %s", ErrDeviceNotConnected, class, id)).
			Component(componentName).
			Category(errors.CategoryState).
			Context("class", class.String()).
			Context("device", id).
			Build()
	}
	return dev, nil
}

// changeOutputDevice redirects output. On failure the previous output stays active.
func (a *arbitrator) changeOutputDevice(ctx context.Context, dev Device) error {
	if a.sink == nil {
		return errors.New(ErrSinkUnsupported).
			Component(componentName).
			Category(errors.CategorySink).
			Context("device", dev.ID).
			Build()
	}
	if err := a.sink.SetSink(ctx, dev.ID); err != nil {
		return errors.New(fmt.Errorf("%w: %w", ErrSinkUnsupported, err)).
			Component(componentName).
			Category(errors.CategorySink).
			Context("device", dev.ID).
			Build()
	}

	var previous *Device
	if prev, ok := a.reg.Active(AudioOutput); ok {
		previous = &prev
	}
	a.reg.SetActive(AudioOutput, dev.ID)
	dev.Active = true
	a.metrics.RecordDeviceSwitch(AudioOutput.String(), reasonSelected)
	a.pub.Publish(SignalOutputChanged, OutputChange{Current: dev, Previous: previous})
	return nil
}

// changeInputDevice swaps the track of dev's kind. The old track is released
// before the new one is requested. Selecting "none" captures nothing and
// discards the old track's mute state.
func (a *arbitrator) changeInputDevice(ctx context.Context, dev Device) error {
	kind := dev.TrackKind()
	stream := a.lc.stream
	trackConstraints, capture := a.lc.createConstraints(dev)[kind]

	var previous *TrackParameters
	var muted []TrackKind
	if prev, ok := stream.Track(kind); ok {
		previous = NewTrackParameters(stream, prev)
		if !prev.Enabled() {
			muted = []TrackKind{kind}
		}
		a.lc.removeTrack(prev, true)
	}

	if !capture {
		a.lc.updateInputChain()
		if dev.IsNone() {
			a.reg.ClearActive(dev.Class)
		} else {
			a.reg.SetActive(dev.Class, dev.ID)
		}
		a.metrics.RecordDeviceSwitch(dev.Class.String(), reasonSelected)
		a.pub.Publish(InputSignal(kind, InputChanged), TrackChange{Previous: previous})
		return nil
	}

	err := a.lc.startInputStreams(ctx, ConstraintSet{kind: trackConstraints}, muted)

	var current *TrackParameters
	if t, ok := stream.LiveTrack(kind); ok {
		current = NewTrackParameters(stream, t)
	}
	if !a.lc.inputsHeld() {
		a.lc.stopAllInputs()
	}
	if err != nil {
		return err
	}

	a.metrics.RecordDeviceSwitch(dev.Class.String(), reasonSelected)
	if current != nil {
		a.pub.Publish(InputSignal(kind, InputChanged), TrackChange{Current: current, Previous: previous})
	}
	return nil
}

// promoteDefaults gives every class without an active device its preferred
// connected device. Video keeps "none" when the sentinel outranks every camera.
func (a *arbitrator) promoteDefaults() {
	for _, class := range DeviceClasses {
		if _, ok := a.reg.Active(class); ok {
			continue
		}
		preferred, ok := a.reg.Preferred(class)
		if ok && class == VideoInput {
			if none, found := a.reg.Find(class, NoneDeviceID); found && none.Preference > preferred.Preference {
				ok = false
			}
		}
		if !ok {
			a.reg.ClearActive(class)
			continue
		}
		a.reg.SetActive(class, preferred.ID)
		a.metrics.RecordDeviceSwitch(class.String(), reasonPromoted)
	}
}

func (a *arbitrator) persist() {
	if a.prefs == nil {
		return
	}
	order := make(map[DeviceClass][]string, len(DeviceClasses))
	for _, class := range DeviceClasses {
		if ids := a.reg.PreferenceOrder(class); len(ids) > 0 {
			order[class] = ids
		}
	}
	if err := a.prefs.Save(order); err != nil {
		a.log.Warn("failed to persist device preferences", logger.Error(err))
	}
}

func (a *arbitrator) publishCounts() {
	for _, class := range DeviceClasses {
		connected, active := a.reg.Counts(class)
		a.metrics.SetDeviceCounts(class.String(), connected, active)
	}
}
