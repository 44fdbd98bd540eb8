package mediadevices

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func liveTrack(t *testing.T, s *Stream, kind TrackKind) *fakeTrack {
	t.Helper()
	tr, ok := s.LiveTrack(kind)
	require.True(t, ok, "expected a live %s track", kind)
	return tr.(*fakeTrack)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestStartActivatesDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classes[AudioInput] = ClassConfig{Enabled: true, PreferredDeviceIDs: []string{"mic2"}}
	hw := newHardware(
		speaker("spk1", "Speakers"),
		mic("mic1", "Built-in"),
		mic("mic2", "USB"),
		camera("cam1", "Webcam"),
	)
	h := startedHarness(t, cfg, hw)

	assert.True(t, h.m.Loaded())
	assert.Equal(t, "mic2", activeID(t, h.m.reg, AudioInput))
	assert.Equal(t, "mic2", h.m.Devices(AudioInput)[0].ID)
	assert.Equal(t, "spk1", activeID(t, h.m.reg, AudioOutput))
	assert.Equal(t, "cam1", activeID(t, h.m.reg, VideoInput))
	assert.Empty(t, hw.captureRequests(), "start does not open any device")
	assert.Equal(t, []string{SignalCreated, SignalLoaded}, h.pub.names())
	requireInvariants(t, h.m.reg)
}

func TestStartWithoutCameraSelectsNone(t *testing.T) {
	h := startedHarness(t, DefaultConfig(), newHardware(mic("mic1", "Mic")))
	assert.Equal(t, NoneDeviceID, activeID(t, h.m.reg, VideoInput))
}

func TestStartTwiceRefreshes(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"))
	h := startedHarness(t, DefaultConfig(), hw)

	hw.setDevices(mic("mic1", "Mic"), mic("mic2", "Mic 2"))
	require.NoError(t, h.m.Start(context.Background()))
	_, ok := h.m.reg.Find(AudioInput, "mic2")
	assert.True(t, ok)
}

func TestRefreshBeforeStart(t *testing.T) {
	h := newHarness(t, DefaultConfig(), newHardware(), nil)
	err := h.m.RefreshAvailableDevices(context.Background())
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestRefreshSwitchesToHigherPreference(t *testing.T) {
	hw := newHardware(mic("A", "Mic A"), mic("B", "Mic B"))
	h := startedHarness(t, DefaultConfig(), hw)
	require.Equal(t, "A", activeID(t, h.m.reg, AudioInput))

	setPreference(h.m.reg, AudioInput, "A", 2)
	setPreference(h.m.reg, AudioInput, "B", 5)

	require.NoError(t, h.m.RefreshAvailableDevices(context.Background()))

	assert.Equal(t, "B", activeID(t, h.m.reg, AudioInput))
	a, _ := h.m.reg.Find(AudioInput, "A")
	assert.False(t, a.Active)

	reqs := hw.captureRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []TrackKind{KindAudio}, reqs[0].Kinds())
	assert.Equal(t, "B", reqs[0][KindAudio].DeviceID)

	assert.Empty(t, h.m.Stream().Tracks(), "idle refresh releases what it captured")
	assert.Equal(t, "B", h.m.Devices(AudioInput)[0].ID)
	assert.Equal(t, 1, h.pub.count(SignalDevicesRefreshed))
	requireInvariants(t, h.m.reg)
}

func TestRefreshReplacesLiveTrack(t *testing.T) {
	hw := newHardware(mic("A", "Mic A"), mic("B", "Mic B"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	old := liveTrack(t, h.m.Stream(), KindAudio)
	h.m.MuteInput(KindAudio)

	setPreference(h.m.reg, AudioInput, "B", 5)
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))

	assert.True(t, old.isStopped())
	fresh := liveTrack(t, h.m.Stream(), KindAudio)
	assert.Equal(t, "B", fresh.deviceID)
	assert.False(t, fresh.Enabled(), "mute carries over to the replacement track")
	assert.Len(t, hw.captureRequests(), 2)
	assert.Len(t, h.m.Stream().Tracks(), 1)
}

func TestRefreshLeavesSatisfiedTracksAlone(t *testing.T) {
	hw := newHardware(mic("A", "Mic A"), camera("C", "Cam"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	audio := liveTrack(t, h.m.Stream(), KindAudio)

	hw.setDevices(mic("A", "Mic A"), camera("C", "Cam"), mic("X", "New Mic"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))

	assert.Len(t, hw.captureRequests(), 1, "no kind changed so nothing is re-requested")
	assert.False(t, audio.isStopped())
	assert.Equal(t, "A", activeID(t, h.m.reg, AudioInput))
}

func TestRefreshHandlesUnplugAndReplug(t *testing.T) {
	hw := newHardware(mic("mic1", "One"), mic("mic2", "Two"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	old := liveTrack(t, h.m.Stream(), KindAudio)
	require.Equal(t, "mic1", old.deviceID)

	hw.setDevices(mic("mic2", "Two"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))

	mic1, ok := h.m.reg.Find(AudioInput, "mic1")
	require.True(t, ok, "unplugged devices stay in the registry")
	assert.False(t, mic1.Connected)
	assert.False(t, mic1.Active)
	assert.Equal(t, "mic2", activeID(t, h.m.reg, AudioInput))
	assert.True(t, old.isStopped())
	assert.Equal(t, "mic2", liveTrack(t, h.m.Stream(), KindAudio).deviceID)

	hw.setDevices(mic("mic1", "One"), mic("mic2", "Two"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	mic1, _ = h.m.reg.Find(AudioInput, "mic1")
	assert.True(t, mic1.Connected)
	assert.Equal(t, "mic2", activeID(t, h.m.reg, AudioInput), "equal preference does not switch back")
	assert.Len(t, hw.captureRequests(), 2)
	requireInvariants(t, h.m.reg)
}

func TestRefreshReplacesEndedTrack(t *testing.T) {
	hw := newHardware(mic("mic1", "One"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	liveTrack(t, h.m.Stream(), KindAudio).end()

	require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	assert.Len(t, hw.captureRequests(), 2)
	assert.Equal(t, "mic1", liveTrack(t, h.m.Stream(), KindAudio).deviceID)
	assert.Len(t, h.m.Stream().Tracks(), 1)
}

func TestRefreshReappliesOutputSink(t *testing.T) {
	hw := newHardware(speaker("spk1", "Speakers"), speaker("spk2", "Headset"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	require.NoError(t, h.m.ChangeDevice(ctx, AudioOutput, "spk2"))
	hw.setDevices(speaker("spk1", "Speakers"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))

	assert.Equal(t, "spk1", activeID(t, h.m.reg, AudioOutput))
	assert.Equal(t, []string{"spk2", "spk1"}, hw.sinkCalls())
	payload, ok := h.pub.last(SignalOutputChanged)
	require.True(t, ok)
	change := payload.(OutputChange)
	assert.Equal(t, "spk1", change.Current.ID)
	require.NotNil(t, change.Previous)
	assert.Equal(t, "spk2", change.Previous.ID)
}

func TestRefreshKeepsOutputWhenSinkFails(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classes[AudioOutput] = ClassConfig{Enabled: true, PreferredDeviceIDs: []string{"spk2"}}
	hw := newHardware(speaker("spk1", "Speakers"))
	h := startedHarness(t, cfg, hw)
	ctx := context.Background()
	require.Equal(t, "spk1", activeID(t, h.m.reg, AudioOutput))

	hw.sinkErr = assert.AnError
	hw.setDevices(speaker("spk1", "Speakers"), speaker("spk2", "Headset"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	assert.Equal(t, "spk1", activeID(t, h.m.reg, AudioOutput), "output follows the sink, not the ranking")
	assert.Empty(t, hw.sinkCalls())
	assert.Zero(t, h.pub.count(SignalOutputChanged))
	requireInvariants(t, h.m.reg)

	hw.sinkErr = nil
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	assert.Equal(t, "spk2", activeID(t, h.m.reg, AudioOutput))
	assert.Equal(t, []string{"spk2"}, hw.sinkCalls())
	assert.Equal(t, 1, h.pub.count(SignalOutputChanged))

	hw.sinkErr = assert.AnError
	hw.setDevices(speaker("spk1", "Speakers"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	_, ok := h.m.reg.Active(AudioOutput)
	assert.False(t, ok, "an unplugged output is not reported as the sink")
	assert.Equal(t, 1, h.pub.count(SignalOutputChanged))
	requireInvariants(t, h.m.reg)
}

func TestRefreshAfterDeniedCaptureIssuesNoRequest(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), speaker("spk1", "Speakers"))
	hw.captureErr = errDenied(KindAudio)
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.ErrorIs(t, err, ErrCaptureFailed)
	require.Len(t, hw.captureRequests(), 1)
	require.Equal(t, 1, h.pub.count(SignalGetUserMediaError))

	for range 3 {
		require.NoError(t, h.m.RefreshAvailableDevices(ctx))
	}
	assert.Len(t, hw.captureRequests(), 1, "an unchanged device set is not captured again")
	assert.Equal(t, 1, h.pub.count(SignalGetUserMediaError))
	_, ok := h.m.reg.Active(AudioInput)
	assert.False(t, ok)
	requireInvariants(t, h.m.reg)
}

func TestChangeDeviceToNoneReleasesVideo(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	video := liveTrack(t, h.m.Stream(), KindVideo)
	assert.False(t, video.Enabled(), "video starts muted by default")
	require.Len(t, hw.captureRequests(), 1)

	require.NoError(t, h.m.ChangeDevice(ctx, VideoInput, NoneDeviceID))

	assert.Len(t, hw.captureRequests(), 1, "choosing none issues no capture")
	assert.True(t, video.isStopped())
	_, ok := h.m.Stream().Track(KindVideo)
	assert.False(t, ok)
	assert.Equal(t, NoneDeviceID, activeID(t, h.m.reg, VideoInput))

	payload, ok := h.pub.last(InputSignal(KindVideo, InputChanged))
	require.True(t, ok)
	change := payload.(TrackChange)
	assert.Nil(t, change.Current)
	require.NotNil(t, change.Previous)
	assert.Equal(t, "cam1", change.Previous.Settings.DeviceID)

	// the old mute state is gone: picking a camera again starts enabled
	require.NoError(t, h.m.ChangeDevice(ctx, VideoInput, "cam1"))
	assert.True(t, liveTrack(t, h.m.Stream(), KindVideo).Enabled())
	requireInvariants(t, h.m.reg)
}

func TestChangeInputDevicePreservesMute(t *testing.T) {
	hw := newHardware(mic("mic1", "One"), mic("mic2", "Two"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	old := liveTrack(t, h.m.Stream(), KindAudio)
	h.m.Mute(AudioInput)

	require.NoError(t, h.m.ChangeDevice(ctx, AudioInput, "mic2"))
	assert.True(t, old.isStopped())
	fresh := liveTrack(t, h.m.Stream(), KindAudio)
	assert.Equal(t, "mic2", fresh.deviceID)
	assert.False(t, fresh.Enabled())

	payload, ok := h.pub.last(InputSignal(KindAudio, InputChanged))
	require.True(t, ok)
	change := payload.(TrackChange)
	require.NotNil(t, change.Current)
	require.NotNil(t, change.Previous)
	assert.Equal(t, "mic2", change.Current.Settings.DeviceID)
	assert.Equal(t, "mic1", change.Previous.Settings.DeviceID)
}

func TestChangeDeviceWhileIdleReleasesCapture(t *testing.T) {
	hw := newHardware(mic("mic1", "One"), mic("mic2", "Two"))
	h := startedHarness(t, DefaultConfig(), hw)

	require.NoError(t, h.m.ChangeDevice(context.Background(), AudioInput, "mic2"))
	assert.Len(t, hw.captureRequests(), 1)
	assert.Empty(t, h.m.Stream().Tracks())
	assert.Equal(t, "mic2", activeID(t, h.m.reg, AudioInput))
	assert.True(t, hw.tracks[0].isStopped())

	_, ok := h.pub.last(InputSignal(KindAudio, InputChanged))
	assert.True(t, ok)
}

func TestChangeDeviceRaisesPreference(t *testing.T) {
	prefs := &memoryPrefs{}
	hw := newHardware(mic("mic1", ""), mic("mic2", ""), mic("mic3", ""))
	h := newHarness(t, DefaultConfig(), hw, prefs)
	require.NoError(t, h.m.Start(context.Background()))
	setPreference(h.m.reg, AudioInput, "mic1", 3)
	setPreference(h.m.reg, AudioInput, "mic2", 7)

	require.NoError(t, h.m.ChangeDevice(context.Background(), AudioInput, "mic3"))

	chosen, _ := h.m.reg.Find(AudioInput, "mic3")
	for _, d := range h.m.Devices(AudioInput) {
		if d.ID != "mic3" {
			assert.Greater(t, chosen.Preference, d.Preference)
		}
	}
	assert.Equal(t, "mic3", h.m.Devices(AudioInput)[0].ID)
	assert.Equal(t, 1, prefs.saves)
	assert.Equal(t, []string{"mic3", "mic2", "mic1"}, prefs.stored[AudioInput])
}

func TestChangeDeviceRejectsUnknownAndUnplugged(t *testing.T) {
	hw := newHardware(mic("mic1", "One"), mic("mic2", "Two"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	err := h.m.ChangeDevice(ctx, AudioInput, "ghost")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
	assert.True(t, errors.IsNotFound(err))

	hw.setDevices(mic("mic1", "One"))
	require.NoError(t, h.m.RefreshAvailableDevices(ctx))

	before, _ := h.m.reg.Find(AudioInput, "mic2")
	err = h.m.ChangeDevice(ctx, AudioInput, "mic2")
	assert.ErrorIs(t, err, ErrDeviceNotConnected)
	after, _ := h.m.reg.Find(AudioInput, "mic2")
	assert.Equal(t, before.Preference, after.Preference, "rejection mutates nothing")

	err = h.m.ChangeDevice(ctx, AudioInput, NoneDeviceID)
	assert.ErrorIs(t, err, ErrDeviceNotFound, "audio has no sentinel")
	assert.Empty(t, hw.captureRequests())
}

func TestChangeOutputDevice(t *testing.T) {
	hw := newHardware(speaker("spk1", "Speakers"), speaker("spk2", "Headset"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	require.NoError(t, h.m.ChangeDevice(ctx, AudioOutput, "spk2"))
	assert.Equal(t, "spk2", activeID(t, h.m.reg, AudioOutput))
	assert.Equal(t, []string{"spk2"}, hw.sinkCalls())

	hw.sinkErr = assert.AnError
	err := h.m.ChangeDevice(ctx, AudioOutput, "spk1")
	assert.ErrorIs(t, err, ErrSinkUnsupported)
	assert.True(t, errors.IsCategory(err, errors.CategorySink))
	assert.Equal(t, "spk2", activeID(t, h.m.reg, AudioOutput), "previous output stays active")
	assert.Equal(t, 1, h.pub.count(SignalOutputChanged))
}

func TestChangeOutputWithoutSinkSelector(t *testing.T) {
	hw := newHardware(speaker("spk1", "Speakers"))
	m, err := New(Options{Enumerator: hw, Capturer: hw, Logger: testLogger()})
	require.NoError(t, err)
	defer func() { _ = m.Close(context.Background()) }()
	require.NoError(t, m.Start(context.Background()))

	err = m.ChangeDevice(context.Background(), AudioOutput, "spk1")
	assert.ErrorIs(t, err, ErrSinkUnsupported)
}

func TestConcurrentChangeDeviceSerializes(t *testing.T) {
	hw := newHardware(
		speaker("spk1", "S1"), speaker("spk2", "S2"),
		mic("mic1", "M1"), mic("mic2", "M2"),
		camera("cam1", "C1"), camera("cam2", "C2"),
	)
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()
	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	hw.delay = 15 * time.Millisecond

	var violations atomic.Int32
	stop := make(chan struct{})
	var checker sync.WaitGroup
	checker.Add(1)
	go func() {
		defer checker.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			for _, class := range DeviceClasses {
				_, active := h.m.reg.Counts(class)
				if active > 1 {
					violations.Add(1)
				}
			}
			time.Sleep(time.Millisecond)
		}
	}()

	targets := []struct {
		class DeviceClass
		id    string
	}{
		{AudioInput, "mic2"},
		{AudioOutput, "spk2"},
		{VideoInput, "cam2"},
	}
	errs := make([]error, len(targets))
	var wg sync.WaitGroup
	for i, tgt := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.m.ChangeDevice(ctx, tgt.class, tgt.id)
		}()
	}
	wg.Wait()
	close(stop)
	checker.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), hw.maxInFlight.Load(), "guarded requests never overlap")
	assert.Zero(t, violations.Load())
	assert.Equal(t, "mic2", activeID(t, h.m.reg, AudioInput))
	assert.Equal(t, "spk2", activeID(t, h.m.reg, AudioOutput))
	assert.Equal(t, "cam2", activeID(t, h.m.reg, VideoInput))
	assert.False(t, liveTrack(t, h.m.Stream(), KindVideo).Enabled(), "video mute carried to the new camera")
	requireInvariants(t, h.m.reg)
}

func TestCaptureFailureFallsBackToAudio(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	hw.captureErr = errDenied(KindVideo)
	h := startedHarness(t, DefaultConfig(), hw)

	_, err := h.m.StartStreams(context.Background())
	require.NoError(t, err)

	reqs := hw.captureRequests()
	require.Len(t, reqs, 2)
	assert.Equal(t, []TrackKind{KindAudio, KindVideo}, reqs[0].Kinds())
	assert.Equal(t, []TrackKind{KindAudio}, reqs[1].Kinds())

	payload, ok := h.pub.last(SignalGetUserMediaError)
	require.True(t, ok)
	cerr := payload.(*CaptureError)
	assert.Equal(t, []TrackKind{KindAudio, KindVideo}, cerr.Kinds)
	assert.Equal(t, 1, h.pub.count(SignalGetUserMediaError))

	liveTrack(t, h.m.Stream(), KindAudio)
	assert.Equal(t, NoneDeviceID, activeID(t, h.m.reg, VideoInput))
	requireInvariants(t, h.m.reg)
}

func TestCaptureFailureWithoutFallback(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	hw.captureErr = errDenied(KindAudio)
	h := startedHarness(t, DefaultConfig(), hw)

	_, err := h.m.StartStreams(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCaptureFailed)
	assert.True(t, errors.IsCategory(err, errors.CategoryCapture))

	assert.Len(t, hw.captureRequests(), 2, "one retry, never more")
	assert.Equal(t, 2, h.pub.count(SignalGetUserMediaError))
	assert.Empty(t, h.m.Stream().Tracks())
	_, ok := h.m.reg.Active(AudioInput)
	assert.False(t, ok)
	assert.Equal(t, NoneDeviceID, activeID(t, h.m.reg, VideoInput))
	assert.True(t, h.m.StreamsActive(), "a failed capture degrades rather than aborting")
}

func TestStartStreamsIsIdempotent(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	stream, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	again, err := h.m.StartStreams(ctx)
	require.NoError(t, err)

	assert.Same(t, stream, again, "the shared stream is never replaced")
	assert.Len(t, hw.captureRequests(), 1)
	require.NoError(t, h.m.lc.startInputStreams(ctx, nil, nil))
	assert.Len(t, hw.captureRequests(), 1)
	assert.Len(t, stream.Tracks(), 2)

	payload, ok := h.pub.last(SignalStreamsStarted)
	require.True(t, ok)
	started := payload.(StreamsStarted)
	assert.Same(t, stream, started.Stream)
	assert.NotNil(t, started.Monitor)
	assert.True(t, h.m.Graph().Running())
}

func TestStartInputStreamsEmptySetIsNoop(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"))
	h := startedHarness(t, DefaultConfig(), hw)
	require.NoError(t, h.m.lc.startInputStreams(context.Background(), ConstraintSet{}, nil))
	assert.Empty(t, hw.captureRequests())
}

func TestMuteRoundTrip(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	h := startedHarness(t, DefaultConfig(), hw)
	_, err := h.m.StartStreams(context.Background())
	require.NoError(t, err)
	audio := liveTrack(t, h.m.Stream(), KindAudio)
	video := liveTrack(t, h.m.Stream(), KindVideo)
	require.True(t, audio.Enabled())

	assert.Equal(t, 1, h.m.MuteInput(KindAudio))
	assert.False(t, audio.Enabled())
	assert.Equal(t, 1, h.m.UnmuteInput(KindAudio))
	assert.True(t, audio.Enabled())
	assert.Len(t, hw.captureRequests(), 1, "mute never touches capture")
	assert.False(t, audio.isStopped())

	h.m.ToggleMute(VideoInput)
	assert.True(t, video.Enabled())
	assert.Equal(t, 2, h.m.MuteInput())
	assert.False(t, audio.Enabled())
	assert.False(t, video.Enabled())

	payload, ok := h.pub.last(InputSignal(KindAudio, InputMuted))
	require.True(t, ok)
	assert.False(t, payload.(*TrackParameters).Enabled)
	_, ok = h.pub.last(InputSignal(KindVideo, InputUnmuted))
	assert.True(t, ok)

	assert.Equal(t, 1, h.m.ToggleMuteInput(KindVideo))
	assert.True(t, video.Enabled())
	assert.False(t, audio.Enabled())
	assert.Equal(t, 2, h.m.ToggleMuteInput())
	assert.True(t, audio.Enabled())
	assert.False(t, video.Enabled())
}

func TestOutputMute(t *testing.T) {
	hw := newHardware(speaker("spk1", "Speakers"))
	h := startedHarness(t, DefaultConfig(), hw)

	h.m.Mute(AudioOutput)
	assert.True(t, h.m.OutputMuted())
	assert.InDelta(t, 1.0, h.m.Volume(audiograph.ChannelMaster), 1e-9)
	payload, ok := h.pub.last(SignalOutputMuted)
	require.True(t, ok)
	assert.Equal(t, "spk1", payload.(Device).ID)

	h.m.ToggleMute(AudioOutput)
	assert.False(t, h.m.OutputMuted())
	h.m.Unmute(AudioOutput)
	assert.Equal(t, 2, h.pub.count(SignalOutputUnmuted))
}

func TestStartStreamsMutesOutputWhenConfigured(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classes[AudioOutput] = ClassConfig{Enabled: true, StartMuted: true}
	h := startedHarness(t, cfg, newHardware(mic("mic1", "Mic")))

	_, err := h.m.StartStreams(context.Background())
	require.NoError(t, err)
	assert.True(t, h.m.OutputMuted())
	assert.True(t, liveTrack(t, h.m.Stream(), KindAudio).Enabled())
}

func TestVolumes(t *testing.T) {
	h := startedHarness(t, DefaultConfig(), newHardware())

	require.NoError(t, h.m.SetControlVolume(audiograph.ChannelRinger, 500))
	assert.InDelta(t, 0.5, h.m.Volume(audiograph.ChannelRinger), 1e-9)
	assert.Equal(t, 500, h.m.ControlVolume(audiograph.ChannelRinger))

	payload, ok := h.pub.last("volume.ringer.change")
	require.True(t, ok)
	assert.Equal(t, VolumeChange{Channel: audiograph.ChannelRinger, Volume: 0.5}, payload)

	require.NoError(t, h.m.ChangeVolume(audiograph.ChannelTalkback, 0.333))
	assert.InDelta(t, 0.33, h.m.Volume(audiograph.ChannelTalkback), 1e-9)

	require.Error(t, h.m.SetControlVolume(audiograph.ChannelRinger, 1001))
	require.Error(t, h.m.ChangeVolume(audiograph.ChannelMaster, 2))
	require.Error(t, h.m.ChangeVolume("bogus", 0.5))
	assert.InDelta(t, 0.5, h.m.Volume(audiograph.ChannelRinger), 1e-9)
}

func TestPreviewsAndStreams(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	require.NoError(t, h.m.StartPreviews(ctx))
	assert.True(t, h.m.PreviewActive())
	assert.True(t, h.m.PreviewLoopbackActive(), "loopback starts with previews by default")
	assert.False(t, h.m.PreviewToneActive())
	assert.Len(t, hw.captureRequests(), 1)
	assert.Equal(t, 1, h.pub.count(SignalAudioContextStarted))

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	assert.False(t, h.m.PreviewActive())
	assert.True(t, h.m.StreamsActive())
	assert.False(t, h.m.PreviewLoopbackActive())
	assert.Equal(t, 1, h.pub.count(SignalPreviewStop))
	assert.Len(t, hw.captureRequests(), 2, "previews release their capture before streams start")
	assert.Equal(t, 1, h.pub.count(SignalAudioContextStarted))

	require.NoError(t, h.m.StartPreviews(ctx))
	assert.False(t, h.m.PreviewActive(), "previews are refused during a call")

	require.NoError(t, h.m.StopStreams(ctx))
	assert.False(t, h.m.StreamsActive())
	assert.Empty(t, h.m.Stream().Tracks())
	assert.Equal(t, 1, h.pub.count(SignalStreamsStop))
}

func TestStopStreamsKeepsPreviewInputs(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	h.m.lc.previewActive.Store(true)
	require.NoError(t, h.m.StopStreams(ctx))
	assert.Len(t, h.m.Stream().Tracks(), 1)

	require.NoError(t, h.m.StopPreviews(ctx))
	assert.Empty(t, h.m.Stream().Tracks())
}

func TestPreviewToggles(t *testing.T) {
	h := startedHarness(t, DefaultConfig(), newHardware())

	h.m.StartPreviewTone()
	assert.True(t, h.m.PreviewToneActive())
	h.m.TogglePreviewLoopback()
	assert.True(t, h.m.PreviewLoopbackActive(), "tone and loopback are independent")
	h.m.TogglePreviewLoopback()
	assert.False(t, h.m.PreviewLoopbackActive())
	h.m.StopPreviewTone()
	assert.False(t, h.m.PreviewToneActive())

	h.m.StartPreviewLoopback()
	h.m.StartPreviewLoopback()
	assert.True(t, h.m.PreviewLoopbackActive())
	h.m.StopPreviewLoopback()
	assert.False(t, h.m.PreviewLoopbackActive())

	assert.Equal(t, 1, h.pub.count(SignalPreviewToneStarted))
	assert.Equal(t, 1, h.pub.count(SignalPreviewToneStop))
	assert.Equal(t, 3, h.pub.count(SignalPreviewLoopbackStarted))
	assert.Equal(t, 2, h.pub.count(SignalPreviewLoopbackStop))
}

func TestTonesRingingAndRemote(t *testing.T) {
	h := startedHarness(t, DefaultConfig(), newHardware())

	require.NoError(t, h.m.PlayTone("123#"))
	require.Error(t, h.m.PlayTone("12x"))
	h.m.PlayFrequencies(350, 440)
	assert.Greater(t, h.m.Graph().PendingToneDuration(), time.Duration(0))

	h.m.StartRinging()
	h.m.StartRinging()
	assert.Equal(t, 1, h.pub.count(SignalRingingStarted))
	h.m.StopRinging()
	assert.Equal(t, 1, h.pub.count(SignalRingingStop))

	var src audiograph.Source = h.m.Graph().Monitor()
	h.m.AttachRemoteAudio(src)
	h.m.AttachRemoteAudio(src)
	h.m.DetachRemoteAudio()
	assert.Equal(t, 2, h.pub.count(SignalRemoteAudioAdded))
	assert.Equal(t, 2, h.pub.count(SignalRemoteAudioRemoved))
}

func TestPersistedPreferencesLoadAhead(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Classes[AudioInput] = ClassConfig{Enabled: true, PreferredDeviceIDs: []string{"mic1"}}
	prefs := &memoryPrefs{stored: map[DeviceClass][]string{AudioInput: {"mic3"}}}
	h := newHarness(t, cfg, newHardware(mic("mic1", ""), mic("mic2", ""), mic("mic3", "")), prefs)
	require.NoError(t, h.m.Start(context.Background()))

	assert.Equal(t, "mic3", activeID(t, h.m.reg, AudioInput))
	mic1, _ := h.m.reg.Find(AudioInput, "mic1")
	mic3, _ := h.m.reg.Find(AudioInput, "mic3")
	assert.Equal(t, 2, mic3.Preference)
	assert.Equal(t, 1, mic1.Preference)
}

func TestNoneSelectionSurvivesRestart(t *testing.T) {
	prefs := &memoryPrefs{}
	hw := newHardware(mic("mic1", "Mic"), camera("cam1", "Cam"))
	ctx := context.Background()

	first := newHarness(t, DefaultConfig(), hw, prefs)
	require.NoError(t, first.m.Start(ctx))
	require.Equal(t, "cam1", activeID(t, first.m.reg, VideoInput))
	require.NoError(t, first.m.ChangeDevice(ctx, VideoInput, NoneDeviceID))
	stored, err := prefs.Load()
	require.NoError(t, err)
	require.Equal(t, []string{NoneDeviceID}, stored[VideoInput])
	require.NoError(t, first.m.Close(ctx))

	second := newHarness(t, DefaultConfig(), hw, prefs)
	require.NoError(t, second.m.Start(ctx))
	assert.Equal(t, NoneDeviceID, activeID(t, second.m.reg, VideoInput))

	_, err = second.m.StartStreams(ctx)
	require.NoError(t, err)
	_, ok := second.m.Stream().Track(KindVideo)
	assert.False(t, ok, "no camera is captured")

	require.NoError(t, second.m.RefreshAvailableDevices(ctx))
	assert.Equal(t, NoneDeviceID, activeID(t, second.m.reg, VideoInput))
	requireInvariants(t, second.m.reg)
}

func TestRenderData(t *testing.T) {
	hw := newHardware(mic("mic1", ""), mic("mic2", "USB"), camera("cam1", "Cam"))
	h := startedHarness(t, DefaultConfig(), hw)
	require.NoError(t, h.m.ChangeDevice(context.Background(), AudioInput, "mic2"))

	rd := h.m.RenderData()
	assert.True(t, rd.Loaded)
	assert.Equal(t, VolumeRender{Value: 1000, Min: 0, Max: 1000}, rd.Volumes[audiograph.ChannelMaster])
	assert.Equal(t, 0, rd.Volumes[audiograph.ChannelTalkback].Value)
	assert.Equal(t, 250, rd.Volumes[audiograph.ChannelTone].Value)

	require.Len(t, rd.Classes, 3)
	inputs := rd.Classes[1]
	assert.Equal(t, AudioInput, inputs.Class)
	require.Len(t, inputs.Devices, 2)
	assert.Equal(t, "mic1", inputs.Devices[0].ID, "listed in discovery order")
	assert.Equal(t, "Microphone 1", inputs.Devices[0].Name)
	assert.True(t, inputs.Devices[1].Selected)

	video := rd.Classes[2]
	require.Len(t, video.Devices, 2)
	assert.Equal(t, NoneDeviceID, video.Devices[0].ID)
	assert.True(t, video.Devices[1].Selected)
	assert.Empty(t, rd.Tracks)
}

func TestTrackParametersSnapshot(t *testing.T) {
	h := startedHarness(t, DefaultConfig(), newHardware(mic("mic1", "Mic")))
	assert.Nil(t, h.m.TrackParameters(KindAudio))

	_, err := h.m.StartStreams(context.Background())
	require.NoError(t, err)
	p := h.m.TrackParameters(KindAudio)
	require.NotNil(t, p)
	assert.Equal(t, AudioInput, p.DeviceClass)
	assert.True(t, p.Active)
	assert.Equal(t, h.m.Stream().ID(), p.StreamID)
	assert.Equal(t, "mic1", p.Settings.DeviceID)
	assert.Equal(t, "Mic", p.Label)
}

func TestClose(t *testing.T) {
	hw := newHardware(mic("mic1", "Mic"))
	h := startedHarness(t, DefaultConfig(), hw)
	ctx := context.Background()

	_, err := h.m.StartStreams(ctx)
	require.NoError(t, err)
	track := liveTrack(t, h.m.Stream(), KindAudio)

	require.NoError(t, h.m.Close(ctx))
	require.NoError(t, h.m.Close(ctx))
	assert.True(t, track.isStopped())
	assert.False(t, h.m.Graph().Running())
	assert.ErrorIs(t, h.m.ChangeDevice(ctx, AudioInput, "mic1"), ErrClosed)
	assert.ErrorIs(t, h.m.RefreshAvailableDevices(ctx), ErrClosed)
}
