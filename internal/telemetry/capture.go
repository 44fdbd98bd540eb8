package telemetry

import (
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ringneck/libwebphone/internal/events"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// CaptureErrorWindow suppresses repeats of the same capture failure.
const CaptureErrorWindow = 10 * time.Minute

// CaptureConsumer returns a bus consumer reporting getUserMedia.error signals.
// Identical failures are reported once per CaptureErrorWindow.
func (r *Reporter) CaptureConsumer() *events.DedupConsumer {
	inner := events.ConsumerFunc{
		ConsumerName: "sentry",
		Fn:           r.processCaptureSignal,
	}
	return events.NewDedupConsumer(inner, CaptureErrorWindow, captureKey)
}

func captureKey(sig events.Signal) string {
	if sig.Name != mediadevices.SignalGetUserMediaError {
		return ""
	}
	return events.DefaultKey(sig)
}

func (r *Reporter) processCaptureSignal(sig events.Signal) error {
	if sig.Name != mediadevices.SignalGetUserMediaError {
		return nil
	}
	ce, ok := sig.Payload.(*mediadevices.CaptureError)
	if !ok {
		return nil
	}

	kinds := make([]string, 0, len(ce.Kinds))
	for _, k := range ce.Kinds {
		kinds = append(kinds, k.String())
	}
	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "mediadevices")
		scope.SetTag("signal", sig.Name)
		scope.SetExtra("kinds", kinds)
		r.hub.CaptureException(ce)
	})
	return nil
}
