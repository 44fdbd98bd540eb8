package errors

import (
	"sync/atomic"
)

// Reporter receives every error built while it is registered.
// Implementations must not block; the telemetry package forwards to Sentry.
type Reporter interface {
	ReportError(ee *EnhancedError)
}

var (
	globalReporter     atomic.Pointer[Reporter]
	hasActiveReporting atomic.Bool
)

// SetReporter registers the global reporter. Passing nil disables reporting.
func SetReporter(r Reporter) {
	if r == nil {
		globalReporter.Store(nil)
		hasActiveReporting.Store(false)
		return
	}
	globalReporter.Store(&r)
	hasActiveReporting.Store(true)
}

func report(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}
	ptr := globalReporter.Load()
	if ptr == nil || *ptr == nil {
		return
	}
	(*ptr).ReportError(ee)
}
