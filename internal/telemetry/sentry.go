// Package telemetry forwards engine errors to Sentry. Reporting is opt-in and
// events are scrubbed of host and user identifying data before they leave the process.
package telemetry

import (
	"fmt"
	"runtime"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/privacy"
)

// FlushTimeout bounds how long Close waits for queued events.
const FlushTimeout = 2 * time.Second

// Options configure the Sentry client.
type Options struct {
	DSN         string
	Release     string
	Environment string
	// Transport replaces the HTTP transport, used by tests.
	Transport sentry.Transport
}

// Reporter sends built errors and capture failures to Sentry through its own hub.
type Reporter struct {
	hub *sentry.Hub
	log logger.Logger
}

// New creates a reporter with a dedicated client.
func New(opts Options, log logger.Logger) (*Reporter, error) {
	if log == nil {
		log = logger.Global().Module("telemetry")
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              opts.DSN,
		Release:          opts.Release,
		Environment:      opts.Environment,
		SampleRate:       1.0,
		AttachStacktrace: false,
		ServerName:       "",
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return nil, errors.New(fmt.Errorf("sentry initialization failed: %w", err)).
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	scope := sentry.NewScope()
	scope.SetTag("os", runtime.GOOS)
	scope.SetTag("arch", runtime.GOARCH)

	log.Info("sentry telemetry enabled", logger.String("environment", opts.Environment))
	return &Reporter{hub: sentry.NewHub(client, scope), log: log}, nil
}

// Install registers r as the global error reporter.
func (r *Reporter) Install() {
	errors.SetReporter(r)
}

// ReportError implements errors.Reporter. Caller mistakes are not reported.
func (r *Reporter) ReportError(ee *errors.EnhancedError) {
	if ee == nil || ee.IsReported() || !reportable(ee.GetCategory()) {
		return
	}
	ee.MarkReported()

	r.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", ee.GetComponent())
		scope.SetTag("category", ee.GetCategory())
		scope.SetFingerprint([]string{ee.GetComponent(), ee.GetCategory(), ee.Error()})
		scope.SetExtra("component", ee.GetComponent())
		scope.SetExtra("error_type", fmt.Sprintf("%T", ee.Unwrap()))
		r.hub.CaptureException(ee)
	})
}

// Close flushes queued events and detaches the global hook.
func (r *Reporter) Close() {
	errors.SetReporter(nil)
	if !r.hub.Flush(FlushTimeout) {
		r.log.Warn("sentry flush timed out", logger.Duration("timeout", FlushTimeout))
	}
}

func reportable(category string) bool {
	switch errors.ErrorCategory(category) {
	case errors.CategoryValidation, errors.CategoryNotFound, errors.CategoryCancellation:
		return false
	default:
		return true
	}
}

// applyPrivacyFilters strips user, host and runtime identifying data.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}

	for k := range event.Extra {
		if k != "error_type" && k != "component" && k != "kinds" {
			delete(event.Extra, k)
		}
	}

	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}
