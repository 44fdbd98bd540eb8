// Package observability wires the Prometheus registry shared by the engine, the
// signal bus and the MQTT bridge. Sentry error telemetry lives in the telemetry package.
package observability

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	MediaDevices *metrics.MediaDevicesMetrics
	MQTT         *metrics.MQTTMetrics
}

// NewMetrics creates a registry with process and Go runtime collectors plus the
// application collectors. Every call returns an independent registry.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	md, err := metrics.NewMediaDevicesMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create media devices metrics: %w", err)
	}
	mqtt, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		MediaDevices: md,
		MQTT:         mqtt,
	}, nil
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      promLogger{},
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// promLogger forwards promhttp errors to the module logger.
type promLogger struct{}

func (promLogger) Println(v ...any) {
	log.Error("metrics handler error", logger.String("detail", fmt.Sprint(v...)))
}
