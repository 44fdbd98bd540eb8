// Package metrics provides custom Prometheus metrics for the media device engine and its bridges.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ringneck/libwebphone/internal/events"
	"github.com/ringneck/libwebphone/internal/logger"
)

// MediaDevicesMetrics records engine activity. It satisfies mediadevices.Metrics
// and counts bus signals as an events.Consumer.
type MediaDevicesMetrics struct {
	captureRequests  *prometheus.CounterVec
	deviceSwitches   *prometheus.CounterVec
	activeDevices    *prometheus.GaugeVec
	connectedDevices *prometheus.GaugeVec
	signals          *prometheus.CounterVec
	guardWait        prometheus.Histogram
}

// NewMediaDevicesMetrics creates and registers the engine collectors.
func NewMediaDevicesMetrics(registry prometheus.Registerer) (*MediaDevicesMetrics, error) {
	m := &MediaDevicesMetrics{
		captureRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "capture_requests_total",
			Help:      "Capture requests issued to the backend by requested kinds and result",
		}, []string{"kinds", "result"}),
		deviceSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "device_switches_total",
			Help:      "Active device changes by class and reason",
		}, []string{"class", "reason"}),
		activeDevices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "active_devices",
			Help:      "Number of active devices per class",
		}, []string{"class"}),
		connectedDevices: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connected_devices",
			Help:      "Number of connected devices per class",
		}, []string{"class"}),
		signals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "signals_total",
			Help:      "Signals emitted by the engine",
		}, []string{"signal"}),
		guardWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "guard_wait_seconds",
			Help:      "Time spent waiting to enter the device critical section",
			Buckets:   prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount12),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register media devices metrics: %w", err)
	}
	return m, nil
}

func (m *MediaDevicesMetrics) RecordCaptureRequest(kinds, result string) {
	m.captureRequests.WithLabelValues(kinds, result).Inc()
}

func (m *MediaDevicesMetrics) RecordDeviceSwitch(class, reason string) {
	m.deviceSwitches.WithLabelValues(class, reason).Inc()
}

func (m *MediaDevicesMetrics) SetDeviceCounts(class string, connected, active int) {
	m.connectedDevices.WithLabelValues(class).Set(float64(connected))
	m.activeDevices.WithLabelValues(class).Set(float64(active))
}

func (m *MediaDevicesMetrics) ObserveGuardWait(wait time.Duration) {
	m.guardWait.Observe(wait.Seconds())
}

// Name implements events.Consumer.
func (m *MediaDevicesMetrics) Name() string { return "metrics" }

// ProcessSignal counts one signal by name.
func (m *MediaDevicesMetrics) ProcessSignal(sig events.Signal) error {
	m.signals.WithLabelValues(sig.Name).Inc()
	log.Trace("signal counted", logger.String("signal", sig.Name))
	return nil
}

// Describe implements the prometheus.Collector interface.
func (m *MediaDevicesMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.captureRequests.Describe(ch)
	m.deviceSwitches.Describe(ch)
	m.activeDevices.Describe(ch)
	m.connectedDevices.Describe(ch)
	m.signals.Describe(ch)
	m.guardWait.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *MediaDevicesMetrics) Collect(ch chan<- prometheus.Metric) {
	m.captureRequests.Collect(ch)
	m.deviceSwitches.Collect(ch)
	m.activeDevices.Collect(ch)
	m.connectedDevices.Collect(ch)
	m.signals.Collect(ch)
	m.guardWait.Collect(ch)
}
