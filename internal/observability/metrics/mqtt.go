package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MQTTMetrics tracks the signal bridge connection and its publishes.
type MQTTMetrics struct {
	connected      prometheus.Gauge
	published      *prometheus.CounterVec
	errors         prometheus.Counter
	reconnects     prometheus.Counter
	lastConnect    prometheus.Gauge
	payloadSize    prometheus.Histogram
	publishLatency prometheus.Histogram
}

// NewMQTTMetrics creates and registers the bridge collectors.
func NewMQTTMetrics(registry prometheus.Registerer) (*MQTTMetrics, error) {
	m := &MQTTMetrics{
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_bridge_connected",
			Help: "1 while the signal bridge is connected to the broker",
		}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mqtt_bridge_published_total",
			Help: "Signals published to the broker by topic suffix",
		}, []string{"signal"}),
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_bridge_errors_total",
			Help: "Publish and connection errors",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mqtt_bridge_reconnects_total",
			Help: "Reconnection attempts",
		}),
		lastConnect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mqtt_bridge_last_connect_time_seconds",
			Help: "Unix time of the last successful connection",
		}),
		payloadSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_bridge_payload_bytes",
			Help:    "Size of published payloads",
			Buckets: prometheus.ExponentialBuckets(64, BucketFactor2, BucketCount10),
		}),
		publishLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mqtt_bridge_publish_latency_seconds",
			Help:    "Time until the broker acknowledged a publish",
			Buckets: prometheus.ExponentialBuckets(BucketStart1ms, BucketFactor2, BucketCount10),
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register MQTT metrics: %w", err)
	}
	return m, nil
}

// UpdateConnectionStatus records a connection state change.
func (m *MQTTMetrics) UpdateConnectionStatus(connected bool) {
	if connected {
		m.connected.Set(1)
		m.lastConnect.SetToCurrentTime()
		return
	}
	m.connected.Set(0)
}

// RecordPublish records a completed publish.
func (m *MQTTMetrics) RecordPublish(signal string, size int, latency time.Duration) {
	m.published.WithLabelValues(signal).Inc()
	m.payloadSize.Observe(float64(size))
	m.publishLatency.Observe(latency.Seconds())
}

func (m *MQTTMetrics) IncrementErrors() { m.errors.Inc() }

func (m *MQTTMetrics) IncrementReconnectAttempts() { m.reconnects.Inc() }

// Describe implements the prometheus.Collector interface.
func (m *MQTTMetrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- m.connected.Desc()
	m.published.Describe(ch)
	ch <- m.errors.Desc()
	ch <- m.reconnects.Desc()
	ch <- m.lastConnect.Desc()
	ch <- m.payloadSize.Desc()
	ch <- m.publishLatency.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *MQTTMetrics) Collect(ch chan<- prometheus.Metric) {
	ch <- m.connected
	m.published.Collect(ch)
	ch <- m.errors
	ch <- m.reconnects
	ch <- m.lastConnect
	ch <- m.payloadSize
	ch <- m.publishLatency
}
