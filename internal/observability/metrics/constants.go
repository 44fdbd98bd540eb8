// Package metrics provides constants used across metric definitions.
package metrics

import "time"

// Namespace prefixes every engine metric.
const Namespace = "mediadevices"

// Capture request result label values.
const (
	ResultSuccess  = "success"
	ResultFallback = "fallback"
	ResultError    = "error"
)

// Histogram bucket configuration.
const (
	// BucketStart100us is the starting bucket for guard waits (0.1ms to ~400ms range).
	BucketStart100us = 0.0001
	// BucketStart1ms is the starting bucket for publish latencies (1ms to ~1s range).
	BucketStart1ms = 0.001
	// BucketFactor2 doubles each bucket.
	BucketFactor2 = 2
	// BucketCount12 is the number of buckets for guard waits.
	BucketCount12 = 12
	// BucketCount10 is the number of buckets for publish latencies.
	BucketCount10 = 10
)

// ShutdownTimeout bounds how long HTTP servers exposing metrics get to drain.
const ShutdownTimeout = 5 * time.Second
