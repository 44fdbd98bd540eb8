package observability

import "github.com/ringneck/libwebphone/internal/logger"

// Package-level cached logger instance for efficiency.
var log = logger.Global().Module("metrics")
