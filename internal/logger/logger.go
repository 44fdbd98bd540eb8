// Package logger provides the module-aware structured logging used across the
// media device engine. It is built on log/slog.
//
// Components receive a Logger (usually a module logger obtained from the global
// CentralLogger) and log with typed fields:
//
//	log := logger.Global().Module("mediadevices")
//	log.Info("device switched",
//	    logger.String("class", "audioinput"),
//	    logger.String("device_id", id))
//
// Module loggers nest: Module("backend").Module("malgo") logs with
// module="backend.malgo". Console output is human readable text, file output
// is JSON.
package logger

import (
	"context"
	"time"
	"unique"
)

// LogLevel represents log severity levels
type LogLevel string

const (
	LogLevelTrace LogLevel = "trace"
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Field represents a structured log field.
// Keys are interned with unique.Make so hot keys like "device_id" share one allocation.
type Field struct {
	Key   string
	Value any
}

func internKey(key string) string {
	return unique.Make(key).Value()
}

var errorKey = internKey("error")

// Logger is the logging interface injected into components.
type Logger interface {
	// Module returns a logger scoped to a sub-module
	Module(name string) Logger

	Trace(msg string, fields ...Field)
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// With returns a logger carrying the given fields on every record
	With(fields ...Field) Logger
	// WithContext attaches the trace ID stored in ctx, if any
	WithContext(ctx context.Context) Logger

	Log(level LogLevel, msg string, fields ...Field)

	// Flush ensures all buffered logs are written
	Flush() error
}

// String creates a string field.
func String(key, value string) Field {
	return Field{Key: internKey(key), Value: value}
}

// Int creates an integer field.
func Int(key string, value int) Field {
	return Field{Key: internKey(key), Value: value}
}

// Float64 creates a float field. Values are rounded to three decimals on output.
func Float64(key string, value float64) Field {
	return Field{Key: internKey(key), Value: value}
}

// Bool creates a boolean field.
func Bool(key string, value bool) Field {
	return Field{Key: internKey(key), Value: value}
}

// Error creates an error field. The key is always "error"; a nil error logs a nil value.
//
//	if err := capturer.Capture(ctx, req); err != nil {
//	    log.Warn("capture failed", logger.Error(err), logger.String("kinds", req.String()))
//	}
func Error(err error) Field {
	if err == nil {
		return Field{Key: errorKey, Value: nil}
	}
	return Field{Key: errorKey, Value: err.Error()}
}

// Duration creates a duration field rendered as a human readable string ("1.5s").
func Duration(key string, value time.Duration) Field {
	return Field{Key: internKey(key), Value: value.String()}
}

// Any creates a field with an arbitrary value. Prefer the typed constructors.
func Any(key string, value any) Field {
	return Field{Key: internKey(key), Value: value}
}
