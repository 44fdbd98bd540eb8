// Package api provides the HTTP control server. The JSON endpoints live in the
// v1 subpackage; this package owns the echo instance, middleware and lifecycle.
package api

import (
	"fmt"
	"net"
	"time"

	"github.com/ringneck/libwebphone/internal/conf"
	"github.com/ringneck/libwebphone/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultListen          = "127.0.0.1:8089"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 5 * time.Second
	DefaultBodyLimit       = "64K"
)

// Config holds the HTTP server configuration.
type Config struct {
	Listen         string
	AllowedOrigins []string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	BodyLimit string
	// Metrics exposes /metrics when a registry is attached.
	Metrics bool
	Debug   bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:          DefaultListen,
		AllowedOrigins:  []string{"http://localhost", "http://127.0.0.1"},
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    DefaultWriteTimeout,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		BodyLimit:       DefaultBodyLimit,
		Metrics:         true,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()
	if settings.API.Listen != "" {
		cfg.Listen = settings.API.Listen
	}
	cfg.Metrics = settings.Metrics.Enabled
	cfg.Debug = settings.Debug
	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: listen=%s, metrics=%v, debug=%v", c.Listen, c.Metrics, c.Debug)
}
