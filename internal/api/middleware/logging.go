// Package middleware provides HTTP middleware for the control API.
package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/ringneck/libwebphone/internal/logger"
)

// NewRequestLogger logs every request at debug level and failed ones at warn.
func NewRequestLogger(log logger.Logger) echo.MiddlewareFunc {
	return NewRequestLoggerWithSkipper(log, nil)
}

// NewRequestLoggerWithSkipper creates a request logging middleware with a custom skipper.
func NewRequestLoggerWithSkipper(log logger.Logger, skipper middleware.Skipper) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:     skipper,
		LogStatus:   true,
		LogURI:      true,
		LogMethod:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if log == nil {
				return nil
			}
			log := log.WithContext(c.Request().Context())
			fields := []logger.Field{
				logger.String("method", v.Method),
				logger.String("uri", v.URI),
				logger.Int("status", v.Status),
				logger.String("ip", v.RemoteIP),
				logger.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, logger.Error(v.Error))
			}
			if v.Status >= 400 || v.Error != nil {
				log.Warn("request", fields...)
				return nil
			}
			log.Debug("request", fields...)
			return nil
		},
	})
}

// NewRequestID sets X-Request-ID, keeping a client supplied id, and puts the
// id on the request context so every log line of the request carries it as trace_id.
func NewRequestID() echo.MiddlewareFunc {
	return middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: ShortID,
		RequestIDHandler: func(c echo.Context, id string) {
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithTraceID(req.Context(), id)))
		},
	})
}

// ShortID returns an 8 character random id.
func ShortID() string {
	return uuid.NewString()[:8]
}

// SkipPaths returns a skipper for noisy endpoints such as /metrics.
func SkipPaths(paths ...string) middleware.Skipper {
	return func(c echo.Context) bool {
		p := c.Request().URL.Path
		for _, skip := range paths {
			if p == skip {
				return true
			}
		}
		return false
	}
}
