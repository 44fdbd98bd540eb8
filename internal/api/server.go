package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/ringneck/libwebphone/internal/api/middleware"
	v1 "github.com/ringneck/libwebphone/internal/api/v1"
	"github.com/ringneck/libwebphone/internal/logger"
)

// Server is the HTTP control server.
type Server struct {
	echo    *echo.Echo
	config  *Config
	log     logger.Logger
	metrics http.Handler
	engine  v1.Engine

	controller *v1.Controller
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithMetrics serves h on /metrics.
func WithMetrics(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger overrides the module logger.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// New creates the server and registers every route.
func New(cfg *Config, engine v1.Engine, opts ...ServerOption) (*Server, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}
	if engine == nil {
		return nil, fmt.Errorf("api server requires an engine")
	}

	s := &Server{config: cfg, engine: engine, log: GetLogger()}
	for _, opt := range opts {
		opt(s)
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Debug = cfg.Debug
	s.echo.Server.ReadTimeout = cfg.ReadTimeout
	s.echo.Server.WriteTimeout = cfg.WriteTimeout
	s.echo.Server.IdleTimeout = cfg.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Debug("control API initialized", logger.String("config", cfg.String()))
	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	s.echo.Use(echomw.Recover())
	s.echo.Use(mw.NewRequestID())
	s.echo.Use(mw.NewRequestLoggerWithSkipper(s.log, mw.SkipPaths("/metrics", "/health")))
	s.echo.Use(mw.NewCORS(mw.SecurityConfig{AllowedOrigins: s.config.AllowedOrigins}))
	s.echo.Use(mw.NewBodyLimit(s.config.BodyLimit))
	s.echo.Use(mw.NewSecureHeaders())
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/health", s.healthCheck)
	if s.config.Metrics && s.metrics != nil {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics))
	}
	s.controller = v1.New(s.echo, s.engine, s.log)
}

func (s *Server) healthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"loaded": s.engine.RenderData().Loaded,
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Run serves on the configured address until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.echo.Listener = ln
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("control API listening", logger.String("address", ln.Addr().String()))
		errCh <- s.echo.Start("")
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		s.log.Error("control API shutdown failed", logger.Error(err))
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("control API stopped")
	return nil
}
