// Package v1 implements the JSON control API over the media devices engine.
package v1

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ringneck/libwebphone/internal/api/middleware"
	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/logger"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// Engine is the part of the media devices Manager the API drives.
type Engine interface {
	RenderData() mediadevices.RenderData
	RefreshAvailableDevices(ctx context.Context) error
	ChangeDevice(ctx context.Context, class mediadevices.DeviceClass, id string) error

	Mute(class mediadevices.DeviceClass)
	Unmute(class mediadevices.DeviceClass)
	ToggleMute(class mediadevices.DeviceClass)

	ControlVolume(ch audiograph.Channel) int
	SetControlVolume(ch audiograph.Channel, c int) error

	StartPreviews(ctx context.Context) error
	StopPreviews(ctx context.Context) error
	StartStreams(ctx context.Context) (*mediadevices.Stream, error)
	StopStreams(ctx context.Context) error
	PlayTone(digits string) error
}

// Controller registers and serves the /api/v1 routes.
type Controller struct {
	engine Engine
	log    logger.Logger
}

// New registers the routes on e.
func New(e *echo.Echo, engine Engine, log logger.Logger) *Controller {
	if log == nil {
		log = logger.Global().Module("api")
	}
	c := &Controller{engine: engine, log: log}
	c.initRoutes(e.Group("/api/v1"))
	return c
}

func (c *Controller) initRoutes(g *echo.Group) {
	g.GET("/devices", c.GetDevices)
	g.POST("/devices/refresh", c.RefreshDevices)
	g.PUT("/devices/:class", c.ChangeDevice)

	g.POST("/mute/:class", c.Mute)
	g.POST("/unmute/:class", c.Unmute)
	g.POST("/mute/:class/toggle", c.ToggleMute)

	g.GET("/volume/:channel", c.GetVolume)
	g.PUT("/volume/:channel", c.SetVolume)

	g.POST("/preview/start", c.StartPreview)
	g.POST("/preview/stop", c.StopPreview)
	g.POST("/streams/start", c.StartStreams)
	g.POST("/streams/stop", c.StopStreams)
	g.POST("/tone/:digit", c.PlayTone)
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// HandleError maps engine errors to HTTP statuses and logs them with a
// correlation id, which is the request id when the request carries one.
func (c *Controller) HandleError(ctx echo.Context, err error, message string) error {
	code := statusFor(err)
	correlationID := ctx.Response().Header().Get(echo.HeaderXRequestID)
	if correlationID == "" {
		correlationID = middleware.ShortID()
	}
	resp := ErrorResponse{
		Error:         err.Error(),
		Message:       message,
		Code:          code,
		CorrelationID: correlationID,
	}

	log := c.log.WithContext(ctx.Request().Context()).With(
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("path", ctx.Path()),
		logger.Int("status", code),
	)
	if code >= http.StatusInternalServerError {
		log.Error(message, logger.Error(err))
	} else {
		log.Debug(message, logger.Error(err))
	}
	return ctx.JSON(code, resp)
}

func statusFor(err error) int {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code
	}
	switch {
	case errors.Is(err, mediadevices.ErrDeviceNotFound),
		errors.Is(err, mediadevices.ErrDeviceNotConnected),
		errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, mediadevices.ErrUnsupportedClass),
		errors.IsCategory(err, errors.CategoryValidation):
		return http.StatusBadRequest
	case errors.Is(err, mediadevices.ErrNotLoaded),
		errors.IsCategory(err, errors.CategoryState):
		return http.StatusConflict
	case errors.Is(err, mediadevices.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
