package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ringneck/libwebphone/internal/errors"
	"github.com/ringneck/libwebphone/internal/mediadevices"
)

// ChangeDeviceRequest selects a device by id.
type ChangeDeviceRequest struct {
	ID string `json:"id"`
}

// GetDevices handles GET /api/v1/devices.
func (c *Controller) GetDevices(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}

// RefreshDevices handles POST /api/v1/devices/refresh.
func (c *Controller) RefreshDevices(ctx echo.Context) error {
	if err := c.engine.RefreshAvailableDevices(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "failed to refresh devices")
	}
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}

// ChangeDevice handles PUT /api/v1/devices/:class.
func (c *Controller) ChangeDevice(ctx echo.Context) error {
	class, err := mediadevices.ParseDeviceClass(ctx.Param("class"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid device class")
	}

	var req ChangeDeviceRequest
	if err := ctx.Bind(&req); err != nil || req.ID == "" {
		if err == nil {
			err = errors.Newf("device id is required").
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		return c.HandleError(ctx, err, "invalid request body")
	}

	if err := c.engine.ChangeDevice(ctx.Request().Context(), class, req.ID); err != nil {
		return c.HandleError(ctx, err, "failed to change device")
	}
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}

// Mute handles POST /api/v1/mute/:class.
func (c *Controller) Mute(ctx echo.Context) error {
	return c.withClass(ctx, c.engine.Mute)
}

// Unmute handles POST /api/v1/unmute/:class.
func (c *Controller) Unmute(ctx echo.Context) error {
	return c.withClass(ctx, c.engine.Unmute)
}

// ToggleMute handles POST /api/v1/mute/:class/toggle.
func (c *Controller) ToggleMute(ctx echo.Context) error {
	return c.withClass(ctx, c.engine.ToggleMute)
}

func (c *Controller) withClass(ctx echo.Context, fn func(mediadevices.DeviceClass)) error {
	class, err := mediadevices.ParseDeviceClass(ctx.Param("class"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid device class")
	}
	fn(class)
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}
