package v1

import (
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"

	"github.com/ringneck/libwebphone/internal/audiograph"
	"github.com/ringneck/libwebphone/internal/errors"
)

// VolumeResponse reports one channel on the 0-1000 control scale.
type VolumeResponse struct {
	Channel string `json:"channel"`
	Value   int    `json:"value"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
}

// VolumeRequest sets one channel on the 0-1000 control scale.
type VolumeRequest struct {
	Value *int `json:"value"`
}

// StreamResponse identifies the shared stream after streams start.
type StreamResponse struct {
	StreamID string `json:"streamId"`
}

// GetVolume handles GET /api/v1/volume/:channel.
func (c *Controller) GetVolume(ctx echo.Context) error {
	ch, err := audiograph.ParseChannel(ctx.Param("channel"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid volume channel")
	}
	return ctx.JSON(http.StatusOK, c.volume(ch))
}

// SetVolume handles PUT /api/v1/volume/:channel.
func (c *Controller) SetVolume(ctx echo.Context) error {
	ch, err := audiograph.ParseChannel(ctx.Param("channel"))
	if err != nil {
		return c.HandleError(ctx, err, "invalid volume channel")
	}
	var req VolumeRequest
	if err := ctx.Bind(&req); err != nil || req.Value == nil {
		if err == nil {
			err = errors.Newf("volume value is required").
				Component("api").
				Category(errors.CategoryValidation).
				Build()
		}
		return c.HandleError(ctx, err, "invalid request body")
	}
	if err := c.engine.SetControlVolume(ch, *req.Value); err != nil {
		return c.HandleError(ctx, err, "failed to set volume")
	}
	return ctx.JSON(http.StatusOK, c.volume(ch))
}

func (c *Controller) volume(ch audiograph.Channel) VolumeResponse {
	return VolumeResponse{
		Channel: string(ch),
		Value:   c.engine.ControlVolume(ch),
		Min:     audiograph.ControlMin,
		Max:     audiograph.ControlMax,
	}
}

// StartPreview handles POST /api/v1/preview/start.
func (c *Controller) StartPreview(ctx echo.Context) error {
	if err := c.engine.StartPreviews(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "failed to start preview")
	}
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}

// StopPreview handles POST /api/v1/preview/stop.
func (c *Controller) StopPreview(ctx echo.Context) error {
	if err := c.engine.StopPreviews(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "failed to stop preview")
	}
	return ctx.JSON(http.StatusOK, c.engine.RenderData())
}

// StartStreams handles POST /api/v1/streams/start.
func (c *Controller) StartStreams(ctx echo.Context) error {
	stream, err := c.engine.StartStreams(ctx.Request().Context())
	if err != nil {
		return c.HandleError(ctx, err, "failed to start streams")
	}
	resp := StreamResponse{}
	if stream != nil {
		resp.StreamID = stream.ID()
	}
	return ctx.JSON(http.StatusOK, resp)
}

// StopStreams handles POST /api/v1/streams/stop.
func (c *Controller) StopStreams(ctx echo.Context) error {
	if err := c.engine.StopStreams(ctx.Request().Context()); err != nil {
		return c.HandleError(ctx, err, "failed to stop streams")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// PlayTone handles POST /api/v1/tone/:digit. The parameter may hold several digits.
func (c *Controller) PlayTone(ctx echo.Context) error {
	digits, err := url.PathUnescape(ctx.Param("digit"))
	if err != nil {
		return c.HandleError(ctx, errors.New(err).
			Component("api").
			Category(errors.CategoryValidation).
			Build(), "invalid digits")
	}
	if err := c.engine.PlayTone(digits); err != nil {
		return c.HandleError(ctx, err, "failed to play tone")
	}
	return ctx.NoContent(http.StatusAccepted)
}
