package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/i474232898/precip-timelapse/internal/store"
	"github.com/i474232898/precip-timelapse/internal/timelapse"
)

var validate = validator.New()

// maxRangeSpan caps how many hourly frames one request may resolve.
const maxRangeSpan = 366 * 24 * time.Hour

// Deps are the collaborators the HTTP layer drives.
type Deps struct {
	Animator *timelapse.Animator

	// Surface publishes map state to browser clients. It is nil when the
	// engine drives a remote renderer instead.
	Surface *store.MemorySurface

	// Attach connects the configured map surface to the animator.
	Attach func(ctx context.Context) error

	// Location interprets date inputs that carry no offset.
	Location *time.Location

	Logger zerolog.Logger
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, deps Deps) {
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	v1 := app.Group("/api/v1")

	v1.Get("/frames", func(c *fiber.Ctx) error {
		req := rangeRequest{Start: c.Query("start"), End: c.Query("end")}
		tr, err := req.toRange(deps.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		frames := deps.Animator.Resolve(tr)
		if frames == nil {
			frames = []timelapse.Frame{}
		}
		return c.JSON(fiber.Map{
			"range":  tr,
			"count":  len(frames),
			"frames": frames,
		})
	})

	v1.Post("/animation/select", func(c *fiber.Ctx) error {
		tr, err := bindRange(c, deps.Location)
		if err != nil {
			return err
		}
		snap, err := deps.Animator.Play(c.UserContext(), tr)
		return respondSession(c, deps.Logger, snap, err)
	})

	v1.Post("/animation/download", func(c *fiber.Ctx) error {
		tr, err := bindRange(c, deps.Location)
		if err != nil {
			return err
		}
		snap, err := deps.Animator.Download(c.UserContext(), tr)
		return respondSession(c, deps.Logger, snap, err)
	})

	v1.Post("/animation/reset", func(c *fiber.Ctx) error {
		err := deps.Animator.Reset(c.UserContext())
		switch {
		case errors.Is(err, timelapse.ErrDeferred):
			return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"deferred": true})
		case err != nil:
			deps.Logger.Error().Err(err).Msg("reset failed")
			return fiber.NewError(fiber.StatusInternalServerError, "failed to reset animation")
		}
		return c.JSON(fiber.Map{"deferred": false})
	})

	v1.Get("/animation", func(c *fiber.Ctx) error {
		snap, ok := deps.Animator.Current()
		if !ok {
			return fiber.NewError(fiber.StatusNotFound, "no animation session")
		}
		return c.JSON(snap)
	})

	v1.Post("/map/ready", func(c *fiber.Ctx) error {
		if err := deps.Attach(c.UserContext()); err != nil {
			deps.Logger.Error().Err(err).Msg("deferred actions failed after attach")
			return fiber.NewError(fiber.StatusInternalServerError, "map surface attached but deferred actions failed")
		}
		return c.JSON(fiber.Map{"ready": true})
	})

	v1.Get("/map", func(c *fiber.Ctx) error {
		if deps.Surface == nil {
			return fiber.NewError(fiber.StatusNotFound, "map state is not published by this surface")
		}
		return c.JSON(deps.Surface.State())
	})

	v1.Get("/map/layers/:id", func(c *fiber.Ctx) error {
		if deps.Surface == nil {
			return fiber.NewError(fiber.StatusNotFound, "map state is not published by this surface")
		}
		layer, err := deps.Surface.GetLayer(c.Params("id"))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read layer")
		}
		return c.JSON(layer)
	})
}

func respondSession(c *fiber.Ctx, log zerolog.Logger, snap timelapse.SessionSnapshot, err error) error {
	switch {
	case errors.Is(err, timelapse.ErrDeferred):
		return c.Status(fiber.StatusAccepted).JSON(snap)
	case err != nil:
		log.Error().Err(err).Msg("start animation failed")
		return fiber.NewError(fiber.StatusInternalServerError, "failed to start animation")
	}
	return c.JSON(snap)
}

// rangeRequest holds the raw bounds of a date range.
type rangeRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

func bindRange(c *fiber.Ctx, loc *time.Location) (timelapse.TimeRange, error) {
	var req rangeRequest
	if err := c.BodyParser(&req); err != nil {
		return timelapse.TimeRange{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	tr, err := req.toRange(loc)
	if err != nil {
		return timelapse.TimeRange{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return tr, nil
}

func (r rangeRequest) toRange(loc *time.Location) (timelapse.TimeRange, error) {
	if err := validate.Struct(r); err != nil {
		return timelapse.TimeRange{}, err
	}
	start, err := timelapse.ParseTime(r.Start, loc)
	if err != nil {
		return timelapse.TimeRange{}, err
	}
	end, err := timelapse.ParseTime(r.End, loc)
	if err != nil {
		return timelapse.TimeRange{}, err
	}
	if end.Sub(timelapse.HourTruncate(start)) > maxRangeSpan {
		return timelapse.TimeRange{}, errors.New("range too long; at most 366 days per animation")
	}
	return timelapse.TimeRange{Start: start, End: end}, nil
}
