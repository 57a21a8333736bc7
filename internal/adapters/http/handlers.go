package http

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
	"github.com/samirrijal/multiride/internal/core/segmentation"
	"github.com/samirrijal/multiride/internal/core/usecases"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
)

// SplitRequest is the body of POST /v1/routes/split.
type SplitRequest struct {
	Polyline string   `json:"polyline"`
	Segments int      `json:"segments"`
	Modes    []string `json:"modes,omitempty"`
}

// SplitRouteHandler splits an encoded polyline into equal-distance boundaries.
func SplitRouteHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req SplitRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		res, err := deps.Planner.SplitRoute(req.Polyline, req.Segments, req.Modes)
		metrics.RoutesSplit.WithLabelValues(splitResult(err)).Inc()
		if err != nil {
			switch {
			case errors.Is(err, segmentation.ErrMissingGeometry),
				errors.Is(err, segmentation.ErrInsufficientGeometry),
				errors.Is(err, segmentation.ErrInvalidSegmentCount):
				return errUnprocessable(c, err.Error())
			}
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(res)
	}
}

func splitResult(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, segmentation.ErrMissingGeometry):
		return "missing_geometry"
	case errors.Is(err, segmentation.ErrInsufficientGeometry):
		return "insufficient_geometry"
	case errors.Is(err, segmentation.ErrInvalidSegmentCount):
		return "invalid_segment_count"
	default:
		return "error"
	}
}

// FaresHandler quotes one ride type, or every ride type when none is given.
func FaresHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("distance_m")
		if raw == "" {
			return errBadRequest(c, "distance_m is required")
		}
		meters, err := strconv.ParseFloat(raw, 64)
		if err != nil || meters < 0 {
			return errBadRequest(c, "distance_m must be a non-negative number")
		}

		rideType := c.Query("ride_type")
		if rideType == "" {
			c.Set("Cache-Control", "public, max-age=3600")
			return c.JSON(deps.Fares.QuoteAll(meters))
		}

		quote, err := deps.Fares.Quote(domain.RideType(rideType), c.Query("option"), meters)
		if err != nil {
			if errors.Is(err, usecases.ErrUnknownRideType) {
				return errBadRequest(c, "unknown ride_type: "+rideType)
			}
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "public, max-age=3600")
		return c.JSON(quote)
	}
}

// CreatePlanHandler fetches directions and splits them into priced legs.
func CreatePlanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req usecases.PlanRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}

		plan, err := deps.Planner.Plan(c.UserContext(), req)
		if err != nil {
			switch {
			case errors.Is(err, usecases.ErrInvalidPlanRequest):
				return errBadRequest(c, err.Error())
			case errors.Is(err, ports.ErrNoRoute):
				return errUnprocessable(c, "no route between origin and destination")
			}
			LoggerFromCtx(c.UserContext()).Error("plan trip", "error", err)
			return errInternal(c, "could not plan trip")
		}

		metrics.PlansCreated.WithLabelValues(strconv.FormatBool(plan.Fallback)).Inc()
		c.Set("Location", "/v1/plans/"+plan.ID)
		return c.Status(fiber.StatusCreated).JSON(plan)
	}
}

// GetPlanHandler returns a stored trip plan.
func GetPlanHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		plan, err := deps.Planner.GetPlan(c.UserContext(), c.Params("id"))
		if err != nil {
			if errors.Is(err, usecases.ErrPlanNotFound) {
				return errNotFound(c, "plan not found")
			}
			return errInternal(c, err.Error())
		}
		c.Set("Cache-Control", "private, max-age=300")
		return c.JSON(plan)
	}
}

// BookRequest is the body of POST /v1/bookings.
type BookRequest struct {
	PlanID string `json:"plan_id"`
	UserID string `json:"user_id"`
}

// CreateBookingHandler books every leg of a plan.
func CreateBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req BookRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.PlanID == "" || req.UserID == "" {
			return errBadRequest(c, "plan_id and user_id are required")
		}

		booking, err := deps.Bookings.Book(c.UserContext(), req.PlanID, req.UserID)
		if err != nil {
			switch {
			case errors.Is(err, usecases.ErrPlanNotFound):
				return errNotFound(c, "plan not found")
			case errors.Is(err, usecases.ErrNotOwner):
				return errForbidden(c, "plan belongs to another user")
			}
			LoggerFromCtx(c.UserContext()).Error("book plan", "plan_id", req.PlanID, "error", err)
			return errUnavailable(c, "could not dispatch booking")
		}

		c.Set("Location", "/v1/bookings/"+booking.ID)
		return c.Status(fiber.StatusCreated).JSON(booking)
	}
}

// BookingResponse is a booking with its optional event log.
type BookingResponse struct {
	*domain.Booking
	Events []domain.RideEvent `json:"events,omitempty"`
}

// GetBookingHandler returns a booking; ?include=events adds its ride events.
func GetBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		booking, err := deps.Bookings.GetBooking(c.UserContext(), c.Params("id"))
		if err != nil {
			if errors.Is(err, usecases.ErrBookingNotFound) {
				return errNotFound(c, "booking not found")
			}
			return errInternal(c, err.Error())
		}

		resp := BookingResponse{Booking: booking}
		if c.Query("include") == "events" {
			events, err := deps.Bookings.Events(c.UserContext(), booking.ID)
			if err != nil {
				return errInternal(c, err.Error())
			}
			resp.Events = events
		}

		c.Set("Cache-Control", "no-cache")
		return c.JSON(resp)
	}
}

// CancelRequest is the body of POST /v1/bookings/:id/cancel.
type CancelRequest struct {
	UserID string `json:"user_id"`
	Reason string `json:"reason"`
}

// CancelBookingHandler cancels every unfinished leg of a booking.
func CancelBookingHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req CancelRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		if req.UserID == "" {
			return errBadRequest(c, "user_id is required")
		}
		if req.Reason == "" {
			req.Reason = "user cancelled"
		}

		ctx := c.UserContext()
		current, err := deps.Bookings.GetBooking(ctx, c.Params("id"))
		if err != nil {
			if errors.Is(err, usecases.ErrBookingNotFound) {
				return errNotFound(c, "booking not found")
			}
			return errInternal(c, err.Error())
		}
		if current.Status == domain.BookingCompleted || current.Status == domain.BookingCancelled {
			return errConflict(c, "booking is already "+string(current.Status))
		}

		booking, err := deps.Bookings.Cancel(ctx, current.ID, req.UserID, req.Reason)
		if err != nil {
			if errors.Is(err, usecases.ErrNotOwner) {
				return errForbidden(c, "booking belongs to another user")
			}
			return errInternal(c, err.Error())
		}
		return c.JSON(booking)
	}
}

// UserBookingsHandler lists a user's bookings, newest first.
func UserBookingsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		bookings, total, err := deps.Bookings.ListByUser(c.UserContext(), c.Params("id"), offset, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if bookings == nil {
			bookings = []domain.Booking{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		SetLinkHeaders(c, pg)
		c.Set("Cache-Control", "no-cache")
		return c.JSON(PaginatedResponse{Data: bookings, Pagination: pg})
	}
}

// LegLocationHandler returns the last reported rider location of one leg.
func LegLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		segment, err := c.ParamsInt("segment")
		if err != nil || segment < 0 {
			return errBadRequest(c, "segment must be a non-negative integer")
		}

		evt, err := deps.Realtime.LatestLocation(c.UserContext(), c.Params("id"), segment)
		if err != nil {
			if errors.Is(err, usecases.ErrLocationUnavailable) {
				return errNotFound(c, "no location reported for this leg")
			}
			return errInternal(c, err.Error())
		}

		c.Set("Cache-Control", "no-store")
		return c.JSON(evt)
	}
}
