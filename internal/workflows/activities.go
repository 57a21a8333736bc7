package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// Bookings is the part of the booking service the activities drive.
type Bookings interface {
	GetBooking(ctx context.Context, id string) (*domain.Booking, error)
	DispatchLeg(ctx context.Context, bookingID string, segmentIndex int) error
	CancelBySystem(ctx context.Context, bookingID, reason string) (*domain.Booking, error)
}

// BookingActivities holds the activity implementations for the booking workflow.
type BookingActivities struct {
	Bookings Bookings
}

// LegsToDispatch returns the segment indexes of legs still waiting for a rider.
func (a *BookingActivities) LegsToDispatch(ctx context.Context, bookingID string) ([]int, error) {
	b, err := a.Bookings.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("get booking %s: %w", bookingID, err)
	}
	var out []int
	for _, l := range b.Legs {
		if l.Status == domain.RideRequested {
			out = append(out, l.SegmentIndex)
		}
	}
	return out, nil
}

// DispatchLeg publishes the ride request of one leg.
func (a *BookingActivities) DispatchLeg(ctx context.Context, bookingID string, segmentIndex int) error {
	if err := a.Bookings.DispatchLeg(ctx, bookingID, segmentIndex); err != nil {
		return fmt.Errorf("dispatch %s/%d: %w", bookingID, segmentIndex, err)
	}
	return nil
}

// CancelBooking cancels every open leg (saga compensation / rollback).
func (a *BookingActivities) CancelBooking(ctx context.Context, bookingID, reason string) error {
	if _, err := a.Bookings.CancelBySystem(ctx, bookingID, reason); err != nil {
		return fmt.Errorf("cancel booking %s: %w", bookingID, err)
	}
	slog.Info("booking cancelled (saga compensation)", "booking_id", bookingID, "reason", reason)
	return nil
}
