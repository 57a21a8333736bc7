package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// ErrNotFound is returned by repositories when no row matches.
var ErrNotFound = errors.New("not found")

// TripPlanRepository persists trip plans with their legs.
type TripPlanRepository interface {
	Create(ctx context.Context, plan *domain.TripPlan) error
	GetByID(ctx context.Context, id string) (*domain.TripPlan, error)
}

// BookingRepository persists bookings and per-leg ride state.
type BookingRepository interface {
	Create(ctx context.Context, booking *domain.Booking) error
	GetByID(ctx context.Context, id string) (*domain.Booking, error)
	// ListByUser returns one page of a user's bookings, newest first, and the total count.
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error)
	// UpdateLeg locks the booking, passes its stored state to update and
	// writes back the leg at the position update returns together with the
	// booking status. An error from update aborts without writing.
	UpdateLeg(ctx context.Context, bookingID string, update func(b *domain.Booking) (int, error)) (*domain.Booking, error)
}

// RideEventRepository is the append-only log of ride events.
type RideEventRepository interface {
	Insert(ctx context.Context, event *domain.RideEvent) error
	ListByBooking(ctx context.Context, bookingID string) ([]domain.RideEvent, error)
}
