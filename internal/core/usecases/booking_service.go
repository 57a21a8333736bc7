package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
)

var (
	ErrBookingNotFound   = errors.New("booking not found")
	ErrNotOwner          = errors.New("resource belongs to another user")
	ErrInvalidTransition = errors.New("invalid ride status transition")
	ErrInvalidSegment    = errors.New("segment index out of range")
)

// transitions lists, per leg status, the events it accepts and where they lead.
var transitions = map[domain.RideStatus]map[domain.RideEventType]domain.RideStatus{
	domain.RideRequested: {
		domain.EventAccepted:  domain.RideAccepted,
		domain.EventCancelled: domain.RideCancelled,
	},
	domain.RideAccepted: {
		domain.EventStarted:   domain.RideStarted,
		domain.EventCompleted: domain.RideCompleted,
		domain.EventCancelled: domain.RideCancelled,
	},
	domain.RideStarted: {
		domain.EventCompleted: domain.RideCompleted,
		domain.EventCancelled: domain.RideCancelled,
	},
}

// NextStatus applies a lifecycle event to a leg status.
func NextStatus(current domain.RideStatus, event domain.RideEventType) (domain.RideStatus, error) {
	next, ok := transitions[current][event]
	if !ok {
		return current, fmt.Errorf("%w: %s on %s leg", ErrInvalidTransition, event, current)
	}
	return next, nil
}

// DeriveBookingStatus summarises leg statuses into a booking status.
func DeriveBookingStatus(legs []domain.BookingLeg) domain.BookingStatus {
	var completed, cancelled, started, accepted int
	for _, l := range legs {
		switch l.Status {
		case domain.RideCompleted:
			completed++
		case domain.RideCancelled:
			cancelled++
		case domain.RideStarted:
			started++
		case domain.RideAccepted:
			accepted++
		}
	}

	switch {
	case len(legs) > 0 && completed == len(legs):
		return domain.BookingCompleted
	case cancelled > 0 && completed+cancelled == len(legs):
		return domain.BookingCancelled
	case started > 0 || completed > 0:
		return domain.BookingInProgress
	case accepted > 0:
		return domain.BookingAccepted
	default:
		return domain.BookingRequested
	}
}

// BookingService books trip plans and tracks the ride of every leg.
type BookingService struct {
	plans        ports.TripPlanRepository
	bookings     ports.BookingRepository
	events       ports.RideEventRepository
	publisher    ports.EventPublisher
	orchestrator ports.BookingOrchestrator
	now          func() time.Time
}

// NewBookingService creates a new BookingService. When orchestrator is nil
// legs are dispatched inline.
func NewBookingService(
	plans ports.TripPlanRepository,
	bookings ports.BookingRepository,
	events ports.RideEventRepository,
	publisher ports.EventPublisher,
	orchestrator ports.BookingOrchestrator,
) *BookingService {
	return &BookingService{
		plans:        plans,
		bookings:     bookings,
		events:       events,
		publisher:    publisher,
		orchestrator: orchestrator,
		now:          time.Now,
	}
}

// Book creates a booking for a plan and starts dispatching its legs.
func (s *BookingService) Book(ctx context.Context, planID, userID string) (*domain.Booking, error) {
	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, fmt.Errorf("load plan: %w", err)
	}
	if plan.UserID != userID {
		return nil, ErrNotOwner
	}

	now := s.now().UTC()
	booking := &domain.Booking{
		ID:        uuid.NewString(),
		PlanID:    plan.ID,
		UserID:    userID,
		Status:    domain.BookingRequested,
		TotalFare: plan.TotalFare,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for _, leg := range plan.Legs {
		booking.Legs = append(booking.Legs, domain.BookingLeg{
			SegmentIndex: leg.Index,
			Mode:         leg.Mode,
			Option:       leg.Option,
			Fare:         leg.Fare,
			Status:       domain.RideRequested,
			UpdatedAt:    now,
		})
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, fmt.Errorf("save booking: %w", err)
	}

	if s.orchestrator != nil {
		err = s.orchestrator.StartBooking(ctx, booking.ID, userID)
	} else {
		err = s.dispatchAll(ctx, booking, plan)
	}
	if err != nil {
		if _, cerr := s.CancelBySystem(ctx, booking.ID, "dispatch failed"); cerr != nil {
			slog.Error("cancel undispatched booking", "booking_id", booking.ID, "error", cerr)
		}
		return nil, fmt.Errorf("dispatch booking: %w", err)
	}
	return booking, nil
}

func (s *BookingService) dispatchAll(ctx context.Context, booking *domain.Booking, plan *domain.TripPlan) error {
	for i := range booking.Legs {
		req := RideRequestFor(booking, plan, i)
		if err := s.publisher.PublishRideRequest(ctx, req); err != nil {
			return fmt.Errorf("publish leg %d: %w", i, err)
		}
	}
	return nil
}

// DispatchLeg publishes the ride request of one leg.
func (s *BookingService) DispatchLeg(ctx context.Context, bookingID string, segmentIndex int) error {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	plan, err := s.plans.GetByID(ctx, booking.PlanID)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	pos := legPosition(booking, segmentIndex)
	if pos < 0 || pos >= len(plan.Legs) {
		return fmt.Errorf("%w: %d", ErrInvalidSegment, segmentIndex)
	}
	if booking.Legs[pos].Status.Terminal() {
		return nil
	}
	return s.publisher.PublishRideRequest(ctx, RideRequestFor(booking, plan, pos))
}

// RideRequestFor builds the ride request of the leg at position i.
func RideRequestFor(booking *domain.Booking, plan *domain.TripPlan, i int) *domain.RideRequest {
	leg := plan.Legs[i]

	originPlace := domain.Place{Location: leg.Start}
	if i == 0 {
		originPlace = plan.Origin
	}
	destPlace := domain.Place{Location: leg.End}
	if i == len(plan.Legs)-1 {
		destPlace = plan.Destination
	}

	return &domain.RideRequest{
		BookingID:     booking.ID,
		UserID:        booking.UserID,
		SegmentIndex:  leg.Index,
		TotalSegments: len(plan.Legs),
		Origin:        originPlace,
		Destination:   destPlace,
		Mode:          leg.Mode,
		Option:        leg.Option,
		Fare:          leg.Fare,
		DistanceKm:    math.Round(leg.DistanceMeters/10) / 100,
		DurationSec:   leg.DurationSeconds,
		PickupGeohash: leg.PickupGeohash,
		CreatedAt:     booking.CreatedAt,
	}
}

// GetBooking returns a booking by ID.
func (s *BookingService) GetBooking(ctx context.Context, id string) (*domain.Booking, error) {
	b, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

// ListByUser returns one page of a user's bookings and the total count.
func (s *BookingService) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByUser(ctx, userID, offset, limit)
}

// Events returns the ride event log of a booking.
func (s *BookingService) Events(ctx context.Context, bookingID string) ([]domain.RideEvent, error) {
	return s.events.ListByBooking(ctx, bookingID)
}

// Cancel cancels every unfinished leg on behalf of the booking's owner.
func (s *BookingService) Cancel(ctx context.Context, bookingID, userID, reason string) (*domain.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.UserID != userID {
		return nil, ErrNotOwner
	}
	return s.cancel(ctx, booking, domain.SourceUser, reason)
}

// CancelBySystem cancels every unfinished leg without an owner check.
func (s *BookingService) CancelBySystem(ctx context.Context, bookingID, reason string) (*domain.Booking, error) {
	booking, err := s.GetBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	return s.cancel(ctx, booking, domain.SourceSystem, reason)
}

func (s *BookingService) cancel(ctx context.Context, booking *domain.Booking, source domain.EventSource, reason string) (*domain.Booking, error) {
	stale := false
	for _, leg := range booking.Legs {
		if leg.Status.Terminal() {
			continue
		}
		evt := &domain.RideEvent{
			BookingID:    booking.ID,
			SegmentIndex: leg.SegmentIndex,
			Type:         domain.EventCancelled,
			Source:       source,
			Reason:       reason,
		}
		updated, err := s.apply(ctx, booking.ID, evt)
		if errors.Is(err, ErrInvalidTransition) {
			// The leg finished after the snapshot was read; its state stands.
			stale = true
			continue
		}
		if err != nil {
			return nil, err
		}
		booking, stale = updated, false
	}
	if stale {
		return s.GetBooking(ctx, booking.ID)
	}
	return booking, nil
}

// HandleRideEvent applies a lifecycle event reported for one leg.
// Location events are accepted without changing any state.
func (s *BookingService) HandleRideEvent(ctx context.Context, evt *domain.RideEvent) (*domain.Booking, error) {
	if evt.Type == domain.EventLocation {
		return s.GetBooking(ctx, evt.BookingID)
	}
	return s.apply(ctx, evt.BookingID, evt)
}

// apply checks and stores one leg transition against the booking's stored
// state, then records and publishes the event.
func (s *BookingService) apply(ctx context.Context, bookingID string, evt *domain.RideEvent) (*domain.Booking, error) {
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now().UTC()
	}

	var prev domain.BookingStatus
	booking, err := s.bookings.UpdateLeg(ctx, bookingID, func(b *domain.Booking) (int, error) {
		pos := legPosition(b, evt.SegmentIndex)
		if pos < 0 {
			return 0, fmt.Errorf("%w: %d", ErrInvalidSegment, evt.SegmentIndex)
		}
		leg := b.Legs[pos]
		next, err := NextStatus(leg.Status, evt.Type)
		if err != nil {
			return 0, err
		}

		prev = b.Status
		leg.Status = next
		leg.UpdatedAt = evt.OccurredAt
		if evt.DriverID != "" {
			leg.DriverID = evt.DriverID
		}
		if evt.DriverName != "" {
			leg.DriverName = evt.DriverName
		}
		b.Legs[pos] = leg
		b.Status = DeriveBookingStatus(b.Legs)
		b.UpdatedAt = evt.OccurredAt
		return pos, nil
	})
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, fmt.Errorf("update leg: %w", err)
	}

	if err := s.events.Insert(ctx, evt); err != nil {
		return nil, fmt.Errorf("record event: %w", err)
	}

	// Best-effort; state is already persisted.
	if err := s.publisher.PublishRideEvent(ctx, evt); err != nil {
		slog.Warn("publish ride event", "booking_id", booking.ID, "type", evt.Type, "error", err)
	}
	if booking.Status != prev {
		s.broadcast(ctx, booking, evt)
	}
	return booking, nil
}

func (s *BookingService) broadcast(ctx context.Context, booking *domain.Booking, evt *domain.RideEvent) {
	data, err := json.Marshal(domain.BookingUpdate{
		BookingID:    booking.ID,
		UserID:       booking.UserID,
		Status:       booking.Status,
		SegmentIndex: evt.SegmentIndex,
		Event:        evt.Type,
		At:           evt.OccurredAt,
	})
	if err != nil {
		return
	}
	if err := s.publisher.PublishBroadcast(ctx, data); err != nil {
		slog.Warn("broadcast booking update", "booking_id", booking.ID, "error", err)
	}
}

func legPosition(b *domain.Booking, segmentIndex int) int {
	for i, l := range b.Legs {
		if l.SegmentIndex == segmentIndex {
			return i
		}
	}
	return -1
}
