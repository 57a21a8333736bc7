package ports

import (
	"context"
	"errors"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// ErrNoRoute is returned by a DirectionsProvider that found no route.
var ErrNoRoute = errors.New("no route found")

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishRideRequest(ctx context.Context, req *domain.RideRequest) error
	PublishRideEvent(ctx context.Context, event *domain.RideEvent) error
	PublishBroadcast(ctx context.Context, data []byte) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeRideRequests(ctx context.Context, handler func(ctx context.Context, req *domain.RideRequest) error) error
	SubscribeRideEvents(ctx context.Context, handler func(ctx context.Context, event *domain.RideEvent) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// DirectionsProvider resolves a driving route between two points.
type DirectionsProvider interface {
	Route(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error)
}

// RideDispatcher hands ride requests to the external ride backend.
type RideDispatcher interface {
	Dispatch(ctx context.Context, req *domain.RideRequest) error
	CancelRide(ctx context.Context, bookingID string, segmentIndex int, reason string) error
}

// BookingOrchestrator runs the dispatch of a booking's legs as a durable workflow.
type BookingOrchestrator interface {
	StartBooking(ctx context.Context, bookingID, userID string) error
}
