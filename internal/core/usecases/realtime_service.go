package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
)

// ErrLocationUnavailable is returned when no recent rider location is known.
var ErrLocationUnavailable = errors.New("rider location unavailable")

// Rider locations expire after two minutes without an update.
const locationTTLSeconds = 120

// RealtimeService tracks live rider positions per booking leg.
type RealtimeService struct {
	cache     ports.CacheService
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewRealtimeService creates a new RealtimeService.
func NewRealtimeService(cache ports.CacheService, publisher ports.EventPublisher) *RealtimeService {
	return &RealtimeService{cache: cache, publisher: publisher, now: time.Now}
}

func locationKey(bookingID string, segmentIndex int) string {
	return fmt.Sprintf("rider:location:%s:%d", bookingID, segmentIndex)
}

// ProcessLocation stores the latest rider position and fans it out.
func (s *RealtimeService) ProcessLocation(ctx context.Context, evt *domain.RideEvent) error {
	if evt.Type != domain.EventLocation || evt.Location == nil {
		return fmt.Errorf("not a location event: %s", evt.Type)
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now().UTC()
	}

	if s.cache != nil {
		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("marshal location: %w", err)
		}
		if err := s.cache.Set(ctx, locationKey(evt.BookingID, evt.SegmentIndex), data, locationTTLSeconds); err != nil {
			return fmt.Errorf("store location: %w", err)
		}
	}

	// Broadcast to WebSocket clients; the cached position already stands.
	if err := s.publisher.PublishRideEvent(ctx, evt); err != nil {
		slog.Warn("publish rider location", "booking_id", evt.BookingID,
			"segment", evt.SegmentIndex, "error", err)
	}
	return nil
}

// LatestLocation returns the last known rider position on a leg.
func (s *RealtimeService) LatestLocation(ctx context.Context, bookingID string, segmentIndex int) (*domain.RideEvent, error) {
	if s.cache == nil {
		return nil, ErrLocationUnavailable
	}
	data, err := s.cache.Get(ctx, locationKey(bookingID, segmentIndex))
	if err != nil {
		return nil, ErrLocationUnavailable
	}
	var evt domain.RideEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("decode location: %w", err)
	}
	return &evt, nil
}
