package usecases_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/usecases"
)

func TestRealtimeService_ProcessLocation(t *testing.T) {
	cache := newMockCache()
	pub := &mockPublisher{}
	svc := usecases.NewRealtimeService(cache, pub)
	ctx := context.Background()

	evt := &domain.RideEvent{
		BookingID:    "b1",
		SegmentIndex: 1,
		Type:         domain.EventLocation,
		Source:       domain.SourceRider,
		Location:     &domain.LatLng{Lat: 12.9716, Lng: 77.5946},
	}
	if err := svc.ProcessLocation(ctx, evt); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evt.OccurredAt.IsZero() {
		t.Error("expected timestamp to be set")
	}
	if len(pub.events) != 1 {
		t.Errorf("expected 1 published event, got %d", len(pub.events))
	}
	if ttl := cache.ttls["rider:location:b1:1"]; ttl != 120 {
		t.Errorf("expected 120 s TTL, got %d", ttl)
	}

	got, err := svc.LatestLocation(ctx, "b1", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Location == nil || got.Location.Lat != 12.9716 {
		t.Errorf("unexpected location %+v", got.Location)
	}
}

func TestRealtimeService_ProcessLocation_PublishFailureIsLogged(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	cache := newMockCache()
	svc := usecases.NewRealtimeService(cache, &mockPublisher{eventErr: errors.New("nats: connection closed")})

	err := svc.ProcessLocation(context.Background(), &domain.RideEvent{
		BookingID: "b1", SegmentIndex: 0, Type: domain.EventLocation,
		Location: &domain.LatLng{Lat: 12.97, Lng: 77.59},
	})
	if err != nil {
		t.Fatalf("publish failure must not fail the update: %v", err)
	}
	if _, ok := cache.data["rider:location:b1:0"]; !ok {
		t.Error("expected location cached despite publish failure")
	}
	out := buf.String()
	if !strings.Contains(out, "publish rider location") || !strings.Contains(out, "connection closed") {
		t.Errorf("expected a warning with the publish error, got %q", out)
	}
}

func TestRealtimeService_ProcessLocation_RejectsLifecycleEvents(t *testing.T) {
	svc := usecases.NewRealtimeService(newMockCache(), &mockPublisher{})
	err := svc.ProcessLocation(context.Background(), &domain.RideEvent{Type: domain.EventAccepted})
	if err == nil {
		t.Fatal("expected error for non-location event")
	}
}

func TestRealtimeService_LatestLocation_Unknown(t *testing.T) {
	svc := usecases.NewRealtimeService(newMockCache(), &mockPublisher{})
	_, err := svc.LatestLocation(context.Background(), "b1", 0)
	if !errors.Is(err, usecases.ErrLocationUnavailable) {
		t.Errorf("expected ErrLocationUnavailable, got %v", err)
	}

	noCache := usecases.NewRealtimeService(nil, &mockPublisher{})
	if _, err := noCache.LatestLocation(context.Background(), "b1", 0); !errors.Is(err, usecases.ErrLocationUnavailable) {
		t.Errorf("expected ErrLocationUnavailable without cache, got %v", err)
	}
}
