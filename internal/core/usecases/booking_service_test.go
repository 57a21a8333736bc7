package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/usecases"
)

func twoLegPlan() *domain.TripPlan {
	return &domain.TripPlan{
		ID:          "plan-1",
		UserID:      "u1",
		Origin:      origin,
		Destination: destination,
		TotalFare:   260,
		Legs: []domain.Leg{
			{Index: 0, Start: origin.Location, End: domain.LatLng{Lat: 12.06, Lng: 77.6}, Mode: domain.RideBike,
				DistanceMeters: 6300, DurationSeconds: 600, Fare: 95, PickupGeohash: "tdr1v9q"},
			{Index: 1, Start: domain.LatLng{Lat: 12.06, Lng: 77.6}, End: destination.Location, Mode: domain.RideCar,
				Option: usecases.OptionLuxury, DistanceMeters: 4200, DurationSeconds: 400, Fare: 165, PickupGeohash: "tdr3k2m"},
		},
	}
}

type bookingFixture struct {
	svc       *usecases.BookingService
	bookings  *mockBookingRepo
	events    *mockEventRepo
	publisher *mockPublisher
}

func newBookingFixture(orch *mockOrchestrator) *bookingFixture {
	plans := &mockPlanRepo{saved: []*domain.TripPlan{twoLegPlan()}}
	f := &bookingFixture{
		bookings:  newMockBookingRepo(),
		events:    &mockEventRepo{},
		publisher: &mockPublisher{},
	}
	if orch == nil {
		f.svc = usecases.NewBookingService(plans, f.bookings, f.events, f.publisher, nil)
	} else {
		f.svc = usecases.NewBookingService(plans, f.bookings, f.events, f.publisher, orch)
	}
	return f
}

func TestBookingService_Book_PublishesOneRequestPerLeg(t *testing.T) {
	f := newBookingFixture(nil)

	booking, err := f.svc.Book(context.Background(), "plan-1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if booking.Status != domain.BookingRequested {
		t.Errorf("expected requested, got %s", booking.Status)
	}
	if len(booking.Legs) != 2 || booking.TotalFare != 260 {
		t.Fatalf("unexpected booking %+v", booking)
	}

	reqs := f.publisher.requests
	if len(reqs) != 2 {
		t.Fatalf("expected 2 ride requests, got %d", len(reqs))
	}
	first, second := reqs[0], reqs[1]
	if first.BookingID != booking.ID || first.TotalSegments != 2 || first.SegmentIndex != 0 {
		t.Errorf("unexpected first request %+v", first)
	}
	if first.Origin.Description != "Silk Board" {
		t.Errorf("first leg should start at the trip origin, got %+v", first.Origin)
	}
	if second.Destination.Description != "Hebbal" {
		t.Errorf("last leg should end at the trip destination, got %+v", second.Destination)
	}
	if second.Origin.Location != (domain.LatLng{Lat: 12.06, Lng: 77.6}) {
		t.Errorf("second leg should start at the boundary, got %+v", second.Origin)
	}
	if first.DistanceKm != 6.3 || second.DistanceKm != 4.2 {
		t.Errorf("unexpected distances %.2f / %.2f", first.DistanceKm, second.DistanceKm)
	}
	if second.Option != usecases.OptionLuxury || second.Fare != 165 {
		t.Errorf("unexpected second leg pricing %+v", second)
	}
}

func TestBookingService_Book_WrongUser(t *testing.T) {
	f := newBookingFixture(nil)
	_, err := f.svc.Book(context.Background(), "plan-1", "intruder")
	if !errors.Is(err, usecases.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}
	if len(f.publisher.requests) != 0 {
		t.Error("no requests should be published")
	}
}

func TestBookingService_Book_PlanNotFound(t *testing.T) {
	f := newBookingFixture(nil)
	_, err := f.svc.Book(context.Background(), "nope", "u1")
	if !errors.Is(err, usecases.ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestBookingService_Book_UsesOrchestrator(t *testing.T) {
	orch := &mockOrchestrator{}
	f := newBookingFixture(orch)

	booking, err := f.svc.Book(context.Background(), "plan-1", "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(orch.started) != 1 || orch.started[0] != booking.ID {
		t.Errorf("expected workflow start for %s, got %v", booking.ID, orch.started)
	}
	if len(f.publisher.requests) != 0 {
		t.Error("requests should be left to the workflow")
	}
}

func TestBookingService_Book_DispatchFailureCancels(t *testing.T) {
	orch := &mockOrchestrator{startFn: func(ctx context.Context, bookingID, userID string) error {
		return errors.New("temporal unavailable")
	}}
	f := newBookingFixture(orch)

	if _, err := f.svc.Book(context.Background(), "plan-1", "u1"); err == nil {
		t.Fatal("expected error")
	}

	for _, b := range f.bookings.bookings {
		if b.Status != domain.BookingCancelled {
			t.Errorf("expected cancelled booking, got %s", b.Status)
		}
	}
	if len(f.events.events) != 2 {
		t.Errorf("expected 2 cancellation events, got %d", len(f.events.events))
	}
	for _, e := range f.events.events {
		if e.Source != domain.SourceSystem {
			t.Errorf("expected system source, got %s", e.Source)
		}
	}
}

func TestBookingService_Lifecycle(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()

	booking, err := f.svc.Book(ctx, "plan-1", "u1")
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	steps := []struct {
		segment int
		event   domain.RideEventType
		want    domain.BookingStatus
	}{
		{0, domain.EventAccepted, domain.BookingAccepted},
		{0, domain.EventStarted, domain.BookingInProgress},
		{0, domain.EventCompleted, domain.BookingInProgress},
		{1, domain.EventAccepted, domain.BookingInProgress},
		{1, domain.EventCompleted, domain.BookingCompleted},
	}

	for i, step := range steps {
		got, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
			BookingID:    booking.ID,
			SegmentIndex: step.segment,
			Type:         step.event,
			Source:       domain.SourceRider,
			DriverID:     "rider-7",
			OccurredAt:   time.Date(2026, 1, 1, 10, i, 0, 0, time.UTC),
		})
		if err != nil {
			t.Fatalf("step %d: unexpected error: %v", i, err)
		}
		if got.Status != step.want {
			t.Errorf("step %d: expected %s, got %s", i, step.want, got.Status)
		}
	}

	stored, _ := f.svc.GetBooking(ctx, booking.ID)
	if stored.Legs[0].DriverID != "rider-7" || stored.Legs[1].Status != domain.RideCompleted {
		t.Errorf("unexpected stored legs %+v", stored.Legs)
	}
	if len(f.publisher.events) != len(steps) {
		t.Errorf("expected %d published events, got %d", len(steps), len(f.publisher.events))
	}
	// requested → accepted → in_progress → completed
	if len(f.publisher.broadcasts) != 3 {
		t.Errorf("expected 3 status broadcasts, got %d", len(f.publisher.broadcasts))
	} else {
		var last domain.BookingUpdate
		if err := json.Unmarshal(f.publisher.broadcasts[2], &last); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if last.Status != domain.BookingCompleted || last.SegmentIndex != 1 {
			t.Errorf("unexpected final broadcast %+v", last)
		}
	}
	events, _ := f.svc.Events(ctx, booking.ID)
	if len(events) != len(steps) {
		t.Errorf("expected %d logged events, got %d", len(steps), len(events))
	}
}

func TestBookingService_HandleRideEvent_InvalidTransition(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()
	booking, _ := f.svc.Book(ctx, "plan-1", "u1")

	_, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: booking.ID, SegmentIndex: 0, Type: domain.EventCompleted,
	})
	if !errors.Is(err, usecases.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	_, err = f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: booking.ID, SegmentIndex: 5, Type: domain.EventAccepted,
	})
	if !errors.Is(err, usecases.ErrInvalidSegment) {
		t.Fatalf("expected ErrInvalidSegment, got %v", err)
	}

	_, err = f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: "missing", SegmentIndex: 0, Type: domain.EventAccepted,
	})
	if !errors.Is(err, usecases.ErrBookingNotFound) {
		t.Fatalf("expected ErrBookingNotFound, got %v", err)
	}
}

func TestBookingService_HandleRideEvent_LocationIsNoop(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()
	booking, _ := f.svc.Book(ctx, "plan-1", "u1")

	got, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: booking.ID, SegmentIndex: 0, Type: domain.EventLocation,
		Location: &domain.LatLng{Lat: 12.01, Lng: 77.6},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.BookingRequested || len(f.events.events) != 0 {
		t.Errorf("location event must not change state: %+v", got)
	}
}

func TestBookingService_Cancel(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()
	booking, _ := f.svc.Book(ctx, "plan-1", "u1")

	if _, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: booking.ID, SegmentIndex: 0, Type: domain.EventAccepted,
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
		BookingID: booking.ID, SegmentIndex: 0, Type: domain.EventCompleted,
	}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	if _, err := f.svc.Cancel(ctx, booking.ID, "someone-else", "changed mind"); !errors.Is(err, usecases.ErrNotOwner) {
		t.Fatalf("expected ErrNotOwner, got %v", err)
	}

	got, err := f.svc.Cancel(ctx, booking.ID, "u1", "changed mind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Legs[0].Status != domain.RideCompleted {
		t.Errorf("completed leg must stay completed, got %s", got.Legs[0].Status)
	}
	if got.Legs[1].Status != domain.RideCancelled {
		t.Errorf("open leg must be cancelled, got %s", got.Legs[1].Status)
	}
	if got.Status != domain.BookingCancelled {
		t.Errorf("expected cancelled booking, got %s", got.Status)
	}

	last := f.publisher.events[len(f.publisher.events)-1]
	if last.Type != domain.EventCancelled || last.Source != domain.SourceUser || last.Reason != "changed mind" {
		t.Errorf("unexpected cancellation event %+v", last)
	}
}

func TestBookingService_Cancel_LegCompletedMeanwhile(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()
	booking, _ := f.svc.Book(ctx, "plan-1", "u1")
	for _, seg := range []int{0, 1} {
		if _, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
			BookingID: booking.ID, SegmentIndex: seg, Type: domain.EventAccepted,
		}); err != nil {
			t.Fatalf("accept %d: %v", seg, err)
		}
	}

	// Leg 0 completes after Cancel has read the booking.
	var once sync.Once
	f.bookings.onUpdate = func(stored *domain.Booking) {
		once.Do(func() {
			stored.Legs[0].Status = domain.RideCompleted
			stored.Status = domain.BookingInProgress
		})
	}
	published := len(f.publisher.events)

	got, err := f.svc.Cancel(ctx, booking.ID, "u1", "changed mind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Legs[0].Status != domain.RideCompleted {
		t.Errorf("completed leg was overwritten: %s", got.Legs[0].Status)
	}
	if got.Legs[1].Status != domain.RideCancelled {
		t.Errorf("expected leg 1 cancelled, got %s", got.Legs[1].Status)
	}

	stored, _ := f.svc.GetBooking(ctx, booking.ID)
	if stored.Legs[0].Status != domain.RideCompleted {
		t.Errorf("stored leg 0 is %s, want completed", stored.Legs[0].Status)
	}
	if n := len(f.publisher.events) - published; n != 1 {
		t.Errorf("expected 1 cancellation event, got %d", n)
	}
}

func TestBookingService_ConcurrentCompletions(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()

	for run := 0; run < 50; run++ {
		booking, err := f.svc.Book(ctx, "plan-1", "u1")
		if err != nil {
			t.Fatalf("book: %v", err)
		}
		for _, seg := range []int{0, 1} {
			if _, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
				BookingID: booking.ID, SegmentIndex: seg, Type: domain.EventAccepted,
			}); err != nil {
				t.Fatalf("accept %d: %v", seg, err)
			}
		}

		start := make(chan struct{})
		errs := make(chan error, 2)
		var wg sync.WaitGroup
		for _, seg := range []int{0, 1} {
			wg.Add(1)
			go func(seg int) {
				defer wg.Done()
				<-start
				_, err := f.svc.HandleRideEvent(ctx, &domain.RideEvent{
					BookingID: booking.ID, SegmentIndex: seg, Type: domain.EventCompleted,
				})
				errs <- err
			}(seg)
		}
		close(start)
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Fatalf("run %d: unexpected error: %v", run, err)
			}
		}

		stored, _ := f.svc.GetBooking(ctx, booking.ID)
		if stored.Status != domain.BookingCompleted {
			t.Fatalf("run %d: legs %s/%s but booking %s", run,
				stored.Legs[0].Status, stored.Legs[1].Status, stored.Status)
		}
	}

	completed := map[string]int{}
	for _, raw := range f.publisher.broadcasts {
		var u domain.BookingUpdate
		if err := json.Unmarshal(raw, &u); err != nil {
			t.Fatalf("decode broadcast: %v", err)
		}
		if u.Status == domain.BookingCompleted {
			completed[u.BookingID]++
		}
	}
	if len(completed) != 50 {
		t.Errorf("expected a completed broadcast for 50 bookings, got %d", len(completed))
	}
	for id, n := range completed {
		if n != 1 {
			t.Errorf("booking %s: %d completed broadcasts", id, n)
		}
	}
}

func TestBookingService_DispatchLeg(t *testing.T) {
	f := newBookingFixture(&mockOrchestrator{})
	ctx := context.Background()
	booking, _ := f.svc.Book(ctx, "plan-1", "u1")

	if err := f.svc.DispatchLeg(ctx, booking.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.publisher.requests) != 1 || f.publisher.requests[0].SegmentIndex != 1 {
		t.Fatalf("expected request for segment 1, got %+v", f.publisher.requests)
	}
	if err := f.svc.DispatchLeg(ctx, booking.ID, 3); !errors.Is(err, usecases.ErrInvalidSegment) {
		t.Errorf("expected ErrInvalidSegment, got %v", err)
	}
}

func TestBookingService_ListByUser_ClampsLimit(t *testing.T) {
	f := newBookingFixture(nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Book(ctx, "plan-1", "u1"); err != nil {
			t.Fatalf("book: %v", err)
		}
	}

	page, total, err := f.svc.ListByUser(ctx, "u1", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 3 || len(page) != 3 {
		t.Errorf("expected 3 of 3, got %d of %d", len(page), total)
	}

	page, _, _ = f.svc.ListByUser(ctx, "u1", 2, 10)
	if len(page) != 1 {
		t.Errorf("expected 1 booking on second page, got %d", len(page))
	}
}

func TestNextStatus(t *testing.T) {
	if _, err := usecases.NextStatus(domain.RideCompleted, domain.EventCancelled); !errors.Is(err, usecases.ErrInvalidTransition) {
		t.Error("completed legs must not be cancellable")
	}
	if _, err := usecases.NextStatus(domain.RideRequested, domain.EventStarted); !errors.Is(err, usecases.ErrInvalidTransition) {
		t.Error("a ride cannot start before it is accepted")
	}
	if s, err := usecases.NextStatus(domain.RideAccepted, domain.EventCompleted); err != nil || s != domain.RideCompleted {
		t.Errorf("accepted -> completed should be allowed, got %s, %v", s, err)
	}
}

func TestDeriveBookingStatus(t *testing.T) {
	leg := func(s domain.RideStatus) domain.BookingLeg { return domain.BookingLeg{Status: s} }

	tests := []struct {
		legs []domain.BookingLeg
		want domain.BookingStatus
	}{
		{[]domain.BookingLeg{leg(domain.RideRequested), leg(domain.RideRequested)}, domain.BookingRequested},
		{[]domain.BookingLeg{leg(domain.RideAccepted), leg(domain.RideRequested)}, domain.BookingAccepted},
		{[]domain.BookingLeg{leg(domain.RideCompleted), leg(domain.RideRequested)}, domain.BookingInProgress},
		{[]domain.BookingLeg{leg(domain.RideCompleted), leg(domain.RideCompleted)}, domain.BookingCompleted},
		{[]domain.BookingLeg{leg(domain.RideCompleted), leg(domain.RideCancelled)}, domain.BookingCancelled},
		{[]domain.BookingLeg{leg(domain.RideCancelled), leg(domain.RideAccepted)}, domain.BookingAccepted},
	}
	for i, tt := range tests {
		if got := usecases.DeriveBookingStatus(tt.legs); got != tt.want {
			t.Errorf("case %d: expected %s, got %s", i, tt.want, got)
		}
	}
}
