package usecases_test

import (
	"context"
	"errors"
	"sync"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
)

// --- Mock TripPlanRepository ---

type mockPlanRepo struct {
	createFn  func(ctx context.Context, plan *domain.TripPlan) error
	getByIDFn func(ctx context.Context, id string) (*domain.TripPlan, error)
	saved     []*domain.TripPlan
}

func (m *mockPlanRepo) Create(ctx context.Context, plan *domain.TripPlan) error {
	m.saved = append(m.saved, plan)
	if m.createFn != nil {
		return m.createFn(ctx, plan)
	}
	return nil
}

func (m *mockPlanRepo) GetByID(ctx context.Context, id string) (*domain.TripPlan, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	for _, p := range m.saved {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, ports.ErrNotFound
}

// --- Mock BookingRepository (in-memory) ---

type mockBookingRepo struct {
	mu        sync.Mutex
	bookings  map[string]*domain.Booking
	createErr error
	onUpdate  func(stored *domain.Booking)
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{bookings: map[string]*domain.Booking{}}
}

func (m *mockBookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	cp.Legs = append([]domain.BookingLeg(nil), b.Legs...)
	m.bookings[b.ID] = &cp
	return nil
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *b
	cp.Legs = append([]domain.BookingLeg(nil), b.Legs...)
	return &cp, nil
}

func (m *mockBookingRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	total := len(out)
	if offset >= len(out) {
		return nil, total, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

// UpdateLeg holds the lock across update, like the row lock in Postgres.
// onUpdate runs first and may change the stored booking, standing in for
// a writer that committed between the caller's read and this update.
func (m *mockBookingRepo) UpdateLeg(ctx context.Context, bookingID string, update func(b *domain.Booking) (int, error)) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.bookings[bookingID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	if m.onUpdate != nil {
		m.onUpdate(stored)
	}

	cp := *stored
	cp.Legs = append([]domain.BookingLeg(nil), stored.Legs...)
	if _, err := update(&cp); err != nil {
		return nil, err
	}
	m.bookings[bookingID] = &cp

	out := cp
	out.Legs = append([]domain.BookingLeg(nil), cp.Legs...)
	return &out, nil
}

// --- Mock RideEventRepository ---

type mockEventRepo struct {
	mu     sync.Mutex
	events []domain.RideEvent
}

func (m *mockEventRepo) Insert(ctx context.Context, e *domain.RideEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockEventRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.RideEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.RideEvent
	for _, e := range m.events {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

// --- Mock EventPublisher ---

type mockPublisher struct {
	mu         sync.Mutex
	requests   []domain.RideRequest
	events     []domain.RideEvent
	broadcasts [][]byte
	requestErr error
	eventErr   error
}

func (m *mockPublisher) PublishRideRequest(ctx context.Context, req *domain.RideRequest) error {
	if m.requestErr != nil {
		return m.requestErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, *req)
	return nil
}

func (m *mockPublisher) PublishRideEvent(ctx context.Context, e *domain.RideEvent) error {
	if m.eventErr != nil {
		return m.eventErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockPublisher) PublishBroadcast(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcasts = append(m.broadcasts, data)
	return nil
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu   sync.Mutex
	data map[string][]byte
	ttls map[string]int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// --- Mock DirectionsProvider ---

type mockDirections struct {
	routeFn func(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error)
	calls   int
}

func (m *mockDirections) Route(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error) {
	m.calls++
	if m.routeFn != nil {
		return m.routeFn(ctx, origin, destination)
	}
	return nil, errors.New("no route")
}

// --- Mock BookingOrchestrator ---

type mockOrchestrator struct {
	startFn func(ctx context.Context, bookingID, userID string) error
	started []string
}

func (m *mockOrchestrator) StartBooking(ctx context.Context, bookingID, userID string) error {
	m.started = append(m.started, bookingID)
	if m.startFn != nil {
		return m.startFn(ctx, bookingID, userID)
	}
	return nil
}
