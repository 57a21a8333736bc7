package postgres

import (
	"context"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// RideEventRepo implements ports.RideEventRepository.
type RideEventRepo struct {
	db *DB
}

func NewRideEventRepo(db *DB) *RideEventRepo {
	return &RideEventRepo{db: db}
}

// Insert appends an event and sets its ID.
func (r *RideEventRepo) Insert(ctx context.Context, e *domain.RideEvent) error {
	var lat, lng *float64
	if e.Location != nil {
		lat, lng = &e.Location.Lat, &e.Location.Lng
	}
	return r.db.Pool.QueryRow(ctx, `
		INSERT INTO ride_events (booking_id, segment_index, type, source, driver_id, driver_name,
		                         lat, lng, reason, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, e.BookingID, e.SegmentIndex, string(e.Type), string(e.Source), e.DriverID, e.DriverName,
		lat, lng, e.Reason, e.OccurredAt).Scan(&e.ID)
}

// ListByBooking returns a booking's events in the order they happened.
func (r *RideEventRepo) ListByBooking(ctx context.Context, bookingID string) ([]domain.RideEvent, error) {
	if !validID(bookingID) {
		return nil, nil
	}
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, booking_id, segment_index, type, source, driver_id, driver_name,
		       lat, lng, reason, occurred_at
		FROM ride_events
		WHERE booking_id = $1
		ORDER BY occurred_at, id
	`, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.RideEvent
	for rows.Next() {
		var e domain.RideEvent
		var lat, lng *float64
		if err := rows.Scan(&e.ID, &e.BookingID, &e.SegmentIndex, &e.Type, &e.Source, &e.DriverID, &e.DriverName,
			&lat, &lng, &e.Reason, &e.OccurredAt); err != nil {
			return nil, err
		}
		if lat != nil && lng != nil {
			e.Location = &domain.LatLng{Lat: *lat, Lng: *lng}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
