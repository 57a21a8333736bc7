package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
)

// BookingRepo implements ports.BookingRepository with pgx.
type BookingRepo struct {
	db *DB
}

// NewBookingRepo creates a new BookingRepo.
func NewBookingRepo(db *DB) *BookingRepo {
	return &BookingRepo{db: db}
}

func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO bookings (id, plan_id, user_id, status, total_fare, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`, b.ID, b.PlanID, b.UserID, string(b.Status), b.TotalFare, b.CreatedAt, b.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert booking: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range b.Legs {
			batch.Queue(`
				INSERT INTO booking_legs (booking_id, segment_index, mode, option, fare, status,
				                          driver_id, driver_name, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`, b.ID, l.SegmentIndex, string(l.Mode), l.Option, l.Fare, string(l.Status),
				l.DriverID, l.DriverName, l.UpdatedAt)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range b.Legs {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return nil
	})
}

func (r *BookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if !validID(id) {
		return nil, ports.ErrNotFound
	}
	var b domain.Booking
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, plan_id, user_id, status, total_fare, created_at, updated_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.PlanID, &b.UserID, &b.Status, &b.TotalFare, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	legs, err := r.legsFor(ctx, r.db.Pool, []string{b.ID})
	if err != nil {
		return nil, err
	}
	b.Legs = legs[b.ID]
	return &b, nil
}

// ListByUser returns one page of bookings, newest first, plus the user's total.
func (r *BookingRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]domain.Booking, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE user_id = $1`, userID,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, plan_id, user_id, status, total_fare, created_at, updated_at
		FROM bookings WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3
	`, userID, offset, limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	var ids []string
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.PlanID, &b.UserID, &b.Status, &b.TotalFare, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		bookings = append(bookings, b)
		ids = append(ids, b.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if len(ids) == 0 {
		return bookings, total, nil
	}

	legs, err := r.legsFor(ctx, r.db.Pool, ids)
	if err != nil {
		return nil, 0, err
	}
	for i := range bookings {
		bookings[i].Legs = legs[bookings[i].ID]
	}
	return bookings, total, nil
}

// UpdateLeg runs update against the stored booking with its row locked, so
// concurrent writers on one booking apply in turn.
func (r *BookingRepo) UpdateLeg(ctx context.Context, bookingID string, update func(b *domain.Booking) (int, error)) (*domain.Booking, error) {
	if !validID(bookingID) {
		return nil, ports.ErrNotFound
	}
	var out *domain.Booking
	err := pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		var b domain.Booking
		err := tx.QueryRow(ctx, `
			SELECT id, plan_id, user_id, status, total_fare, created_at, updated_at
			FROM bookings WHERE id = $1
			FOR UPDATE
		`, bookingID).Scan(&b.ID, &b.PlanID, &b.UserID, &b.Status, &b.TotalFare, &b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ports.ErrNotFound
			}
			return fmt.Errorf("lock booking: %w", err)
		}

		legs, err := r.legsFor(ctx, tx, []string{b.ID})
		if err != nil {
			return err
		}
		b.Legs = legs[b.ID]

		pos, err := update(&b)
		if err != nil {
			return err
		}
		if pos < 0 || pos >= len(b.Legs) {
			return ports.ErrNotFound
		}
		leg := b.Legs[pos]

		if _, err := tx.Exec(ctx, `
			UPDATE booking_legs
			SET status = $3, driver_id = $4, driver_name = $5, updated_at = $6
			WHERE booking_id = $1 AND segment_index = $2
		`, b.ID, leg.SegmentIndex, string(leg.Status), leg.DriverID, leg.DriverName, leg.UpdatedAt); err != nil {
			return fmt.Errorf("update leg: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE bookings SET status = $2, updated_at = $3 WHERE id = $1
		`, b.ID, string(b.Status), b.UpdatedAt); err != nil {
			return fmt.Errorf("update booking: %w", err)
		}
		out = &b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *BookingRepo) legsFor(ctx context.Context, q querier, ids []string) (map[string][]domain.BookingLeg, error) {
	rows, err := q.Query(ctx, `
		SELECT booking_id, segment_index, mode, option, fare, status, driver_id, driver_name, updated_at
		FROM booking_legs
		WHERE booking_id = ANY($1::uuid[])
		ORDER BY booking_id, segment_index
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]domain.BookingLeg, len(ids))
	for rows.Next() {
		var id string
		var l domain.BookingLeg
		if err := rows.Scan(&id, &l.SegmentIndex, &l.Mode, &l.Option, &l.Fare, &l.Status,
			&l.DriverID, &l.DriverName, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out[id] = append(out[id], l)
	}
	return out, rows.Err()
}
