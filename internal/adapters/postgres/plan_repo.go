package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
)

// PlanRepo implements ports.TripPlanRepository with pgx.
type PlanRepo struct {
	db *DB
}

// NewPlanRepo creates a new PlanRepo.
func NewPlanRepo(db *DB) *PlanRepo {
	return &PlanRepo{db: db}
}

// Create stores a plan and its legs in one transaction.
func (r *PlanRepo) Create(ctx context.Context, p *domain.TripPlan) error {
	return pgx.BeginFunc(ctx, r.db.Pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO trip_plans (id, user_id, origin, destination, polyline, distance_meters,
			                        duration_seconds, total_fare, fallback, bounds, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, p.ID, p.UserID, p.Origin, p.Destination, p.Polyline, p.DistanceMeters,
			p.DurationSeconds, p.TotalFare, p.Fallback, p.Bounds, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert plan: %w", err)
		}

		batch := &pgx.Batch{}
		for _, l := range p.Legs {
			batch.Queue(`
				INSERT INTO plan_legs (plan_id, idx, start_lat, start_lng, end_lat, end_lng, mode, option,
				                       distance_meters, duration_seconds, fare, pickup_geohash)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			`, p.ID, l.Index, l.Start.Lat, l.Start.Lng, l.End.Lat, l.End.Lng, string(l.Mode), l.Option,
				l.DistanceMeters, l.DurationSeconds, l.Fare, l.PickupGeohash)
		}
		br := tx.SendBatch(ctx, batch)
		defer br.Close()
		for range p.Legs {
			if _, err := br.Exec(); err != nil {
				return fmt.Errorf("batch exec: %w", err)
			}
		}
		return nil
	})
}

// GetByID returns a plan with its legs in order.
func (r *PlanRepo) GetByID(ctx context.Context, id string) (*domain.TripPlan, error) {
	if !validID(id) {
		return nil, ports.ErrNotFound
	}
	var p domain.TripPlan
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, user_id, origin, destination, polyline, distance_meters,
		       duration_seconds, total_fare, fallback, bounds, created_at
		FROM trip_plans WHERE id = $1
	`, id).Scan(
		&p.ID, &p.UserID, &p.Origin, &p.Destination, &p.Polyline, &p.DistanceMeters,
		&p.DurationSeconds, &p.TotalFare, &p.Fallback, &p.Bounds, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ports.ErrNotFound
		}
		return nil, err
	}

	rows, err := r.db.Pool.Query(ctx, `
		SELECT idx, start_lat, start_lng, end_lat, end_lng, mode, option,
		       distance_meters, duration_seconds, fare, pickup_geohash
		FROM plan_legs WHERE plan_id = $1 ORDER BY idx
	`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var l domain.Leg
		if err := rows.Scan(&l.Index, &l.Start.Lat, &l.Start.Lng, &l.End.Lat, &l.End.Lng, &l.Mode, &l.Option,
			&l.DistanceMeters, &l.DurationSeconds, &l.Fare, &l.PickupGeohash); err != nil {
			return nil, err
		}
		p.Legs = append(p.Legs, l)
	}
	return &p, rows.Err()
}
