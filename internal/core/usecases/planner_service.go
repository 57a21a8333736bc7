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
	"github.com/paulmach/orb"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
	"github.com/samirrijal/multiride/internal/core/segmentation"
	"github.com/samirrijal/multiride/internal/pkg/geospatial"
	"github.com/samirrijal/multiride/internal/pkg/polyline"
	"github.com/samirrijal/multiride/internal/pkg/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// ErrInvalidPlanRequest wraps every validation failure of a plan request.
	ErrInvalidPlanRequest = errors.New("invalid plan request")
	// ErrPlanNotFound is returned when a plan ID does not exist.
	ErrPlanNotFound = errors.New("plan not found")
)

// Minimum duration assigned to any leg.
const minLegSeconds = 10

// PlanRequest asks for a route split into one leg per choice.
type PlanRequest struct {
	UserID      string             `json:"user_id"`
	Origin      domain.Place       `json:"origin"`
	Destination domain.Place       `json:"destination"`
	Legs        []domain.LegChoice `json:"legs"`
}

// PlannerConfig tunes the planner.
type PlannerConfig struct {
	MaxSegments        int
	DirectionsCacheTTL int // seconds
}

// PlannerService builds multi-mode trip plans.
type PlannerService struct {
	plans      ports.TripPlanRepository
	directions ports.DirectionsProvider
	cache      ports.CacheService
	fares      *FareService
	cfg        PlannerConfig
	now        func() time.Time
}

// NewPlannerService creates a new PlannerService. cache may be nil.
func NewPlannerService(
	plans ports.TripPlanRepository,
	directions ports.DirectionsProvider,
	cache ports.CacheService,
	fares *FareService,
	cfg PlannerConfig,
) *PlannerService {
	if cfg.MaxSegments <= 0 {
		cfg.MaxSegments = 4
	}
	return &PlannerService{
		plans:      plans,
		directions: directions,
		cache:      cache,
		fares:      fares,
		cfg:        cfg,
		now:        time.Now,
	}
}

// SplitResult is the outcome of splitting an encoded route.
type SplitResult struct {
	Boundaries []domain.LatLng  `json:"boundaries"`
	Segments   []domain.Segment `json:"segments,omitempty"`
}

// SplitRoute splits an encoded polyline and, when modes are given, pairs
// the boundaries into labelled segments.
func (s *PlannerService) SplitRoute(encoded string, segmentCount int, modes []string) (*SplitResult, error) {
	if segmentCount > s.cfg.MaxSegments {
		return nil, fmt.Errorf("%w: at most %d segments", segmentation.ErrInvalidSegmentCount, s.cfg.MaxSegments)
	}
	bounds, err := segmentation.Split(encoded, segmentCount)
	if err != nil {
		return nil, err
	}
	res := &SplitResult{Boundaries: bounds}
	if len(modes) > 0 {
		res.Segments = segmentation.Pair(bounds, modes)
	}
	return res, nil
}

// Plan fetches the driving route, splits it into legs and prices each leg.
// Routes without usable geometry fall back to a single leg.
func (s *PlannerService) Plan(ctx context.Context, req PlanRequest) (*domain.TripPlan, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	ctx, span := otel.Tracer(telemetry.TracerPlanner).Start(ctx, "planner.Plan")
	defer span.End()
	span.SetAttributes(attribute.Int("plan.legs", len(req.Legs)))

	route, err := s.route(ctx, req.Origin.Location, req.Destination.Location)
	if err != nil {
		return nil, fmt.Errorf("directions: %w", err)
	}

	plan := &domain.TripPlan{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Origin:          req.Origin,
		Destination:     req.Destination,
		Polyline:        route.Polyline,
		DurationSeconds: route.DurationSeconds,
		CreatedAt:       s.now().UTC(),
	}

	line, bounds, err := s.boundaries(route.Polyline, len(req.Legs))
	switch {
	case err == nil:
		plan.Legs, plan.DistanceMeters = s.buildLegs(req.Legs, bounds, route)
		plan.Bounds = domain.BoundsOf(line)
	case errors.Is(err, segmentation.ErrMissingGeometry), errors.Is(err, segmentation.ErrInsufficientGeometry):
		slog.Warn("route cannot be split, planning single leg",
			"user_id", req.UserID, "legs", len(req.Legs), "error", err)
		plan.Fallback = true
		plan.Legs, plan.DistanceMeters = s.singleLeg(req, route)
		plan.Bounds = domain.BoundsOf(orb.LineString{
			req.Origin.Location.Point(),
			req.Destination.Location.Point(),
		})
	default:
		return nil, fmt.Errorf("split route: %w", err)
	}

	for i := range plan.Legs {
		plan.TotalFare += plan.Legs[i].Fare
	}

	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("save plan: %w", err)
	}
	return plan, nil
}

// GetPlan returns a stored plan.
func (s *PlannerService) GetPlan(ctx context.Context, id string) (*domain.TripPlan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return plan, nil
}

func (s *PlannerService) validate(req PlanRequest) error {
	switch {
	case req.UserID == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidPlanRequest)
	case req.Origin.Location.IsZero():
		return fmt.Errorf("%w: origin is required", ErrInvalidPlanRequest)
	case req.Destination.Location.IsZero():
		return fmt.Errorf("%w: destination is required", ErrInvalidPlanRequest)
	case len(req.Legs) == 0:
		return fmt.Errorf("%w: at least one leg is required", ErrInvalidPlanRequest)
	case len(req.Legs) > s.cfg.MaxSegments:
		return fmt.Errorf("%w: at most %d legs", ErrInvalidPlanRequest, s.cfg.MaxSegments)
	}
	for i, leg := range req.Legs {
		if !s.fares.Known(leg.Mode) {
			return fmt.Errorf("%w: leg %d: %w", ErrInvalidPlanRequest, i, ErrUnknownRideType)
		}
	}
	return nil
}

// route looks up directions through the cache.
func (s *PlannerService) route(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error) {
	cacheKey := fmt.Sprintf("directions:%s:%s",
		geospatial.Geohash(origin.Lat, origin.Lng, geospatial.CachePrecision),
		geospatial.Geohash(destination.Lat, destination.Lng, geospatial.CachePrecision),
	)
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			var route domain.DirectionsRoute
			if err := json.Unmarshal(data, &route); err == nil {
				return &route, nil
			}
		}
	}

	route, err := s.directions.Route(ctx, origin, destination)
	if err != nil {
		return nil, err
	}

	if s.cache != nil && s.cfg.DirectionsCacheTTL > 0 {
		if data, err := json.Marshal(route); err == nil {
			_ = s.cache.Set(ctx, cacheKey, data, s.cfg.DirectionsCacheTTL)
		}
	}
	return route, nil
}

func (s *PlannerService) boundaries(encoded string, n int) (orb.LineString, []segmentation.Boundary, error) {
	if encoded == "" {
		return nil, nil, segmentation.ErrMissingGeometry
	}
	line, err := polyline.Decode(encoded)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", segmentation.ErrMissingGeometry, err)
	}
	bounds, err := segmentation.Boundaries(line, n)
	if err != nil {
		return nil, nil, err
	}
	return line, bounds, nil
}

// buildLegs spreads the route's reported distance and duration over the
// legs in proportion to their path length. Choices beyond the number of
// available legs are dropped.
func (s *PlannerService) buildLegs(choices []domain.LegChoice, bounds []segmentation.Boundary, route *domain.DirectionsRoute) ([]domain.Leg, float64) {
	count := len(bounds) - 1
	geomTotal := bounds[count].Offset

	total := float64(route.DistanceMeters)
	if total <= 0 {
		total = geomTotal
	}

	legs := make([]domain.Leg, 0, count)
	for i := 0; i < count; i++ {
		share := 1 / float64(count)
		if geomTotal > 0 {
			share = (bounds[i+1].Offset - bounds[i].Offset) / geomTotal
		}
		start := domain.LatLngFromPoint(bounds[i].Point)
		legs = append(legs, s.leg(i, choices[i], start, domain.LatLngFromPoint(bounds[i+1].Point),
			total*share, legDuration(route.DurationSeconds, share)))
	}
	return legs, total
}

func (s *PlannerService) singleLeg(req PlanRequest, route *domain.DirectionsRoute) ([]domain.Leg, float64) {
	total := float64(route.DistanceMeters)
	if total <= 0 {
		o, d := req.Origin.Location, req.Destination.Location
		total = geospatial.Haversine(o.Lat, o.Lng, d.Lat, d.Lng)
	}
	leg := s.leg(0, req.Legs[0], req.Origin.Location, req.Destination.Location,
		total, legDuration(route.DurationSeconds, 1))
	return []domain.Leg{leg}, total
}

func (s *PlannerService) leg(i int, choice domain.LegChoice, start, end domain.LatLng, meters float64, seconds int) domain.Leg {
	leg := domain.Leg{
		Index:           i,
		Start:           start,
		End:             end,
		Mode:            choice.Mode,
		Option:          choice.Option,
		DistanceMeters:  math.Round(meters),
		DurationSeconds: seconds,
		PickupGeohash:   geospatial.Geohash(start.Lat, start.Lng, geospatial.PickupPrecision),
	}
	// Modes were validated up front.
	if q, err := s.fares.Quote(choice.Mode, choice.Option, meters); err == nil {
		leg.Fare = q.Fare
	}
	return leg
}

func legDuration(totalSeconds int, share float64) int {
	return max(minLegSeconds, int(math.Floor(float64(totalSeconds)*share)))
}
