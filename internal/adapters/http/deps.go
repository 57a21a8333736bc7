package http

import (
	"github.com/nats-io/nats.go"
	"github.com/samirrijal/multiride/internal/adapters/postgres"
	"github.com/samirrijal/multiride/internal/adapters/valkey"
	"github.com/samirrijal/multiride/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Planner  *usecases.PlannerService
	Fares    *usecases.FareService
	Bookings *usecases.BookingService
	Realtime *usecases.RealtimeService
	NATS     *nats.Conn
	DB       *postgres.DB
	Cache    *valkey.Cache
}
