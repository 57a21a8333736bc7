package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
)

// requestTimeout bounds every REST call, directions lookups included.
const requestTimeout = 15 * time.Second

// deprecatedRoutes are still served but announce their successor.
var deprecatedRoutes = []DeprecatedRoute{
	{
		Path:        "/v1/multimode/split",
		SunsetDate:  time.Date(2026, time.December, 31, 0, 0, 0, 0, time.UTC),
		Alternative: "/v1/routes/split",
	},
}

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	app.Use(DeprecationMiddleware(deprecatedRoutes))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout — fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1
	v1 := app.Group("/v1")
	v1.Post("/routes/split", SplitRouteHandler(deps))
	v1.Post("/multimode/split", SplitRouteHandler(deps))
	v1.Get("/fares", FaresHandler(deps))

	v1.Post("/plans", timeout.NewWithContext(CreatePlanHandler(deps), requestTimeout))
	v1.Get("/plans/:id", timeout.NewWithContext(GetPlanHandler(deps), requestTimeout))

	v1.Post("/bookings", timeout.NewWithContext(CreateBookingHandler(deps), requestTimeout))
	v1.Get("/bookings/:id", timeout.NewWithContext(GetBookingHandler(deps), requestTimeout))
	v1.Post("/bookings/:id/cancel", timeout.NewWithContext(CancelBookingHandler(deps), requestTimeout))
	v1.Get("/bookings/:id/legs/:segment/location", timeout.NewWithContext(LegLocationHandler(deps), requestTimeout))
	v1.Get("/users/:id/bookings", timeout.NewWithContext(UserBookingsHandler(deps), requestTimeout))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/bookings/:id", websocket.New(BookingStreamHandler(deps.NATS)))
}
