package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.temporal.io/sdk/client"

	"github.com/samirrijal/multiride/internal/adapters/directions"
	"github.com/samirrijal/multiride/internal/adapters/http"
	natsadapter "github.com/samirrijal/multiride/internal/adapters/nats"
	"github.com/samirrijal/multiride/internal/adapters/postgres"
	"github.com/samirrijal/multiride/internal/adapters/valkey"
	"github.com/samirrijal/multiride/internal/core/ports"
	"github.com/samirrijal/multiride/internal/core/usecases"
	"github.com/samirrijal/multiride/internal/pkg/config"
	"github.com/samirrijal/multiride/internal/pkg/logging"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
	"github.com/samirrijal/multiride/internal/pkg/telemetry"
	"github.com/samirrijal/multiride/internal/workflows"
)

func main() {
	cfg, err := config.Load("multiride-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				metrics.UpdateDBPoolMetrics(db.Pool.Stat())
			case <-ctx.Done():
				return
			}
		}
	}()

	// Cache (optional: directions lookups and rider locations degrade without it)
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	// NATS
	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	// Raw NATS connection for WebSocket relay
	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats ws conn unavailable", "error", err)
	}

	// Booking saga (optional: without Temporal legs are dispatched inline)
	var orchestrator ports.BookingOrchestrator
	if cfg.Temporal.HostPort != "" {
		tc, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort})
		if err != nil {
			slog.Warn("temporal unavailable, dispatching inline", "error", err)
		} else {
			defer tc.Close()
			orchestrator = workflows.NewStarter(tc, cfg.Temporal.TaskQueue)
		}
	}

	// Repos
	planRepo := postgres.NewPlanRepo(db)
	bookingRepo := postgres.NewBookingRepo(db)
	eventRepo := postgres.NewRideEventRepo(db)

	// Use cases
	fareSvc := usecases.NewFareService(usecases.DefaultFareRates)
	directionsClient := directions.NewClient(cfg.Directions.BaseURL, cfg.Directions.APIKey,
		time.Duration(cfg.Directions.Timeout)*time.Second)
	plannerSvc := usecases.NewPlannerService(planRepo, directionsClient, cacheSvc, fareSvc, usecases.PlannerConfig{
		MaxSegments:        cfg.Planner.MaxSegments,
		DirectionsCacheTTL: cfg.Planner.DirectionsCacheTTL,
	})
	bookingSvc := usecases.NewBookingService(planRepo, bookingRepo, eventRepo, pub, orchestrator)
	realtimeSvc := usecases.NewRealtimeService(cacheSvc, pub)

	deps := &http.Dependencies{
		Planner:  plannerSvc,
		Fares:    fareSvc,
		Bookings: bookingSvc,
		Realtime: realtimeSvc,
		NATS:     natsConn,
		DB:       db,
		Cache:    cache,
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "MultiRide API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "http://localhost:3000, http://localhost:5173",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}
	if natsConn != nil {
		natsConn.Close()
	}

	slog.Info("server stopped")
}
