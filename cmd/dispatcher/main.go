package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	natsadapter "github.com/samirrijal/multiride/internal/adapters/nats"
	"github.com/samirrijal/multiride/internal/adapters/postgres"
	"github.com/samirrijal/multiride/internal/adapters/socketio"
	"github.com/samirrijal/multiride/internal/adapters/valkey"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
	"github.com/samirrijal/multiride/internal/core/usecases"
	"github.com/samirrijal/multiride/internal/pkg/config"
	"github.com/samirrijal/multiride/internal/pkg/logging"
	"github.com/samirrijal/multiride/internal/pkg/telemetry"
)

// The dispatcher bridges NATS and the ride backend: queued legs go out as
// socket.io requests, and backend events come back as booking updates.
func main() {
	cfg, err := config.Load("multiride-dispatcher")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	var cacheSvc ports.CacheService
	if cache, err := valkey.New(cfg.Valkey.Addr); err != nil {
		slog.Warn("valkey unavailable, rider locations are not stored", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats subscriber: %v", err)
	}
	defer sub.Close()

	bookingSvc := usecases.NewBookingService(
		postgres.NewPlanRepo(db),
		postgres.NewBookingRepo(db),
		postgres.NewRideEventRepo(db),
		pub,
		nil,
	)
	realtimeSvc := usecases.NewRealtimeService(cacheSvc, pub)

	disp, err := socketio.Dial(ctx, cfg.Dispatch.SocketURL, cfg.Dispatch.Namespace,
		time.Duration(cfg.Dispatch.ConnectTimeout)*time.Second)
	if err != nil {
		log.Fatalf("ride backend: %v", err)
	}
	defer disp.Close()

	disp.OnEvent(func(ctx context.Context, evt *domain.RideEvent) error {
		if evt.Type == domain.EventLocation {
			return realtimeSvc.ProcessLocation(ctx, evt)
		}
		_, err := bookingSvc.HandleRideEvent(ctx, evt)
		return err
	})

	if err := sub.SubscribeRideRequests(ctx, disp.Dispatch); err != nil {
		log.Fatalf("subscribe ride requests: %v", err)
	}

	// Cancellations made through the API reach the backend from here.
	if err := sub.SubscribeRideEvents(ctx, func(ctx context.Context, evt *domain.RideEvent) error {
		if evt.Type != domain.EventCancelled || evt.Source == domain.SourceRider {
			return nil
		}
		return disp.CancelRide(ctx, evt.BookingID, evt.SegmentIndex, evt.Reason)
	}); err != nil {
		log.Fatalf("subscribe ride events: %v", err)
	}

	slog.Info("dispatcher started", "backend", cfg.Dispatch.SocketURL)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down dispatcher", "signal", sig.String())
}
