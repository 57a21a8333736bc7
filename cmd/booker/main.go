package main

import (
	"context"
	"log"
	"log/slog"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/multiride/internal/adapters/nats"
	"github.com/samirrijal/multiride/internal/adapters/postgres"
	"github.com/samirrijal/multiride/internal/core/usecases"
	"github.com/samirrijal/multiride/internal/pkg/config"
	"github.com/samirrijal/multiride/internal/pkg/logging"
	"github.com/samirrijal/multiride/internal/workflows"
)

func main() {
	cfg, err := config.Load("multiride-booker")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	bookingSvc := usecases.NewBookingService(
		postgres.NewPlanRepo(db),
		postgres.NewBookingRepo(db),
		postgres.NewRideEventRepo(db),
		pub,
		nil,
	)

	// Connect to Temporal
	c, err := client.Dial(client.Options{
		HostPort: cfg.Temporal.HostPort,
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.BookingWorkflow)
	w.RegisterActivity(&workflows.BookingActivities{Bookings: bookingSvc})

	slog.Info("booking worker started", "task_queue", cfg.Temporal.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("worker: %v", err)
	}
}
