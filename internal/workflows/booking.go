package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// BookingInput is the input for the booking workflow.
type BookingInput struct {
	BookingID string
	UserID    string
}

// BookingWorkflow dispatches every open leg of a booking in order. If a
// leg cannot be dispatched after retries, the booking is cancelled (saga
// compensation) and the workflow fails.
func BookingWorkflow(ctx workflow.Context, input BookingInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting booking workflow", "bookingID", input.BookingID)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: time.Second,
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	var segments []int
	if err := workflow.ExecuteActivity(ctx, "LegsToDispatch", input.BookingID).Get(ctx, &segments); err != nil {
		return err
	}

	for _, seg := range segments {
		err := workflow.ExecuteActivity(ctx, "DispatchLeg", input.BookingID, seg).Get(ctx, nil)
		if err != nil {
			logger.Warn("dispatch failed, compensating", "segment", seg, "error", err)
			// Compensate: cancel the whole booking
			_ = workflow.ExecuteActivity(ctx, "CancelBooking", input.BookingID, "dispatch failed").Get(ctx, nil)
			return err
		}
	}

	logger.Info("All legs dispatched", "bookingID", input.BookingID, "legs", len(segments))
	return nil
}
