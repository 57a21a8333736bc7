package workflows

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"
)

// Starter implements ports.BookingOrchestrator by starting a BookingWorkflow.
type Starter struct {
	client    client.Client
	taskQueue string
}

func NewStarter(c client.Client, taskQueue string) *Starter {
	return &Starter{client: c, taskQueue: taskQueue}
}

// WorkflowID is the workflow ID used for a booking, so a booking is never
// dispatched by two workflows at once.
func WorkflowID(bookingID string) string {
	return "booking-" + bookingID
}

func (s *Starter) StartBooking(ctx context.Context, bookingID, userID string) error {
	_, err := s.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        WorkflowID(bookingID),
		TaskQueue: s.taskQueue,
	}, BookingWorkflow, BookingInput{BookingID: bookingID, UserID: userID})
	if err != nil {
		return fmt.Errorf("start booking workflow: %w", err)
	}
	return nil
}
