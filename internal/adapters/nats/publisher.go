package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/samirrijal/multiride/internal/core/domain"
)

// Subjects.
const (
	subjectRideRequests = "ride.request."
	subjectRideEvents   = "ride.events."
	subjectBroadcast    = "ride.updates.broadcast"
)

// RideEventSubject is the subject of one event type on one booking.
func RideEventSubject(bookingID string, t domain.RideEventType) string {
	return subjectRideEvents + bookingID + "." + string(t)
}

// BookingEventsSubject matches every event of a booking.
func BookingEventsSubject(bookingID string) string {
	return subjectRideEvents + bookingID + ".>"
}

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	// Ensure streams exist
	streams := []nats.StreamConfig{
		{
			Name:      "RIDE_REQUESTS",
			Subjects:  []string{"ride.request.>"},
			Retention: nats.WorkQueuePolicy,
			MaxAge:    1 * time.Hour,
			Storage:   nats.FileStorage,
		},
		{
			Name:      "RIDE_EVENTS",
			Subjects:  []string{"ride.events.>"},
			Retention: nats.InterestPolicy,
			MaxAge:    24 * time.Hour,
			Storage:   nats.FileStorage,
		},
	}

	for _, cfg := range streams {
		if _, err := js.AddStream(&cfg); err != nil {
			// Stream may already exist; try update
			if _, err := js.UpdateStream(&cfg); err != nil {
				return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
			}
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishRideRequest queues a leg for dispatch, keyed by mode.
func (p *Publisher) PublishRideRequest(ctx context.Context, req *domain.RideRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	// Deduplicated per leg within the stream's duplicate window.
	_, err = p.js.Publish(subjectRideRequests+string(req.Mode), data,
		nats.Context(ctx),
		nats.MsgId(fmt.Sprintf("%s-%d", req.BookingID, req.SegmentIndex)),
	)
	return err
}

func (p *Publisher) PublishRideEvent(ctx context.Context, event *domain.RideEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(RideEventSubject(event.BookingID, event.Type), data, nats.Context(ctx))
	return err
}

func (p *Publisher) PublishBroadcast(ctx context.Context, data []byte) error {
	return p.conn.Publish(subjectBroadcast, data)
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// RawConn creates a plain NATS connection for subscribing (e.g. WebSocket relay).
func RawConn(url string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
}
