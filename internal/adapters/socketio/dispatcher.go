// Package socketio bridges ride requests to the ride backend over socket.io
// and turns the backend's lifecycle events back into domain events.
package socketio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	"go.opentelemetry.io/otel"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
	"github.com/samirrijal/multiride/internal/pkg/telemetry"
)

// ErrDisconnected is returned when emitting while the socket is down.
var ErrDisconnected = errors.New("socket.io not connected")

// EventHandler receives every ride event decoded from the backend.
type EventHandler func(ctx context.Context, evt *domain.RideEvent) error

// Dispatcher implements ports.RideDispatcher over a socket.io connection.
type Dispatcher struct {
	io     *socket.Socket
	logger *slog.Logger

	mu      sync.RWMutex
	handler EventHandler
}

// Dial connects to the backend at rawURL and waits up to timeout for the
// handshake. The URL path, if any, is used as the socket.io path.
func Dial(ctx context.Context, rawURL, namespace string, timeout time.Duration) (*Dispatcher, error) {
	logger := slog.Default().With("component", "socketio", "url", rawURL)

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(namespace, opts)

	d := &Dispatcher{io: io, logger: logger}
	d.listen()

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err, _ := errs[0].(error)
		if err == nil {
			err = fmt.Errorf("%v", errs[0])
		}
		connected <- err
	})
	io.On(types.EventName("disconnect"), func(reason ...any) {
		logger.Warn("socket.io disconnected", "reason", reason)
	})

	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connect: %w", err)
		}
		logger.Info("socket.io connected", "sid", io.Id())
		return d, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("socket.io connect: %w", ctx.Err())
	case <-time.After(timeout):
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

// OnEvent registers the handler for decoded backend events.
func (d *Dispatcher) OnEvent(h EventHandler) {
	d.mu.Lock()
	d.handler = h
	d.mu.Unlock()
}

func (d *Dispatcher) listen() {
	for name := range inbound {
		d.io.On(types.EventName(name), func(args ...any) {
			d.receive(name, args)
		})
	}
}

func (d *Dispatcher) receive(name string, args []any) {
	evt, err := ParseEvent(name, args)
	if err != nil {
		d.logger.Warn("dropping ride event", "event", name, "error", err)
		return
	}
	metrics.RideEvents.WithLabelValues(string(evt.Type)).Inc()

	d.mu.RLock()
	h := d.handler
	d.mu.RUnlock()
	if h == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := h(ctx, evt); err != nil {
		d.logger.Error("handle ride event",
			"event", name, "booking_id", evt.BookingID, "segment", evt.SegmentIndex, "error", err)
	}
}

// Dispatch emits a user_request for one leg.
func (d *Dispatcher) Dispatch(ctx context.Context, req *domain.RideRequest) error {
	_, span := otel.Tracer(telemetry.TracerDispatch).Start(ctx, "socketio.Dispatch")
	defer span.End()

	if !d.io.Connected() {
		return ErrDisconnected
	}
	d.io.Emit(EventUserRequest, NewRequestPayload(req))
	metrics.RideRequestsDispatched.WithLabelValues(string(req.Mode)).Inc()
	d.logger.Info("ride requested",
		"booking_id", req.BookingID, "segment", req.SegmentIndex, "mode", req.Mode)
	return nil
}

// CancelRide tells the backend the user cancelled one leg.
func (d *Dispatcher) CancelRide(ctx context.Context, bookingID string, segmentIndex int, reason string) error {
	if !d.io.Connected() {
		return ErrDisconnected
	}
	if reason == "" {
		reason = "user cancelled"
	}
	d.io.Emit(EventUserCancelledRide, CancelPayload{
		Msg:          reason,
		BookingID:    bookingID,
		SegmentIndex: segmentIndex,
	})
	return nil
}

// Close disconnects from the backend.
func (d *Dispatcher) Close() {
	d.logger.Info("closing socket.io client", "sid", d.io.Id())
	d.io.Disconnect()
}
