package http

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/multiride/internal/adapters/nats"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
)

const wsPingInterval = 30 * time.Second

// BookingStreamHandler upgrades to WebSocket and relays every ride event of
// one booking (ride.events.<id>.>) to the client. An optional ?segment=N
// query narrows the stream to one leg.
func BookingStreamHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		bookingID := c.Params("id")
		segment := -1
		if s := c.Query("segment"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				segment = n
			}
		}
		logger := slog.Default().With("booking_id", bookingID, "remote", c.RemoteAddr().String())

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		if nc == nil {
			_ = writeJSON(map[string]string{"error": "event stream unavailable"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()
		logger.Info("ws client connected")

		sub, err := nc.Subscribe(natsadapter.BookingEventsSubject(bookingID), func(msg *nats.Msg) {
			if segment >= 0 {
				var evt domain.RideEvent
				if err := json.Unmarshal(msg.Data, &evt); err != nil || evt.SegmentIndex != segment {
					return
				}
			}
			_ = writeJSON(json.RawMessage(msg.Data))
		})
		if err != nil {
			logger.Error("ws subscribe", "error", err)
			_ = writeJSON(map[string]string{"error": "subscribe failed"})
			return
		}
		defer func() { _ = sub.Unsubscribe() }()

		_ = writeJSON(map[string]string{"status": "subscribed", "booking_id": bookingID})

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(wsPingInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		// The stream is one-way; reading only detects the close.
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		logger.Info("ws client disconnected")
	}
}
