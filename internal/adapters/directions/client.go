// Package directions fetches driving routes from a Google Directions
// compatible endpoint.
package directions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"

	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/core/ports"
	"github.com/samirrijal/multiride/internal/pkg/metrics"
	"github.com/samirrijal/multiride/internal/pkg/telemetry"
)

// ErrNoRoute is returned when the provider answers but has no route.
var ErrNoRoute = ports.ErrNoRoute

type response struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Routes       []route `json:"routes"`
}

type route struct {
	Summary          string `json:"summary"`
	OverviewPolyline struct {
		Points string `json:"points"`
	} `json:"overview_polyline"`
	Legs []struct {
		Distance struct {
			Value int `json:"value"`
		} `json:"distance"`
		Duration struct {
			Value int `json:"value"`
		} `json:"duration"`
	} `json:"legs"`
}

// Client implements ports.DirectionsProvider over fasthttp.
type Client struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	http    *fasthttp.Client
}

// Option customises a Client.
type Option func(*Client)

// WithDial replaces the client's dialer.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

// NewClient creates a directions client. baseURL is the full JSON endpoint,
// e.g. https://maps.googleapis.com/maps/api/directions/json.
func NewClient(baseURL, apiKey string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		http: &fasthttp.Client{
			Name:                "multiride",
			MaxConnsPerHost:     64,
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Route returns the first driving route between origin and destination.
func (c *Client) Route(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error) {
	ctx, span := otel.Tracer(telemetry.TracerDirections).Start(ctx, "directions.Route")
	defer span.End()

	start := time.Now()
	out, err := c.fetch(ctx, origin, destination)
	status := "ok"
	switch {
	case errors.Is(err, ErrNoRoute):
		status = "no_route"
	case err != nil:
		status = "error"
		span.RecordError(err)
	}
	metrics.DirectionsFetchDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	return out, err
}

func (c *Client) fetch(ctx context.Context, origin, destination domain.LatLng) (*domain.DirectionsRoute, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.requestURL(origin, destination))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")

	timeout := c.timeout
	if dl, ok := ctx.Deadline(); ok {
		if until := time.Until(dl); until < timeout {
			timeout = until
		}
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("directions: %w", context.DeadlineExceeded)
	}

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return nil, fmt.Errorf("directions request: %w", err)
	}
	if code := resp.StatusCode(); code >= 400 {
		return nil, fmt.Errorf("directions: unexpected status %d", code)
	}

	var body response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode directions: %w", err)
	}
	return toRoute(&body)
}

func (c *Client) requestURL(origin, destination domain.LatLng) string {
	q := url.Values{}
	q.Set("origin", formatLatLng(origin))
	q.Set("destination", formatLatLng(destination))
	q.Set("mode", "driving")
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return c.baseURL + "?" + q.Encode()
}

func formatLatLng(p domain.LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', 6, 64) + "," + strconv.FormatFloat(p.Lng, 'f', 6, 64)
}

func toRoute(body *response) (*domain.DirectionsRoute, error) {
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS", "NOT_FOUND":
		return nil, ErrNoRoute
	default:
		return nil, fmt.Errorf("directions: status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Routes) == 0 {
		return nil, ErrNoRoute
	}

	r := body.Routes[0]
	out := &domain.DirectionsRoute{
		Polyline: r.OverviewPolyline.Points,
		Summary:  r.Summary,
	}
	for _, l := range r.Legs {
		out.DistanceMeters += l.Distance.Value
		out.DurationSeconds += l.Duration.Value
	}
	return out, nil
}
