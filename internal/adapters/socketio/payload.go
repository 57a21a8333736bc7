package socketio

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// Event names spoken by the ride backend.
const (
	EventUserRequest       = "user_request"
	EventUserCancelledRide = "user_cancelled_ride"

	EventRideAccept          = "ride_accept"
	EventRideStarted         = "ride_started"
	EventRideCompleted       = "ride_completed"
	EventRiderCancelledRide  = "rider_cancelled_ride"
	EventRiderLocation       = "rider_location"
	EventRiderLocationUpdate = "rider_location_update"
)

// inbound lists every backend event mapped onto a domain.RideEvent.
var inbound = map[string]domain.RideEventType{
	EventRideAccept:          domain.EventAccepted,
	EventRideStarted:         domain.EventStarted,
	EventRideCompleted:       domain.EventCompleted,
	EventRiderCancelledRide:  domain.EventCancelled,
	EventRiderLocation:       domain.EventLocation,
	EventRiderLocationUpdate: domain.EventLocation,
}

// ErrMissingBookingID marks backend payloads that cannot be routed to a booking.
var ErrMissingBookingID = errors.New("payload has no bookingId")

type userRef struct {
	ID string `json:"id"`
}

type rideRef struct {
	ID string `json:"id"`
}

type segmentInfo struct {
	Index       int     `json:"index"`
	Option      string  `json:"option,omitempty"`
	DistanceKm  float64 `json:"distanceKm"`
	DurationSec int     `json:"durationSec"`
}

// RequestPayload is the body of a user_request emit.
type RequestPayload struct {
	BookingID     string       `json:"bookingId"`
	User          userRef      `json:"user"`
	Origin        domain.Place `json:"origin"`
	Destination   domain.Place `json:"destination"`
	Ride          rideRef      `json:"ride"`
	Fare          int          `json:"fare"`
	Segment       segmentInfo  `json:"segment"`
	TotalSegments int          `json:"totalSegments"`
	SegmentIndex  int          `json:"segmentIndex"`
	PickupGeohash string       `json:"pickupGeohash"`
	CreatedAt     string       `json:"createdAt"`
}

// NewRequestPayload shapes a ride request the way the backend expects it.
func NewRequestPayload(req *domain.RideRequest) RequestPayload {
	created := req.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return RequestPayload{
		BookingID:   req.BookingID,
		User:        userRef{ID: req.UserID},
		Origin:      req.Origin,
		Destination: req.Destination,
		Ride:        rideRef{ID: string(req.Mode)},
		Fare:        req.Fare,
		Segment: segmentInfo{
			Index:       req.SegmentIndex,
			Option:      req.Option,
			DistanceKm:  req.DistanceKm,
			DurationSec: req.DurationSec,
		},
		TotalSegments: req.TotalSegments,
		SegmentIndex:  req.SegmentIndex,
		PickupGeohash: req.PickupGeohash,
		CreatedAt:     created.UTC().Format(time.RFC3339),
	}
}

// CancelPayload is the body of a user_cancelled_ride emit.
type CancelPayload struct {
	Msg          string `json:"msg"`
	BookingID    string `json:"bookingId"`
	SegmentIndex int    `json:"segmentIndex"`
}

type rider struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	VehicleType string `json:"vehicleType,omitempty"`
	PlateNo     string `json:"plateNo,omitempty"`
}

type coords struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

func (c coords) latLng() *domain.LatLng {
	if c.Lat == nil || c.Lng == nil {
		return nil
	}
	return &domain.LatLng{Lat: *c.Lat, Lng: *c.Lng}
}

type inboundPayload struct {
	BookingID    string `json:"bookingId"`
	SegmentIndex int    `json:"segmentIndex"`
	RiderDetails *struct {
		Rider         rider  `json:"rider"`
		RiderLocation coords `json:"riderLocation"`
	} `json:"riderDetails"`
	Rider  *rider `json:"rider"`
	Reason string `json:"reason"`
	Msg    string `json:"msg"`
	coords
}

// ParseEvent maps a backend event and its arguments onto a ride event.
// Arguments arrive as decoded JSON, so the first one is re-encoded and
// decoded into the expected shape.
func ParseEvent(name string, args []any) (*domain.RideEvent, error) {
	typ, ok := inbound[name]
	if !ok {
		return nil, fmt.Errorf("unknown event %q", name)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingBookingID)
	}

	raw, err := json.Marshal(args[0])
	if err != nil {
		return nil, fmt.Errorf("%s: encode payload: %w", name, err)
	}
	var p inboundPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%s: decode payload: %w", name, err)
	}
	if p.BookingID == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrMissingBookingID)
	}

	evt := &domain.RideEvent{
		BookingID:    p.BookingID,
		SegmentIndex: p.SegmentIndex,
		Type:         typ,
		Source:       domain.SourceRider,
		Location:     p.coords.latLng(),
		Reason:       p.Reason,
		OccurredAt:   time.Now().UTC(),
	}
	if evt.Reason == "" {
		evt.Reason = p.Msg
	}

	d := p.Rider
	if p.RiderDetails != nil {
		d = &p.RiderDetails.Rider
		if loc := p.RiderDetails.RiderLocation.latLng(); loc != nil {
			evt.Location = loc
		}
	}
	if d != nil {
		evt.DriverID = d.ID
		evt.DriverName = d.Name
	}

	if typ == domain.EventLocation && evt.Location == nil {
		return nil, fmt.Errorf("%s: payload has no coordinates", name)
	}
	return evt, nil
}
