package domain

import (
	"time"
)

// RideType identifies a vehicle class (and its pricing).
type RideType string

const (
	RideBike   RideType = "bike"
	RideAuto   RideType = "auto"
	RideCar    RideType = "car"
	RideSUV    RideType = "suv"
	RideLuxury RideType = "luxury"
	RideMetro  RideType = "metro"
)

// FareRate is the pricing of a ride type in INR.
type FareRate struct {
	RideType RideType `json:"ride_type"`
	Label    string   `json:"label"`
	Base     float64  `json:"base"`
	PerKm    float64  `json:"per_km"`
}

// FareQuote is the price of one ride type over a distance.
type FareQuote struct {
	RideType   RideType `json:"ride_type"`
	Option     string   `json:"option,omitempty"`
	Label      string   `json:"label"`
	DistanceKm float64  `json:"distance_km"`
	Fare       int      `json:"fare"`
	Currency   string   `json:"currency"`
}

// Place is a geocoded location with its human-readable description.
type Place struct {
	Location    LatLng `json:"location"`
	Description string `json:"description,omitempty"`
}

// LegChoice is the caller's pick of mode (and option) for one leg.
type LegChoice struct {
	Mode   RideType `json:"mode"`
	Option string   `json:"option,omitempty"`
}

// DirectionsRoute is the driving route returned by a directions provider.
type DirectionsRoute struct {
	Polyline        string `json:"polyline"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`
	Summary         string `json:"summary,omitempty"`
}

// Leg is one priced segment of a trip plan.
type Leg struct {
	Index           int      `json:"index"`
	Start           LatLng   `json:"start"`
	End             LatLng   `json:"end"`
	Mode            RideType `json:"mode"`
	Option          string   `json:"option,omitempty"`
	DistanceMeters  float64  `json:"distance_meters"`
	DurationSeconds int      `json:"duration_seconds"`
	Fare            int      `json:"fare"`
	PickupGeohash   string   `json:"pickup_geohash"`
}

// TripPlan is a route split into legs, each with its own mode and fare.
type TripPlan struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Origin          Place     `json:"origin"`
	Destination     Place     `json:"destination"`
	Polyline        string    `json:"polyline"`
	DistanceMeters  float64   `json:"distance_meters"`
	DurationSeconds int       `json:"duration_seconds"`
	TotalFare       int       `json:"total_fare"`
	Fallback        bool      `json:"fallback"`
	Bounds          Bounds    `json:"bounds"`
	Legs            []Leg     `json:"legs"`
	CreatedAt       time.Time `json:"created_at"`
}

// RideStatus is the lifecycle state of a single leg's ride.
type RideStatus string

const (
	RideRequested RideStatus = "requested"
	RideAccepted  RideStatus = "accepted"
	RideStarted   RideStatus = "started"
	RideCompleted RideStatus = "completed"
	RideCancelled RideStatus = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s RideStatus) Terminal() bool {
	return s == RideCompleted || s == RideCancelled
}

// BookingStatus summarises the states of all legs of a booking.
type BookingStatus string

const (
	BookingRequested  BookingStatus = "requested"
	BookingAccepted   BookingStatus = "accepted"
	BookingInProgress BookingStatus = "in_progress"
	BookingCompleted  BookingStatus = "completed"
	BookingCancelled  BookingStatus = "cancelled"
)

// BookingLeg tracks the ride of one leg.
type BookingLeg struct {
	SegmentIndex int        `json:"segment_index"`
	Mode         RideType   `json:"mode"`
	Option       string     `json:"option,omitempty"`
	Fare         int        `json:"fare"`
	Status       RideStatus `json:"status"`
	DriverID     string     `json:"driver_id,omitempty"`
	DriverName   string     `json:"driver_name,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Booking is a booked trip plan.
type Booking struct {
	ID        string        `json:"id"`
	PlanID    string        `json:"plan_id"`
	UserID    string        `json:"user_id"`
	Status    BookingStatus `json:"status"`
	TotalFare int           `json:"total_fare"`
	Legs      []BookingLeg  `json:"legs"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// BookingUpdate is broadcast whenever a booking's overall status changes.
type BookingUpdate struct {
	BookingID    string        `json:"booking_id"`
	UserID       string        `json:"user_id"`
	Status       BookingStatus `json:"status"`
	SegmentIndex int           `json:"segment_index"`
	Event        RideEventType `json:"event"`
	At           time.Time     `json:"at"`
}

// RideRequest asks the ride backend for a driver on one leg.
type RideRequest struct {
	BookingID     string    `json:"bookingId"`
	UserID        string    `json:"userId"`
	SegmentIndex  int       `json:"segmentIndex"`
	TotalSegments int       `json:"totalSegments"`
	Origin        Place     `json:"origin"`
	Destination   Place     `json:"destination"`
	Mode          RideType  `json:"mode"`
	Option        string    `json:"option,omitempty"`
	Fare          int       `json:"fare"`
	DistanceKm    float64   `json:"distanceKm"`
	DurationSec   int       `json:"durationSec"`
	PickupGeohash string    `json:"pickupGeohash"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RideEventType classifies ride lifecycle events.
type RideEventType string

const (
	EventAccepted  RideEventType = "accepted"
	EventStarted   RideEventType = "started"
	EventCompleted RideEventType = "completed"
	EventCancelled RideEventType = "cancelled"
	EventLocation  RideEventType = "location"
)

// EventSource tells who caused a ride event.
type EventSource string

const (
	SourceUser   EventSource = "user"
	SourceRider  EventSource = "rider"
	SourceSystem EventSource = "system"
)

// RideEvent is a lifecycle or location update for one leg of a booking.
type RideEvent struct {
	ID           int64         `json:"id,omitempty"`
	BookingID    string        `json:"booking_id"`
	SegmentIndex int           `json:"segment_index"`
	Type         RideEventType `json:"type"`
	Source       EventSource   `json:"source"`
	DriverID     string        `json:"driver_id,omitempty"`
	DriverName   string        `json:"driver_name,omitempty"`
	Location     *LatLng       `json:"location,omitempty"`
	Reason       string        `json:"reason,omitempty"`
	OccurredAt   time.Time     `json:"occurred_at"`
}
