package usecases

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/samirrijal/multiride/internal/core/domain"
)

// ErrUnknownRideType is returned when a ride type has no pricing.
var ErrUnknownRideType = errors.New("unknown ride type")

// OptionLuxury upgrades a car leg to luxury pricing.
const OptionLuxury = "luxury"

const currencyINR = "INR"

// DefaultFareRates is the published rate card.
var DefaultFareRates = []domain.FareRate{
	{RideType: domain.RideBike, Label: "Bike", Base: 30, PerKm: 10},
	{RideType: domain.RideAuto, Label: "Auto Rickshaw", Base: 50, PerKm: 15},
	{RideType: domain.RideCar, Label: "Taxi", Base: 80, PerKm: 20},
	{RideType: domain.RideSUV, Label: "SUV", Base: 120, PerKm: 25},
	{RideType: domain.RideLuxury, Label: "Luxury", Base: 200, PerKm: 40},
	{RideType: domain.RideMetro, Label: "Metro", Base: 10, PerKm: 5},
}

// metroSlabs maps an upper distance bound in km to a flat ticket price.
var metroSlabs = []struct {
	maxKm float64
	fare  int
}{
	{2, 10},
	{5, 20},
	{10, 30},
	{15, 40},
	{25, 50},
}

const metroMaxFare = 60

// FareService prices legs per ride type.
type FareService struct {
	rates map[domain.RideType]domain.FareRate
}

// NewFareService creates a FareService over the given rate card.
func NewFareService(rates []domain.FareRate) *FareService {
	m := make(map[domain.RideType]domain.FareRate, len(rates))
	for _, r := range rates {
		m[r.RideType] = r
	}
	return &FareService{rates: m}
}

// Known reports whether rt can be priced.
func (s *FareService) Known(rt domain.RideType) bool {
	_, ok := s.rates[rt]
	return ok
}

// Rates returns the rate card ordered by base fare.
func (s *FareService) Rates() []domain.FareRate {
	out := make([]domain.FareRate, 0, len(s.rates))
	for _, r := range s.rates {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Base != out[j].Base {
			return out[i].Base < out[j].Base
		}
		return out[i].RideType < out[j].RideType
	})
	return out
}

// Quote prices one ride type over distanceMeters.
func (s *FareService) Quote(rt domain.RideType, option string, distanceMeters float64) (domain.FareQuote, error) {
	pricing := rt
	if rt == domain.RideCar && option == OptionLuxury {
		pricing = domain.RideLuxury
	}
	rate, ok := s.rates[pricing]
	if !ok {
		return domain.FareQuote{}, fmt.Errorf("%w: %q", ErrUnknownRideType, rt)
	}

	km := math.Max(distanceMeters, 0) / 1000

	var fare int
	if rt == domain.RideMetro {
		fare = MetroFare(km)
	} else {
		fare = roundUpToFive(rate.Base + km*rate.PerKm)
	}

	return domain.FareQuote{
		RideType:   rt,
		Option:     option,
		Label:      rate.Label,
		DistanceKm: math.Round(km*100) / 100,
		Fare:       fare,
		Currency:   currencyINR,
	}, nil
}

// QuoteAll prices every ride type over distanceMeters, cheapest first.
func (s *FareService) QuoteAll(distanceMeters float64) []domain.FareQuote {
	quotes := make([]domain.FareQuote, 0, len(s.rates))
	for rt := range s.rates {
		q, err := s.Quote(rt, "", distanceMeters)
		if err != nil {
			continue
		}
		quotes = append(quotes, q)
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].Fare != quotes[j].Fare {
			return quotes[i].Fare < quotes[j].Fare
		}
		return quotes[i].RideType < quotes[j].RideType
	})
	return quotes
}

// MetroFare is the slab ticket price for a metro ride of km kilometers.
func MetroFare(km float64) int {
	for _, slab := range metroSlabs {
		if km <= slab.maxKm {
			return slab.fare
		}
	}
	return metroMaxFare
}

// roundUpToFive rounds a fare up to the next multiple of 5 rupees.
func roundUpToFive(fare float64) int {
	// Absorb float noise so exact multiples do not round up.
	return int(math.Ceil(fare/5-1e-9)) * 5
}
