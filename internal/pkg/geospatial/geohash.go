package geospatial

import "github.com/mmcloughlin/geohash"

// Geohash precisions used across the service.
const (
	// PickupPrecision (~150 m cells) tags ride requests for driver matching.
	PickupPrecision uint = 7
	// CachePrecision (~38 m cells) keys cached directions lookups.
	CachePrecision uint = 8
)

// Geohash encodes a coordinate at the given precision.
func Geohash(lat, lon float64, precision uint) string {
	return geohash.EncodeWithPrecision(lat, lon, precision)
}
