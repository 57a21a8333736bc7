package geospatial

import (
	"math"

	"github.com/paulmach/orb"
)

const earthRadiusKm = 6371.0

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c * 1000 // meters
}

// PointDistance is Haversine over orb points.
func PointDistance(a, b orb.Point) float64 {
	return Haversine(a.Lat(), a.Lon(), b.Lat(), b.Lon())
}

// CumulativeDistances returns the running path length in meters at every
// vertex of line. The first element is always 0.
func CumulativeDistances(line orb.LineString) []float64 {
	if len(line) == 0 {
		return nil
	}
	out := make([]float64, len(line))
	for i := 1; i < len(line); i++ {
		out[i] = out[i-1] + PointDistance(line[i-1], line[i])
	}
	return out
}

// PathLength returns the total length of line in meters.
func PathLength(line orb.LineString) float64 {
	var total float64
	for i := 1; i < len(line); i++ {
		total += PointDistance(line[i-1], line[i])
	}
	return total
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
