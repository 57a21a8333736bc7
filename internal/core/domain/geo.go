package domain

import "github.com/paulmach/orb"

// LatLng is a WGS 84 coordinate in degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Point converts to an orb point (lng, lat order).
func (p LatLng) Point() orb.Point {
	return orb.Point{p.Lng, p.Lat}
}

// IsZero reports whether the coordinate is unset.
func (p LatLng) IsZero() bool {
	return p.Lat == 0 && p.Lng == 0
}

// LatLngFromPoint converts an orb point.
func LatLngFromPoint(p orb.Point) LatLng {
	return LatLng{Lat: p.Lat(), Lng: p.Lon()}
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLat float64 `json:"max_lat"`
	MaxLng float64 `json:"max_lng"`
}

// BoundsOf returns the bounding box of a line.
func BoundsOf(line orb.LineString) Bounds {
	b := line.Bound()
	return Bounds{
		MinLat: b.Min.Lat(),
		MinLng: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLng: b.Max.Lon(),
	}
}

// Segment is one leg between two consecutive boundary points.
type Segment struct {
	Index int    `json:"index"`
	Start LatLng `json:"start"`
	End   LatLng `json:"end"`
	Mode  string `json:"mode"`
}
