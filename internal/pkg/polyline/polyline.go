// Package polyline converts between Google encoded polylines and orb geometry.
package polyline

import (
	"fmt"

	"github.com/paulmach/orb"
	gpolyline "github.com/twpayne/go-polyline"
)

// Precision is the fixed-point scale of the encoding (5 decimal places).
const Precision = 1e5

// Decode parses an encoded polyline into a line string.
// Encoded pairs are (lat, lng); orb points are (lng, lat).
func Decode(encoded string) (orb.LineString, error) {
	if encoded == "" {
		return orb.LineString{}, nil
	}

	coords, rest, err := gpolyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, fmt.Errorf("decode polyline: %w", err)
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("decode polyline: %d trailing bytes", len(rest))
	}

	line := make(orb.LineString, 0, len(coords))
	for _, c := range coords {
		line = append(line, orb.Point{c[1], c[0]})
	}
	return line, nil
}

// Encode renders a line string as an encoded polyline.
func Encode(line orb.LineString) string {
	coords := make([][]float64, 0, len(line))
	for _, p := range line {
		coords = append(coords, []float64{p.Lat(), p.Lon()})
	}
	return string(gpolyline.EncodeCoords(coords))
}
