// Package segmentation splits a route into legs of roughly equal path length.
//
// Boundaries are always vertices of the decoded route: the first vertex,
// up to segmentCount-1 interior vertices at which the running distance
// first reaches each multiple of total/segmentCount, and the last vertex.
// Nothing is interpolated, so a sparse route yields fewer boundaries than
// requested rather than invented points.
package segmentation

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/samirrijal/multiride/internal/core/domain"
	"github.com/samirrijal/multiride/internal/pkg/geospatial"
	"github.com/samirrijal/multiride/internal/pkg/polyline"
)

var (
	// ErrMissingGeometry means the route carried no usable geometry.
	ErrMissingGeometry = errors.New("route has no geometry")
	// ErrInsufficientGeometry means the route decoded to fewer than two points.
	ErrInsufficientGeometry = errors.New("route has fewer than two points")
	// ErrInvalidSegmentCount means fewer than one segment was requested.
	ErrInvalidSegmentCount = errors.New("segment count must be at least 1")
)

// Total lengths below this are treated as a route that does not move.
const zeroLength = 1e-6

// Boundary is a route vertex chosen as a segment edge.
type Boundary struct {
	Index  int       // vertex index in the decoded route
	Point  orb.Point // vertex coordinate
	Offset float64   // meters along the route from the first vertex
}

// Split decodes an encoded polyline and returns the boundary points that
// cut it into segmentCount legs of near-equal path length.
//
// The result holds between 2 and segmentCount+1 points; the first and last
// are the route's endpoints. It never returns a partial list: on error the
// slice is nil.
func Split(encoded string, segmentCount int) ([]domain.LatLng, error) {
	if encoded == "" {
		return nil, ErrMissingGeometry
	}
	line, err := polyline.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingGeometry, err)
	}

	bounds, err := Boundaries(line, segmentCount)
	if err != nil {
		return nil, err
	}

	out := make([]domain.LatLng, len(bounds))
	for i, b := range bounds {
		out[i] = domain.LatLngFromPoint(b.Point)
	}
	return out, nil
}

// Boundaries runs the split over decoded geometry and keeps each
// boundary's vertex index and distance offset.
func Boundaries(line orb.LineString, segmentCount int) ([]Boundary, error) {
	if segmentCount < 1 {
		return nil, ErrInvalidSegmentCount
	}
	if len(line) == 0 {
		return nil, ErrMissingGeometry
	}
	if len(line) < 2 {
		return nil, ErrInsufficientGeometry
	}

	cum := geospatial.CumulativeDistances(line)
	last := len(line) - 1
	total := cum[last]

	// A route cannot yield more boundaries than it has vertices.
	out := make([]Boundary, 1, min(segmentCount, last)+1)
	out[0] = Boundary{Index: 0, Point: line[0]}

	if total < zeroLength {
		return append(out, Boundary{Index: last, Point: line[last], Offset: total}), nil
	}

	step := total / float64(segmentCount)
	next := step
	for i := 1; i <= last && len(out) < segmentCount; i++ {
		if cum[i] >= next {
			out = append(out, Boundary{Index: i, Point: line[i], Offset: cum[i]})
			next += step
		}
	}

	// Compared by index: a loop route ends where it starts but still needs
	// its closing boundary.
	if out[len(out)-1].Index != last {
		out = append(out, Boundary{Index: last, Point: line[last], Offset: total})
	}
	return out, nil
}

// Pair turns consecutive boundaries into segments and labels them with
// modes by position. Surplus modes are ignored; when modes run out the
// last one is repeated.
func Pair(boundaries []domain.LatLng, modes []string) []domain.Segment {
	if len(boundaries) < 2 {
		return nil
	}

	segs := make([]domain.Segment, 0, len(boundaries)-1)
	for i := 0; i < len(boundaries)-1; i++ {
		var mode string
		switch {
		case i < len(modes):
			mode = modes[i]
		case len(modes) > 0:
			mode = modes[len(modes)-1]
		}
		segs = append(segs, domain.Segment{
			Index: i,
			Start: boundaries[i],
			End:   boundaries[i+1],
			Mode:  mode,
		})
	}
	return segs
}
