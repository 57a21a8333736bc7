package geospatial_test

import (
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/samirrijal/multiride/internal/pkg/geospatial"
)

func TestHaversine_OneDegreeOfLatitude(t *testing.T) {
	d := geospatial.Haversine(0, 0, 1, 0)
	// 2πR/360 with R = 6371 km.
	want := 111194.93
	if math.Abs(d-want) > 1 {
		t.Errorf("expected ~%.0f m, got %.2f", want, d)
	}
}

func TestHaversine_SamePoint(t *testing.T) {
	if d := geospatial.Haversine(12.97, 77.59, 12.97, 77.59); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}
}

func TestCumulativeDistances(t *testing.T) {
	line := orb.LineString{{0, 0}, {0, 0.01}, {0, 0.02}, {0, 0.02}}
	cum := geospatial.CumulativeDistances(line)

	if len(cum) != len(line) {
		t.Fatalf("expected %d entries, got %d", len(line), len(cum))
	}
	if cum[0] != 0 {
		t.Errorf("expected first entry 0, got %f", cum[0])
	}
	for i := 1; i < len(cum); i++ {
		if cum[i] < cum[i-1] {
			t.Errorf("entry %d decreased: %f < %f", i, cum[i], cum[i-1])
		}
	}
	if cum[3] != cum[2] {
		t.Errorf("duplicate vertex should add no distance: %f vs %f", cum[3], cum[2])
	}
	if total := geospatial.PathLength(line); math.Abs(total-cum[3]) > 1e-9 {
		t.Errorf("PathLength %f disagrees with cumulative %f", total, cum[3])
	}
}

func TestCumulativeDistances_Empty(t *testing.T) {
	if cum := geospatial.CumulativeDistances(nil); cum != nil {
		t.Errorf("expected nil, got %v", cum)
	}
}

func TestGeohash(t *testing.T) {
	// Reference cell from the geohash.org examples.
	got := geospatial.Geohash(57.64911, 10.40744, 11)
	if got != "u4pruydqqvj" {
		t.Errorf("unexpected geohash %q", got)
	}
	if len(geospatial.Geohash(12.9716, 77.5946, geospatial.PickupPrecision)) != 7 {
		t.Error("expected 7-character pickup geohash")
	}
}
