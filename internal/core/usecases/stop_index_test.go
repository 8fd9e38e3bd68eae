package usecases_test

import (
	"math"
	"testing"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/geospatial"
)

// stopNorthOf places a stop due north of center at roughly meters away,
// nudged so its computed distance does not exceed meters.
func stopNorthOf(code string, center domain.GeoPoint, meters float64) domain.Stop {
	lat := center.Lat + meters/geospatial.EarthRadiusMeters*180/math.Pi
	p := domain.GeoPoint{Lat: lat, Lon: center.Lon}
	for geospatial.Distance(center, p) > meters {
		p.Lat = math.Nextafter(p.Lat, center.Lat)
	}
	return domain.Stop{Code: code, Location: p}
}

func TestRadiusForZoom(t *testing.T) {
	cases := []struct {
		zoom   float64
		radius float64
		ok     bool
	}{
		{13, 0, false},
		{13.99, 0, false},
		{14, 2000, true},
		{15.5, 2000, true},
		{16, 1000, true},
		{19, 1000, true},
		{math.NaN(), 0, false},
	}
	for _, tc := range cases {
		radius, ok := usecases.RadiusForZoom(tc.zoom)
		if radius != tc.radius || ok != tc.ok {
			t.Errorf("zoom %v: expected (%v, %v), got (%v, %v)", tc.zoom, tc.radius, tc.ok, radius, ok)
		}
	}
}

func TestIconSizeForZoom(t *testing.T) {
	if got := usecases.IconSizeForZoom(16); got != domain.IconLarge {
		t.Errorf("expected large at 16, got %s", got)
	}
	if got := usecases.IconSizeForZoom(15.9); got != domain.IconSmall {
		t.Errorf("expected small at 15.9, got %s", got)
	}
}

func TestNearbyStops_LowZoomIsEmpty(t *testing.T) {
	center := domain.GeoPoint{Lat: 1.3, Lon: 103.9}
	stops := []domain.Stop{{Code: "1", Location: center}}

	got := usecases.NearbyStops(stops, center, 13)
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", got)
	}
}

func TestNearbyStops_BoundaryInclusive(t *testing.T) {
	center := domain.GeoPoint{Lat: 1.3, Lon: 103.9}
	edge := stopNorthOf("edge", center, 1000)
	if d := geospatial.Distance(center, edge.Location); d < 999.999 {
		t.Fatalf("edge stop too close to be a boundary case: %f", d)
	}
	outside := domain.Stop{
		Code:     "outside",
		Location: domain.GeoPoint{Lat: center.Lat + 1000.01/geospatial.EarthRadiusMeters*180/math.Pi, Lon: center.Lon},
	}

	got := usecases.NearbyStops([]domain.Stop{edge, outside}, center, 16)
	if len(got) != 1 || got[0].Code != "edge" {
		t.Fatalf("expected only the edge stop, got %v", got)
	}
	if got[0].Distance == nil {
		t.Error("expected distance to be set")
	}
}

func TestNearbyStops_WideRadiusAtMidZoom(t *testing.T) {
	center := domain.GeoPoint{Lat: 1.3, Lon: 103.9}
	stops := []domain.Stop{
		stopNorthOf("a", center, 500),
		stopNorthOf("b", center, 1500),
		stopNorthOf("c", center, 2500),
	}

	got := usecases.NearbyStops(stops, center, 15)
	if len(got) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(got))
	}
	if got[0].Code != "a" || got[1].Code != "b" {
		t.Errorf("expected input order a, b; got %s, %s", got[0].Code, got[1].Code)
	}

	got = usecases.NearbyStops(stops, center, 16)
	if len(got) != 1 || got[0].Code != "a" {
		t.Errorf("expected only a at zoom 16, got %v", got)
	}
}

func TestNearbyStops_InvalidCenter(t *testing.T) {
	stops := []domain.Stop{{Code: "1", Location: domain.GeoPoint{Lat: 1.3, Lon: 103.9}}}
	got := usecases.NearbyStops(stops, domain.GeoPoint{Lat: math.NaN(), Lon: 103.9}, 16)
	if len(got) != 0 {
		t.Errorf("expected empty result for NaN center, got %d", len(got))
	}
}
