package usecases

import (
	"math"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/pkg/geospatial"
)

// Zoom buckets shared by the stop radius and the marker icon size.
const (
	MinStopZoom   = 14.0
	CloseStopZoom = 16.0

	WideStopRadiusMeters  = 2000.0
	CloseStopRadiusMeters = 1000.0
)

// RadiusForZoom returns the stop query radius for a zoom level. ok is false
// below MinStopZoom, where no stops are shown.
func RadiusForZoom(zoom float64) (radius float64, ok bool) {
	switch {
	case math.IsNaN(zoom) || zoom < MinStopZoom:
		return 0, false
	case zoom < CloseStopZoom:
		return WideStopRadiusMeters, true
	default:
		return CloseStopRadiusMeters, true
	}
}

// IconSizeForZoom returns the marker icon bucket for a zoom level.
func IconSizeForZoom(zoom float64) domain.IconSize {
	if zoom >= CloseStopZoom {
		return domain.IconLarge
	}
	return domain.IconSmall
}

// NearbyStops returns the stops within the zoom-dependent radius of center,
// in input order. A stop exactly on the radius is included.
func NearbyStops(stops []domain.Stop, center domain.GeoPoint, zoom float64) []domain.Stop {
	radius, ok := RadiusForZoom(zoom)
	if !ok || !geospatial.ValidPoint(center) {
		return []domain.Stop{}
	}

	out := make([]domain.Stop, 0, 16)
	for _, s := range stops {
		d := geospatial.Distance(center, s.Location)
		if d <= radius {
			s.Distance = &d
			out = append(out, s)
		}
	}
	return out
}
