package geospatial

import "github.com/samirrijal/busradar/internal/core/domain"

// PointInPolygon reports whether p lies inside the closed ring using
// even-odd ray casting. Latitude is treated as y and longitude as x.
// Rings with fewer than 3 vertices contain nothing. Points exactly on an
// edge may land on either side.
func PointInPolygon(p domain.GeoPoint, ring []domain.GeoPoint) bool {
	n := len(ring)
	if n < 3 {
		return false
	}

	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		yi, xi := ring[i].Lat, ring[i].Lon
		yj, xj := ring[j].Lat, ring[j].Lon
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lon < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// ContainsLocation reports whether g contains p. Only the outer ring of each
// polygon is tested, so points inside a hole still count as contained.
// A nil geometry or a non-finite point contains nothing.
func ContainsLocation(p domain.GeoPoint, g domain.Geometry) bool {
	if !ValidPoint(p) {
		return false
	}
	switch geom := g.(type) {
	case domain.GeoPolygon:
		return PointInPolygon(p, geom.Outer())
	case *domain.GeoPolygon:
		return geom != nil && PointInPolygon(p, geom.Outer())
	case domain.GeoMultiPolygon:
		return multiContains(p, geom)
	case *domain.GeoMultiPolygon:
		return geom != nil && multiContains(p, *geom)
	default:
		return false
	}
}

func multiContains(p domain.GeoPoint, mp domain.GeoMultiPolygon) bool {
	for _, poly := range mp.Polygons {
		if PointInPolygon(p, poly.Outer()) {
			return true
		}
	}
	return false
}
