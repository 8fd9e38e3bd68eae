package domain

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Geometry is an area shape. It is implemented only by GeoPolygon and
// GeoMultiPolygon.
type Geometry interface {
	geometry()
}

// GeoPolygon is a polygon given as rings of vertices. Rings[0] is the outer
// ring; later rings are holes. Rings are closed implicitly (last vertex
// connects to the first).
type GeoPolygon struct {
	Rings [][]GeoPoint `json:"rings"`
}

// GeoMultiPolygon is a set of disjoint polygons forming one area.
type GeoMultiPolygon struct {
	Polygons []GeoPolygon `json:"polygons"`
}

func (GeoPolygon) geometry()      {}
func (GeoMultiPolygon) geometry() {}

// Outer returns the outer ring, or nil when the polygon has no rings.
func (p GeoPolygon) Outer() []GeoPoint {
	if len(p.Rings) == 0 {
		return nil
	}
	return p.Rings[0]
}
