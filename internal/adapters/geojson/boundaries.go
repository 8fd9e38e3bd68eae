package geojson

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// NameProperties are the feature properties tried, in order, for the area name.
var NameProperties = []string{"PLN_AREA_N", "name", "NAME"}

// FileSource loads planning-area boundaries from a GeoJSON file.
type FileSource struct {
	path string
}

// NewFileSource creates a boundary source reading path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// LoadBoundaries reads and parses the file.
func (s *FileSource) LoadBoundaries(_ context.Context) ([]domain.Region, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read boundaries: %w", err)
	}
	return Parse(data)
}

// Parse converts a FeatureCollection into regions in feature order.
// Features that are not polygons or have no name are skipped.
func Parse(data []byte) ([]domain.Region, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, fmt.Errorf("decode boundaries: %w", err)
	}

	regions := make([]domain.Region, 0, len(fc.Features))
	for i, f := range fc.Features {
		name := featureName(f)
		if name == "" {
			slog.Warn("boundary feature has no name", "index", i)
			continue
		}

		var geom domain.Geometry
		switch g := f.Geometry.(type) {
		case orb.Polygon:
			geom = convertPolygon(g)
		case orb.MultiPolygon:
			mp := domain.GeoMultiPolygon{Polygons: make([]domain.GeoPolygon, len(g))}
			for j, p := range g {
				mp.Polygons[j] = convertPolygon(p)
			}
			geom = mp
		default:
			slog.Warn("boundary feature is not a polygon", "name", name, "type", fmt.Sprintf("%T", f.Geometry))
			continue
		}

		regions = append(regions, domain.Region{Name: name, Geometry: geom})
	}
	return regions, nil
}

func featureName(f *geojson.Feature) string {
	for _, key := range NameProperties {
		if v := f.Properties.MustString(key, ""); v != "" {
			return v
		}
	}
	return ""
}

// convertPolygon maps orb's [lon, lat] rings to GeoPoints and drops the
// repeated closing vertex.
func convertPolygon(p orb.Polygon) domain.GeoPolygon {
	out := domain.GeoPolygon{Rings: make([][]domain.GeoPoint, len(p))}
	for i, ring := range p {
		n := len(ring)
		if n > 1 && ring[0] == ring[n-1] {
			n--
		}
		pts := make([]domain.GeoPoint, n)
		for j := 0; j < n; j++ {
			pts[j] = domain.GeoPoint{Lat: ring[j].Lat(), Lon: ring[j].Lon()}
		}
		out.Rings[i] = pts
	}
	return out
}
