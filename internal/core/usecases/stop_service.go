package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

const stopsCacheKey = "stops:all"

// NearbyResult is a viewport stop query with the zoom buckets it used.
type NearbyResult struct {
	Zoom         float64         `json:"zoom"`
	RadiusMeters float64         `json:"radius_m"`
	IconSize     domain.IconSize `json:"icon_size"`
	Stops        []domain.Stop   `json:"stops"`
}

type stopCatalog struct {
	list   []domain.Stop
	byCode map[string]int
}

// StopService holds the bus stop dataset in memory. The dataset is loaded
// once and replaced wholesale.
type StopService struct {
	stops   ports.StopRepository
	cache   ports.CacheService
	catalog atomic.Pointer[stopCatalog]
}

// NewStopService creates a new StopService with an empty dataset.
func NewStopService(stops ports.StopRepository, cache ports.CacheService) *StopService {
	s := &StopService{stops: stops, cache: cache}
	s.SetStops(nil)
	return s
}

// Load fetches the full dataset, from cache when possible, and installs it.
func (s *StopService) Load(ctx context.Context) (int, error) {
	if s.cache != nil {
		if data, err := s.cache.Get(ctx, stopsCacheKey); err == nil {
			var stops []domain.Stop
			if err := json.Unmarshal(data, &stops); err == nil && len(stops) > 0 {
				metrics.CacheHits.WithLabelValues("stops").Inc()
				s.SetStops(stops)
				return len(stops), nil
			}
		}
		metrics.CacheMisses.WithLabelValues("stops").Inc()
	}

	if s.stops == nil {
		return 0, fmt.Errorf("load stops: no repository configured")
	}
	stops, err := s.stops.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("load stops: %w", err)
	}

	// Cache for 1 hour (the dataset changes a few times a year)
	if s.cache != nil {
		if data, err := json.Marshal(stops); err == nil {
			_ = s.cache.Set(ctx, stopsCacheKey, data, 3600)
		}
	}

	s.SetStops(stops)
	return len(stops), nil
}

// SetStops replaces the dataset.
func (s *StopService) SetStops(stops []domain.Stop) {
	c := &stopCatalog{list: stops, byCode: make(map[string]int, len(stops))}
	for i, st := range stops {
		c.byCode[st.Code] = i
	}
	s.catalog.Store(c)
}

// All returns the dataset in load order. Callers must not modify it.
func (s *StopService) All() []domain.Stop {
	return s.catalog.Load().list
}

// GetByCode returns a single stop.
func (s *StopService) GetByCode(ctx context.Context, code string) (*domain.Stop, error) {
	if code == "" {
		return nil, fmt.Errorf("stop code must not be empty: %w", domain.ErrInvalidInput)
	}
	c := s.catalog.Load()
	if i, ok := c.byCode[code]; ok {
		st := c.list[i]
		return &st, nil
	}
	if s.stops == nil {
		return nil, fmt.Errorf("stop %s: %w", code, domain.ErrNotFound)
	}
	return s.stops.GetByCode(ctx, code)
}

// Nearby runs the viewport stop query against the dataset.
func (s *StopService) Nearby(center domain.GeoPoint, zoom float64) NearbyResult {
	radius, _ := RadiusForZoom(zoom)
	return NearbyResult{
		Zoom:         zoom,
		RadiusMeters: radius,
		IconSize:     IconSizeForZoom(zoom),
		Stops:        NearbyStops(s.All(), center, zoom),
	}
}

// StopMarkers converts a nearby query into desired stop markers.
func StopMarkers(res NearbyResult) []domain.Marker {
	markers := make([]domain.Marker, 0, len(res.Stops))
	for _, st := range res.Stops {
		markers = append(markers, domain.Marker{
			ID:          st.Code,
			Position:    st.Location,
			Fingerprint: domain.Fingerprint{Size: res.IconSize},
			Attrs: map[string]string{
				"name": st.Description,
				"road": st.RoadName,
			},
		})
	}
	return markers
}
