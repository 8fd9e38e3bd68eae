package usecases

import (
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// RegionStore holds the current RegionSnapshot. Readers never see a partially
// built snapshot: each refresh builds a new one and swaps it in.
type RegionStore struct {
	mu         sync.Mutex // serializes writers
	current    atomic.Pointer[domain.RegionSnapshot]
	version    uint64
	boundaries []domain.Region
}

// NewRegionStore creates a store whose first snapshot has the boundaries and
// no forecasts.
func NewRegionStore(boundaries []domain.Region) *RegionStore {
	s := &RegionStore{boundaries: boundaries}
	s.Replace(JoinForecast(boundaries, nil), nil)
	return s
}

// Snapshot returns the current snapshot. It is never nil.
func (s *RegionStore) Snapshot() *domain.RegionSnapshot {
	return s.current.Load()
}

// ApplyForecast joins a forecast onto the boundaries and swaps the result in.
func (s *RegionStore) ApplyForecast(f *domain.ForecastSnapshot) *domain.RegionSnapshot {
	var areas []domain.AreaForecast
	if f != nil {
		areas = f.Areas
	}
	return s.Replace(JoinForecast(s.boundaries, areas), areas)
}

// Replace installs a new region list as the next snapshot.
func (s *RegionStore) Replace(regions []domain.Region, areas []domain.AreaForecast) *domain.RegionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.version++
	snap := &domain.RegionSnapshot{
		Version:   s.version,
		Regions:   regions,
		Areas:     areas,
		UpdatedAt: time.Now().UTC(),
	}
	s.current.Store(snap)
	return snap
}

// JoinForecast copies boundaries and attaches the forecast whose area name
// matches after normalization. Boundaries without a match keep no forecast.
func JoinForecast(boundaries []domain.Region, areas []domain.AreaForecast) []domain.Region {
	byName := make(map[string]string, len(areas))
	for _, a := range areas {
		byName[NormalizeAreaName(a.Name)] = a.Forecast
	}

	out := make([]domain.Region, len(boundaries))
	for i, b := range boundaries {
		out[i] = domain.Region{
			Name:     b.Name,
			Geometry: b.Geometry,
			Forecast: byName[NormalizeAreaName(b.Name)],
		}
	}
	return out
}

var (
	nonAlnum   = regexp.MustCompile(`[^a-z0-9\s]`)
	whitespace = regexp.MustCompile(`\s+`)
)

// NormalizeAreaName lower-cases a name, strips punctuation and collapses
// whitespace, so "ANG MO KIO" and "Ang Mo Kio" compare equal.
func NormalizeAreaName(name string) string {
	n := nonAlnum.ReplaceAllString(strings.ToLower(name), "")
	return strings.TrimSpace(whitespace.ReplaceAllString(n, " "))
}
