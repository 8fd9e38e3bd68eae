package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

// ForecastCacheKey holds the latest forecast snapshot in the shared cache.
const ForecastCacheKey = "weather:forecast:latest"

// DefaultWeatherZoomThreshold is the highest zoom at which weather markers show.
const DefaultWeatherZoomThreshold = 12.0

// WeatherService fetches forecasts, joins them onto planning areas and
// produces the weather marker layer.
type WeatherService struct {
	store         *RegionStore
	provider      ports.ForecastProvider
	publisher     ports.ForecastPublisher
	cache         ports.CacheService
	zoomThreshold float64
}

// NewWeatherService creates a new WeatherService. provider, publisher and
// cache may be nil when the process only consumes published forecasts.
func NewWeatherService(store *RegionStore, provider ports.ForecastProvider, publisher ports.ForecastPublisher, cache ports.CacheService, zoomThreshold float64) *WeatherService {
	return &WeatherService{
		store:         store,
		provider:      provider,
		publisher:     publisher,
		cache:         cache,
		zoomThreshold: zoomThreshold,
	}
}

// Store returns the region store the service writes to.
func (s *WeatherService) Store() *RegionStore { return s.store }

// Fetch pulls the current forecast from the provider.
func (s *WeatherService) Fetch(ctx context.Context) (*domain.ForecastSnapshot, error) {
	if s.provider == nil {
		return nil, fmt.Errorf("fetch forecast: no provider configured")
	}
	snap, err := s.provider.Forecast(ctx)
	if err != nil {
		metrics.ForecastRefreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	metrics.ForecastRefreshes.WithLabelValues("ok").Inc()
	return snap, nil
}

// Publish stores the forecast in the shared cache and fans it out.
func (s *WeatherService) Publish(ctx context.Context, snap *domain.ForecastSnapshot) error {
	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			_ = s.cache.Set(ctx, ForecastCacheKey, data, 3600)
		}
	}
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.PublishForecast(ctx, snap); err != nil {
		return fmt.Errorf("publish forecast: %w", err)
	}
	return nil
}

// Apply swaps a forecast into the region store.
func (s *WeatherService) Apply(_ context.Context, snap *domain.ForecastSnapshot) error {
	if snap == nil {
		return fmt.Errorf("apply forecast: %w", domain.ErrInvalidInput)
	}
	rs := s.store.ApplyForecast(snap)

	joined := 0
	for i := range rs.Regions {
		if rs.Regions[i].HasForecast() {
			joined++
		}
	}
	metrics.ForecastAreas.Set(float64(len(rs.Areas)))
	metrics.RegionsWithForecast.Set(float64(joined))
	return nil
}

// Refresh fetches, applies and publishes one forecast.
func (s *WeatherService) Refresh(ctx context.Context) (*domain.ForecastSnapshot, error) {
	snap, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.Apply(ctx, snap); err != nil {
		return nil, err
	}
	if err := s.Publish(ctx, snap); err != nil {
		return snap, err
	}
	return snap, nil
}

// Bootstrap applies the cached forecast, if any. It reports whether one was found.
func (s *WeatherService) Bootstrap(ctx context.Context) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, ForecastCacheKey)
	if err != nil {
		metrics.CacheMisses.WithLabelValues("forecast").Inc()
		return false
	}
	var snap domain.ForecastSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return false
	}
	metrics.CacheHits.WithLabelValues("forecast").Inc()
	return s.Apply(ctx, &snap) == nil
}

// Run refreshes immediately and then on every tick until ctx is done.
func (s *WeatherService) Run(ctx context.Context, interval time.Duration) {
	refresh := func() {
		snap, err := s.Refresh(ctx)
		if err != nil {
			slog.Warn("forecast refresh failed", "error", err)
			return
		}
		slog.Info("forecast refreshed", "areas", len(snap.Areas), "valid_to", snap.ValidTo)
	}

	refresh()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}

// Visible reports whether weather markers show at zoom.
func (s *WeatherService) Visible(zoom float64) bool {
	return zoom <= s.zoomThreshold
}

// Markers returns the desired weather markers for zoom. Above the threshold
// the set is empty.
func (s *WeatherService) Markers(zoom float64) []domain.Marker {
	if !s.Visible(zoom) {
		return []domain.Marker{}
	}
	areas := s.store.Snapshot().Areas
	markers := make([]domain.Marker, 0, len(areas))
	for _, a := range areas {
		markers = append(markers, domain.Marker{
			ID:          a.Name,
			Position:    a.Label,
			Fingerprint: domain.Fingerprint{Size: domain.IconSmall, Label: a.Forecast},
			Attrs:       map[string]string{"forecast": a.Forecast},
		})
	}
	return markers
}
