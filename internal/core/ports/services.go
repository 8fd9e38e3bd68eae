package ports

import (
	"context"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// ForecastPublisher fans a fresh forecast out to API instances.
type ForecastPublisher interface {
	PublishForecast(ctx context.Context, snap *domain.ForecastSnapshot) error
}

// ForecastSubscriber receives forecasts published by the refresher.
type ForecastSubscriber interface {
	SubscribeForecasts(ctx context.Context, handler func(ctx context.Context, snap *domain.ForecastSnapshot) error) error
}

// ForecastProvider fetches the current 2-hour weather forecast.
type ForecastProvider interface {
	Forecast(ctx context.Context) (*domain.ForecastSnapshot, error)
}

// ArrivalProvider fetches live bus arrivals for a stop.
type ArrivalProvider interface {
	BusArrival(ctx context.Context, stopCode, serviceNo string) ([]byte, error)
}

// StopProvider lists the full bus stop dataset from upstream.
type StopProvider interface {
	BusStops(ctx context.Context) ([]domain.Stop, error)
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// MarkerSurface is the map that renders markers. Add returns a handle that
// is passed back on Update and Remove.
type MarkerSurface interface {
	AddMarker(ctx context.Context, layer domain.Layer, m domain.Marker) (domain.MarkerHandle, error)
	UpdateMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, m domain.Marker) error
	RemoveMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, id string) error
}

// BadgeNotifier shows or hides the current-area badge on the host.
type BadgeNotifier interface {
	ShowBadge(ctx context.Context, region domain.Region) error
	HideBadge(ctx context.Context) error
}
