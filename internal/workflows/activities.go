package workflows

import (
	"context"
	"fmt"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
)

// ForecastActivities holds the activity implementations for the forecast
// refresh workflow.
type ForecastActivities struct {
	Weather *usecases.WeatherService
}

// FetchForecast pulls the current 2-hour forecast from NEA.
func (a *ForecastActivities) FetchForecast(ctx context.Context) (*domain.ForecastSnapshot, error) {
	snap, err := a.Weather.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// PublishForecast caches the forecast and fans it out to API instances.
func (a *ForecastActivities) PublishForecast(ctx context.Context, snap *domain.ForecastSnapshot) error {
	if snap == nil {
		return fmt.Errorf("publish forecast: %w", domain.ErrInvalidInput)
	}
	return a.Weather.Publish(ctx, snap)
}
