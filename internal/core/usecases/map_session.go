package usecases

import (
	"context"
	"errors"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
)

// MapSession is the per-client context tying viewport, location and
// selection events to the stop layer, the weather layer and the area badge.
// All methods must be called from one goroutine.
type MapSession struct {
	stops   *StopService
	weather *WeatherService

	stopLayer    *MarkerReconciler
	weatherLayer *MarkerReconciler
	area         *AreaTracker
	viewport     *domain.Viewport
}

// NewMapSession creates a session drawing onto surface and notifying badge.
func NewMapSession(stops *StopService, weather *WeatherService, surface ports.MarkerSurface, badge ports.BadgeNotifier) *MapSession {
	return &MapSession{
		stops:        stops,
		weather:      weather,
		stopLayer:    NewMarkerReconciler(domain.LayerStops, surface),
		weatherLayer: NewMarkerReconciler(domain.LayerWeather, surface),
		area:         NewAreaTracker(weather.Store(), badge),
	}
}

// OnViewportIdle reconciles both layers against the settled viewport.
// Non-finite input yields empty desired sets, which clears the layers.
func (s *MapSession) OnViewportIdle(ctx context.Context, vp domain.Viewport) error {
	s.viewport = &vp

	res := s.stops.Nearby(vp.Center, vp.Zoom)
	_, stopErr := s.stopLayer.Reconcile(ctx, StopMarkers(res))
	_, weatherErr := s.weatherLayer.Reconcile(ctx, s.weather.Markers(vp.Zoom))
	return errors.Join(stopErr, weatherErr)
}

// OnLocation updates the area badge for a new user position.
func (s *MapSession) OnLocation(ctx context.Context, fix domain.LocationFix) (*domain.Region, error) {
	return s.area.Update(ctx, fix)
}

// RefreshArea brings the badge in line with the current region snapshot.
func (s *MapSession) RefreshArea(ctx context.Context) (bool, error) {
	return s.area.Refresh(ctx)
}

// SelectStop makes the stop marker code the active one.
func (s *MapSession) SelectStop(ctx context.Context, code string) error {
	return s.stopLayer.Activate(ctx, code)
}

// ClearSelection deactivates the active stop marker.
func (s *MapSession) ClearSelection(ctx context.Context) error {
	return s.stopLayer.Deactivate(ctx)
}

// ActiveStop returns the selected stop code, or "".
func (s *MapSession) ActiveStop() string { return s.stopLayer.Active() }

// Viewport returns the last settled viewport, if any.
func (s *MapSession) Viewport() (domain.Viewport, bool) {
	if s.viewport == nil {
		return domain.Viewport{}, false
	}
	return *s.viewport, true
}

// RenderedStops returns the stop codes currently on the map.
func (s *MapSession) RenderedStops() []string { return s.stopLayer.Rendered() }

// RenderedWeather returns the weather area names currently on the map.
func (s *MapSession) RenderedWeather() []string { return s.weatherLayer.Rendered() }
