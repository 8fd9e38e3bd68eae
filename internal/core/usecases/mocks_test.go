package usecases_test

import (
	"context"
	"errors"
	"fmt"

	"github.com/samirrijal/busradar/internal/core/domain"
)

var errSurface = errors.New("surface unavailable")

// --- Fake MarkerSurface ---

type surfaceCall struct {
	op     string
	layer  domain.Layer
	id     string
	handle domain.MarkerHandle
	fp     domain.Fingerprint
}

type fakeSurface struct {
	calls  []surfaceCall
	failOn map[string]bool // "op:id"
}

func (f *fakeSurface) fail(op, id string) error {
	if f.failOn[op+":"+id] {
		return errSurface
	}
	return nil
}

func (f *fakeSurface) AddMarker(ctx context.Context, layer domain.Layer, m domain.Marker) (domain.MarkerHandle, error) {
	f.calls = append(f.calls, surfaceCall{op: "add", layer: layer, id: m.ID, fp: m.Fingerprint})
	if err := f.fail("add", m.ID); err != nil {
		return nil, err
	}
	return fmt.Sprintf("h-%s-%s", layer, m.ID), nil
}

func (f *fakeSurface) UpdateMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, m domain.Marker) error {
	f.calls = append(f.calls, surfaceCall{op: "update", layer: layer, id: m.ID, handle: h, fp: m.Fingerprint})
	return f.fail("update", m.ID)
}

func (f *fakeSurface) RemoveMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, id string) error {
	f.calls = append(f.calls, surfaceCall{op: "remove", layer: layer, id: id, handle: h})
	return f.fail("remove", id)
}

func (f *fakeSurface) ops() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.op + ":" + c.id
	}
	return out
}

func (f *fakeSurface) reset() { f.calls = nil }

// --- Fake BadgeNotifier ---

type fakeBadge struct {
	shown  []domain.Region
	hidden int
	err    error
}

func (f *fakeBadge) ShowBadge(ctx context.Context, region domain.Region) error {
	if f.err != nil {
		return f.err
	}
	f.shown = append(f.shown, region)
	return nil
}

func (f *fakeBadge) HideBadge(ctx context.Context) error {
	if f.err != nil {
		return f.err
	}
	f.hidden++
	return nil
}

// --- Mock StopRepository ---

type mockStopRepo struct {
	listAllFn   func(ctx context.Context) ([]domain.Stop, error)
	getByCodeFn func(ctx context.Context, code string) (*domain.Stop, error)
}

func (m *mockStopRepo) UpsertBatch(ctx context.Context, stops []domain.Stop) error { return nil }
func (m *mockStopRepo) Count(ctx context.Context) (int, error)                     { return 0, nil }

func (m *mockStopRepo) ListAll(ctx context.Context) ([]domain.Stop, error) {
	if m.listAllFn != nil {
		return m.listAllFn(ctx)
	}
	return nil, nil
}

func (m *mockStopRepo) GetByCode(ctx context.Context, code string) (*domain.Stop, error) {
	if m.getByCodeFn != nil {
		return m.getByCodeFn(ctx, code)
	}
	return nil, domain.ErrNotFound
}

// --- In-memory CacheService ---

type memCache struct {
	data map[string][]byte
	ttls map[string]int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (c *memCache) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := c.data[key]
	if !ok {
		return nil, errors.New("cache miss")
	}
	return v, nil
}

func (c *memCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	c.data[key] = value
	c.ttls[key] = ttlSeconds
	return nil
}

func (c *memCache) Delete(ctx context.Context, key string) error {
	delete(c.data, key)
	return nil
}

// --- Mock providers ---

type mockArrivalProvider struct {
	calls    int
	busArrFn func(ctx context.Context, stopCode, serviceNo string) ([]byte, error)
}

func (m *mockArrivalProvider) BusArrival(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
	m.calls++
	if m.busArrFn != nil {
		return m.busArrFn(ctx, stopCode, serviceNo)
	}
	return []byte(`{"Services":[]}`), nil
}

type mockForecastProvider struct {
	forecastFn func(ctx context.Context) (*domain.ForecastSnapshot, error)
}

func (m *mockForecastProvider) Forecast(ctx context.Context) (*domain.ForecastSnapshot, error) {
	return m.forecastFn(ctx)
}

type mockPublisher struct {
	published []*domain.ForecastSnapshot
	err       error
}

func (m *mockPublisher) PublishForecast(ctx context.Context, snap *domain.ForecastSnapshot) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, snap)
	return nil
}

// --- Geometry helpers ---

func squareRegion(name string, minLat, minLon, maxLat, maxLon float64) domain.Region {
	return domain.Region{
		Name: name,
		Geometry: domain.GeoPolygon{Rings: [][]domain.GeoPoint{{
			{Lat: minLat, Lon: minLon},
			{Lat: minLat, Lon: maxLon},
			{Lat: maxLat, Lon: maxLon},
			{Lat: maxLat, Lon: minLon},
		}}},
	}
}
