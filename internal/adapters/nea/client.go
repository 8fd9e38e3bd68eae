package nea

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
)

// Client fetches the NEA 2-hour weather forecast.
type Client struct {
	url  string
	http *http.Client
	now  func() time.Time
}

// New creates a forecast client for the given endpoint.
func New(forecastURL string, timeout time.Duration) *Client {
	return &Client{
		url:  forecastURL,
		http: &http.Client{Timeout: timeout},
		now:  time.Now,
	}
}

type forecastResponse struct {
	AreaMetadata []struct {
		Name          string `json:"name"`
		LabelLocation struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"label_location"`
	} `json:"area_metadata"`
	Items []struct {
		UpdateTimestamp time.Time `json:"update_timestamp"`
		Timestamp       time.Time `json:"timestamp"`
		ValidPeriod     struct {
			Start time.Time `json:"start"`
			End   time.Time `json:"end"`
		} `json:"valid_period"`
		Forecasts []struct {
			Area     string `json:"area"`
			Forecast string `json:"forecast"`
		} `json:"forecasts"`
	} `json:"items"`
}

// Forecast fetches and decodes the current forecast.
func (c *Client) Forecast(ctx context.Context) (*domain.ForecastSnapshot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanNEAForecast)
	defer span.End()

	start := time.Now()
	snap, err := c.fetch(ctx)
	metrics.ObserveUpstream("nea_forecast", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("areas", len(snap.Areas)))
	return snap, nil
}

func (c *Client) fetch(ctx context.Context) (*domain.ForecastSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from forecast endpoint", domain.ErrUpstream, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return Decode(body, c.now())
}

// Decode converts a forecast document into a snapshot. Areas without a
// forecast in the latest item are dropped.
func Decode(body []byte, fetchedAt time.Time) (*domain.ForecastSnapshot, error) {
	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}
	if len(fr.Items) == 0 {
		return nil, fmt.Errorf("decode forecast: %w: no forecast items", domain.ErrUpstream)
	}

	item := fr.Items[len(fr.Items)-1]
	byArea := make(map[string]string, len(item.Forecasts))
	for _, f := range item.Forecasts {
		byArea[f.Area] = f.Forecast
	}

	snap := &domain.ForecastSnapshot{
		Areas:     make([]domain.AreaForecast, 0, len(fr.AreaMetadata)),
		IssuedAt:  item.UpdateTimestamp,
		ValidFrom: item.ValidPeriod.Start,
		ValidTo:   item.ValidPeriod.End,
		FetchedAt: fetchedAt.UTC(),
	}
	for _, a := range fr.AreaMetadata {
		forecast, ok := byArea[a.Name]
		if !ok {
			continue
		}
		snap.Areas = append(snap.Areas, domain.AreaForecast{
			Name:     a.Name,
			Label:    domain.GeoPoint{Lat: a.LabelLocation.Latitude, Lon: a.LabelLocation.Longitude},
			Forecast: forecast,
		})
	}
	return snap, nil
}
