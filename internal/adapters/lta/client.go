package lta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
)

// pageSize is the fixed page length of DataMall list endpoints.
const pageSize = 500

// Client talks to LTA DataMall with a single account key.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates a DataMall client. baseURL is the ltaodataservice root.
func New(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
}

// BusArrival returns the raw v3 BusArrival response for a stop. serviceNo
// narrows it to one service when non-empty.
func (c *Client) BusArrival(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanLTABusArrival)
	defer span.End()
	span.SetAttributes(attribute.String("bus_stop_code", stopCode), attribute.String("service_no", serviceNo))

	q := url.Values{}
	q.Set("BusStopCode", stopCode)
	if serviceNo != "" {
		q.Set("ServiceNo", serviceNo)
	}

	start := time.Now()
	body, err := c.get(ctx, "/v3/BusArrival", q)
	metrics.ObserveUpstream("lta_bus_arrival", start, err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return body, nil
}

// BusStops pages through the full bus stop list.
func (c *Client) BusStops(ctx context.Context) ([]domain.Stop, error) {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanLTABusStops)
	defer span.End()

	var all []domain.Stop
	for skip := 0; ; skip += pageSize {
		q := url.Values{}
		q.Set("$skip", fmt.Sprint(skip))

		start := time.Now()
		body, err := c.get(ctx, "/BusStops", q)
		metrics.ObserveUpstream("lta_bus_stops", start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("bus stops page %d: %w", skip/pageSize, err)
		}

		page, err := DecodeBusStops(bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("bus stops page %d: %w", skip/pageSize, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			break
		}
	}

	span.SetAttributes(attribute.Int("stops", len(all)))
	return all, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("AccountKey", c.apiKey)
	req.Header.Set("accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d from %s", domain.ErrUpstream, resp.StatusCode, path)
	}
	return body, nil
}

type busStopRecord struct {
	BusStopCode string  `json:"BusStopCode"`
	RoadName    string  `json:"RoadName"`
	Description string  `json:"Description"`
	Latitude    float64 `json:"Latitude"`
	Longitude   float64 `json:"Longitude"`
}

type busStopsResponse struct {
	Value []busStopRecord `json:"value"`
}

// DecodeBusStops parses a DataMall BusStops document. It also accepts a bare
// array of records, the shape of exported stop files.
func DecodeBusStops(r io.Reader) ([]domain.Stop, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bus stops: %w", err)
	}

	var records []busStopRecord
	if trimmed := strings.TrimSpace(string(data)); strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode bus stops: %w", err)
		}
	} else {
		var resp busStopsResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			return nil, fmt.Errorf("decode bus stops: %w", err)
		}
		records = resp.Value
	}

	stops := make([]domain.Stop, 0, len(records))
	for _, r := range records {
		if r.BusStopCode == "" {
			continue
		}
		stops = append(stops, domain.Stop{
			Code:        r.BusStopCode,
			Description: r.Description,
			RoadName:    r.RoadName,
			Location:    domain.GeoPoint{Lat: r.Latitude, Lon: r.Longitude},
		})
	}
	return stops, nil
}

// EncodeBusStops writes stops as a bare array of DataMall records, the shape
// DecodeBusStops reads back.
func EncodeBusStops(w io.Writer, stops []domain.Stop) error {
	records := make([]busStopRecord, 0, len(stops))
	for _, s := range stops {
		records = append(records, busStopRecord{
			BusStopCode: s.Code,
			RoadName:    s.RoadName,
			Description: s.Description,
			Latitude:    s.Location.Lat,
			Longitude:   s.Location.Lon,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(records)
}
