package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"

	handler "github.com/samirrijal/busradar/internal/adapters/http"
	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
)

// ---- Mocks ----

type mockStopRepo struct {
	listAllFn   func(ctx context.Context) ([]domain.Stop, error)
	getByCodeFn func(ctx context.Context, code string) (*domain.Stop, error)
}

func (m *mockStopRepo) UpsertBatch(ctx context.Context, s []domain.Stop) error { return nil }
func (m *mockStopRepo) Count(ctx context.Context) (int, error)                 { return 0, nil }
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

type mockArrivalProvider struct {
	busArrivalFn func(ctx context.Context, stopCode, serviceNo string) ([]byte, error)
}

func (m *mockArrivalProvider) BusArrival(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
	if m.busArrivalFn != nil {
		return m.busArrivalFn(ctx, stopCode, serviceNo)
	}
	return []byte(`{"Services":[]}`), nil
}

type mockPinger struct{ err error }

func (m *mockPinger) Ping(ctx context.Context) error { return m.err }

// ---- Test helpers ----

var (
	center    = domain.GeoPoint{Lat: 1.3000, Lon: 103.8000}
	testStops = []domain.Stop{
		{Code: "10009", Description: "Bt Merah Int", RoadName: "Bt Merah Ctrl", Location: center},
		{Code: "10011", Description: "Opp Blk 1", RoadName: "Jln Bt Merah", Location: domain.GeoPoint{Lat: 1.3040, Lon: 103.8000}},
		{Code: "10017", Description: "Far Away", RoadName: "Somewhere Rd", Location: domain.GeoPoint{Lat: 1.3300, Lon: 103.8000}},
	}
)

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

func testRegions() []domain.Region {
	return []domain.Region{
		squareRegion("BUKIT MERAH", 1.25, 103.75, 1.35, 103.85),
		squareRegion("QUEENSTOWN", 1.28, 103.78, 1.32, 103.82),
		squareRegion("BEDOK", 1.30, 103.90, 1.35, 103.95),
	}
}

func setupApp(deps *handler.Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.SetupRoutes(app, deps)
	return app
}

func makeDeps(opts ...func(*handler.Dependencies)) *handler.Dependencies {
	stops := usecases.NewStopService(&mockStopRepo{}, nil)
	stops.SetStops(testStops)

	store := usecases.NewRegionStore(testRegions())
	weather := usecases.NewWeatherService(store, nil, nil, nil, usecases.DefaultWeatherZoomThreshold)
	_ = weather.Apply(context.Background(), &domain.ForecastSnapshot{Areas: []domain.AreaForecast{
		{Name: "Bukit Merah", Label: domain.GeoPoint{Lat: 1.28, Lon: 103.82}, Forecast: "Cloudy"},
		{Name: "Queenstown", Label: domain.GeoPoint{Lat: 1.29, Lon: 103.78}, Forecast: "Light Rain"},
	}})

	d := &handler.Dependencies{
		Stops:    stops,
		Arrivals: usecases.NewArrivalService(&mockArrivalProvider{}, nil, 0),
		Weather:  weather,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

func get(t *testing.T, app *fiber.App, url string) (int, []byte) {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest("GET", url, nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	return resp.StatusCode, readBody(t, resp.Body)
}

func readBody(t *testing.T, body io.Reader) []byte {
	t.Helper()
	b, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return b
}

type apiError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, body []byte) apiError {
	t.Helper()
	var e apiError
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("decode error body %q: %v", body, err)
	}
	return e
}

// ---- Stop handler tests ----

type nearbyResponse struct {
	Zoom     float64       `json:"zoom"`
	Radius   float64       `json:"radius_m"`
	IconSize string        `json:"icon_size"`
	Stops    []domain.Stop `json:"stops"`
}

func TestNearbyStops_CloseZoom(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/stops/nearby?lat=1.3&lon=103.8&zoom=16")
	if status != 200 {
		t.Fatalf("expected 200, got %d: %s", status, body)
	}

	var res nearbyResponse
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	if res.Radius != 1000 || res.IconSize != "large" {
		t.Errorf("expected 1000m/large, got %v/%s", res.Radius, res.IconSize)
	}
	if len(res.Stops) != 2 {
		t.Fatalf("expected 2 stops, got %d", len(res.Stops))
	}
	for _, s := range res.Stops {
		if s.Code == "10017" {
			t.Error("stop 10017 is 3.3km away and should be excluded")
		}
		if s.Distance == nil {
			t.Errorf("stop %s has no distance", s.Code)
		}
	}
}

func TestNearbyStops_LowZoomIsEmpty(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/stops/nearby?lat=1.3&lon=103.8&zoom=13")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"stops":[]`) {
		t.Errorf("expected empty stops array, got %s", body)
	}
}

func TestNearbyStops_MissingParams(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/stops/nearby")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "bad_request" {
		t.Errorf("expected bad_request error, got %s", e.Code)
	}
}

func TestNearbyStops_BadInput(t *testing.T) {
	app := setupApp(makeDeps())

	for _, url := range []string{
		"/v1/stops/nearby?lat=91&lon=103.8",
		"/v1/stops/nearby?lat=NaN&lon=103.8",
		"/v1/stops/nearby?lat=abc&lon=103.8",
		"/v1/stops/nearby?lat=1.3&lon=103.8&zoom=99",
	} {
		if status, _ := get(t, app, url); status != 400 {
			t.Errorf("%s: expected 400, got %d", url, status)
		}
	}
}

func TestGetStop(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/stops/10009")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var stop domain.Stop
	json.Unmarshal(body, &stop)
	if stop.Description != "Bt Merah Int" {
		t.Errorf("unexpected stop %+v", stop)
	}

	if status, _ := get(t, app, "/v1/stops/99999"); status != 404 {
		t.Errorf("expected 404 for unknown stop, got %d", status)
	}
}

func TestBatchStops(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/stops/batch?codes=10009,99999,10017")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var stops []domain.Stop
	json.Unmarshal(body, &stops)
	if len(stops) != 2 {
		t.Errorf("expected 2 stops, got %d", len(stops))
	}

	if status, _ := get(t, app, "/v1/stops/batch"); status != 400 {
		t.Errorf("expected 400 without codes, got %d", status)
	}
}

// ---- Arrival handler tests ----

func TestStopArrivals_PassesPayloadThrough(t *testing.T) {
	var gotCode, gotService string
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Arrivals = usecases.NewArrivalService(&mockArrivalProvider{
			busArrivalFn: func(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
				gotCode, gotService = stopCode, serviceNo
				return []byte(`{"BusStopCode":"10009","Services":[{"ServiceNo":"15"}]}`), nil
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	status, body := get(t, app, "/v1/stops/10009/arrivals?serviceNo=15")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if gotCode != "10009" || gotService != "15" {
		t.Errorf("provider called with %q/%q", gotCode, gotService)
	}
	if string(body) != `{"BusStopCode":"10009","Services":[{"ServiceNo":"15"}]}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestBusArrival_RequiresStopCode(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/api/bus-arrival")
	if status != 400 {
		t.Fatalf("expected 400, got %d", status)
	}
	if e := decodeError(t, body); e.Message != "busStopCode parameter is required" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

func TestBusArrival_UpstreamFailure(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Arrivals = usecases.NewArrivalService(&mockArrivalProvider{
			busArrivalFn: func(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
				return nil, domain.ErrUpstream
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	status, body := get(t, app, "/api/bus-arrival?busStopCode=10009")
	if status != 500 {
		t.Fatalf("expected 500, got %d", status)
	}
	if e := decodeError(t, body); e.Message != "Failed to fetch bus arrival data" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

func TestStopArrivals_UpstreamFailureIsBadGateway(t *testing.T) {
	deps := makeDeps(func(d *handler.Dependencies) {
		d.Arrivals = usecases.NewArrivalService(&mockArrivalProvider{
			busArrivalFn: func(ctx context.Context, stopCode, serviceNo string) ([]byte, error) {
				return nil, errors.Join(domain.ErrUpstream, errors.New("status 401"))
			},
		}, nil, 0)
	})
	app := setupApp(deps)

	if status, _ := get(t, app, "/v1/stops/10009/arrivals"); status != 502 {
		t.Errorf("expected 502, got %d", status)
	}
}

// ---- Area and weather handler tests ----

func TestResolveArea_LastMatchWins(t *testing.T) {
	app := setupApp(makeDeps())

	// Inside both BUKIT MERAH and QUEENSTOWN; QUEENSTOWN comes later.
	status, body := get(t, app, "/v1/areas/resolve?lat=1.30&lon=103.80")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var area handler.AreaResponse
	json.Unmarshal(body, &area)
	if area.Name != "QUEENSTOWN" || area.Forecast != "Light Rain" || !area.HasForecast {
		t.Errorf("unexpected area %+v", area)
	}
}

func TestResolveArea_NoForecast(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/areas/resolve?lat=1.32&lon=103.92")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var area handler.AreaResponse
	json.Unmarshal(body, &area)
	if area.Name != "BEDOK" || area.HasForecast {
		t.Errorf("unexpected area %+v", area)
	}
}

func TestResolveArea_Outside(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/areas/resolve?lat=1.45&lon=104.0")
	if status != 404 {
		t.Fatalf("expected 404, got %d", status)
	}
	if e := decodeError(t, body); e.Code != "not_found" {
		t.Errorf("expected not_found, got %s", e.Code)
	}
}

func TestListAreas_Pagination(t *testing.T) {
	app := setupApp(makeDeps())

	resp, err := app.Test(httptest.NewRequest("GET", "/v1/areas?offset=1&limit=1", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `rel="next"`) || !strings.Contains(link, `rel="prev"`) {
		t.Errorf("expected prev and next links, got %q", link)
	}

	var result struct {
		Data       []handler.AreaResponse `json:"data"`
		Pagination handler.Pagination     `json:"pagination"`
	}
	json.NewDecoder(resp.Body).Decode(&result)
	if result.Pagination.Total != 3 {
		t.Errorf("expected total 3, got %d", result.Pagination.Total)
	}
	if len(result.Data) != 1 || result.Data[0].Name != "QUEENSTOWN" {
		t.Errorf("unexpected page %+v", result.Data)
	}
}

func TestListAreas_OutOfRangePage(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/areas?offset=10&limit=500")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	var result struct {
		Data       []handler.AreaResponse `json:"data"`
		Pagination handler.Pagination     `json:"pagination"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatal(err)
	}
	if len(result.Data) != 0 {
		t.Errorf("expected empty page past the end, got %+v", result.Data)
	}
	if result.Pagination.Limit != 100 || result.Pagination.Offset != 10 || result.Pagination.Total != 3 {
		t.Errorf("unexpected pagination %+v", result.Pagination)
	}
}

func TestWeatherMarkers_FollowZoom(t *testing.T) {
	app := setupApp(makeDeps())

	var res handler.WeatherMarkersResponse
	_, body := get(t, app, "/v1/weather/markers?zoom=11")
	json.Unmarshal(body, &res)
	if !res.Visible || len(res.Markers) != 2 {
		t.Fatalf("expected 2 visible markers at zoom 11, got %+v", res)
	}
	if res.Markers[0].Fingerprint.Label != "Cloudy" {
		t.Errorf("expected forecast label, got %+v", res.Markers[0].Fingerprint)
	}

	res = handler.WeatherMarkersResponse{}
	_, body = get(t, app, "/v1/weather/markers?zoom=15")
	json.Unmarshal(body, &res)
	if res.Visible || len(res.Markers) != 0 {
		t.Errorf("expected no markers at zoom 15, got %+v", res)
	}
}

// ---- Health tests ----

func TestHealth(t *testing.T) {
	app := setupApp(makeDeps())

	status, body := get(t, app, "/v1/health")
	if status != 200 {
		t.Fatalf("expected 200, got %d", status)
	}
	if !strings.Contains(string(body), `"healthy"`) {
		t.Errorf("unexpected body %s", body)
	}
}

func TestReady(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Cache = &mockPinger{}
	}))
	if status, _ := get(t, app, "/v1/ready"); status != 200 {
		t.Errorf("expected 200 with stops loaded, got %d", status)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) {
		d.Stops = usecases.NewStopService(&mockStopRepo{}, nil)
	}))
	if status, _ := get(t, app, "/v1/ready"); status != 503 {
		t.Errorf("expected 503 without stops, got %d", status)
	}

	app = setupApp(makeDeps(func(d *handler.Dependencies) {
		d.DB = &mockPinger{err: errors.New("connection refused")}
	}))
	status, body := get(t, app, "/v1/ready")
	if status != 503 {
		t.Errorf("expected 503 with db down, got %d", status)
	}
	if !strings.Contains(string(body), "connection refused") {
		t.Errorf("expected db error in checks, got %s", body)
	}
}

// ---- Page tests ----

func writeIndex(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "index.html")
	page := `<script src="https://maps.googleapis.com/maps/api/js?key=API_KEY_PLACEHOLDER"></script>`
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestIndex_InjectsMapsKey(t *testing.T) {
	path := writeIndex(t)
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.IndexPath = path
		d.WebDir = filepath.Dir(path)
		d.MapsAPIKey = "browser-key"
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	body := string(readBody(t, resp.Body))
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "key=browser-key") || strings.Contains(body, handler.APIKeyPlaceholder) {
		t.Errorf("key not injected: %s", body)
	}
	if resp.Header.Get("Deprecation") != "" {
		t.Error("/ should not be marked deprecated")
	}
}

func TestIndex_AliasIsDeprecated(t *testing.T) {
	path := writeIndex(t)
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.IndexPath = path
		d.MapsAPIKey = "browser-key"
	}))

	resp, err := app.Test(httptest.NewRequest("GET", "/index.html", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Deprecation") != "true" {
		t.Error("expected Deprecation header")
	}
	if link := resp.Header.Get("Link"); !strings.Contains(link, `</>; rel="successor-version"`) {
		t.Errorf("unexpected Link header %q", link)
	}
}

func TestIndex_MissingPage(t *testing.T) {
	app := setupApp(makeDeps(func(d *handler.Dependencies) {
		d.IndexPath = filepath.Join(t.TempDir(), "missing.html")
	}))
	if status, _ := get(t, app, "/"); status != 500 {
		t.Errorf("expected 500, got %d", status)
	}
}

// ---- GraphQL tests ----

func graphql(t *testing.T, app *fiber.App, query string) map[string]any {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"query": query})
	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Data   map[string]any `json:"data"`
		Errors []any          `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out.Errors) > 0 {
		t.Fatalf("graphql errors: %v", out.Errors)
	}
	return out.Data
}

func TestGraphQL_StopsNearby(t *testing.T) {
	app := setupApp(makeDeps())

	data := graphql(t, app, `{ stopsNearby(lat: 1.3, lon: 103.8, zoom: 14) { radius_m icon_size stops { code } } }`)
	nearby := data["stopsNearby"].(map[string]any)
	if nearby["radius_m"].(float64) != 2000 || nearby["icon_size"] != "small" {
		t.Errorf("unexpected buckets %v", nearby)
	}
	if stops := nearby["stops"].([]any); len(stops) != 2 {
		t.Errorf("expected 2 stops, got %d", len(stops))
	}
}

func TestGraphQL_AreaAndMarkers(t *testing.T) {
	app := setupApp(makeDeps())

	data := graphql(t, app, `{
		inside: area(lat: 1.30, lon: 103.80) { name forecast has_forecast }
		outside: area(lat: 1.45, lon: 104.0) { name }
		weatherMarkers(zoom: 10) { id label size }
	}`)
	inside := data["inside"].(map[string]any)
	if inside["name"] != "QUEENSTOWN" || inside["has_forecast"] != true {
		t.Errorf("unexpected area %v", inside)
	}
	if data["outside"] != nil {
		t.Errorf("expected null outside every area, got %v", data["outside"])
	}
	if markers := data["weatherMarkers"].([]any); len(markers) != 2 {
		t.Errorf("expected 2 weather markers, got %d", len(markers))
	}
}

func TestGraphQL_EmptyQuery(t *testing.T) {
	app := setupApp(makeDeps())

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	resp, _ := app.Test(req, -1)
	if resp.StatusCode != 400 {
		t.Errorf("expected 400, got %d", resp.StatusCode)
	}
}

// ---- Middleware tests ----

func TestCachingHeaders(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/stops/nearby?lat=1.3&lon=103.8", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=300" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}

	resp, _ = app.Test(httptest.NewRequest("GET", "/v1/areas", nil), -1)
	if cc := resp.Header.Get("Cache-Control"); cc != "public, max-age=60" {
		t.Errorf("unexpected Cache-Control %q", cc)
	}
}

func TestETag_NotModified(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/areas", nil), -1)
	etag := resp.Header.Get("ETag")
	if etag == "" {
		t.Fatal("expected ETag header")
	}

	req := httptest.NewRequest("GET", "/v1/areas", nil)
	req.Header.Set("If-None-Match", etag)
	resp, _ = app.Test(req, -1)
	if resp.StatusCode != 304 {
		t.Errorf("expected 304, got %d", resp.StatusCode)
	}
}

func TestRequestIDInErrors(t *testing.T) {
	app := setupApp(makeDeps())

	resp, _ := app.Test(httptest.NewRequest("GET", "/v1/stops/nearby", nil), -1)
	var e struct {
		RequestID string `json:"request_id"`
	}
	json.NewDecoder(resp.Body).Decode(&e)
	if e.RequestID == "" || e.RequestID != resp.Header.Get("X-Request-ID") {
		t.Errorf("request id %q does not match header %q", e.RequestID, resp.Header.Get("X-Request-ID"))
	}
}
