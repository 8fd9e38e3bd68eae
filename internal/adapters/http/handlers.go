package http

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/geospatial"
)

// DatasetStatus summarises what the process currently serves.
type DatasetStatus struct {
	Stops           int        `json:"stops"`
	Regions         int        `json:"regions"`
	ForecastAreas   int        `json:"forecast_areas"`
	SnapshotVersion uint64     `json:"snapshot_version"`
	SnapshotUpdated *time.Time `json:"snapshot_updated_at,omitempty"`
}

// AreaResponse is a resolved planning area.
type AreaResponse struct {
	Name        string `json:"name"`
	Forecast    string `json:"forecast,omitempty"`
	HasForecast bool   `json:"has_forecast"`
}

// WeatherMarkersResponse is the weather layer for one zoom level.
type WeatherMarkersResponse struct {
	Zoom    float64         `json:"zoom"`
	Visible bool            `json:"visible"`
	Markers []domain.Marker `json:"markers"`
}

// queryPoint parses the lat and lon query parameters.
func queryPoint(c *fiber.Ctx) (domain.GeoPoint, error) {
	rawLat, rawLon := c.Query("lat"), c.Query("lon")
	if rawLat == "" || rawLon == "" {
		return domain.GeoPoint{}, errors.New("lat and lon are required")
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return domain.GeoPoint{}, errors.New("lon must be a number")
	}
	p := domain.GeoPoint{Lat: lat, Lon: lon}
	if !geospatial.ValidPoint(p) {
		return domain.GeoPoint{}, errors.New("lat/lon out of range")
	}
	return p, nil
}

// queryZoom parses the zoom query parameter, falling back to def.
func queryZoom(c *fiber.Ctx, def float64) (float64, error) {
	raw := c.Query("zoom")
	if raw == "" {
		return def, nil
	}
	zoom, err := strconv.ParseFloat(raw, 64)
	if err != nil || zoom < 0 || zoom > 22 {
		return 0, errors.New("zoom must be a number between 0 and 22")
	}
	return zoom, nil
}

// StatusHandler returns counts for the loaded stop and region datasets.
func StatusHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st := DatasetStatus{Stops: len(deps.Stops.All())}
		if deps.Weather != nil {
			snap := deps.Weather.Store().Snapshot()
			st.Regions = len(snap.Regions)
			st.ForecastAreas = len(snap.Areas)
			st.SnapshotVersion = snap.Version
			if !snap.UpdatedAt.IsZero() {
				t := snap.UpdatedAt
				st.SnapshotUpdated = &t
			}
		}

		c.Set("Cache-Control", "public, max-age=60")
		return c.JSON(st)
	}
}

// NearbyStopsHandler returns the stops visible around a map center at a zoom level.
func NearbyStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		center, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}
		zoom, err := queryZoom(c, usecases.CloseStopZoom)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		res := deps.Stops.Nearby(center, zoom)

		c.Set("Cache-Control", "public, max-age=300")
		return c.JSON(res)
	}
}

// GetStopHandler returns a single stop by its code.
func GetStopHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		if code == "" {
			return errBadRequest(c, "stop code is required")
		}

		stop, err := deps.Stops.GetByCode(c.UserContext(), code)
		if err != nil {
			return errFromDomain(c, err)
		}
		return c.JSON(stop)
	}
}

// BatchStopsHandler returns multiple stops by comma-separated codes.
func BatchStopsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Query("codes")
		if raw == "" {
			return errBadRequest(c, "codes query parameter is required (comma-separated)")
		}

		codes := strings.Split(raw, ",")
		if len(codes) > 50 {
			return errBadRequest(c, "maximum 50 codes per batch request")
		}

		stops := make([]domain.Stop, 0, len(codes))
		for _, code := range codes {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			stop, err := deps.Stops.GetByCode(c.UserContext(), code)
			if err != nil {
				continue // skip missing stops silently
			}
			stops = append(stops, *stop)
		}

		return c.JSON(stops)
	}
}

// StopArrivalsHandler proxies live arrivals for a stop, optionally for one service.
func StopArrivalsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Params("code")
		if code == "" {
			return errBadRequest(c, "stop code is required")
		}

		arr, err := deps.Arrivals.Get(c.UserContext(), code, c.Query("serviceNo"))
		if err != nil {
			return errFromDomain(c, err)
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(arr.Payload)
	}
}

// BusArrivalHandler serves the browser page's arrival lookup at
// /api/bus-arrival?busStopCode=...&serviceNo=...
func BusArrivalHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := c.Query("busStopCode")
		if code == "" {
			return errBadRequest(c, "busStopCode parameter is required")
		}

		arr, err := deps.Arrivals.Get(c.UserContext(), code, c.Query("serviceNo"))
		if err != nil {
			LoggerFromCtx(c.UserContext()).Warn("bus arrival lookup failed", "bus_stop_code", code, "error", err)
			return newError(c, fiber.StatusInternalServerError, "upstream_error", "Failed to fetch bus arrival data")
		}

		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(arr.Payload)
	}
}

// ResolveAreaHandler returns the planning area containing a point.
func ResolveAreaHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := queryPoint(c)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		region := usecases.ResolveArea(p, deps.Weather.Store().Snapshot().Regions)
		if region == nil {
			return errNotFound(c, "point is outside every planning area")
		}

		return c.JSON(areaResponse(region))
	}
}

// ListAreasHandler returns planning areas with their current forecast.
func ListAreasHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		regions := deps.Weather.Store().Snapshot().Regions

		pg := pageParams(c, len(regions))
		start, end := pg.Window()
		areas := make([]AreaResponse, 0, end-start)
		for i := start; i < end; i++ {
			areas = append(areas, areaResponse(&regions[i]))
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: areas, Pagination: pg})
	}
}

// WeatherMarkersHandler returns the weather layer for a zoom level.
func WeatherMarkersHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		zoom, err := queryZoom(c, usecases.DefaultWeatherZoomThreshold)
		if err != nil {
			return errBadRequest(c, err.Error())
		}

		return c.JSON(WeatherMarkersResponse{
			Zoom:    zoom,
			Visible: deps.Weather.Visible(zoom),
			Markers: deps.Weather.Markers(zoom),
		})
	}
}

func areaResponse(r *domain.Region) AreaResponse {
	return AreaResponse{Name: r.Name, Forecast: r.Forecast, HasForecast: r.HasForecast()}
}
