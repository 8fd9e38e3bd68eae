package domain

import (
	"encoding/json"
	"time"
)

// Stop represents a bus stop. Code is the LTA BusStopCode and is stable
// across refreshes of the stop dataset.
type Stop struct {
	Code        string    `json:"code"`
	Description string    `json:"description"`
	RoadName    string    `json:"road_name"`
	Location    GeoPoint  `json:"location"`
	Distance    *float64  `json:"distance,omitempty"` // computed field
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
}

// Region is a named area with a boundary and an optional forecast attribute.
// Name is the region identifier.
type Region struct {
	Name     string   `json:"name"`
	Geometry Geometry `json:"-"`
	Forecast string   `json:"forecast,omitempty"`
}

// HasForecast reports whether a forecast was joined to the region.
func (r *Region) HasForecast() bool { return r.Forecast != "" }

// Viewport is the visible map area after the user stops panning or zooming.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}

// LocationFix is a user position update from the device.
type LocationFix struct {
	Location       GeoPoint `json:"location"`
	AccuracyMeters float64  `json:"accuracy_m,omitempty"`
	Heading        *float64 `json:"heading,omitempty"`
}

// AreaForecast is one forecast area from the 2-hour weather forecast.
type AreaForecast struct {
	Name     string   `json:"name"`
	Label    GeoPoint `json:"label_location"`
	Forecast string   `json:"forecast"`
}

// ForecastSnapshot is one fetch of the 2-hour weather forecast.
type ForecastSnapshot struct {
	Areas     []AreaForecast `json:"areas"`
	IssuedAt  time.Time      `json:"issued_at"`
	ValidFrom time.Time      `json:"valid_from"`
	ValidTo   time.Time      `json:"valid_to"`
	FetchedAt time.Time      `json:"fetched_at"`
}

// RegionSnapshot is an immutable set of regions joined with one forecast.
// Readers hold a snapshot for the duration of a call.
type RegionSnapshot struct {
	Version   uint64         `json:"version"`
	Regions   []Region       `json:"regions"`
	Areas     []AreaForecast `json:"areas"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// BusArrival is the raw LTA DataMall BusArrival payload, passed through untouched.
type BusArrival struct {
	BusStopCode string          `json:"bus_stop_code"`
	ServiceNo   string          `json:"service_no,omitempty"`
	Payload     json.RawMessage `json:"payload"`
}
