package http

import (
	"context"

	"github.com/samirrijal/busradar/internal/core/usecases"
)

// Pinger is a backing service with a reachability check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ConnChecker is a connection with a liveness flag.
type ConnChecker interface {
	IsConnected() bool
}

// Dependencies holds all services needed by HTTP handlers.
// Backing services left nil are reported as not configured.
type Dependencies struct {
	Stops    *usecases.StopService
	Arrivals *usecases.ArrivalService
	Weather  *usecases.WeatherService

	DB    Pinger
	NATS  ConnChecker
	Cache Pinger

	MapsAPIKey  string
	WebDir      string
	IndexPath   string
	OpenAPIPath string
}
