package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

// indexAliasSunset is when /index.html stops being served.
var indexAliasSunset = time.Date(2027, time.June, 30, 0, 0, 0, 0, time.UTC)

// SetupRoutes registers the map page, REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	// Response compression (gzip)
	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed, // Balance speed vs compression ratio
	}))

	// Request ID
	app.Use(requestid.New())

	// Propagate request ID into slog context
	app.Use(RequestIDLogMiddleware())

	// Access logs (structured HTTP request logging)
	app.Use(AccessLogMiddleware())

	// Rate limiting: 120 requests per minute per IP
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/ws" || c.Path() == "/metrics"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
		},
		SkipFailedRequests: false,
	}))

	// Security headers + API version
	app.Use(func(c *fiber.Ctx) error {
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("X-Frame-Options", "DENY")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("X-API-Version", "1.0.0")
		return c.Next()
	})

	// Deprecated aliases
	app.Use(DeprecationMiddleware([]DeprecatedRoute{
		{Path: "/index.html", SunsetDate: indexAliasSunset, Alternative: "/"},
	}))

	// ETag for conditional caching
	app.Use(ETagMiddleware())

	// Default Cache-Control headers
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout, fast internal checks)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	// REST API v1, 15s per-request timeout
	v1 := app.Group("/v1")
	v1.Get("/status", timeout.NewWithContext(StatusHandler(deps), 15*time.Second))
	v1.Get("/stops/nearby", timeout.NewWithContext(NearbyStopsHandler(deps), 15*time.Second))
	v1.Get("/stops/batch", timeout.NewWithContext(BatchStopsHandler(deps), 15*time.Second))
	v1.Get("/stops/:code", timeout.NewWithContext(GetStopHandler(deps), 15*time.Second))
	v1.Get("/stops/:code/arrivals", timeout.NewWithContext(StopArrivalsHandler(deps), 15*time.Second))
	v1.Get("/areas", timeout.NewWithContext(ListAreasHandler(deps), 15*time.Second))
	v1.Get("/areas/resolve", timeout.NewWithContext(ResolveAreaHandler(deps), 15*time.Second))
	v1.Get("/weather/markers", timeout.NewWithContext(WeatherMarkersHandler(deps), 15*time.Second))

	// Arrival lookup used by the map page
	app.Get("/api/bus-arrival", timeout.NewWithContext(BusArrivalHandler(deps), 15*time.Second))

	// GraphQL
	app.Post("/graphql", GraphQLHandler(deps))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket map session
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(MapSessionHandler(deps)))

	// Map page with the maps key injected, then static assets
	app.Get("/", IndexHandler(deps))
	app.Get("/index.html", IndexHandler(deps))
	if deps.WebDir != "" {
		app.Static("/", deps.WebDir)
	}
}
