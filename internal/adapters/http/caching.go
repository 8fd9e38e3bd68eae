package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != fiber.MethodGet {
			return err
		}

		// Don't override if already set
		if existing := c.GetRespHeader(fiber.HeaderCacheControl); existing != "" {
			return err
		}

		path := c.Path()
		var ttl string

		switch {
		case path == "/v1/health" || path == "/v1/ready":
			ttl = "public, max-age=10"

		case path == "/metrics":
			ttl = "no-cache"

		case path == "/" || path == "/index.html":
			ttl = "no-cache" // carries the injected maps key

		case path == "/api/bus-arrival" || strings.HasSuffix(path, "/arrivals"):
			ttl = "public, max-age=15" // arrivals change every few seconds

		case strings.HasPrefix(path, "/v1/stops/nearby"):
			ttl = "public, max-age=300" // stop dataset changes rarely

		case strings.HasPrefix(path, "/v1/stops/"):
			ttl = "public, max-age=600"

		case strings.HasPrefix(path, "/v1/areas") || strings.HasPrefix(path, "/v1/weather"):
			ttl = "public, max-age=60" // forecasts refresh every few minutes

		case strings.HasPrefix(path, "/v1/"):
			ttl = "public, max-age=300"
		}

		if ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}

		return err
	}
}
