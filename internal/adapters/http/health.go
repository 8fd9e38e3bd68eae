package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

// ReadyHandler checks the stop dataset, regions, DB, NATS and cache.
// The service is ready once stops are loaded; backing services that are
// configured must also be reachable.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
		defer cancel()

		checks := make(map[string]string)
		allOK := true

		// Stop dataset
		if n := len(deps.Stops.All()); n > 0 {
			checks["stops"] = "ok"
		} else {
			checks["stops"] = "empty"
			allOK = false
		}

		// Planning areas
		if deps.Weather != nil {
			snap := deps.Weather.Store().Snapshot()
			switch {
			case len(snap.Regions) == 0:
				checks["regions"] = "empty"
			case len(snap.Areas) == 0:
				checks["regions"] = "no forecast"
			default:
				checks["regions"] = "ok"
			}
		}

		// Database
		checks["database"] = pingCheck(ctx, deps.DB, &allOK)

		// NATS
		if deps.NATS != nil {
			if deps.NATS.IsConnected() {
				checks["nats"] = "ok"
			} else {
				checks["nats"] = "disconnected"
				allOK = false
			}
		} else {
			checks["nats"] = "not configured"
		}

		// Valkey cache
		checks["cache"] = pingCheck(ctx, deps.Cache, &allOK)

		status := "ready"
		code := fiber.StatusOK
		if !allOK {
			status = "not ready"
			code = fiber.StatusServiceUnavailable
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}

func pingCheck(ctx context.Context, p Pinger, allOK *bool) string {
	if p == nil {
		return "not configured"
	}
	if err := p.Ping(ctx); err != nil {
		*allOK = false
		return "error: " + err.Error()
	}
	return "ok"
}
