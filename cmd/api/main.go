package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/busradar/internal/adapters/geojson"
	"github.com/samirrijal/busradar/internal/adapters/http"
	"github.com/samirrijal/busradar/internal/adapters/lta"
	natsadapter "github.com/samirrijal/busradar/internal/adapters/nats"
	"github.com/samirrijal/busradar/internal/adapters/nea"
	"github.com/samirrijal/busradar/internal/adapters/postgres"
	"github.com/samirrijal/busradar/internal/adapters/valkey"
	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/config"
	"github.com/samirrijal/busradar/internal/pkg/logging"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("busradar-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	deps := &http.Dependencies{
		MapsAPIKey:  cfg.Maps.APIKey,
		WebDir:      cfg.Web.Dir,
		IndexPath:   cfg.Web.Index,
		OpenAPIPath: "api/openapi.yaml",
	}
	if cfg.Maps.APIKey == "" {
		slog.Warn("maps.api_key is empty, the map page will not load tiles")
	}

	// Cache
	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
		deps.Cache = cache
	}

	// Stop dataset: a JSON file when configured, otherwise the database
	var stopRepo ports.StopRepository
	if cfg.Data.StopsPath == "" {
		db, err := postgres.New(ctx, cfg.Database.DSN())
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		deps.DB = db
		stopRepo = postgres.NewStopRepo(db)

		go reportPoolStats(ctx, db)
	}

	stopSvc := usecases.NewStopService(stopRepo, cacheSvc)
	if cfg.Data.StopsPath != "" {
		stops, err := loadStopsFile(cfg.Data.StopsPath)
		if err != nil {
			log.Fatalf("stops file: %v", err)
		}
		stopSvc.SetStops(stops)
		slog.Info("stops loaded from file", "path", cfg.Data.StopsPath, "count", len(stops))
	} else {
		n, err := stopSvc.Load(ctx)
		if err != nil {
			log.Fatalf("load stops: %v", err)
		}
		slog.Info("stops loaded", "count", n)
	}
	deps.Stops = stopSvc

	// Live arrivals
	if cfg.LTA.APIKey == "" {
		slog.Warn("lta.api_key is empty, arrival lookups will fail")
	}
	ltaClient := lta.New(cfg.LTA.BaseURL, cfg.LTA.APIKey, cfg.LTA.Timeout)
	deps.Arrivals = usecases.NewArrivalService(ltaClient, cacheSvc, cfg.LTA.ArrivalTTLSecs)

	// Planning areas + forecast
	boundaries, err := geojson.NewFileSource(cfg.Data.BoundariesPath).LoadBoundaries(ctx)
	if err != nil {
		slog.Warn("planning-area boundaries unavailable, area badge and weather layer disabled", "error", err)
	} else {
		slog.Info("planning areas loaded", "count", len(boundaries))
	}
	store := usecases.NewRegionStore(boundaries)

	var provider ports.ForecastProvider
	if cfg.Weather.RefreshInAPI {
		provider = nea.New(cfg.NEA.ForecastURL, cfg.NEA.Timeout)
	}
	weather := usecases.NewWeatherService(store, provider, nil, cacheSvc, cfg.Weather.ZoomThreshold)
	deps.Weather = weather

	if weather.Bootstrap(ctx) {
		slog.Info("forecast restored from cache", "areas", len(store.Snapshot().Areas))
	}

	// NATS forecast fan-out
	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, forecasts will not update from the refresher", "error", err)
	} else {
		defer sub.Close()
		deps.NATS = sub
		if err := sub.SubscribeForecasts(ctx, weather.Apply); err != nil {
			slog.Warn("forecast subscription failed", "error", err)
		}
	}

	if cfg.Weather.RefreshInAPI {
		go weather.Run(ctx, cfg.Weather.RefreshInterval)
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    1024 * 1024, // 1 MB max request body
		AppName:      "Bus Radar API",
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())
	cancel()

	// Give in-flight requests up to 10s to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// loadStopsFile reads a BusStops dump, either the DataMall envelope or a bare array.
func loadStopsFile(path string) ([]domain.Stop, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return lta.DecodeBusStops(f)
}

func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Pool.Stat())
		}
	}
}
