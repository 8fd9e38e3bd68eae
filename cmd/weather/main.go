package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/samirrijal/busradar/internal/adapters/nats"
	"github.com/samirrijal/busradar/internal/adapters/nea"
	"github.com/samirrijal/busradar/internal/adapters/valkey"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/config"
	"github.com/samirrijal/busradar/internal/pkg/logging"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
	"github.com/samirrijal/busradar/internal/workflows"
)

// The weather refresher fetches the 2-hour forecast, caches it in Valkey and
// publishes it on NATS for API instances. With temporal.enabled the schedule
// runs as a Temporal cron workflow, otherwise as an in-process ticker.
func main() {
	cfg, err := config.Load("busradar-weather")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	var cacheSvc ports.CacheService
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, forecasts will not be cached", "error", err)
	} else {
		defer cache.Close()
		cacheSvc = cache
	}

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer pub.Close()

	weather := usecases.NewWeatherService(
		usecases.NewRegionStore(nil),
		nea.New(cfg.NEA.ForecastURL, cfg.NEA.Timeout),
		pub,
		cacheSvc,
		cfg.Weather.ZoomThreshold,
	)

	if !cfg.Temporal.Enabled {
		slog.Info("forecast refresher started", "interval", cfg.Weather.RefreshInterval.String())
		weather.Run(ctx, cfg.Weather.RefreshInterval)
		slog.Info("forecast refresher stopped")
		return
	}

	if err := runTemporal(ctx, cfg, weather); err != nil {
		log.Fatalf("temporal: %v", err)
	}
}

func runTemporal(ctx context.Context, cfg *config.Config, weather *usecases.WeatherService) error {
	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		return err
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	// Register workflow & activities
	w.RegisterWorkflow(workflows.ForecastRefreshWorkflow)
	w.RegisterActivity(&workflows.ForecastActivities{Weather: weather})

	// One cron run per namespace; a second refresher just adds a worker.
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:           workflows.ForecastRefreshWorkflowID,
		TaskQueue:    cfg.Temporal.TaskQueue,
		CronSchedule: "@every " + cfg.Weather.RefreshInterval.String(),
	}, workflows.ForecastRefreshWorkflow)
	var started *serviceerror.WorkflowExecutionAlreadyStarted
	switch {
	case errors.As(err, &started):
		slog.Info("forecast schedule already running", "workflow_id", workflows.ForecastRefreshWorkflowID)
	case err != nil:
		return err
	default:
		slog.Info("forecast schedule started", "workflow_id", run.GetID(), "run_id", run.GetRunID())
	}

	slog.Info("forecast worker started", "task_queue", cfg.Temporal.TaskQueue)
	interrupt := make(chan interface{})
	go func() {
		<-ctx.Done()
		close(interrupt)
	}()
	return w.Run(interrupt)
}
