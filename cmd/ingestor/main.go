package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/busradar/internal/adapters/lta"
	"github.com/samirrijal/busradar/internal/adapters/postgres"
	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/pkg/config"
	"github.com/samirrijal/busradar/internal/pkg/logging"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
)

// upsertChunk matches the DataMall page size.
const upsertChunk = 500

// Usage: ingestor [dump.json]
// Pages the LTA BusStops dataset into Postgres. With an argument the dataset
// is also written to that file, usable as data.stops_path.
func main() {
	cfg, err := config.Load("busradar-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	if cfg.LTA.APIKey == "" {
		log.Fatal("lta.api_key is required (LTA_DATAMALL_API_KEY)")
	}

	db, err := postgres.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	client := lta.New(cfg.LTA.BaseURL, cfg.LTA.APIKey, cfg.LTA.Timeout)

	start := time.Now()
	stops, err := client.BusStops(ctx)
	if err != nil {
		log.Fatalf("fetch bus stops: %v", err)
	}
	slog.Info("bus stops downloaded", "count", len(stops), "took", time.Since(start).String())

	if err := upsertStops(ctx, postgres.NewStopRepo(db), stops); err != nil {
		log.Fatalf("upsert: %v", err)
	}

	if len(os.Args) > 1 {
		if err := dumpStops(os.Args[1], stops); err != nil {
			log.Fatalf("dump: %v", err)
		}
		slog.Info("stops written", "path", os.Args[1])
	}

	total, err := postgres.NewStopRepo(db).Count(ctx)
	if err != nil {
		slog.Warn("count stops", "error", err)
	}
	slog.Info("ingestion complete", "upserted", len(stops), "total", total, "took", time.Since(start).String())
}

func upsertStops(ctx context.Context, repo *postgres.StopRepo, stops []domain.Stop) error {
	ctx, span := telemetry.Tracer().Start(ctx, telemetry.SpanStopsUpsert)
	defer span.End()
	span.SetAttributes(attribute.Int("stops.count", len(stops)))

	for i := 0; i < len(stops); i += upsertChunk {
		end := min(i+upsertChunk, len(stops))
		if err := repo.UpsertBatch(ctx, stops[i:end]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		metrics.StopsIngested.Add(float64(end - i))
		slog.Debug("chunk upserted", "from", i, "to", end)
	}
	return nil
}

func dumpStops(path string, stops []domain.Stop) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := lta.EncodeBusStops(f, stops); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
