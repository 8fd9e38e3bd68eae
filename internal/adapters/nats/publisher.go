package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/pkg/telemetry"
)

const (
	// ForecastStream retains recent forecasts so late subscribers get the latest.
	ForecastStream = "WEATHER_FORECASTS"
	// ForecastSubject carries 2-hour forecast snapshots.
	ForecastSubject = "weather.forecast.2h"
)

// Publisher implements ports.ForecastPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the forecast stream exists.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := nats.StreamConfig{
		Name:              ForecastStream,
		Subjects:          []string{"weather.forecast.>"},
		Retention:         nats.LimitsPolicy,
		MaxMsgsPerSubject: 12,
		MaxAge:            6 * time.Hour,
		Storage:           nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishForecast publishes a snapshot on ForecastSubject.
func (p *Publisher) PublishForecast(ctx context.Context, snap *domain.ForecastSnapshot) error {
	_, span := telemetry.Tracer().Start(ctx, telemetry.SpanForecastPublish)
	defer span.End()

	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal forecast: %w", err)
	}
	if _, err := p.js.Publish(ForecastSubject, data, nats.Context(ctx)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("publish forecast: %w", err)
	}
	return nil
}

// IsConnected reports whether the connection is up.
func (p *Publisher) IsConnected() bool { return p.conn.IsConnected() }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
