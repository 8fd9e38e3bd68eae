package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// Subscriber implements ports.ForecastSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeForecasts delivers the latest retained forecast and then every
// new one. Each API instance gets its own ephemeral consumer so all of them
// see every forecast.
func (s *Subscriber) SubscribeForecasts(ctx context.Context, handler func(ctx context.Context, snap *domain.ForecastSnapshot) error) error {
	sub, err := s.js.Subscribe(ForecastSubject, func(msg *nats.Msg) {
		var snap domain.ForecastSnapshot
		if err := json.Unmarshal(msg.Data, &snap); err != nil {
			slog.Warn("dropping malformed forecast", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &snap); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.DeliverLastPerSubject(),
		nats.ManualAck(),
		nats.MaxDeliver(3),
	)
	if err != nil {
		return fmt.Errorf("subscribe forecasts: %w", err)
	}
	s.subs = append(s.subs, sub)
	return nil
}

// IsConnected reports whether the connection is up.
func (s *Subscriber) IsConnected() bool { return s.conn.IsConnected() }

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
