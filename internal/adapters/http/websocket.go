package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

const (
	wsPingInterval   = 30 * time.Second
	wsMessageTimeout = 5 * time.Second
)

// wsMessage is sent from client to drive its map session.
type wsMessage struct {
	Type     string   `json:"type"` // "viewport" | "location" | "select" | "deselect"
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Zoom     float64  `json:"zoom"`
	Accuracy float64  `json:"accuracy"`
	Heading  *float64 `json:"heading"`
	ID       string   `json:"id"`
}

func (m wsMessage) point() (domain.GeoPoint, bool) {
	if m.Lat == nil || m.Lon == nil {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: *m.Lat, Lon: *m.Lon}, true
}

type markerMessage struct {
	Type        string              `json:"type"`
	Op          string              `json:"op"` // "add" | "update" | "remove"
	Layer       domain.Layer        `json:"layer"`
	ID          string              `json:"id"`
	Position    *domain.GeoPoint    `json:"position,omitempty"`
	Fingerprint *domain.Fingerprint `json:"fingerprint,omitempty"`
	Attrs       map[string]string   `json:"attrs,omitempty"`
}

type badgeMessage struct {
	Type     string `json:"type"`
	Visible  bool   `json:"visible"`
	Area     string `json:"area,omitempty"`
	Forecast string `json:"forecast,omitempty"`
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// MessageWriter is the write side of a WebSocket connection.
type MessageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// MapSurface renders markers and the area badge by pushing JSON messages to
// a browser over a WebSocket. A failed write is reported as a failed mutation.
type MapSurface struct {
	mu sync.Mutex
	w  MessageWriter
}

// NewMapSurface creates a surface writing to w.
func NewMapSurface(w MessageWriter) *MapSurface {
	return &MapSurface{w: w}
}

// AddMarker implements ports.MarkerSurface. The marker ID is its handle.
func (s *MapSurface) AddMarker(ctx context.Context, layer domain.Layer, m domain.Marker) (domain.MarkerHandle, error) {
	if err := s.writeMarker("add", layer, m); err != nil {
		return nil, err
	}
	return m.ID, nil
}

// UpdateMarker implements ports.MarkerSurface.
func (s *MapSurface) UpdateMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, m domain.Marker) error {
	return s.writeMarker("update", layer, m)
}

// RemoveMarker implements ports.MarkerSurface.
func (s *MapSurface) RemoveMarker(ctx context.Context, layer domain.Layer, h domain.MarkerHandle, id string) error {
	return s.writeJSON(markerMessage{Type: "marker", Op: "remove", Layer: layer, ID: id})
}

// ShowBadge implements ports.BadgeNotifier.
func (s *MapSurface) ShowBadge(ctx context.Context, region domain.Region) error {
	return s.writeJSON(badgeMessage{Type: "badge", Visible: true, Area: region.Name, Forecast: region.Forecast})
}

// HideBadge implements ports.BadgeNotifier.
func (s *MapSurface) HideBadge(ctx context.Context) error {
	return s.writeJSON(badgeMessage{Type: "badge", Visible: false})
}

// SendError pushes an error notice to the client.
func (s *MapSurface) SendError(msg string) error {
	return s.writeJSON(errorMessage{Type: "error", Message: msg})
}

// Ping sends a WebSocket ping frame.
func (s *MapSurface) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.WriteMessage(websocket.PingMessage, nil)
}

func (s *MapSurface) writeMarker(op string, layer domain.Layer, m domain.Marker) error {
	pos, fp := m.Position, m.Fingerprint
	return s.writeJSON(markerMessage{
		Type:        "marker",
		Op:          op,
		Layer:       layer,
		ID:          m.ID,
		Position:    &pos,
		Fingerprint: &fp,
		Attrs:       m.Attrs,
	})
}

// writeJSON is a thread-safe write.
func (s *MapSurface) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.w.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write ws message: %w", err)
	}
	return nil
}

// SessionDriver applies client messages to one map session. It must be used
// from a single goroutine.
type SessionDriver struct {
	session *usecases.MapSession
	weather *usecases.WeatherService
	surface *MapSurface
	version uint64
}

// NewSessionDriver creates a session rendering to surface.
func NewSessionDriver(deps *Dependencies, surface *MapSurface) *SessionDriver {
	return &SessionDriver{
		session: usecases.NewMapSession(deps.Stops, deps.Weather, surface, surface),
		weather: deps.Weather,
		surface: surface,
		version: deps.Weather.Store().Snapshot().Version,
	}
}

// Session returns the underlying map session.
func (d *SessionDriver) Session() *usecases.MapSession { return d.session }

// Handle applies one raw client message. Problems with the message itself
// are reported to the client and return nil.
func (d *SessionDriver) Handle(ctx context.Context, raw []byte) error {
	var m wsMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return d.surface.SendError("invalid JSON")
	}

	switch m.Type {
	case "viewport":
		p, ok := m.point()
		if !ok {
			return d.surface.SendError("viewport requires lat and lon")
		}
		var badgeErr error
		if v := d.weather.Store().Snapshot().Version; v != d.version {
			d.version = v
			_, badgeErr = d.session.RefreshArea(ctx)
		}
		return errors.Join(badgeErr, d.session.OnViewportIdle(ctx, domain.Viewport{Center: p, Zoom: m.Zoom}))

	case "location":
		p, ok := m.point()
		if !ok {
			return d.surface.SendError("location requires lat and lon")
		}
		_, err := d.session.OnLocation(ctx, domain.LocationFix{Location: p, AccuracyMeters: m.Accuracy, Heading: m.Heading})
		return err

	case "select":
		err := d.session.SelectStop(ctx, m.ID)
		if errors.Is(err, domain.ErrMarkerNotRendered) {
			return d.surface.SendError("stop " + m.ID + " is not on the map")
		}
		return err

	case "deselect":
		return d.session.ClearSelection(ctx)

	default:
		return d.surface.SendError("unknown message type: " + m.Type)
	}
}

// Refresh brings the badge and the last viewport up to date when the
// forecast snapshot changed since they were drawn. It reports whether
// anything was sent.
func (d *SessionDriver) Refresh(ctx context.Context) (bool, error) {
	v := d.weather.Store().Snapshot().Version
	if v == d.version {
		return false, nil
	}
	d.version = v

	changed, badgeErr := d.session.RefreshArea(ctx)
	vp, ok := d.session.Viewport()
	if !ok {
		return changed, badgeErr
	}
	return true, errors.Join(badgeErr, d.session.OnViewportIdle(ctx, vp))
}

// MapSessionHandler returns a handler that upgrades to WebSocket and runs
// one map session per connection.
// Clients send JSON: {"type":"viewport","lat":1.3521,"lon":103.8198,"zoom":16}
func MapSessionHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		log := slog.With("remote_addr", remoteAddr)
		log.Info("ws client connected")

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		surface := NewMapSurface(c)
		driver := NewSessionDriver(deps, surface)

		// Reader goroutine; the loop below is the only one touching the session.
		inbox := make(chan []byte)
		done := make(chan struct{})
		go func() {
			defer close(inbox)
			for {
				_, msg, err := c.ReadMessage()
				if err != nil {
					return
				}
				select {
				case inbox <- msg:
				case <-done:
					return
				}
			}
		}()
		defer close(done)

		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()

		for {
			select {
			case msg, ok := <-inbox:
				if !ok {
					log.Info("ws client disconnected")
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), wsMessageTimeout)
				err := driver.Handle(ctx, msg)
				cancel()
				if err != nil {
					log.Warn("map session update failed", "error", err)
				}

			case <-ticker.C:
				if err := surface.Ping(); err != nil {
					return
				}
				ctx, cancel := context.WithTimeout(context.Background(), wsMessageTimeout)
				if _, err := driver.Refresh(ctx); err != nil {
					log.Warn("weather layer refresh failed", "error", err)
				}
				cancel()
			}
		}
	}
}
