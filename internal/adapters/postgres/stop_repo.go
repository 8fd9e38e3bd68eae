package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/busradar/internal/core/domain"
)

const upsertStopSQL = `
	INSERT INTO bus_stops (code, description, road_name, location, updated_at)
	VALUES ($1, $2, $3, ST_SetSRID(ST_MakePoint($4, $5), 4326)::geography, now())
	ON CONFLICT (code) DO UPDATE
	SET description = EXCLUDED.description, road_name = EXCLUDED.road_name,
	    location = EXCLUDED.location, updated_at = now()
`

const selectStopSQL = `
	SELECT code, description, road_name,
	       ST_Y(location::geometry) AS lat,
	       ST_X(location::geometry) AS lon,
	       updated_at
	FROM bus_stops`

// StopRepo implements ports.StopRepository with pgx.
type StopRepo struct {
	db *DB
}

// NewStopRepo creates a new StopRepo.
func NewStopRepo(db *DB) *StopRepo {
	return &StopRepo{db: db}
}

// UpsertBatch inserts or updates many stops using pgx.Batch.
func (r *StopRepo) UpsertBatch(ctx context.Context, stops []domain.Stop) error {
	if len(stops) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, s := range stops {
		batch.Queue(upsertStopSQL, s.Code, s.Description, s.RoadName, s.Location.Lon, s.Location.Lat)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for _, s := range stops {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert stop %s: %w", s.Code, err)
		}
	}
	return nil
}

// ListAll returns every stop ordered by code.
func (r *StopRepo) ListAll(ctx context.Context) ([]domain.Stop, error) {
	rows, err := r.db.Pool.Query(ctx, selectStopSQL+` ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []domain.Stop
	for rows.Next() {
		var s domain.Stop
		if err := rows.Scan(
			&s.Code, &s.Description, &s.RoadName,
			&s.Location.Lat, &s.Location.Lon, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		stops = append(stops, s)
	}
	return stops, rows.Err()
}

// GetByCode returns a stop by its bus stop code.
func (r *StopRepo) GetByCode(ctx context.Context, code string) (*domain.Stop, error) {
	var s domain.Stop
	err := r.db.Pool.QueryRow(ctx, selectStopSQL+` WHERE code = $1`, code).Scan(
		&s.Code, &s.Description, &s.RoadName,
		&s.Location.Lat, &s.Location.Lon, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("stop %s: %w", code, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Count returns the number of stored stops.
func (r *StopRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT count(*) FROM bus_stops`).Scan(&n)
	return n, err
}
