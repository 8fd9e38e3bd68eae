package ports

import (
	"context"

	"github.com/samirrijal/busradar/internal/core/domain"
)

// StopRepository persists the bus stop dataset.
type StopRepository interface {
	UpsertBatch(ctx context.Context, stops []domain.Stop) error
	ListAll(ctx context.Context) ([]domain.Stop, error)
	GetByCode(ctx context.Context, code string) (*domain.Stop, error)
	Count(ctx context.Context) (int, error)
}

// BoundarySource loads planning-area boundaries. Returned regions carry no forecast.
type BoundarySource interface {
	LoadBoundaries(ctx context.Context) ([]domain.Region, error)
}
