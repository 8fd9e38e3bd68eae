package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

// ArrivalService proxies live bus arrivals with a short-lived shared cache.
type ArrivalService struct {
	provider   ports.ArrivalProvider
	cache      ports.CacheService
	ttlSeconds int
}

// NewArrivalService creates a new ArrivalService. ttlSeconds <= 0 disables caching.
func NewArrivalService(provider ports.ArrivalProvider, cache ports.CacheService, ttlSeconds int) *ArrivalService {
	return &ArrivalService{provider: provider, cache: cache, ttlSeconds: ttlSeconds}
}

// Get returns the raw arrival payload for a stop, optionally for one service.
func (s *ArrivalService) Get(ctx context.Context, stopCode, serviceNo string) (*domain.BusArrival, error) {
	if stopCode == "" {
		return nil, fmt.Errorf("busStopCode parameter is required: %w", domain.ErrInvalidInput)
	}

	cacheKey := fmt.Sprintf("arrival:%s:%s", stopCode, serviceNo)
	if s.cache != nil && s.ttlSeconds > 0 {
		if data, err := s.cache.Get(ctx, cacheKey); err == nil {
			metrics.CacheHits.WithLabelValues("arrival").Inc()
			return &domain.BusArrival{BusStopCode: stopCode, ServiceNo: serviceNo, Payload: data}, nil
		}
		metrics.CacheMisses.WithLabelValues("arrival").Inc()
	}

	data, err := s.provider.BusArrival(ctx, stopCode, serviceNo)
	if err != nil {
		return nil, fmt.Errorf("fetch bus arrival for %s: %w", stopCode, err)
	}

	if s.cache != nil && s.ttlSeconds > 0 {
		_ = s.cache.Set(ctx, cacheKey, data, s.ttlSeconds)
	}

	return &domain.BusArrival{BusStopCode: stopCode, ServiceNo: serviceNo, Payload: data}, nil
}
