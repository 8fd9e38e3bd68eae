package usecases

import (
	"context"
	"fmt"

	"github.com/bluele/gcache"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/pkg/geospatial"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

const areaMemoSize = 1024

// ResolveArea returns the region containing p. When regions overlap the last
// one in list order wins. It returns nil when nothing contains p.
func ResolveArea(p domain.GeoPoint, regions []domain.Region) *domain.Region {
	if i := resolveIndex(p, regions); i >= 0 {
		return &regions[i]
	}
	return nil
}

func resolveIndex(p domain.GeoPoint, regions []domain.Region) int {
	found := -1
	if !geospatial.ValidPoint(p) {
		return found
	}
	for i := range regions {
		if geospatial.ContainsLocation(p, regions[i].Geometry) {
			found = i
		}
	}
	return found
}

type memoKey struct {
	version  uint64
	lat, lon float64
}

// AreaTracker resolves the user's area on every location fix and tells the
// host only when the area changes. Refresh re-sends the badge when a new
// snapshot changes the current area's forecast. It is not safe for concurrent use; each
// map session owns one.
type AreaTracker struct {
	store    *RegionStore
	notifier ports.BadgeNotifier
	memo     gcache.Cache

	current  string
	forecast string
	inArea   bool

	last   domain.GeoPoint
	hasFix bool
}

// NewAreaTracker creates a tracker that starts outside every area.
func NewAreaTracker(store *RegionStore, notifier ports.BadgeNotifier) *AreaTracker {
	return &AreaTracker{
		store:    store,
		notifier: notifier,
		memo:     gcache.New(areaMemoSize).LRU().Build(),
	}
}

// Resolve returns the area containing p in the current snapshot. Results are
// memoized per snapshot version and exact coordinate.
func (t *AreaTracker) Resolve(p domain.GeoPoint) *domain.Region {
	snap := t.store.Snapshot()
	if !geospatial.ValidPoint(p) {
		return nil
	}

	key := memoKey{version: snap.Version, lat: p.Lat, lon: p.Lon}
	if v, err := t.memo.Get(key); err == nil {
		if i := v.(int); i >= 0 {
			return &snap.Regions[i]
		}
		return nil
	}

	i := resolveIndex(p, snap.Regions)
	_ = t.memo.Set(key, i)
	if i < 0 {
		return nil
	}
	return &snap.Regions[i]
}

// Update resolves the fix and notifies the host when the area differs from
// the last notified one. Leaving every area produces one hide notification.
// When the notification fails the tracker keeps its previous area so the
// next fix retries.
func (t *AreaTracker) Update(ctx context.Context, fix domain.LocationFix) (*domain.Region, error) {
	t.last, t.hasFix = fix.Location, true
	region := t.Resolve(fix.Location)

	if region == nil {
		if !t.inArea {
			return nil, nil
		}
		if err := t.notifier.HideBadge(ctx); err != nil {
			return nil, fmt.Errorf("hide area badge: %w", err)
		}
		t.current, t.forecast, t.inArea = "", "", false
		metrics.AreaChanges.WithLabelValues("left").Inc()
		return nil, nil
	}

	if t.inArea && region.Name == t.current {
		return region, nil
	}
	if err := t.notifier.ShowBadge(ctx, *region); err != nil {
		return region, fmt.Errorf("show area badge: %w", err)
	}
	t.current, t.forecast, t.inArea = region.Name, region.Forecast, true
	metrics.AreaChanges.WithLabelValues("entered").Inc()
	return region, nil
}

// Refresh re-resolves the last fix against the current snapshot. Within the
// same area the badge is shown again only when its forecast text changed;
// a different area goes through Update. It reports whether the host was
// notified.
func (t *AreaTracker) Refresh(ctx context.Context) (bool, error) {
	if !t.hasFix {
		return false, nil
	}
	region := t.Resolve(t.last)
	if region == nil || !t.inArea || region.Name != t.current {
		wasIn, was := t.inArea, t.current
		if _, err := t.Update(ctx, domain.LocationFix{Location: t.last}); err != nil {
			return false, err
		}
		return t.inArea != wasIn || t.current != was, nil
	}
	if region.Forecast == t.forecast {
		return false, nil
	}
	if err := t.notifier.ShowBadge(ctx, *region); err != nil {
		return false, fmt.Errorf("show area badge: %w", err)
	}
	t.forecast = region.Forecast
	return true, nil
}

// Current returns the last notified area name and whether there is one.
func (t *AreaTracker) Current() (string, bool) {
	return t.current, t.inArea
}
