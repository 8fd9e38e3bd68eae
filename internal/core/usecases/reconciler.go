package usecases

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/ports"
	"github.com/samirrijal/busradar/internal/pkg/metrics"
)

// PlanMarkers diffs the rendered fingerprints against the desired markers.
// Markers with an empty ID are ignored and the first occurrence of a
// duplicate ID wins. Each list in the result is sorted by ID.
func PlanMarkers(rendered map[string]domain.Fingerprint, desired []domain.Marker) domain.MarkerDiff {
	var diff domain.MarkerDiff
	seen := make(map[string]struct{}, len(desired))

	for _, m := range desired {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		seen[m.ID] = struct{}{}

		fp, ok := rendered[m.ID]
		switch {
		case !ok:
			diff.Add = append(diff.Add, m)
		case fp != m.Fingerprint:
			diff.Update = append(diff.Update, m)
		}
	}
	for id := range rendered {
		if _, ok := seen[id]; !ok {
			diff.Remove = append(diff.Remove, id)
		}
	}

	sort.Strings(diff.Remove)
	sort.Slice(diff.Update, func(i, j int) bool { return diff.Update[i].ID < diff.Update[j].ID })
	sort.Slice(diff.Add, func(i, j int) bool { return diff.Add[i].ID < diff.Add[j].ID })
	return diff
}

type renderedMarker struct {
	handle domain.MarkerHandle
	marker domain.Marker
}

// MarkerReconciler keeps one map layer in step with a desired marker set
// using the fewest surface mutations. At most one marker is active at a
// time. It is not safe for concurrent use.
type MarkerReconciler struct {
	layer    domain.Layer
	surface  ports.MarkerSurface
	rendered map[string]renderedMarker
	active   string
}

// NewMarkerReconciler creates a reconciler for an empty layer.
func NewMarkerReconciler(layer domain.Layer, surface ports.MarkerSurface) *MarkerReconciler {
	return &MarkerReconciler{
		layer:    layer,
		surface:  surface,
		rendered: make(map[string]renderedMarker),
	}
}

// Reconcile applies removals, then updates, then adds. A failed mutation does
// not stop the rest; the tracking table records only mutations that
// succeeded and the failures are returned joined. The returned diff is the
// planned one.
func (r *MarkerReconciler) Reconcile(ctx context.Context, desired []domain.Marker) (domain.MarkerDiff, error) {
	marked := make([]domain.Marker, len(desired))
	for i, m := range desired {
		m.Fingerprint.Active = r.active != "" && m.ID == r.active
		marked[i] = m
	}
	diff := PlanMarkers(r.fingerprints(), marked)

	var errs []error
	for _, id := range diff.Remove {
		rm := r.rendered[id]
		err := r.surface.RemoveMarker(ctx, r.layer, rm.handle, id)
		r.observe("remove", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("remove %s marker %s: %w", r.layer, id, err))
			continue
		}
		delete(r.rendered, id)
		if id == r.active {
			r.active = ""
		}
	}

	for _, m := range diff.Update {
		rm := r.rendered[m.ID]
		err := r.surface.UpdateMarker(ctx, r.layer, rm.handle, m)
		r.observe("update", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("update %s marker %s: %w", r.layer, m.ID, err))
			continue
		}
		r.rendered[m.ID] = renderedMarker{handle: rm.handle, marker: m}
	}

	for _, m := range diff.Add {
		h, err := r.surface.AddMarker(ctx, r.layer, m)
		r.observe("add", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("add %s marker %s: %w", r.layer, m.ID, err))
			continue
		}
		r.rendered[m.ID] = renderedMarker{handle: h, marker: m}
	}

	return diff, errors.Join(errs...)
}

// Activate marks the rendered marker id as active, deactivating the
// previous one first. Activating the active marker is a no-op.
func (r *MarkerReconciler) Activate(ctx context.Context, id string) error {
	if id != "" && id == r.active {
		return nil
	}
	target, ok := r.rendered[id]
	if !ok {
		return fmt.Errorf("activate %s marker %s: %w", r.layer, id, domain.ErrMarkerNotRendered)
	}
	if err := r.Deactivate(ctx); err != nil {
		return err
	}

	m := target.marker
	m.Fingerprint.Active = true
	err := r.surface.UpdateMarker(ctx, r.layer, target.handle, m)
	r.observe("update", err)
	if err != nil {
		return fmt.Errorf("activate %s marker %s: %w", r.layer, id, err)
	}
	r.rendered[id] = renderedMarker{handle: target.handle, marker: m}
	r.active = id
	return nil
}

// Deactivate clears the active marker, if any.
func (r *MarkerReconciler) Deactivate(ctx context.Context) error {
	if r.active == "" {
		return nil
	}
	prev, ok := r.rendered[r.active]
	if !ok {
		r.active = ""
		return nil
	}

	m := prev.marker
	m.Fingerprint.Active = false
	err := r.surface.UpdateMarker(ctx, r.layer, prev.handle, m)
	r.observe("update", err)
	if err != nil {
		return fmt.Errorf("deactivate %s marker %s: %w", r.layer, r.active, err)
	}
	r.rendered[r.active] = renderedMarker{handle: prev.handle, marker: m}
	r.active = ""
	return nil
}

// Clear removes every rendered marker.
func (r *MarkerReconciler) Clear(ctx context.Context) error {
	_, err := r.Reconcile(ctx, nil)
	return err
}

// Active returns the active marker ID, or "" when none is active.
func (r *MarkerReconciler) Active() string { return r.active }

// Rendered returns the IDs in the tracking table, sorted.
func (r *MarkerReconciler) Rendered() []string {
	ids := make([]string, 0, len(r.rendered))
	for id := range r.rendered {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Fingerprint returns the fingerprint last applied for id.
func (r *MarkerReconciler) Fingerprint(id string) (domain.Fingerprint, bool) {
	rm, ok := r.rendered[id]
	return rm.marker.Fingerprint, ok
}

func (r *MarkerReconciler) fingerprints() map[string]domain.Fingerprint {
	fps := make(map[string]domain.Fingerprint, len(r.rendered))
	for id, rm := range r.rendered {
		fps[id] = rm.marker.Fingerprint
	}
	return fps
}

func (r *MarkerReconciler) observe(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.MarkerMutations.WithLabelValues(string(r.layer), op, result).Inc()
}
