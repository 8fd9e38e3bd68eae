package usecases_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/samirrijal/busradar/internal/core/domain"
	"github.com/samirrijal/busradar/internal/core/usecases"
)

func markers(size domain.IconSize, ids ...string) []domain.Marker {
	out := make([]domain.Marker, len(ids))
	for i, id := range ids {
		out[i] = domain.Marker{ID: id, Fingerprint: domain.Fingerprint{Size: size}}
	}
	return out
}

func TestReconciler_AddsFromEmpty(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)

	diff, err := r.Reconcile(context.Background(), markers(domain.IconSmall, "B", "A"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(diff.Add) != 2 || len(diff.Update) != 0 || len(diff.Remove) != 0 {
		t.Fatalf("expected 2 adds, got %+v", diff)
	}
	if want := []string{"add:A", "add:B"}; !reflect.DeepEqual(surface.ops(), want) {
		t.Errorf("expected %v, got %v", want, surface.ops())
	}
}

func TestReconciler_Idempotent(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()

	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	surface.reset()

	diff, err := r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !diff.Empty() {
		t.Errorf("expected empty diff, got %+v", diff)
	}
	if len(surface.calls) != 0 {
		t.Errorf("expected no surface calls, got %v", surface.ops())
	}
}

func TestReconciler_RemoveAndAdd(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()

	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	surface.reset()

	if _, err := r.Reconcile(ctx, markers(domain.IconSmall, "B", "C")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"remove:A", "add:C"}; !reflect.DeepEqual(surface.ops(), want) {
		t.Errorf("expected %v, got %v", want, surface.ops())
	}
	if want := []string{"B", "C"}; !reflect.DeepEqual(r.Rendered(), want) {
		t.Errorf("expected rendered %v, got %v", want, r.Rendered())
	}
	if surface.calls[0].handle != "h-stops-A" {
		t.Errorf("expected remove to receive the add handle, got %v", surface.calls[0].handle)
	}
}

func TestReconciler_UpdatesOnFingerprintChange(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()

	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A"))
	surface.reset()

	_, _ = r.Reconcile(ctx, markers(domain.IconLarge, "A"))
	if want := []string{"update:A"}; !reflect.DeepEqual(surface.ops(), want) {
		t.Fatalf("expected %v, got %v", want, surface.ops())
	}
	if fp, _ := r.Fingerprint("A"); fp.Size != domain.IconLarge {
		t.Errorf("expected large fingerprint, got %s", fp.Size)
	}
}

func TestReconciler_SingleActive(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()
	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	surface.reset()

	if err := r.Activate(ctx, "A"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Activate(ctx, "B"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"update:A", "update:A", "update:B"}; !reflect.DeepEqual(surface.ops(), want) {
		t.Fatalf("expected %v, got %v", want, surface.ops())
	}
	if !surface.calls[2].fp.Active || surface.calls[1].fp.Active {
		t.Error("expected A deactivated before B activated")
	}
	if r.Active() != "B" {
		t.Errorf("expected B active, got %q", r.Active())
	}

	// Activating the active marker does nothing
	surface.reset()
	_ = r.Activate(ctx, "B")
	if len(surface.calls) != 0 {
		t.Errorf("expected no calls, got %v", surface.ops())
	}
}

func TestReconciler_ActiveSurvivesReconcile(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()
	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	_ = r.Activate(ctx, "A")
	surface.reset()

	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A", "B"))
	if len(surface.calls) != 0 {
		t.Errorf("expected active marker to stay untouched, got %v", surface.ops())
	}

	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "B"))
	if r.Active() != "" {
		t.Errorf("expected active slot cleared after removal, got %q", r.Active())
	}
}

func TestReconciler_ActivateUnknown(t *testing.T) {
	r := usecases.NewMarkerReconciler(domain.LayerStops, &fakeSurface{})
	err := r.Activate(context.Background(), "missing")
	if !errors.Is(err, domain.ErrMarkerNotRendered) {
		t.Errorf("expected ErrMarkerNotRendered, got %v", err)
	}
}

func TestReconciler_PartialFailure(t *testing.T) {
	surface := &fakeSurface{failOn: map[string]bool{"add:B": true}}
	r := usecases.NewMarkerReconciler(domain.LayerStops, surface)
	ctx := context.Background()

	_, err := r.Reconcile(ctx, markers(domain.IconSmall, "A", "B", "C"))
	if !errors.Is(err, errSurface) {
		t.Fatalf("expected surface error, got %v", err)
	}
	if want := []string{"A", "C"}; !reflect.DeepEqual(r.Rendered(), want) {
		t.Errorf("expected rendered %v, got %v", want, r.Rendered())
	}

	// The failed add is retried on the next pass
	surface.failOn = nil
	surface.reset()
	if _, err := r.Reconcile(ctx, markers(domain.IconSmall, "A", "B", "C")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := []string{"add:B"}; !reflect.DeepEqual(surface.ops(), want) {
		t.Errorf("expected %v, got %v", want, surface.ops())
	}
}

func TestReconciler_FailedRemoveStaysTracked(t *testing.T) {
	surface := &fakeSurface{}
	r := usecases.NewMarkerReconciler(domain.LayerWeather, surface)
	ctx := context.Background()
	_, _ = r.Reconcile(ctx, markers(domain.IconSmall, "A"))

	surface.failOn = map[string]bool{"remove:A": true}
	if err := r.Clear(ctx); err == nil {
		t.Fatal("expected error")
	}
	if want := []string{"A"}; !reflect.DeepEqual(r.Rendered(), want) {
		t.Errorf("expected A still tracked, got %v", r.Rendered())
	}
}

func TestPlanMarkers_DuplicatesAndEmptyIDs(t *testing.T) {
	desired := []domain.Marker{
		{ID: "A", Fingerprint: domain.Fingerprint{Size: domain.IconLarge}},
		{ID: "A", Fingerprint: domain.Fingerprint{Size: domain.IconSmall}},
		{ID: ""},
	}
	diff := usecases.PlanMarkers(nil, desired)
	if len(diff.Add) != 1 || diff.Add[0].Fingerprint.Size != domain.IconLarge {
		t.Errorf("expected first A only, got %+v", diff.Add)
	}
}
