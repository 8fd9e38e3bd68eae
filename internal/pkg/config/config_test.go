package config_test

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/busradar/internal/pkg/config"
)

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := config.Load("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("expected port 3000, got %d", cfg.Server.Port)
	}
	if cfg.Weather.RefreshInterval != 5*time.Minute {
		t.Errorf("expected 5m refresh, got %s", cfg.Weather.RefreshInterval)
	}
	if cfg.Weather.ZoomThreshold != 12 {
		t.Errorf("expected zoom threshold 12, got %v", cfg.Weather.ZoomThreshold)
	}
	if cfg.Telemetry.ServiceName != "api" {
		t.Errorf("expected service name api, got %s", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvAliases(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("LTA_DATAMALL_API_KEY", "lta-key")
	t.Setenv("GOOGLE_MAPS_API_KEY", "maps-key")
	t.Setenv("PORT", "8081")
	t.Setenv("BUSRADAR_WEATHER_ZOOM_THRESHOLD", "11")

	cfg, err := config.Load("api")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LTA.APIKey != "lta-key" {
		t.Errorf("expected lta-key, got %q", cfg.LTA.APIKey)
	}
	if cfg.Maps.APIKey != "maps-key" {
		t.Errorf("expected maps-key, got %q", cfg.Maps.APIKey)
	}
	if cfg.Server.Port != 8081 {
		t.Errorf("expected port 8081, got %d", cfg.Server.Port)
	}
	if cfg.Weather.ZoomThreshold != 11 {
		t.Errorf("expected zoom threshold 11, got %v", cfg.Weather.ZoomThreshold)
	}
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := &config.Config{}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"server.port", "database.host", "lta.base_url", "weather.refresh_interval"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected error to mention %s, got %v", want, err)
		}
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
