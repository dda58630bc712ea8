package config

import "testing"

func TestLoadDoesNotInjectWeakAuthDefaults(t *testing.T) {
	t.Setenv("AUTH_SECRET", "")
	t.Setenv("MANAGER_PIN", "")

	cfg := Load()
	if cfg.AuthSecret != "" {
		t.Fatalf("expected empty AUTH_SECRET when unset, got %q", cfg.AuthSecret)
	}
	if cfg.ManagerPIN != "" {
		t.Fatalf("expected empty MANAGER_PIN when unset, got %q", cfg.ManagerPIN)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TIMEZONE", "")
	t.Setenv("GEOFENCE_RADIUS_METERS", "")
	t.Setenv("REPORT_CACHE_TTL_SECONDS", "")

	cfg := Load()
	if cfg.Timezone != "Asia/Jakarta" {
		t.Fatalf("default timezone = %q, want Asia/Jakarta", cfg.Timezone)
	}
	if cfg.GeofenceRadiusMeters != 100 {
		t.Fatalf("default geofence radius = %v, want 100", cfg.GeofenceRadiusMeters)
	}
	if cfg.ReportCacheTTLSeconds != 60 {
		t.Fatalf("default report cache TTL = %d, want 60", cfg.ReportCacheTTLSeconds)
	}
}

func TestLoadRejectsBadGeofenceRadius(t *testing.T) {
	t.Setenv("GEOFENCE_RADIUS_METERS", "-5")

	cfg := Load()
	if cfg.GeofenceRadiusMeters != 100 {
		t.Fatalf("radius = %v, want fallback 100", cfg.GeofenceRadiusMeters)
	}
}
