package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestLoad_Defaults tests defaults with no config file
func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "icsdir" {
		t.Errorf("backend = %q, want %q", cfg.Backend, "icsdir")
	}
	if cfg.Tolerance() != 15*time.Minute {
		t.Errorf("tolerance = %v, want 15m", cfg.Tolerance())
	}
	if cfg.ReconcileSchedule == "" {
		t.Errorf("reconcile_schedule empty, want a default")
	}
	if cfg.ICSDir == "" || cfg.AgendaDir == "" {
		t.Errorf("derived directories not filled in: ics=%q agenda=%q", cfg.ICSDir, cfg.AgendaDir)
	}
}

// TestLoad_File tests reading an explicit config file
func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
state_dir: ` + dir + `
backend: caldav
tolerance_minutes: 5
calendar_id: /cal/personal/
caldav:
  endpoint: https://dav.example.net
  username: birgit
  calendar_path: /cal/personal/
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Backend != "caldav" {
		t.Errorf("backend = %q, want %q", cfg.Backend, "caldav")
	}
	if cfg.Tolerance() != 5*time.Minute {
		t.Errorf("tolerance = %v, want 5m", cfg.Tolerance())
	}
	if cfg.CalDAV.Endpoint != "https://dav.example.net" {
		t.Errorf("endpoint = %q", cfg.CalDAV.Endpoint)
	}
	if cfg.DatabasePath() != filepath.Join(dir, "mappings.db") {
		t.Errorf("database path = %q", cfg.DatabasePath())
	}
}

// TestLoad_MissingExplicitFile tests the explicit-path error case
func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Errorf("Load() succeeded on a missing explicit config file")
	}
}
