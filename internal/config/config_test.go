package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFromPathMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.Sync.IntervalSec != 300 {
		t.Fatalf("sync interval = %d, want 300", cfg.Sync.IntervalSec)
	}
}

func TestLoadFromPathReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  port: 9090
upstream:
  base_url: https://commerce.example.com
  timeout_seconds: 3
sync:
  clients:
    - "11222333"
    - "44555666"
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Fatalf("port = %d, want 9090", cfg.Server.Port)
	}
	// Unset fields keep their defaults.
	if cfg.Server.Host != "0.0.0.0" {
		t.Fatalf("host = %q", cfg.Server.Host)
	}
	if cfg.Upstream.BaseURL != "https://commerce.example.com" || cfg.Upstream.TimeoutSec != 3 {
		t.Fatalf("unexpected upstream: %+v", cfg.Upstream)
	}
	if len(cfg.Sync.Clients) != 2 || cfg.Sync.Clients[1] != "44555666" {
		t.Fatalf("unexpected clients: %v", cfg.Sync.Clients)
	}
}

func TestLoadFromPathEnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("DATABASE_DSN", "postgres://tracking")
	t.Setenv("SYNC_CLIENTS", "11222333, 44555666 ,")

	cfg, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Database.DSN != "postgres://tracking" {
		t.Fatalf("dsn = %q", cfg.Database.DSN)
	}
	if len(cfg.Sync.Clients) != 2 || cfg.Sync.Clients[0] != "11222333" {
		t.Fatalf("unexpected clients: %v", cfg.Sync.Clients)
	}
}

func TestLoadFromPathRejectsInvalidPort(t *testing.T) {
	t.Setenv("SERVER_PORT", "-1")

	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for negative port")
	}
}

func TestLoadFromPathRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [not a map"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := LoadFromPath(path); err == nil {
		t.Fatal("expected parse error")
	}
}
