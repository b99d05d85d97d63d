package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write temp config: %v", err)
	}
	return path
}

func TestLoad_EnvSubstitution(t *testing.T) {
	os.Setenv("TEST_API_KEY", "secret-key-123")
	defer os.Unsetenv("TEST_API_KEY")

	path := writeConfig(t, `
api:
  api_key: ${TEST_API_KEY}
monitor:
  base_url: https://api.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.APIKey != "secret-key-123" {
		t.Errorf("api_key = %q, want env value substituted", cfg.API.APIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
monitor:
  base_url: https://api.example.com
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.Driver != "memory" {
		t.Errorf("storage.driver = %q, want memory", cfg.Storage.Driver)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("logging defaults = %q/%q", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoad_BaseURLRequired(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: memory
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing base_url")
	}
}

func TestLoad_BaseURLPrependedToCandidates(t *testing.T) {
	path := writeConfig(t, `
monitor:
  base_url: https://api.example.com
  candidates:
    - https://203.0.113.10
    - https://203.0.113.11
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Monitor.Candidates) != 3 {
		t.Fatalf("candidates = %d, want base URL prepended", len(cfg.Monitor.Candidates))
	}
	if cfg.Monitor.Candidates[0] != "https://api.example.com" {
		t.Errorf("first candidate = %q, want the base URL", cfg.Monitor.Candidates[0])
	}
}

func TestLoad_CandidatesNotDuplicated(t *testing.T) {
	path := writeConfig(t, `
monitor:
  base_url: https://api.example.com
  candidates:
    - https://api.example.com
    - https://203.0.113.10
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(cfg.Monitor.Candidates) != 2 {
		t.Errorf("candidates = %d, base URL must not be duplicated", len(cfg.Monitor.Candidates))
	}
}

func TestLoad_SQLiteDefaults(t *testing.T) {
	path := writeConfig(t, `
monitor:
  base_url: https://api.example.com
storage:
  driver: sqlite
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.SQLite.Path != "storekit.db" {
		t.Errorf("sqlite path = %q, want default", cfg.Storage.SQLite.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
