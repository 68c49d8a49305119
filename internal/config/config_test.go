package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.AI.BaseURL != "https://api.mistral.ai" {
		t.Errorf("ai base url = %q", cfg.AI.BaseURL)
	}
	if cfg.Pipeline.ChunkMaxChars != 15000 || cfg.Pipeline.MaxRelevantURLs != 10 {
		t.Errorf("pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Harvest.ParseTimeout() != 60*time.Second {
		t.Errorf("harvest timeout = %v", cfg.Harvest.ParseTimeout())
	}
	if cfg.Schedule.ParseOverdueBuffer() != 5*time.Second {
		t.Errorf("overdue buffer = %v", cfg.Schedule.ParseOverdueBuffer())
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
database:
  path: /tmp/custom.db
server:
  port: 9999
pipeline:
  seed_url_count: 8
schedule:
  overdue_buffer_seconds: 30
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/custom.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.Server.Port != 9999 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
	if cfg.Pipeline.SeedURLCount != 8 {
		t.Errorf("seed url count = %d", cfg.Pipeline.SeedURLCount)
	}
	if cfg.Schedule.ParseOverdueBuffer() != 30*time.Second {
		t.Errorf("overdue buffer = %v", cfg.Schedule.ParseOverdueBuffer())
	}
	// Untouched sections keep their defaults.
	if cfg.Search.Engine != "google" {
		t.Errorf("search engine = %q", cfg.Search.Engine)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("NEURALETTER_DB_PATH", "/tmp/env.db")
	t.Setenv("MISTRAL_API_KEY", "mk-123")
	t.Setenv("SERP_API_KEY", "sk-456")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Path != "/tmp/env.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
	if cfg.AI.APIKey != "mk-123" {
		t.Errorf("ai key = %q", cfg.AI.APIKey)
	}
	if cfg.Search.APIKey != "sk-456" {
		t.Errorf("search key = %q", cfg.Search.APIKey)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load("/does/not/exist.yaml"); err == nil {
		t.Fatal("expected an error")
	}
}
