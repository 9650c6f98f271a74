package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/openfroyo/bootcoord/pkg/boot"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadMissingDefaultPath(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "bootctl.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Keys.Production != boot.ProductionKey {
		t.Errorf("Keys.Production = %q", cfg.Keys.Production)
	}
}

func TestLoadMissingExplicitPath(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Error("Load() of a missing explicit path succeeded")
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bootctl.yaml")
	content := `
catalog:
  dir: /srv/catalog
  latency: 50ms
keys:
  production: Runtime
  interactive: Editor
telemetry:
  logging:
    level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Catalog.Dir != "/srv/catalog" || cfg.Catalog.Latency != 50*time.Millisecond {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Telemetry.Logging.Level)
	}
	// Untouched sections keep their defaults.
	if cfg.Telemetry.Logging.Format != "console" || !cfg.Journal.Enabled {
		t.Errorf("defaults lost: %+v %+v", cfg.Telemetry.Logging, cfg.Journal)
	}
}

func TestLoadLogLevelEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Telemetry.Logging.Level)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty catalog dir", mutate: func(c *Config) { c.Catalog.Dir = "" }},
		{name: "empty state path", mutate: func(c *Config) { c.State.Path = "" }},
		{name: "same keys", mutate: func(c *Config) { c.Keys.Interactive = c.Keys.Production }},
		{name: "negative latency", mutate: func(c *Config) { c.Scene.Latency = -time.Second }},
		{name: "bad log level", mutate: func(c *Config) { c.Telemetry.Logging.Level = "chatty" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() error = nil")
			}
		})
	}
}

func TestKeysFor(t *testing.T) {
	cfg := Default()

	got := cfg.KeysFor(boot.ContextInteractive)
	if len(got) != 2 || got[0] != boot.InteractiveKey || got[1] != boot.ProductionKey {
		t.Errorf("KeysFor(interactive) = %v", got)
	}
	got = cfg.KeysFor(boot.ContextProduction)
	if len(got) != 1 || got[0] != boot.ProductionKey {
		t.Errorf("KeysFor(production) = %v", got)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bootctl.yaml")
	cfg := Default()
	cfg.Prefs.Debounce = time.Second

	if err := cfg.Write(path); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	loaded, err := Load(path, true)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Prefs.Debounce != time.Second {
		t.Errorf("Prefs.Debounce = %v, want 1s", loaded.Prefs.Debounce)
	}
}
