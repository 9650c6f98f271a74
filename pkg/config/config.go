package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/openfroyo/bootcoord/pkg/boot"
	"github.com/openfroyo/bootcoord/pkg/telemetry"
)

// Config is the top-level bootcoord configuration.
type Config struct {
	// Catalog locates Boot Resource definitions.
	Catalog CatalogConfig `yaml:"catalog"`

	// State locates the preference and journal database.
	State StateConfig `yaml:"state"`

	// Keys are the well-known Boot Resource keys.
	Keys Keys `yaml:"keys"`

	// Scene configures the in-memory scene graph.
	Scene SceneConfig `yaml:"scene"`

	// Prefs configures preference watching.
	Prefs PrefsConfig `yaml:"prefs"`

	// Journal configures lifecycle journaling.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry configures logging, tracing, metrics, and events.
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// CatalogConfig configures the definition catalog.
type CatalogConfig struct {
	Dir     string        `yaml:"dir" validate:"required"`
	Latency time.Duration `yaml:"latency" validate:"gte=0"`
}

// StateConfig configures the state database.
type StateConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// Keys names the resources bootstrapped in each context.
type Keys struct {
	Production  string `yaml:"production" validate:"required"`
	Interactive string `yaml:"interactive" validate:"required,nefield=Production"`
}

// SceneConfig configures the scene graph.
type SceneConfig struct {
	Latency time.Duration `yaml:"latency" validate:"gte=0"`
}

// PrefsConfig configures preference watching.
type PrefsConfig struct {
	Watch    bool          `yaml:"watch"`
	Debounce time.Duration `yaml:"debounce" validate:"gte=0"`
}

// JournalConfig configures the lifecycle journal.
type JournalConfig struct {
	Enabled bool `yaml:"enabled"`

	// Keep is the number of entries retained at startup. Zero keeps everything.
	Keep int `yaml:"keep" validate:"gte=0"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{Dir: filepath.Join(".bootcoord", "catalog")},
		State:   StateConfig{Path: filepath.Join(".bootcoord", "state.db")},
		Keys: Keys{
			Production:  boot.ProductionKey,
			Interactive: boot.InteractiveKey,
		},
		Prefs:     PrefsConfig{Watch: true, Debounce: 200 * time.Millisecond},
		Journal:   JournalConfig{Enabled: true, Keep: 1000},
		Telemetry: *telemetry.DefaultConfig(),
	}
}

// Load reads the configuration at path over the defaults. A missing file at the
// default path is not an error; a missing explicit path is.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Telemetry.Logging.Level = level
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct tags and the telemetry section.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry config: %w", err)
	}
	return nil
}

// KeysFor returns the keys bootstrapped in ec, in declaration order.
func (c *Config) KeysFor(ec boot.ExecContext) []string {
	if ec == boot.ContextInteractive {
		return []string{c.Keys.Interactive, c.Keys.Production}
	}
	return []string{c.Keys.Production}
}

// Write saves the configuration as YAML, creating parent directories.
func (c *Config) Write(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
