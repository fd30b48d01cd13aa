// Package config loads and validates the engine's YAML configuration.
//
// The file is decoded with yaml.v3 and validated against an embedded
// CUE schema before any value is used, so a typo'd key or a negative
// window fails at startup with a position-free but precise message
// instead of silently running with defaults.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/rbeezley/myk9q-sync/internal/engine"
	"github.com/rbeezley/myk9q-sync/internal/subs"
)

//go:embed schema.cue
var schemaCUE string

// Duration is a time.Duration that unmarshals from YAML strings like
// "60s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the underlying time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Subscriptions configures the subscription registry.
type Subscriptions struct {
	MaxActive       int      `yaml:"max_active"`
	MaxAged         int      `yaml:"max_aged"`
	AgedThreshold   Duration `yaml:"aged_threshold"`
	MaxAge          Duration `yaml:"max_age"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

// Config is the full engine configuration.
type Config struct {
	DBPath        string        `yaml:"db_path"`
	ParentField   string        `yaml:"parent_field"`
	StaleMaxAge   Duration      `yaml:"stale_max_age"`
	GCMinAge      Duration      `yaml:"gc_min_age"`
	GCMaxAge      Duration      `yaml:"gc_max_age"`
	SweepInterval Duration      `yaml:"sweep_interval"`
	GCInterval    Duration      `yaml:"gc_interval"`
	Subscriptions Subscriptions `yaml:"subscriptions"`
}

// Default returns the documented defaults.
func Default() Config {
	ec := engine.DefaultConfig()
	sc := subs.DefaultConfig()
	return Config{
		DBPath:        "k9sync.db",
		ParentField:   engine.DefaultParentField,
		StaleMaxAge:   Duration(ec.StaleMaxAge),
		GCMinAge:      Duration(ec.GCMinAge),
		GCMaxAge:      Duration(ec.GCMaxAge),
		SweepInterval: Duration(ec.SweepInterval),
		GCInterval:    Duration(ec.GCInterval),
		Subscriptions: Subscriptions{
			MaxActive:       sc.MaxActive,
			MaxAged:         sc.MaxAged,
			AgedThreshold:   Duration(sc.AgedThreshold),
			MaxAge:          Duration(sc.MaxAge),
			CleanupInterval: Duration(sc.CleanupInterval),
		},
	}
}

// Load reads, validates, and decodes a YAML config file. Every omitted
// key keeps its default.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse validates and decodes YAML config bytes.
func Parse(data []byte) (Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := validate(raw); err != nil {
		return Config{}, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.GCMinAge.Std() >= cfg.GCMaxAge.Std() {
		return Config{}, fmt.Errorf("config: gc_min_age (%s) must be below gc_max_age (%s)",
			cfg.GCMinAge.Std(), cfg.GCMaxAge.Std())
	}
	return cfg, nil
}

// validate unifies the raw document with the closed CUE schema. Unknown
// keys, wrong types, and malformed durations all surface here.
func validate(raw map[string]any) error {
	cuectx := cuecontext.New()

	schema := cuectx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}
	schema = schema.LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("config schema: %w", err)
	}

	if raw == nil {
		return nil
	}
	unified := schema.Unify(cuectx.Encode(raw))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Engine converts to the engine's config.
func (c Config) Engine() engine.Config {
	return engine.Config{
		StaleMaxAge:   c.StaleMaxAge.Std(),
		GCMinAge:      c.GCMinAge.Std(),
		GCMaxAge:      c.GCMaxAge.Std(),
		SweepInterval: c.SweepInterval.Std(),
		GCInterval:    c.GCInterval.Std(),
	}
}

// Subs converts to the subscription registry's config.
func (c Config) Subs() subs.Config {
	return subs.Config{
		MaxActive:       c.Subscriptions.MaxActive,
		MaxAged:         c.Subscriptions.MaxAged,
		AgedThreshold:   c.Subscriptions.AgedThreshold.Std(),
		MaxAge:          c.Subscriptions.MaxAge.Std(),
		CleanupInterval: c.Subscriptions.CleanupInterval.Std(),
	}
}
