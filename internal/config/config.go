// Package config loads scenesync settings from a TOML file.
//
// Keys absent from the file keep their defaults. The reconcile mode is
// applied first, so a file can pick a preset and then override single
// fields of it:
//
//	db_path = "scenes.db"
//	log_level = "debug"
//
//	[reconcile]
//	mode = "production"
//	validation_window = "10s"
package config

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/roach88/scenesync/internal/reconcile"
)

// DefaultDBPath is used when neither the file nor a flag names a database.
const DefaultDBPath = "scenesync.db"

// Config is the resolved process configuration.
type Config struct {
	DBPath    string
	LogLevel  slog.Level
	Reconcile reconcile.Config
}

type fileConfig struct {
	DBPath    string          `toml:"db_path"`
	LogLevel  string          `toml:"log_level"`
	Reconcile reconcileConfig `toml:"reconcile"`
}

type reconcileConfig struct {
	Mode             string `toml:"mode"`
	Validate         bool   `toml:"validate"`
	ValidationWindow string `toml:"validation_window"`
	Throw            bool   `toml:"throw"`
	IncludeBoundText bool   `toml:"include_bound_text"`
}

// Default returns the production configuration.
func Default() Config {
	return Config{
		DBPath:    DefaultDBPath,
		LogLevel:  slog.LevelInfo,
		Reconcile: reconcile.DefaultConfig(),
	}
}

// Load reads path and overlays it on Default. Unknown keys are an error.
func Load(path string) (Config, error) {
	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return resolve(raw, meta)
}

// Parse is Load for an in-memory document.
func Parse(data string) (Config, error) {
	var raw fileConfig
	meta, err := toml.Decode(data, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return resolve(raw, meta)
}

func resolve(raw fileConfig, meta toml.MetaData) (Config, error) {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	cfg := Default()

	if meta.IsDefined("db_path") {
		if p := strings.TrimSpace(raw.DBPath); p != "" {
			cfg.DBPath = p
		}
	}

	if meta.IsDefined("log_level") {
		level, err := ParseLevel(raw.LogLevel)
		if err != nil {
			return Config{}, err
		}
		cfg.LogLevel = level
	}

	if meta.IsDefined("reconcile", "mode") {
		mode, err := reconcile.ParseMode(strings.TrimSpace(raw.Reconcile.Mode))
		if err != nil {
			return Config{}, fmt.Errorf("parse reconcile.mode: %w", err)
		}
		cfg.Reconcile, _ = reconcile.ConfigForMode(mode)
	}

	if meta.IsDefined("reconcile", "validate") {
		cfg.Reconcile.ValidateIndices = raw.Reconcile.Validate
	}

	if meta.IsDefined("reconcile", "validation_window") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Reconcile.ValidationWindow))
		if err != nil {
			return Config{}, fmt.Errorf("parse reconcile.validation_window: %w", err)
		}
		cfg.Reconcile.ValidationWindow = d
	}

	if meta.IsDefined("reconcile", "throw") {
		cfg.Reconcile.ShouldThrow = raw.Reconcile.Throw
	}

	if meta.IsDefined("reconcile", "include_bound_text") {
		cfg.Reconcile.IncludeBoundText = raw.Reconcile.IncludeBoundText
	}

	if err := cfg.Reconcile.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid reconcile config: %w", err)
	}
	return cfg, nil
}

// ParseLevel maps debug, info, warn and error to slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("parse log_level: %w", err)
	}
	return level, nil
}
