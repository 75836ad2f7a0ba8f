package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"sqlgend/internal/profile"
)

// DB points the schema context builder and statement executor at a database.
type DB struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver" yaml:"driver" toml:"driver"`
	DSN    string `json:"dsn" yaml:"dsn" toml:"dsn"`
	// Schema narrows Postgres introspection; ignored for SQLite.
	Schema  string `json:"schema" yaml:"schema" toml:"schema"`
	MaxRows int    `json:"max_rows" yaml:"max_rows" toml:"max_rows"`
}

// Config holds runtime parameters for the daemon and CLI.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr           string `json:"addr" yaml:"addr" toml:"addr"`
	WeightsDir     string `json:"weights_dir" yaml:"weights_dir" toml:"weights_dir"`
	DefaultProfile string `json:"default_profile" yaml:"default_profile" toml:"default_profile"`
	MemBudgetMB    int    `json:"mem_budget_mb" yaml:"mem_budget_mb" toml:"mem_budget_mb"`
	MemMarginMB    int    `json:"mem_margin_mb" yaml:"mem_margin_mb" toml:"mem_margin_mb"`
	MaxQueueDepth  int    `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	Threads        int    `json:"threads" yaml:"threads" toml:"threads"`
	// ConvertTimeoutSec bounds one end-to-end conversion (0 = no deadline).
	ConvertTimeoutSec int `json:"convert_timeout_sec" yaml:"convert_timeout_sec" toml:"convert_timeout_sec"`
	// ContextLimit bounds the rendered schema context in bytes.
	ContextLimit int `json:"context_limit" yaml:"context_limit" toml:"context_limit"`

	DB       DB                 `json:"db" yaml:"db" toml:"db"`
	Profiles []profile.Override `json:"profiles" yaml:"profiles" toml:"profiles"`
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
