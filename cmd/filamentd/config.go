package main

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the filamentd configuration file
// (~/.config/filament/config.yaml). Sampling fields are pointers so "not
// set" is distinguishable from zero.
type Config struct {
	Address   string `yaml:"address"`
	ModelName string `yaml:"model_name"`

	// Toy model shape for the demo backend.
	Hidden       *int   `yaml:"hidden"`
	MaxSeqLen    *int   `yaml:"max_seq_len"`
	MaxBatchSize *int   `yaml:"max_batch_size"`
	ModelSeed    *int64 `yaml:"model_seed"`

	// Output
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "filament", "config.yaml")
}

// loadConfig reads the yaml config at path. A missing file at the default
// location is not an error; an explicitly requested file must exist.
func loadConfig(path string, explicit bool) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
