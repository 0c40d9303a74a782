package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("address: 0.0.0.0:9090\nmodel_name: demo\nhidden: 32\nmax_seq_len: 128\nlog_level: debug\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Address != "0.0.0.0:9090" {
		t.Errorf("address = %q", cfg.Address)
	}
	if cfg.ModelName != "demo" {
		t.Errorf("model_name = %q", cfg.ModelName)
	}
	if cfg.Hidden == nil || *cfg.Hidden != 32 {
		t.Errorf("hidden = %v", cfg.Hidden)
	}
	if cfg.MaxSeqLen == nil || *cfg.MaxSeqLen != 128 {
		t.Errorf("max_seq_len = %v", cfg.MaxSeqLen)
	}
	if cfg.MaxBatchSize != nil {
		t.Errorf("max_batch_size should be unset, got %v", *cfg.MaxBatchSize)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("log_level = %q", cfg.LogLevel)
	}
}

func TestLoadConfigMissingDefault(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), false)
	if err != nil {
		t.Fatalf("missing default config should not error: %v", err)
	}
	if cfg != (Config{}) {
		t.Errorf("expected zero config, got %+v", cfg)
	}
}

func TestLoadConfigMissingExplicit(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"), true); err == nil {
		t.Fatal("explicit missing config should error")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("address: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path, true); err == nil {
		t.Fatal("malformed yaml should error")
	}
}
