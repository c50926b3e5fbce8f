package config

import (
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultConfigOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.NumWorker != 1 {
		t.Errorf("Server.NumWorker = %d, want 1", cfg.Server.NumWorker)
	}
	if cfg.Timeouts.StreamRead != 60 {
		t.Errorf("Timeouts.StreamRead = %v, want 60", cfg.Timeouts.StreamRead)
	}
	if cfg.HTTP2.HeaderTableSize != -1 {
		t.Errorf("HTTP2.HeaderTableSize = %d, want -1", cfg.HTTP2.HeaderTableSize)
	}
	if !cfg.TLS.Enabled {
		t.Errorf("TLS.Enabled = false, want true by default")
	}

	cfg2, err := Load(path)
	if err != nil {
		t.Fatalf("second Load() error = %v", err)
	}
	if cfg2.Server.Port != cfg.Server.Port {
		t.Errorf("second Load() did not reproduce the file written by the first")
	}
}

func TestApplyDefaultsFillsZeroValues(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Server.Htdocs != "." {
		t.Errorf("Server.Htdocs = %q, want \".\"", cfg.Server.Htdocs)
	}
	if cfg.Server.NumWorker != 1 {
		t.Errorf("Server.NumWorker = %d, want 1", cfg.Server.NumWorker)
	}
	if cfg.Timeouts.StreamWrite != 60 {
		t.Errorf("Timeouts.StreamWrite = %v, want 60", cfg.Timeouts.StreamWrite)
	}
}

func TestNoTLS(t *testing.T) {
	cfg := &Config{}
	cfg.TLS.Enabled = true
	if cfg.NoTLS() {
		t.Errorf("NoTLS() = true, want false when TLS.Enabled is true")
	}
	cfg.TLS.Enabled = false
	if !cfg.NoTLS() {
		t.Errorf("NoTLS() = false, want true when TLS.Enabled is false")
	}
}
