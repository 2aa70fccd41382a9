package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeClientConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "client.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadClientConfigDefaultsAndOverrides(t *testing.T) {
	path := writeClientConfig(t, `
host = "lab-7.internal"
raise_on_error = false
`)

	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "lab-7.internal" {
		t.Fatalf("unexpected host: %q", cfg.Host)
	}
	if cfg.Port != 5555 {
		t.Fatalf("expected default port, got %d", cfg.Port)
	}
	if cfg.TimeoutMS != 5000 {
		t.Fatalf("expected default timeout, got %d", cfg.TimeoutMS)
	}
	if cfg.RaiseOnError {
		t.Fatalf("expected raise_on_error disabled")
	}
}

func TestLoadClientConfigTimeoutForms(t *testing.T) {
	path := writeClientConfig(t, `timeout = "1.5s"`)
	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TimeoutMS != 1500 {
		t.Fatalf("unexpected timeout: %d", cfg.TimeoutMS)
	}

	path = writeClientConfig(t, `
timeout = "1s"
timeout_ms = 250
`)
	cfg, err = loadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.TimeoutMS != 250 {
		t.Fatalf("timeout_ms must win, got %d", cfg.TimeoutMS)
	}
}

func TestLoadClientConfigBadDuration(t *testing.T) {
	path := writeClientConfig(t, `timeout = "abc"`)
	if _, err := loadClientConfig(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadClientConfigMissingFile(t *testing.T) {
	if _, err := loadClientConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestLoadClientConfigBlankHostKeepsDefault(t *testing.T) {
	path := writeClientConfig(t, `host = "  "`)
	cfg, err := loadClientConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Host != "localhost" {
		t.Fatalf("unexpected host: %q", cfg.Host)
	}
}
