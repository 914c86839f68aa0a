package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 3456 {
		t.Errorf("HTTPPort = %d, want 3456", cfg.HTTPPort)
	}
	if cfg.WSPort != 3457 {
		t.Errorf("WSPort = %d, want 3457", cfg.WSPort)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadOverridesAndResolvesPaths(t *testing.T) {
	dir := t.TempDir()
	toml := `
httpPort = 4000
logLevel = "debug"
autoMonitorInterval = "2s"

[[runtimes]]
id = "local"
type = "local-tmux"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPPort != 4000 {
		t.Errorf("HTTPPort = %d, want 4000", cfg.HTTPPort)
	}
	if cfg.AutoMonitorInterval.Duration().String() != "2s" {
		t.Errorf("AutoMonitorInterval = %v, want 2s", cfg.AutoMonitorInterval.Duration())
	}
	if !filepath.IsAbs(cfg.DBPath) {
		t.Errorf("DBPath should be resolved to an absolute path, got %q", cfg.DBPath)
	}
	if len(cfg.Runtimes) != 1 || cfg.Runtimes[0].ID != "local" {
		t.Errorf("Runtimes = %+v, want one runtime %q", cfg.Runtimes, "local")
	}
}

func TestValidateRejectsUnknownLogLevel(t *testing.T) {
	dir := t.TempDir()
	toml := `logLevel = "verbose"`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for an invalid logLevel")
	}
}

func TestValidateRejectsDuplicateRuntimeID(t *testing.T) {
	dir := t.TempDir()
	toml := `
[[runtimes]]
id = "a"
type = "local-tmux"

[[runtimes]]
id = "a"
type = "ssh"
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected an error for a duplicate runtime id")
	}
}
