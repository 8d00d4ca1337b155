package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return dir
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Defaults()
	if cfg.LogLevel != want.LogLevel {
		t.Fatalf("log level = %s, want %s", cfg.LogLevel, want.LogLevel)
	}
	if cfg.ErrorRateWarn != want.ErrorRateWarn {
		t.Fatalf("warn rate = %f, want %f", cfg.ErrorRateWarn, want.ErrorRateWarn)
	}
	if cfg.Database.Host != want.Database.Host {
		t.Fatalf("db host = %s, want %s", cfg.Database.Host, want.Database.Host)
	}
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	dir := writeConfig(t, `
database:
  host: registry-db.internal
  port: 5433
log_level: debug
error_rate_warn: 0.25
data_dir: /srv/drops
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Host != "registry-db.internal" {
		t.Fatalf("db host = %s", cfg.Database.Host)
	}
	if cfg.Database.Port != 5433 {
		t.Fatalf("db port = %d", cfg.Database.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("log level = %s", cfg.LogLevel)
	}
	if cfg.ErrorRateWarn != 0.25 {
		t.Fatalf("warn rate = %f", cfg.ErrorRateWarn)
	}
	if cfg.DataDir != "/srv/drops" {
		t.Fatalf("data dir = %s", cfg.DataDir)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"warn rate above one": "error_rate_warn: 1.5\n",
		"unknown log level":   "log_level: chatty\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, content)); err == nil {
				t.Fatal("expected a validation error")
			}
		})
	}
}
