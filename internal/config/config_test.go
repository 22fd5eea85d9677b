package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("driver = %s", cfg.Database.Driver)
	}
	if cfg.Notifications.DedupeWindow != time.Hour {
		t.Fatalf("dedupe window = %s", cfg.Notifications.DedupeWindow)
	}
	if cfg.Notifications.Dispatch.Schedule == "" {
		t.Fatalf("missing dispatch schedule")
	}
}

func TestFromYAMLKeepsDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte("log:\n  level: debug\n"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level = %s", cfg.Log.Level)
	}
	if cfg.Server.BasePath != "/v0" {
		t.Fatalf("base path default lost: %q", cfg.Server.BasePath)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "database:\n  driver: mysql\n",
		"pg dsn":   "database:\n  driver: postgres\n",
		"base":     "server:\n  base_path: v0\n",
		"format":   "log:\n  format: xml\n",
		"webhook":  "notifications:\n  webhook:\n    url: ftp://example.com\n",
		"schedule": "notifications:\n  dispatch:\n    schedule: \"not a cron\"\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := FromYAML([]byte(doc)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("load missing: %v", err)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("expected default config")
	}
	if err := os.WriteFile(filepath.Join(dir, "maestro.yml"), []byte("server:\n  addr: :9090\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":9090" {
		t.Fatalf("addr = %s", cfg.Server.Addr)
	}
}
