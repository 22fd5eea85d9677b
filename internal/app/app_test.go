package app

import (
	"context"
	"os"
	"testing"

	"maestro/internal/config"
)

func TestOpenWithDefaults(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(context.Background(), Options{Workspace: dir, LogLevel: "error"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	if a.Config.Database.Driver != config.DriverSQLite {
		t.Fatalf("driver = %s", a.Config.Database.Driver)
	}
	if a.Dispatcher() != nil {
		t.Fatalf("dispatcher built without webhook url")
	}
	if _, err := a.Engine.Repo.ListUsers(context.Background()); err != nil {
		t.Fatalf("schema not migrated: %v", err)
	}
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	yml := "notifications:\n  webhook:\n    url: https://hooks.example.com/maestro\n    secret: s3cret\n"
	if err := os.WriteFile(config.Path(dir), []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := Open(context.Background(), Options{Workspace: dir, LogLevel: "error"})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer a.Close()
	d := a.Dispatcher()
	if d == nil || d.URL != "https://hooks.example.com/maestro" || d.Secret != "s3cret" {
		t.Fatalf("dispatcher = %+v", d)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Options{Workspace: t.TempDir(), DBDriver: "mysql"}); err == nil {
		t.Fatalf("expected error for unknown driver")
	}
}
