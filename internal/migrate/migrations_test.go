package migrate_test

import (
	"testing"

	"maestro/internal/db"
	"maestro/internal/migrate"
)

func TestMigrateIsRepeatable(t *testing.T) {
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	v, err := migrate.Version(conn)
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if v != 1 {
		t.Fatalf("version = %d", v)
	}
	var n int
	if err := conn.Get(&n, `SELECT COUNT(*) FROM participant_links`); err != nil {
		t.Fatalf("participant_links missing: %v", err)
	}
}
