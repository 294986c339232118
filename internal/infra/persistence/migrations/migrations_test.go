package migrations

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSQLiteUpIsIdempotent(t *testing.T) {
	db := openSQLite(t)
	if err := Up(db, SQLite); err != nil {
		t.Fatalf("first up: %v", err)
	}
	if err := Up(db, SQLite); err != nil {
		t.Fatalf("second up: %v", err)
	}
	status, err := CurrentStatus(db, SQLite)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Pending() || status.Dirty || status.Current != 2 {
		t.Fatalf("unexpected status %+v", status)
	}
	if _, err := db.Exec(`INSERT INTO state(bucket, payload, updated_at) VALUES('projects', '{}', '2024-01-01T00:00:00Z')`); err != nil {
		t.Fatalf("state table unusable: %v", err)
	}
}

func TestSQLiteStatusBeforeAndAfterDown(t *testing.T) {
	db := openSQLite(t)
	status, err := CurrentStatus(db, SQLite)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Pending() || status.Latest != 2 {
		t.Fatalf("expected pending migrations on a fresh database, got %+v", status)
	}
	if err := Up(db, SQLite); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := Down(db, SQLite, 1); err != nil {
		t.Fatalf("down: %v", err)
	}
	status, err = CurrentStatus(db, SQLite)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Current != 1 {
		t.Fatalf("expected version 1 after one step down, got %+v", status)
	}
	if err := Down(db, SQLite, 0); err == nil {
		t.Fatalf("expected zero steps to be rejected")
	}
}

func TestUnknownDialect(t *testing.T) {
	if err := Up(openSQLite(t), Dialect("oracle")); err == nil {
		t.Fatalf("expected unknown dialect error")
	}
}
