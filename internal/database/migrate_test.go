package database

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMigratesToLatest(t *testing.T) {
	db := openTestDB(t)

	v, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), v)
	}
}

func TestOpenStampsUnversionedDB(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "legacy.db")

	// A database created before versioned migrations: the jobs table exists
	// but user_version was never set.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := raw.Exec(`CREATE TABLE jobs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT UNIQUE NOT NULL,
		codebook_yaml TEXT NOT NULL
	)`); err != nil {
		t.Fatalf("create legacy table: %v", err)
	}
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	v, err := schemaVersion(db.conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != latestVersion() {
		t.Errorf("expected version %d after stamping, got %d", latestVersion(), v)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reopen.db")

	for i := 0; i < 2; i++ {
		db, err := Open(dbPath)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		v, err := schemaVersion(db.conn)
		db.Close()
		if err != nil {
			t.Fatalf("schemaVersion: %v", err)
		}
		if v != latestVersion() {
			t.Errorf("open #%d: expected version %d, got %d", i+1, latestVersion(), v)
		}
	}
}

func TestFreshDBIsUnstamped(t *testing.T) {
	conn, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "empty.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	v, err := schemaVersion(conn)
	if err != nil {
		t.Fatalf("schemaVersion: %v", err)
	}
	if v != 0 {
		t.Errorf("expected version 0 on new db, got %d", v)
	}

	unversioned, err := hasUnversionedSchema(conn)
	if err != nil {
		t.Fatalf("hasUnversionedSchema: %v", err)
	}
	if unversioned {
		t.Error("expected no unversioned schema in an empty database")
	}
}
