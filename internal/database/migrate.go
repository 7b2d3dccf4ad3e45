package database

import (
	"database/sql"
	"fmt"
	"log"
)

// schemaVersion reads PRAGMA user_version. A fresh database reports 0.
func schemaVersion(conn *sql.DB) (int, error) {
	var v int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// hasUnversionedSchema reports whether the jobs table exists even though
// user_version was never stamped, i.e. a database created before versioned
// migrations.
func hasUnversionedSchema(conn *sql.DB) (bool, error) {
	var n int
	err := conn.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='jobs'",
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking for unversioned schema: %w", err)
	}
	return n > 0, nil
}

// migrate applies every migration newer than the stored user_version, in
// order, each in its own transaction.
func migrate(conn *sql.DB) error {
	current, err := schemaVersion(conn)
	if err != nil {
		return err
	}

	if current == 0 {
		// Pre-versioning databases already match migration 1.
		unversioned, err := hasUnversionedSchema(conn)
		if err != nil {
			return err
		}
		if unversioned {
			log.Printf("stamping unversioned database as schema version 1")
			if _, err := conn.Exec("PRAGMA user_version = 1"); err != nil {
				return fmt.Errorf("stamping schema version: %w", err)
			}
			current = 1
		}
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		log.Printf("applying migration %d: %s", m.Version, m.Description)

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}
		if err := m.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		// user_version cannot be set inside the transaction with this
		// driver. The DDL is idempotent, so a crash between commit and
		// stamp just re-runs the migration on next open.
		if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			return fmt.Errorf("setting schema version %d: %w", m.Version, err)
		}
	}

	return nil
}
