package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS jobs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT UNIQUE NOT NULL,
    codebook_yaml TEXT NOT NULL,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS units (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    job_id INTEGER NOT NULL REFERENCES jobs(id),
    external_id TEXT NOT NULL,
    url TEXT,
    fields_json TEXT NOT NULL,
    tokens_json TEXT,
    body_fetched INTEGER DEFAULT 0,
    position INTEGER NOT NULL,
    collected_at TEXT DEFAULT (datetime('now')),
    UNIQUE (job_id, external_id),
    UNIQUE (job_id, url)
);

CREATE TABLE IF NOT EXISTS sessions (
    token TEXT PRIMARY KEY,
    job_id INTEGER NOT NULL REFERENCES jobs(id),
    coder TEXT,
    progress_json TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS annotations (
    id TEXT PRIMARY KEY,
    session_token TEXT NOT NULL REFERENCES sessions(token),
    job_id INTEGER NOT NULL REFERENCES jobs(id),
    unit_id TEXT NOT NULL,
    variable TEXT NOT NULL,
    body_json TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'done',
    created_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_units_job ON units(job_id, position);
CREATE INDEX IF NOT EXISTS idx_sessions_job ON sessions(job_id);
CREATE INDEX IF NOT EXISTS idx_annotations_session ON annotations(session_token);
CREATE INDEX IF NOT EXISTS idx_annotations_unit ON annotations(session_token, unit_id);
CREATE INDEX IF NOT EXISTS idx_annotations_job ON annotations(job_id);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
