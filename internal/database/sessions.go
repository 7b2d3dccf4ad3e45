package database

import (
	"database/sql"
)

// InsertSession creates a session for a job. Returns an error if the token
// is already taken.
func (db *DB) InsertSession(token string, jobID int64, coder *string) error {
	_, err := db.conn.Exec(
		"INSERT INTO sessions (token, job_id, coder) VALUES (?, ?, ?)",
		token, jobID, coder,
	)
	return err
}

// GetSession returns a session by token, or nil if it does not exist.
func (db *DB) GetSession(token string) (*Session, error) {
	row := db.conn.QueryRow(
		`SELECT token, job_id, coder, progress_json, created_at, updated_at
		FROM sessions WHERE token = ?`, token,
	)
	var s Session
	err := row.Scan(&s.Token, &s.JobID, &s.Coder, &s.ProgressJSON, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSessionsForJob returns every session of a job, newest first.
func (db *DB) GetSessionsForJob(jobID int64) ([]Session, error) {
	rows, err := db.conn.Query(
		`SELECT token, job_id, coder, progress_json, created_at, updated_at
		FROM sessions WHERE job_id = ? ORDER BY created_at DESC, token`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var s Session
		if err := rows.Scan(&s.Token, &s.JobID, &s.Coder, &s.ProgressJSON, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// UpdateSessionProgress saves a session's navigation cursor.
func (db *DB) UpdateSessionProgress(token, progressJSON string) error {
	_, err := db.conn.Exec(
		"UPDATE sessions SET progress_json = ?, updated_at = datetime('now') WHERE token = ?",
		progressJSON, token,
	)
	return err
}
