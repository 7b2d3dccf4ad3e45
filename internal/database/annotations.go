package database

import (
	"database/sql"
)

// UpsertAnnotation stores an annotation, replacing any previous version with
// the same id. Re-posting a batch after a failed acknowledgement is safe.
func (db *DB) UpsertAnnotation(a AnnotationRow) error {
	_, err := db.conn.Exec(
		`INSERT INTO annotations (id, session_token, job_id, unit_id, variable, body_json, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_id = excluded.unit_id,
			variable = excluded.variable,
			body_json = excluded.body_json,
			status = excluded.status`,
		a.ID, a.SessionToken, a.JobID, a.UnitID, a.Variable, a.BodyJSON, a.Status,
	)
	return err
}

// DeleteAnnotation removes an annotation by id. Deleting an id the store
// never saw is not an error.
func (db *DB) DeleteAnnotation(id string) error {
	_, err := db.conn.Exec("DELETE FROM annotations WHERE id = ?", id)
	return err
}

// GetAnnotationsForUnit returns a session's annotations on one unit, oldest
// first.
func (db *DB) GetAnnotationsForUnit(sessionToken, unitID string) ([]AnnotationRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_token, job_id, unit_id, variable, body_json, status, created_at
		FROM annotations WHERE session_token = ? AND unit_id = ?
		ORDER BY created_at, id`, sessionToken, unitID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

// GetAnnotationsForSession returns all of a session's annotations, oldest
// first.
func (db *DB) GetAnnotationsForSession(sessionToken string) ([]AnnotationRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_token, job_id, unit_id, variable, body_json, status, created_at
		FROM annotations WHERE session_token = ?
		ORDER BY created_at, id`, sessionToken,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

// GetAnnotationsForJob returns every annotation of a job across all
// sessions, grouped by session, then oldest first. This is the export query.
func (db *DB) GetAnnotationsForJob(jobID int64) ([]AnnotationRow, error) {
	rows, err := db.conn.Query(
		`SELECT id, session_token, job_id, unit_id, variable, body_json, status, created_at
		FROM annotations WHERE job_id = ?
		ORDER BY session_token, created_at, id`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAnnotations(rows)
}

func scanAnnotations(rows *sql.Rows) ([]AnnotationRow, error) {
	var anns []AnnotationRow
	for rows.Next() {
		var a AnnotationRow
		if err := rows.Scan(&a.ID, &a.SessionToken, &a.JobID, &a.UnitID,
			&a.Variable, &a.BodyJSON, &a.Status, &a.CreatedAt); err != nil {
			return nil, err
		}
		anns = append(anns, a)
	}
	return anns, rows.Err()
}
