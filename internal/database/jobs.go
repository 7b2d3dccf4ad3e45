package database

import (
	"database/sql"
)

// InsertJob creates a job. Returns the ID on success, 0 if a job with the
// same name already exists.
func (db *DB) InsertJob(name, codebookYAML string) (int64, error) {
	result, err := db.conn.Exec(
		"INSERT INTO jobs (name, codebook_yaml) VALUES (?, ?)",
		name, codebookYAML,
	)
	if err != nil {
		// Duplicate name constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetJob returns a job by name, or nil if it does not exist.
func (db *DB) GetJob(name string) (*Job, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, codebook_yaml, created_at, updated_at
		FROM jobs WHERE name = ?`, name,
	)
	return scanJob(row)
}

// GetJobByID returns a job by ID, or nil if it does not exist.
func (db *DB) GetJobByID(jobID int64) (*Job, error) {
	row := db.conn.QueryRow(
		`SELECT id, name, codebook_yaml, created_at, updated_at
		FROM jobs WHERE id = ?`, jobID,
	)
	return scanJob(row)
}

// GetAllJobs returns every job, newest first.
func (db *DB) GetAllJobs() ([]Job, error) {
	rows, err := db.conn.Query(
		`SELECT id, name, codebook_yaml, created_at, updated_at
		FROM jobs ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		var j Job
		if err := rows.Scan(&j.ID, &j.Name, &j.CodebookYAML, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// UpdateJobCodebook replaces a job's codebook.
func (db *DB) UpdateJobCodebook(jobID int64, codebookYAML string) error {
	_, err := db.conn.Exec(
		"UPDATE jobs SET codebook_yaml = ?, updated_at = datetime('now') WHERE id = ?",
		codebookYAML, jobID,
	)
	return err
}

// DeleteJob removes a job and everything hanging off it.
func (db *DB) DeleteJob(jobID int64) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	for _, stmt := range []string{
		"DELETE FROM annotations WHERE job_id = ?",
		"DELETE FROM sessions WHERE job_id = ?",
		"DELETE FROM units WHERE job_id = ?",
		"DELETE FROM jobs WHERE id = ?",
	} {
		if _, err := tx.Exec(stmt, jobID); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func scanJob(row *sql.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.Name, &j.CodebookYAML, &j.CreatedAt, &j.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}
