package database

import (
	"database/sql"
)

// InsertUnit adds a unit to a job at the next free position. Returns the ID
// on success, 0 if a unit with the same external id or URL already exists
// in the job.
func (db *DB) InsertUnit(jobID int64, externalID string, url *string, fieldsJSON string) (int64, error) {
	result, err := db.conn.Exec(
		`INSERT INTO units (job_id, external_id, url, fields_json, position)
		VALUES (?, ?, ?, ?, (SELECT COUNT(*) FROM units WHERE job_id = ?))`,
		jobID, externalID, url, fieldsJSON, jobID,
	)
	if err != nil {
		// Duplicate external id or URL constraint
		return 0, nil //nolint: nilerr
	}
	return result.LastInsertId()
}

// GetUnitsForJob returns a job's units in position order.
func (db *DB) GetUnitsForJob(jobID int64) ([]Unit, error) {
	rows, err := db.conn.Query(
		`SELECT id, job_id, external_id, url, fields_json, tokens_json, body_fetched, position, collected_at
		FROM units WHERE job_id = ? ORDER BY position`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnits(rows)
}

// GetUnitAt returns the unit at a position within a job, or nil.
func (db *DB) GetUnitAt(jobID int64, position int) (*Unit, error) {
	row := db.conn.QueryRow(
		`SELECT id, job_id, external_id, url, fields_json, tokens_json, body_fetched, position, collected_at
		FROM units WHERE job_id = ? AND position = ?`, jobID, position,
	)
	u, err := scanUnit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUnitsNeedingFetch returns units whose body has not been fetched yet.
// Only units with a URL qualify.
func (db *DB) GetUnitsNeedingFetch(jobID int64) ([]Unit, error) {
	rows, err := db.conn.Query(
		`SELECT id, job_id, external_id, url, fields_json, tokens_json, body_fetched, position, collected_at
		FROM units WHERE job_id = ? AND body_fetched = 0 AND url IS NOT NULL
		ORDER BY position`, jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanUnits(rows)
}

// UpdateUnitFields replaces a unit's fields after its body was fetched.
func (db *DB) UpdateUnitFields(unitID int64, fieldsJSON string) error {
	_, err := db.conn.Exec(
		"UPDATE units SET fields_json = ?, body_fetched = 1 WHERE id = ?",
		fieldsJSON, unitID,
	)
	return err
}

// MarkUnitFetchAttempted marks that we tried to fetch a unit's body.
func (db *DB) MarkUnitFetchAttempted(unitID int64) error {
	_, err := db.conn.Exec(
		"UPDATE units SET body_fetched = 1 WHERE id = ?", unitID,
	)
	return err
}

// UpdateUnitTokens stores a unit's pre-tokenized form.
func (db *DB) UpdateUnitTokens(unitID int64, tokensJSON string) error {
	_, err := db.conn.Exec(
		"UPDATE units SET tokens_json = ? WHERE id = ?", tokensJSON, unitID,
	)
	return err
}

// CountUnits returns the number of units in a job.
func (db *DB) CountUnits(jobID int64) (int, error) {
	var n int
	err := db.conn.QueryRow("SELECT COUNT(*) FROM units WHERE job_id = ?", jobID).Scan(&n)
	return n, err
}

func scanUnits(rows *sql.Rows) ([]Unit, error) {
	var units []Unit
	for rows.Next() {
		var u Unit
		var fetched int
		if err := rows.Scan(&u.ID, &u.JobID, &u.ExternalID, &u.URL, &u.FieldsJSON,
			&u.TokensJSON, &fetched, &u.Position, &u.CollectedAt); err != nil {
			return nil, err
		}
		u.BodyFetched = fetched != 0
		units = append(units, u)
	}
	return units, rows.Err()
}

func scanUnit(row *sql.Row) (*Unit, error) {
	var u Unit
	var fetched int
	if err := row.Scan(&u.ID, &u.JobID, &u.ExternalID, &u.URL, &u.FieldsJSON,
		&u.TokensJSON, &fetched, &u.Position, &u.CollectedAt); err != nil {
		return nil, err
	}
	u.BodyFetched = fetched != 0
	return &u, nil
}
