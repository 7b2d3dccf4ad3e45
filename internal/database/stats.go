package database

// GetStats returns aggregate counts across the whole database.
func (db *DB) GetStats() (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM jobs", &stats.Jobs},
		{"SELECT COUNT(*) FROM units", &stats.Units},
		{"SELECT COUNT(*) FROM units WHERE body_fetched = 1", &stats.FetchedUnits},
		{"SELECT COUNT(*) FROM sessions", &stats.Sessions},
		{"SELECT COUNT(*) FROM annotations", &stats.Annotations},
	}
	for _, q := range queries {
		if err := db.conn.QueryRow(q.query).Scan(q.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
