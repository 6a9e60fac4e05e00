package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Captures table - one row per photo taken
		`CREATE TABLE IF NOT EXISTS captures (
			id TEXT PRIMARY KEY,
			trigger TEXT NOT NULL,
			image BLOB NOT NULL,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			remote_id TEXT NOT NULL DEFAULT '',
			top_prediction TEXT NOT NULL DEFAULT '',
			top_confidence REAL NOT NULL DEFAULT 0,
			user_correction TEXT,
			feedback_at DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Predictions table - style scores returned by the analysis backend
		`CREATE TABLE IF NOT EXISTS predictions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
			rank INTEGER NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_captures_created_at ON captures(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_predictions_capture_id ON predictions(capture_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
