package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Analyses table - one row per analyzed upload or recorded frame
		`CREATE TABLE IF NOT EXISTS analyses (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL DEFAULT '',
			color_model TEXT NOT NULL CHECK(color_model IN ('ycrcb', 'hsv')),
			fingers INTEGER NOT NULL CHECK(fingers BETWEEN 0 AND 5),
			found INTEGER NOT NULL DEFAULT 0,
			area REAL NOT NULL DEFAULT 0,
			valleys INTEGER NOT NULL DEFAULT 0,
			defects INTEGER NOT NULL DEFAULT 0,
			image_hash INTEGER,
			width INTEGER NOT NULL DEFAULT 0,
			height INTEGER NOT NULL DEFAULT 0,
			duration_us INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Screenshots table - saved annotated frames
		`CREATE TABLE IF NOT EXISTS screenshots (
			id TEXT PRIMARY KEY,
			path TEXT NOT NULL UNIQUE,
			fingers INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		// Indexes for better query performance
		`CREATE INDEX IF NOT EXISTS idx_analyses_created_at ON analyses(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_analyses_image_hash ON analyses(image_hash)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
