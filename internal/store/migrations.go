package store

// runMigrations creates every table this package owns, idempotently.
func (s *Store) runMigrations() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS gesture_templates (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			app_context TEXT NOT NULL,
			name TEXT NOT NULL,
			landmark_data TEXT NOT NULL,
			adaptive_threshold REAL,
			match_count INTEGER NOT NULL DEFAULT 0,
			accumulated_similarity REAL NOT NULL DEFAULT 0,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gesture_templates_user_app
			ON gesture_templates(user_id, app_context)`,

		`CREATE TABLE IF NOT EXISTS settings (
			user_id TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (user_id, key)
		)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}
	return nil
}
