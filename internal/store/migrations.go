package store

import "fmt"

// schemaVersion is stored in PRAGMA user_version once every migration has run.
const schemaVersion = 1

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Presets table - named HSV thresholds
		`CREATE TABLE IF NOT EXISTS presets (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			low_h INTEGER NOT NULL CHECK(low_h BETWEEN 0 AND 179),
			low_s INTEGER NOT NULL CHECK(low_s BETWEEN 0 AND 255),
			low_v INTEGER NOT NULL CHECK(low_v BETWEEN 0 AND 255),
			high_h INTEGER NOT NULL CHECK(high_h BETWEEN 0 AND 179),
			high_s INTEGER NOT NULL CHECK(high_s BETWEEN 0 AND 255),
			high_v INTEGER NOT NULL CHECK(high_v BETWEEN 0 AND 255),
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// Settings table - key/value pairs such as the active range
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_presets_updated_at ON presets(updated_at)`,

		fmt.Sprintf(`PRAGMA user_version = %d`, schemaVersion),
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
