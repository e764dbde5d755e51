package archive

import (
	"database/sql"

	"codeberg.org/mkrell/relayctl/internal/errors"
)

// initSchema creates the outcome table when missing.
func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS runs (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            recorded_at INTEGER NOT NULL,
            test_id INTEGER NOT NULL,
            outcome TEXT NOT NULL,
            level INTEGER,
            resistance_ohm REAL,
            latency_ms INTEGER,
            max_level INTEGER,
            duration_ms INTEGER,
            samples_acquired INTEGER,
            samples_dropped INTEGER
        )
    `)
	if err != nil {
		return errors.New().Wrap(ErrSchemaInitFailed, err)
	}

	return nil
}

func insertRunSQL() string {
	return `INSERT INTO runs (
        recorded_at, test_id, outcome, level, resistance_ohm,
        latency_ms, max_level, duration_ms, samples_acquired, samples_dropped
    ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
}
