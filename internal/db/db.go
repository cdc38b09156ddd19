// Package db provides the SQLite connection and schema for the
// climate event history.
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Open opens the database and initializes the schema.
func Open(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &DB{db}, nil
}

func initSchema(db *sql.DB) error {
	// Climate history - append-only record of intent, window and
	// device transitions for auditing the control loop.
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS climate_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			member TEXT,
			detail TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_history_type_ts ON climate_history(event_type, timestamp);
		CREATE INDEX IF NOT EXISTS idx_history_member ON climate_history(member) WHERE member IS NOT NULL;
	`)
	if err != nil {
		return fmt.Errorf("failed to create climate_history table: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}
