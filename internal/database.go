package internal

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS recordings (
		id         INTEGER PRIMARY KEY,
		kind       TEXT    NOT NULL,
		mime_type  TEXT    NOT NULL,
		size       INTEGER NOT NULL,
		data       BLOB    NOT NULL,
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS thumbnails (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		recording_id INTEGER NOT NULL REFERENCES recordings(id) ON DELETE CASCADE,
		image        BLOB    NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_thumbnails_recording_id ON thumbnails(recording_id)`,
}

// OpenDatabase opens (creating if needed) the recording database and applies the schema
func OpenDatabase(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps per-connection pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Migrate creates the recordings and thumbnails tables when missing
func Migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	if version >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range migrations {
		if _, err := tx.Exec(stmt); err != nil {
			return &StoreError{Op: "migrate", Err: err}
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &StoreError{Op: "migrate", Err: err}
	}

	LogDebug("Database schema migrated to version %d", schemaVersion)
	return nil
}

// ForeignKeysEnabled reports whether cascading deletes are active on the connection
func ForeignKeysEnabled(db *sql.DB) (bool, error) {
	var on int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, err
	}
	return on == 1, nil
}
