package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateTempDBPath returns a path for a fresh database file inside a per-test temp dir
func CreateTempDBPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "recordings.db")
}

// CreateInMemoryDB creates an empty in-memory SQLite database for testing
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// Every pooled connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// CreateLegacyDB creates a database file holding an unrelated table and no recorder schema
func CreateLegacyDB(t *testing.T, dbPath string) {
	t.Helper()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS notes (key TEXT PRIMARY KEY, value TEXT)`); err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}
	if _, err := db.Exec("INSERT INTO notes (key, value) VALUES (?, ?)", "hello", "world"); err != nil {
		t.Fatalf("Failed to insert row: %v", err)
	}
}
