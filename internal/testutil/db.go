package testutil

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3" // Blank import for sql driver

	"github.com/vikramsd/fluxgen/internal/db"
)

// SetupTestDB creates an in-memory SQLite database and applies all embedded
// migrations. It returns the database connection, ready for use in tests.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use in-memory database for testing to ensure tests are fast and isolated.
	conn, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}

	// Attach a cleanup function to automatically close the DB when the test completes.
	t.Cleanup(func() {
		conn.Close()
	})

	if err := db.RunMigrations(conn); err != nil {
		t.Fatalf("Failed to apply migrations: %v", err)
	}

	return conn
}
