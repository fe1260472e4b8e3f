package db_test

import (
	"testing"

	"github.com/vikramsd/fluxgen/internal/testutil"
)

func TestMigrationsAndForeignKeys(t *testing.T) {
	// Setup test database with migrations already applied
	db := testutil.SetupTestDB(t)

	// Verify foreign keys are enabled
	var foreignKeysEnabled int
	err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeysEnabled)
	if err != nil {
		t.Fatalf("Failed to check foreign keys status: %v", err)
	}
	if foreignKeysEnabled != 1 {
		t.Errorf("Foreign keys should be enabled, got: %d", foreignKeysEnabled)
	}

	// Create a user and a session, then verify the session is removed when
	// the user is deleted.
	_, err = db.Exec("INSERT INTO users (username, password_hash, role, created_at) VALUES (?, ?, ?, datetime('now'))",
		"testuser", "hash", "user")
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	_, err = db.Exec("INSERT INTO sessions (token, user_id, expiry) VALUES (?, ?, datetime('now', '+1 day'))",
		"token123", 1)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	_, err = db.Exec("DELETE FROM users WHERE id = 1")
	if err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sessions WHERE user_id = 1").Scan(&count)
	if err != nil {
		t.Fatalf("Failed to check sessions: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 sessions after user deletion, got %d", count)
	}

	// The job_predictions table should exist and accept rows.
	_, err = db.Exec("INSERT INTO job_predictions (job_id, prediction_id) VALUES (?, ?)", "job-1", "pred-1")
	if err != nil {
		t.Fatalf("Failed to insert into job_predictions: %v", err)
	}
}
