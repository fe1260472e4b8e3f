package store_test

import (
	"testing"

	"github.com/vikramsd/fluxgen/internal/auth"
	"github.com/vikramsd/fluxgen/internal/store"
	"github.com/vikramsd/fluxgen/internal/testutil"
)

func TestUserStore_CreateAndGet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	passwordHash, _ := auth.HashPassword("password123")

	t.Run("Create User Success", func(t *testing.T) {
		user, err := s.CreateUser("testuser", passwordHash, "user")
		if err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
		if user.Username != "testuser" {
			t.Errorf("Expected username 'testuser', got '%s'", user.Username)
		}
	})

	t.Run("Create User with Duplicate Username", func(t *testing.T) {
		_, err := s.CreateUser("testuser", passwordHash, "user")
		if err == nil {
			t.Fatal("Expected error when creating user with duplicate username, but got nil")
		}
	})

	t.Run("Get User By Username", func(t *testing.T) {
		user, err := s.GetUserByUsername("testuser")
		if err != nil {
			t.Fatalf("GetUserByUsername failed: %v", err)
		}
		if !auth.CheckPasswordHash("password123", user.PasswordHash) {
			t.Error("Password hash does not match")
		}
	})

	t.Run("Get Non-existent User", func(t *testing.T) {
		_, err := s.GetUserByUsername("nonexistent")
		if err == nil {
			t.Fatal("Expected error when getting non-existent user, but got nil")
		}
	})
}

func TestUserStore_Sessions(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)

	passwordHash, _ := auth.HashPassword("password123")
	user, err := s.CreateUser("sessionuser", passwordHash, "user")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}

	token, err := s.CreateSession(user.ID)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	if token == "" {
		t.Fatal("Expected a non-empty session token")
	}

	got, err := s.GetUserFromSession(token)
	if err != nil {
		t.Fatalf("GetUserFromSession failed: %v", err)
	}
	if got.ID != user.ID {
		t.Errorf("Expected user id %d from session, got %d", user.ID, got.ID)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := s.GetUserFromSession(token); err == nil {
		t.Fatal("Expected error for deleted session, got nil")
	}
}
