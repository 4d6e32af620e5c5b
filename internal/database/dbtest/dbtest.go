// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"

	"github.com/thereayou/guildchat/internal/database"
	"github.com/thereayou/guildchat/internal/models"
)

// Open returns a migrated in-memory database. A single connection keeps the
// in-memory schema alive and serializes writers the way Postgres row locks do.
func Open(t *testing.T) *database.Database {
	t.Helper()

	d, err := database.Open(sqlite.Open(":memory:"), func(db *sql.DB) { db.SetMaxOpenConns(1) })
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// CreateUser inserts an active user with the given email and display name.
func CreateUser(t *testing.T, d *database.Database, email, name string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: "x",
		IsActive:     true,
	}
	if err := d.SaveUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user %s: %v", email, err)
	}
	return user
}
