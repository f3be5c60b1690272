// Package testutil opens throwaway SQLite databases and fixtures for tests.
package testutil

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/database"
	"github.com/Parthmh361/pure-harvest/internal/models"
)

type schema int

const (
	schemaMigrated schema = iota
	schemaEmpty
	schemaSeeded
)

// Option adjusts the schema NewDB prepares.
type Option func(*schema)

// Empty skips migrations; the database has no tables.
func Empty() Option { return func(s *schema) { *s = schemaEmpty } }

// Seeded migrates and inserts the system account.
func Seeded() Option { return func(s *schema) { *s = schemaSeeded } }

// NewDB returns a migrated in-memory SQLite database private to t. The
// database name is random so parallel tests never share rows, and the pool is
// pinned to one connection to avoid shared-cache table locks.
func NewDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	mode := schemaMigrated
	for _, opt := range opts {
		opt(&mode)
	}

	db, err := database.Open(database.Config{
		Driver:       "sqlite",
		DSN:          "file:" + uuid.NewString() + "?mode=memory&cache=shared&_foreign_keys=1",
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	switch mode {
	case schemaSeeded:
		require.NoError(t, database.AutoMigrateAndSeed(db))
	case schemaMigrated:
		require.NoError(t, database.AutoMigrate(db))
	}
	return db
}

// MustCreateUser stores an active user named after id, with a matching
// example.com address, after applying mutate.
func MustCreateUser(t *testing.T, db *gorm.DB, id, role string, mutate ...func(*models.User)) models.User {
	t.Helper()

	user := models.User{BaseModel: models.BaseModel{ID: id}, Name: id, Email: id + "@example.com", Role: role, IsActive: true}
	for _, fn := range mutate {
		fn(&user)
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}
