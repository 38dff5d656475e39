// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/yukikurage/maintenance-tracker/internal/media"
	"github.com/yukikurage/maintenance-tracker/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a migrated in-memory sqlite database. The pool is pinned
// to one connection so every query sees the same in-memory database.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.User{}, &models.Task{}))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}

// NewTestStore returns a media store backed by an in-memory filesystem.
func NewTestStore(t *testing.T) *media.Store {
	t.Helper()

	store, err := media.NewStore(afero.NewMemMapFs(), "task_assets")
	require.NoError(t, err)
	return store
}
