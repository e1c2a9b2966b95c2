package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/global-done/pkg/config"
)

func newTestGormDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func TestNewGormDB_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Type: "sqlite",
		Path: filepath.Join(t.TempDir(), "runs.db"),
	}

	db, err := NewGormDB(cfg)
	require.NoError(t, err)

	// The schema is migrated on open.
	assert.True(t, db.Migrator().HasTable(&BenchRun{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.NoError(t, sqlDB.Close())
}

func TestNewGormDB_UnsupportedType(t *testing.T) {
	_, err := NewGormDB(&config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)
}

func TestNewRepositories(t *testing.T) {
	db := newTestGormDB(t)

	repos := NewRepositories(db, "sqlite")
	require.NotNil(t, repos)
	assert.NotNil(t, repos.Run)
	assert.Equal(t, db, repos.GormDB())
	assert.NotNil(t, repos.DB())
	assert.NoError(t, repos.HealthCheck(context.Background()))
}

func TestRepositories_Close(t *testing.T) {
	db := newTestGormDB(t)
	repos := NewRepositories(db, "sqlite")

	assert.NoError(t, repos.Close())
}
