// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/goblin-space/core/internal/config"
	"github.com/goblin-space/core/internal/database"
	"github.com/goblin-space/core/internal/database/migrations"
)

// Open returns an sqlite database in the test's temp dir, migrated to head
// with foundations seeded and foreign keys enforced.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db := OpenEmpty(t)
	require.NoError(t, migrations.New(db, zaptest.NewLogger(t)).Up(context.Background()))
	return db
}

// OpenEmpty returns an unmigrated sqlite database.
func OpenEmpty(t testing.TB) *gorm.DB {
	t.Helper()
	cfg := config.DatabaseRuntimeConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "mediagoblin.db"),
	}
	db, err := database.Open(cfg.Driver, cfg.DSNValue(), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
