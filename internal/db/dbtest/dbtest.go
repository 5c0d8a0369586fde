// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pmhub/pmhub/internal/config"
	"github.com/pmhub/pmhub/internal/db"
)

// Open returns a fresh migrated in-memory sqlite database closed at test cleanup.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(&config.DB{GormEngine: config.EngineSQLite, File: ":memory:"}, false)
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	return gdb
}
