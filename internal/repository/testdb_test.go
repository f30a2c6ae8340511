package repository

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/welldanyogia/threadmail/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB opens a migrated in-memory SQLite database. The pool is pinned
// to one connection because every new connection would see its own empty
// in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	db.Exec("PRAGMA foreign_keys = ON")

	err = db.AutoMigrate(&models.Thread{}, &models.Message{}, &models.Attachment{}, &models.SyncCursor{})
	require.NoError(t, err)

	return db
}

// resetTables empties all tables between tests
func resetTables(db *gorm.DB) {
	db.Exec("DELETE FROM attachments")
	db.Exec("DELETE FROM messages")
	db.Exec("DELETE FROM threads")
	db.Exec("DELETE FROM sync_cursors")
}
