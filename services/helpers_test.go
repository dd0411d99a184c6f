package services

import (
	"context"
	"testing"
	"time"

	"content-unlock-service/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestEngine returns an engine over a private in-memory sqlite database.
// One connection, like the sqlite stores elsewhere: transactions serialize.
func newTestEngine(t *testing.T) (*Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, AutoMigrate(db))

	engine := NewEngine(db, EngineOptions{
		StoreTimeout:  5 * time.Second,
		TxMaxAttempts: 3,
		Policy:        DefaultRewardPolicy,
		BotUsername:   "test_bot",
	})
	return engine, db
}

func seedItem(t *testing.T, db *gorm.DB, itemID, price int64) {
	t.Helper()
	require.NoError(t, db.Create(&models.CatalogItem{
		ItemID:   itemID,
		Title:    "Item",
		Price:    price,
		Locator:  "https://cdn.example.com/item",
		SyncedAt: time.Now().UTC(),
	}).Error)
}

// fund creates the account and grants it balance coins.
func fund(t *testing.T, e *Engine, userID, balance int64) {
	t.Helper()
	ctx := context.Background()
	_, err := e.EnsureAccount(ctx, userID)
	require.NoError(t, err)
	if balance > 0 {
		_, err = e.Grant(ctx, userID, balance, "test")
		require.NoError(t, err)
	}
}

func account(t *testing.T, db *gorm.DB, userID int64) models.Account {
	t.Helper()
	var acct models.Account
	require.NoError(t, db.Where("user_id = ?", userID).First(&acct).Error)
	return acct
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
