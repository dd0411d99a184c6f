package services

import (
	"content-unlock-service/models"

	"gorm.io/gorm"
)

// AutoMigrate creates or updates every table the engine uses.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Account{},
		&models.ReferralEdge{},
		&models.PurchaseRecord{},
		&models.LedgerEntry{},
		&models.Session{},
		&models.CatalogItem{},
	)
}
