package models

import "time"

// CatalogItem mirrors the external content catalog. The engine only reads it;
// rows are written by the catalog mirror worker.
type CatalogItem struct {
	ItemID      int64     `gorm:"primaryKey;autoIncrement:false" json:"item_id"`
	Slug        string    `gorm:"index" json:"slug"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Duration    string    `json:"duration"` // display string, e.g. "12:30"
	Price       int64     `gorm:"not null;default:0" json:"price"`
	ImageRef    string    `gorm:"type:text" json:"image_ref"`
	Locator     string    `gorm:"type:text" json:"-"` // never rendered before purchase
	SyncedAt    time.Time `json:"synced_at"`
}
