package models

import "time"

// PurchaseRecord is a permanent entitlement of one user to one catalog item.
type PurchaseRecord struct {
	ID          string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID      int64     `gorm:"not null;uniqueIndex:idx_purchase_user_item,priority:1" json:"user_id"`
	ItemID      int64     `gorm:"not null;uniqueIndex:idx_purchase_user_item,priority:2" json:"item_id"`
	PricePaid   int64     `gorm:"not null" json:"price_paid"`
	PurchasedAt time.Time `gorm:"not null" json:"purchased_at"`
}

// PurchaseStatus is the successful outcome of a purchase call.
type PurchaseStatus string

const (
	PurchaseCompleted    PurchaseStatus = "purchased"
	PurchaseAlreadyOwned PurchaseStatus = "already_owned"
)
