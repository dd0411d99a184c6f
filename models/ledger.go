package models

import "time"

// LedgerReason tags why a balance moved.
type LedgerReason string

const (
	LedgerReferralReward LedgerReason = "referral_reward"
	LedgerPurchase       LedgerReason = "purchase"
	LedgerGrant          LedgerReason = "grant"
)

// LedgerEntry is an append-only audit row written in the same transaction
// as the balance change it describes.
type LedgerEntry struct {
	ID           string       `gorm:"primaryKey;type:varchar(36)" json:"id"`
	UserID       int64        `gorm:"index;not null" json:"user_id"`
	Delta        int64        `gorm:"not null" json:"delta"`
	BalanceAfter int64        `gorm:"not null" json:"balance_after"`
	Reason       LedgerReason `gorm:"type:varchar(32);not null" json:"reason"`
	Reference    string       `json:"reference,omitempty"` // item id, inviter edge, operator note
	CreatedAt    time.Time    `gorm:"index;not null" json:"created_at"`
}
