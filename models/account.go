package models

import "time"

// Account is the per-user coin balance and referral counter.
// Rows are created lazily on first contact and never deleted.
type Account struct {
	UserID      int64 `gorm:"primaryKey;autoIncrement:false" json:"user_id"` // messaging platform user id
	CoinBalance int64 `gorm:"not null;default:0;check:chk_accounts_balance,coin_balance >= 0" json:"coin_balance"`
	InviteCount int64 `gorm:"not null;default:0;check:chk_accounts_invites,invite_count >= 0" json:"invite_count"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
