package models

import "time"

// SessionState is where a user is in the front-end's navigation.
type SessionState string

const (
	SessionMenu        SessionState = "menu"
	SessionViewingItem SessionState = "viewing_item"
)

// SessionEvent drives SessionState transitions.
type SessionEvent string

const (
	EventStart      SessionEvent = "start"
	EventOpenItem   SessionEvent = "open_item"
	EventBackToMenu SessionEvent = "back_to_menu"
)

// Session is the persisted navigation state for one user.
type Session struct {
	UserID    int64        `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	State     SessionState `gorm:"type:varchar(16);not null;default:'menu'" json:"state"`
	ItemID    *int64       `json:"item_id,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}
