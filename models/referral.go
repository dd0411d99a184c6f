package models

import "time"

// ReferralEdge records that InviteeID joined through InviterID's link.
// An invitee is referred at most once.
type ReferralEdge struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	InviterID int64     `gorm:"index;not null" json:"inviter_id"`
	InviteeID int64     `gorm:"uniqueIndex;not null" json:"invitee_id"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
}

// ReferralOutcome describes what RecordReferral did with an edge.
// Only ReferralRecorded changes state; the others are silent no-ops.
type ReferralOutcome string

const (
	ReferralRecorded       ReferralOutcome = "recorded"
	ReferralSelf           ReferralOutcome = "self_referral"
	ReferralDuplicate      ReferralOutcome = "duplicate_referral"
	ReferralUnknownInviter ReferralOutcome = "unknown_inviter"
	ReferralNone           ReferralOutcome = "none" // no payload
)
