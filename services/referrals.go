package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"content-unlock-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const referralPrefix = "invite_"

// ReferralResult is what a "process referral" call did.
type ReferralResult struct {
	Outcome  models.ReferralOutcome `json:"outcome"`
	Rewarded bool                   `json:"rewarded"`
}

type ReferralService struct {
	*Store
	Rewards *RewardEngine
}

func NewReferralService(st *Store, rewards *RewardEngine) *ReferralService {
	return &ReferralService{Store: st, Rewards: rewards}
}

// RecordReferral stores the inviter→invitee edge and bumps the inviter's
// counter as one unit. Self, repeat and unknown-inviter referrals are
// reported through the outcome, never as errors.
func (s *ReferralService) RecordReferral(ctx context.Context, inviterID, inviteeID int64) (models.ReferralOutcome, error) {
	var outcome models.ReferralOutcome
	err := s.inTx(ctx, "record_referral", func(tx *gorm.DB) error {
		var err error
		outcome, err = recordReferralTx(tx, inviterID, inviteeID)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("record referral %d->%d: %w", inviterID, inviteeID, err)
	}
	return outcome, nil
}

// ProcessReferral records the edge and evaluates the inviter's reward in a
// single transaction.
func (s *ReferralService) ProcessReferral(ctx context.Context, inviterID, inviteeID int64) (*ReferralResult, error) {
	result := &ReferralResult{}
	err := s.inTx(ctx, "process_referral", func(tx *gorm.DB) error {
		var err error
		*result = ReferralResult{}
		result.Outcome, result.Rewarded, err = processReferralTx(tx, s.Rewards.Policy, inviterID, inviteeID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("process referral %d->%d: %w", inviterID, inviteeID, err)
	}
	s.log.Info("[REFERRALS] processed",
		zap.Int64("inviter_id", inviterID), zap.Int64("invitee_id", inviteeID),
		zap.String("outcome", string(result.Outcome)), zap.Bool("rewarded", result.Rewarded))
	return result, nil
}

// InviteCount returns the inviter's counter since the last reward (0 if unknown).
func (s *ReferralService) InviteCount(ctx context.Context, userID int64) (int64, error) {
	var accts []models.Account
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Limit(1).Find(&accts).Error
	})
	if err != nil {
		return 0, fmt.Errorf("invite count %d: %w", userID, err)
	}
	if len(accts) == 0 {
		return 0, nil
	}
	return accts[0].InviteCount, nil
}

func processReferralTx(tx *gorm.DB, policy RewardPolicy, inviterID, inviteeID int64) (models.ReferralOutcome, bool, error) {
	outcome, err := recordReferralTx(tx, inviterID, inviteeID)
	if err != nil || outcome != models.ReferralRecorded {
		return outcome, false, err
	}
	rewarded, err := evaluateRewardTx(tx, policy, inviterID)
	if err != nil {
		return outcome, false, err
	}
	return outcome, rewarded, nil
}

func recordReferralTx(tx *gorm.DB, inviterID, inviteeID int64) (models.ReferralOutcome, error) {
	if inviterID == inviteeID {
		return models.ReferralSelf, nil
	}

	var inviters int64
	if err := tx.Model(&models.Account{}).Where("user_id = ?", inviterID).Count(&inviters).Error; err != nil {
		return "", err
	}
	if inviters == 0 {
		return models.ReferralUnknownInviter, nil
	}

	edge := models.ReferralEdge{
		ID:        uuid.NewString(),
		InviterID: inviterID,
		InviteeID: inviteeID,
		CreatedAt: time.Now().UTC(),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "invitee_id"}},
		DoNothing: true,
	}).Create(&edge)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		return models.ReferralDuplicate, nil
	}

	bump := tx.Model(&models.Account{}).
		Where("user_id = ?", inviterID).
		UpdateColumns(map[string]interface{}{
			"invite_count": gorm.Expr("invite_count + ?", 1),
			"updated_at":   time.Now().UTC(),
		})
	if bump.Error != nil {
		return "", bump.Error
	}
	if bump.RowsAffected == 0 {
		// edge insert is rolled back with the transaction
		return "", ErrAccountNotFound
	}
	return models.ReferralRecorded, nil
}

// ParseReferralPayload extracts the inviter id from a start payload such as
// "invite_12345" or "/start invite_12345".
func ParseReferralPayload(payload string) (int64, bool) {
	payload = strings.TrimSpace(payload)
	idx := strings.Index(payload, referralPrefix)
	if idx < 0 {
		return 0, false
	}
	raw := strings.Fields(payload[idx+len(referralPrefix):])
	if len(raw) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(raw[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// ReferralLink is the deep link a user shares to invite friends.
func ReferralLink(botUsername string, userID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=%s%d", botUsername, referralPrefix, userID)
}
