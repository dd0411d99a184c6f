package services

import (
	"context"
	"fmt"
	"time"

	"content-unlock-service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RewardPolicy: every Threshold recorded referrals earn the inviter Coins.
type RewardPolicy struct {
	Threshold int64
	Coins     int64
}

// DefaultRewardPolicy matches the original bot: 5 invites, 1 coin.
var DefaultRewardPolicy = RewardPolicy{Threshold: 5, Coins: 1}

type RewardEngine struct {
	*Store
	Policy RewardPolicy
}

func NewRewardEngine(st *Store, policy RewardPolicy) *RewardEngine {
	if policy.Threshold < 1 || policy.Coins < 1 {
		policy = DefaultRewardPolicy
	}
	return &RewardEngine{Store: st, Policy: policy}
}

// EvaluateReward pays the inviter once their invite counter reaches the
// threshold, resetting the counter to 0. Calling it again on an unchanged
// sub-threshold counter does nothing.
func (e *RewardEngine) EvaluateReward(ctx context.Context, inviterID int64) (bool, error) {
	var rewarded bool
	err := e.inTx(ctx, "evaluate_reward", func(tx *gorm.DB) error {
		var err error
		rewarded, err = evaluateRewardTx(tx, e.Policy, inviterID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("evaluate reward for %d: %w", inviterID, err)
	}
	if rewarded {
		e.log.Info("[REWARDS] threshold reached, inviter paid",
			zap.Int64("inviter_id", inviterID), zap.Int64("coins", e.Policy.Coins))
	}
	return rewarded, nil
}

// evaluateRewardTx resets the counter with a conditional update (which also
// takes the row lock) and only then credits, so two evaluators racing on
// the same counter pay out once.
func evaluateRewardTx(tx *gorm.DB, policy RewardPolicy, inviterID int64) (bool, error) {
	res := tx.Model(&models.Account{}).
		Where("user_id = ? AND invite_count >= ?", inviterID, policy.Threshold).
		UpdateColumns(map[string]interface{}{
			"invite_count": 0,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	ref := fmt.Sprintf("invites:%d", policy.Threshold)
	if _, err := creditTx(tx, inviterID, policy.Coins, models.LedgerReferralReward, ref); err != nil {
		return false, err
	}
	return true, nil
}
