package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"content-unlock-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AccountService owns coin balances. Every balance change goes through one of
// its methods (or the *Tx helpers below when a caller already holds a transaction).
type AccountService struct {
	*Store
}

func NewAccountService(st *Store) *AccountService {
	return &AccountService{Store: st}
}

// EnsureAccount creates the account with zero balance if absent. Concurrent
// calls never duplicate the row or reset an existing balance.
func (s *AccountService) EnsureAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var acct models.Account
	err := s.inTx(ctx, "ensure_account", func(tx *gorm.DB) error {
		if _, err := ensureAccountTx(tx, userID); err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).First(&acct).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ensure account %d: %w", userID, err)
	}
	return &acct, nil
}

// GetAccount returns ErrAccountNotFound for users never seen.
func (s *AccountService) GetAccount(ctx context.Context, userID int64) (*models.Account, error) {
	var acct models.Account
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).First(&acct).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %d: %w", userID, err)
	}
	return &acct, nil
}

// GetBalance returns 0 for an account that does not exist yet. It never
// creates one; reads stay side-effect free.
func (s *AccountService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	acct, err := s.GetAccount(ctx, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return acct.CoinBalance, nil
}

// Credit adds amount to the balance and returns the new balance.
func (s *AccountService) Credit(ctx context.Context, userID, amount int64, reason models.LedgerReason, ref string) (int64, error) {
	var balance int64
	err := s.inTx(ctx, "credit", func(tx *gorm.DB) error {
		var err error
		balance, err = creditTx(tx, userID, amount, reason, ref)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("credit %d to %d: %w", amount, userID, err)
	}
	s.log.Info("[ACCOUNTS] credited", zap.Int64("user_id", userID), zap.Int64("amount", amount),
		zap.String("reason", string(reason)), zap.Int64("balance", balance))
	return balance, nil
}

// Debit removes amount if the balance covers it, as one conditional update.
// Otherwise ErrInsufficientFunds and the balance is untouched.
func (s *AccountService) Debit(ctx context.Context, userID, amount int64, reason models.LedgerReason, ref string) (int64, error) {
	var balance int64
	err := s.inTx(ctx, "debit", func(tx *gorm.DB) error {
		var err error
		balance, err = debitTx(tx, userID, amount, reason, ref)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("debit %d from %d: %w", amount, userID, err)
	}
	return balance, nil
}

// History returns the newest ledger entries first.
func (s *AccountService) History(ctx context.Context, userID int64, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	var entries []models.LedgerEntry
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).
			Order("created_at DESC").
			Limit(limit).
			Find(&entries).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ledger history %d: %w", userID, err)
	}
	return entries, nil
}

// HistorySince returns entries newer than cursor, oldest first, at most
// limit of them.
func (s *AccountService) HistorySince(ctx context.Context, userID int64, cursor time.Time, limit int) ([]models.LedgerEntry, error) {
	if limit < 1 || limit > 100 {
		limit = 100
	}
	var entries []models.LedgerEntry
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ? AND created_at > ?", userID, cursor).
			Order("created_at ASC").
			Limit(limit).
			Find(&entries).Error
	})
	if err != nil {
		return nil, fmt.Errorf("ledger since %s for %d: %w", cursor.Format(time.RFC3339Nano), userID, err)
	}
	return entries, nil
}

// ensureAccountTx is a conflict-free upsert; an existing row is left alone.
// created reports whether this call inserted the row.
func ensureAccountTx(tx *gorm.DB, userID int64) (created bool, err error) {
	now := time.Now().UTC()
	res := tx.Exec(
		`INSERT INTO accounts (user_id, coin_balance, invite_count, created_at, updated_at)
		VALUES (?, 0, 0, ?, ?)
		ON CONFLICT (user_id) DO NOTHING`,
		userID, now, now,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func creditTx(tx *gorm.DB, userID, amount int64, reason models.LedgerReason, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	res := tx.Model(&models.Account{}).
		Where("user_id = ?", userID).
		UpdateColumns(map[string]interface{}{
			"coin_balance": gorm.Expr("coin_balance + ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrAccountNotFound
	}
	return appendLedgerTx(tx, userID, amount, reason, ref)
}

func debitTx(tx *gorm.DB, userID, amount int64, reason models.LedgerReason, ref string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	res := tx.Model(&models.Account{}).
		Where("user_id = ? AND coin_balance >= ?", userID, amount).
		UpdateColumns(map[string]interface{}{
			"coin_balance": gorm.Expr("coin_balance - ?", amount),
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := tx.Model(&models.Account{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return 0, err
		}
		if count == 0 {
			return 0, ErrAccountNotFound
		}
		return 0, ErrInsufficientFunds
	}
	return appendLedgerTx(tx, userID, -amount, reason, ref)
}

// appendLedgerTx reads the post-change balance and records the movement.
func appendLedgerTx(tx *gorm.DB, userID, delta int64, reason models.LedgerReason, ref string) (int64, error) {
	var acct models.Account
	if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
		return 0, err
	}
	entry := models.LedgerEntry{
		ID:           uuid.NewString(),
		UserID:       userID,
		Delta:        delta,
		BalanceAfter: acct.CoinBalance,
		Reason:       reason,
		Reference:    ref,
		CreatedAt:    time.Now().UTC(),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return 0, err
	}
	return acct.CoinBalance, nil
}
