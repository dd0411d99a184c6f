package services

import (
	"context"
	"fmt"
	"time"

	"content-unlock-service/metrics"
	"content-unlock-service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// EngineOptions configures NewEngine. Zero values fall back to defaults.
type EngineOptions struct {
	StoreTimeout  time.Duration
	TxMaxAttempts uint
	Policy        RewardPolicy
	BotUsername   string
	Catalog       Catalog // defaults to the gorm catalog mirror
	Signer        LocatorSigner
	LocatorTTL    time.Duration
	Logger        *zap.Logger
}

// Engine is the coin-economy and entitlement service object. It is built once
// around a store handle and passed to every caller; it keeps no state of its own.
type Engine struct {
	Store     *Store
	Accounts  *AccountService
	Referrals *ReferralService
	Rewards   *RewardEngine
	Purchases *PurchaseService
	Access    *AccessController
	Sessions  *SessionService
	Catalog   Catalog

	BotUsername string
}

func NewEngine(db *gorm.DB, opts EngineOptions) *Engine {
	st := NewStore(db, opts.StoreTimeout, opts.TxMaxAttempts, opts.Logger)
	catalog := opts.Catalog
	if catalog == nil {
		catalog = NewCatalogService(st)
	}
	ttl := opts.LocatorTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	accounts := NewAccountService(st)
	rewards := NewRewardEngine(st, opts.Policy)
	purchases := NewPurchaseService(st, catalog)
	return &Engine{
		Store:     st,
		Accounts:  accounts,
		Referrals: NewReferralService(st, rewards),
		Rewards:   rewards,
		Purchases: purchases,
		Access: &AccessController{
			Purchases:  purchases,
			Accounts:   accounts,
			Catalog:    catalog,
			Signer:     opts.Signer,
			LocatorTTL: ttl,
		},
		Sessions:    NewSessionService(st, catalog),
		Catalog:     catalog,
		BotUsername: opts.BotUsername,
	}
}

// StartResult is what the front-end renders after a /start.
type StartResult struct {
	Account      *models.Account `json:"account"`
	Created      bool            `json:"created"`
	Referral     *ReferralResult `json:"referral"`
	Session      *models.Session `json:"session"`
	ReferralLink string          `json:"referral_link"`
}

// Start handles a new session: ensure the account, credit the inviter when a
// brand-new user arrives through an invite payload, and reset navigation to
// the menu. Existing users following someone's link are not counted.
func (e *Engine) Start(ctx context.Context, userID int64, payload string) (*StartResult, error) {
	res := &StartResult{Referral: &ReferralResult{Outcome: models.ReferralNone}}
	inviterID, hasInviter := ParseReferralPayload(payload)

	err := e.Store.inTx(ctx, "start", func(tx *gorm.DB) error {
		res.Referral = &ReferralResult{Outcome: models.ReferralNone}
		created, err := ensureAccountTx(tx, userID)
		if err != nil {
			return err
		}
		res.Created = created
		if created && hasInviter {
			outcome, rewarded, err := processReferralTx(tx, e.Rewards.Policy, inviterID, userID)
			if err != nil {
				return err
			}
			res.Referral = &ReferralResult{Outcome: outcome, Rewarded: rewarded}
		}
		var acct models.Account
		if err := tx.Where("user_id = ?", userID).First(&acct).Error; err != nil {
			return err
		}
		res.Account = &acct
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("start session for %d: %w", userID, err)
	}
	if hasInviter {
		metrics.RecordReferral(string(res.Referral.Outcome), res.Referral.Rewarded)
	}

	sess, err := e.Sessions.Apply(ctx, userID, models.EventStart, nil)
	if err != nil {
		return nil, err
	}
	res.Session = sess
	res.ReferralLink = ReferralLink(e.BotUsername, userID)
	return res, nil
}

// EnsureAccount, GetBalance, ProcessReferral, HasAccess, Purchase and
// ListCatalog are the operations the front-end calls directly.

func (e *Engine) EnsureAccount(ctx context.Context, userID int64) (*models.Account, error) {
	return e.Accounts.EnsureAccount(ctx, userID)
}

func (e *Engine) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return e.Accounts.GetBalance(ctx, userID)
}

func (e *Engine) ProcessReferral(ctx context.Context, inviterID, inviteeID int64) (*ReferralResult, error) {
	res, err := e.Referrals.ProcessReferral(ctx, inviterID, inviteeID)
	if err != nil {
		return nil, err
	}
	metrics.RecordReferral(string(res.Outcome), res.Rewarded)
	return res, nil
}

func (e *Engine) HasAccess(ctx context.Context, userID, itemID int64) (bool, error) {
	return e.Purchases.HasAccess(ctx, userID, itemID)
}

func (e *Engine) Purchase(ctx context.Context, userID, itemID int64) (*PurchaseResult, error) {
	return e.Purchases.Purchase(ctx, userID, itemID)
}

func (e *Engine) ListCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	return e.Access.ListCatalog(ctx)
}

// Grant is the operator "recharge": credit coins outside the referral flow.
func (e *Engine) Grant(ctx context.Context, userID, amount int64, note string) (int64, error) {
	balance, err := e.Accounts.Credit(ctx, userID, amount, models.LedgerGrant, note)
	if err != nil {
		return 0, err
	}
	metrics.RecordGrant(amount)
	return balance, nil
}
