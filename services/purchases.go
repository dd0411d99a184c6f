package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"content-unlock-service/metrics"
	"content-unlock-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// errPurchaseRaced aborts the transaction when a concurrent purchase of the
// same pair committed first; the debit is rolled back with it.
var errPurchaseRaced = errors.New("purchase raced")

// PurchaseResult is returned for both a fresh purchase and an already-owned item.
type PurchaseResult struct {
	Status  models.PurchaseStatus  `json:"status"`
	ItemID  int64                  `json:"item_id"`
	Charged int64                  `json:"charged"`
	Balance int64                  `json:"balance"`
	Record  *models.PurchaseRecord `json:"record,omitempty"`
}

// PurchaseService is the purchase ledger: priced debits that turn into
// permanent entitlements.
type PurchaseService struct {
	*Store
	Catalog Catalog
}

func NewPurchaseService(st *Store, catalog Catalog) *PurchaseService {
	return &PurchaseService{Store: st, Catalog: catalog}
}

// HasAccess is true iff a purchase record exists for the pair.
func (s *PurchaseService) HasAccess(ctx context.Context, userID, itemID int64) (bool, error) {
	var count int64
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Model(&models.PurchaseRecord{}).
			Where("user_id = ? AND item_id = ?", userID, itemID).
			Count(&count).Error
	})
	if err != nil {
		return false, fmt.Errorf("has access %d/%d: %w", userID, itemID, err)
	}
	return count > 0, nil
}

// Purchase charges the catalog price once and records the entitlement.
// Buying an owned item again succeeds with PurchaseAlreadyOwned and no charge.
func (s *PurchaseService) Purchase(ctx context.Context, userID, itemID int64) (*PurchaseResult, error) {
	owned, err := s.HasAccess(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if owned {
		return s.alreadyOwned(ctx, userID, itemID)
	}

	item, err := s.Catalog.Lookup(ctx, itemID)
	if err != nil {
		metrics.RecordPurchase("unknown_item")
		return nil, err
	}

	result := &PurchaseResult{ItemID: itemID}
	err = s.inTx(ctx, "purchase", func(tx *gorm.DB) error {
		*result = PurchaseResult{ItemID: itemID}
		return purchaseTx(tx, userID, item, result)
	})
	switch {
	case errors.Is(err, errPurchaseRaced):
		return s.alreadyOwned(ctx, userID, itemID)
	case errors.Is(err, ErrInsufficientFunds):
		metrics.RecordPurchase("insufficient_funds")
		return nil, fmt.Errorf("purchase item %d by %d: %w", itemID, userID, err)
	case err != nil:
		metrics.RecordPurchase("error")
		return nil, fmt.Errorf("purchase item %d by %d: %w", itemID, userID, err)
	}

	metrics.RecordPurchase(string(result.Status))
	if result.Status == models.PurchaseCompleted {
		s.log.Info("[PURCHASES] item unlocked",
			zap.Int64("user_id", userID), zap.Int64("item_id", itemID),
			zap.Int64("charged", result.Charged), zap.Int64("balance", result.Balance))
	}
	return result, nil
}

// Owned lists the user's entitlements, newest first.
func (s *PurchaseService) Owned(ctx context.Context, userID int64) ([]models.PurchaseRecord, error) {
	var records []models.PurchaseRecord
	err := s.read(ctx, func(db *gorm.DB) error {
		return db.Where("user_id = ?", userID).Order("purchased_at DESC").Find(&records).Error
	})
	if err != nil {
		return nil, fmt.Errorf("owned items %d: %w", userID, err)
	}
	return records, nil
}

func (s *PurchaseService) alreadyOwned(ctx context.Context, userID, itemID int64) (*PurchaseResult, error) {
	var acct models.Account
	var record models.PurchaseRecord
	err := s.read(ctx, func(db *gorm.DB) error {
		if err := db.Where("user_id = ? AND item_id = ?", userID, itemID).First(&record).Error; err != nil {
			return err
		}
		return db.Where("user_id = ?", userID).Limit(1).Find(&acct).Error
	})
	if err != nil {
		return nil, fmt.Errorf("purchase item %d by %d: %w", itemID, userID, err)
	}
	metrics.RecordPurchase(string(models.PurchaseAlreadyOwned))
	return &PurchaseResult{
		Status:  models.PurchaseAlreadyOwned,
		ItemID:  itemID,
		Balance: acct.CoinBalance,
		Record:  &record,
	}, nil
}

// purchaseTx locks the buyer's account row so two purchases by the same
// user serialize, then debits and records in the same transaction.
func purchaseTx(tx *gorm.DB, userID int64, item *models.CatalogItem, result *PurchaseResult) error {
	if _, err := ensureAccountTx(tx, userID); err != nil {
		return err
	}

	var acct models.Account
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&acct).Error; err != nil {
		return err
	}

	var existing []models.PurchaseRecord
	if err := tx.Where("user_id = ? AND item_id = ?", userID, item.ItemID).Limit(1).Find(&existing).Error; err != nil {
		return err
	}
	if len(existing) > 0 {
		result.Status = models.PurchaseAlreadyOwned
		result.Balance = acct.CoinBalance
		result.Record = &existing[0]
		return nil
	}

	balance := acct.CoinBalance
	if item.Price > 0 {
		var err error
		balance, err = debitTx(tx, userID, item.Price, models.LedgerPurchase, strconv.FormatInt(item.ItemID, 10))
		if err != nil {
			return err
		}
	}

	record := models.PurchaseRecord{
		ID:          uuid.NewString(),
		UserID:      userID,
		ItemID:      item.ItemID,
		PricePaid:   item.Price,
		PurchasedAt: time.Now().UTC(),
	}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "item_id"}},
		DoNothing: true,
	}).Create(&record)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errPurchaseRaced
	}

	result.Status = models.PurchaseCompleted
	result.Charged = item.Price
	result.Balance = balance
	result.Record = &record
	return nil
}
