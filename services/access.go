package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"content-unlock-service/models"
)

// LocatorSigner turns an object-store key into a time-limited URL.
type LocatorSigner interface {
	PresignLocator(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Locators prefixed with this scheme are keys in the content bucket and get
// presigned; anything else is handed out verbatim.
const bucketScheme = "r2://"

// Quote answers "what would buying this cost me right now".
type Quote struct {
	ItemID     int64  `json:"item_id"`
	Title      string `json:"title"`
	Price      int64  `json:"price"`
	Balance    int64  `json:"balance"`
	Owned      bool   `json:"owned"`
	Affordable bool   `json:"affordable"`
}

// AccessController is the read-only view over entitlements and the catalog.
type AccessController struct {
	Purchases  *PurchaseService
	Accounts   *AccountService
	Catalog    Catalog
	Signer     LocatorSigner // nil: locators are returned as stored
	LocatorTTL time.Duration
}

func (a *AccessController) CanView(ctx context.Context, userID, itemID int64) (bool, error) {
	return a.Purchases.HasAccess(ctx, userID, itemID)
}

// Quote never mutates anything; an owned item quotes as affordable.
func (a *AccessController) Quote(ctx context.Context, userID, itemID int64) (*Quote, error) {
	item, err := a.Catalog.Lookup(ctx, itemID)
	if err != nil {
		return nil, err
	}
	owned, err := a.Purchases.HasAccess(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	balance, err := a.Accounts.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Quote{
		ItemID:     item.ItemID,
		Title:      item.Title,
		Price:      item.Price,
		Balance:    balance,
		Owned:      owned,
		Affordable: owned || balance >= item.Price,
	}, nil
}

func (a *AccessController) ListCatalog(ctx context.Context) ([]models.CatalogItem, error) {
	return a.Catalog.List(ctx)
}

// Locator returns where an owned item can be watched. Bucket keys are
// presigned for LocatorTTL.
func (a *AccessController) Locator(ctx context.Context, userID, itemID int64) (string, error) {
	owned, err := a.Purchases.HasAccess(ctx, userID, itemID)
	if err != nil {
		return "", err
	}
	if !owned {
		return "", ErrNotEntitled
	}
	item, err := a.Catalog.Lookup(ctx, itemID)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(item.Locator, bucketScheme) || a.Signer == nil {
		return item.Locator, nil
	}
	key := strings.TrimPrefix(item.Locator, bucketScheme)
	url, err := a.Signer.PresignLocator(ctx, key, a.LocatorTTL)
	if err != nil {
		return "", fmt.Errorf("presign locator for item %d: %w", itemID, err)
	}
	return url, nil
}
