package services

import (
	"context"
	"sync"
	"testing"

	"content-unlock-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPurchaseDebitsAndGrantsAccess(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 1, 3)
	fund(t, e, 10, 10)

	res, err := e.Purchase(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, res.Status)
	assert.Equal(t, int64(3), res.Charged)
	assert.Equal(t, int64(7), res.Balance)
	require.NotNil(t, res.Record)
	assert.Equal(t, int64(3), res.Record.PricePaid)

	ok, err := e.HasAccess(ctx, 10, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(7), account(t, db, 10).CoinBalance)
}

func TestPurchaseTwiceChargesOnce(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 1, 3)
	fund(t, e, 10, 10)

	_, err := e.Purchase(ctx, 10, 1)
	require.NoError(t, err)

	res, err := e.Purchase(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseAlreadyOwned, res.Status)
	assert.Zero(t, res.Charged)
	assert.Equal(t, int64(7), res.Balance)
	assert.Equal(t, int64(7), account(t, db, 10).CoinBalance)
	assert.Equal(t, int64(1), countRows(t, db, &models.PurchaseRecord{}, "user_id = ?", 10))
}

func TestPurchaseInsufficientFunds(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 2, 5)
	fund(t, e, 10, 3)

	_, err := e.Purchase(ctx, 10, 2)
	require.ErrorIs(t, err, ErrInsufficientFunds)

	assert.Equal(t, int64(3), account(t, db, 10).CoinBalance)
	ok, err := e.HasAccess(ctx, 10, 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, countRows(t, db, &models.LedgerEntry{}, "user_id = ? AND reason = ?", 10, models.LedgerPurchase))
}

func TestPurchaseUnknownItem(t *testing.T) {
	e, _ := newTestEngine(t)
	fund(t, e, 10, 10)

	_, err := e.Purchase(context.Background(), 10, 999)
	require.ErrorIs(t, err, ErrUnknownItem)
}

func TestPurchaseByUnseenUserFailsWithoutFunds(t *testing.T) {
	e, db := newTestEngine(t)
	seedItem(t, db, 1, 3)

	_, err := e.Purchase(context.Background(), 55, 1)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Zero(t, countRows(t, db, &models.PurchaseRecord{}, "user_id = ?", 55))
}

func TestPurchaseFreeItem(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 3, 0)
	fund(t, e, 10, 0)

	res, err := e.Purchase(ctx, 10, 3)
	require.NoError(t, err)
	assert.Equal(t, models.PurchaseCompleted, res.Status)
	assert.Zero(t, res.Charged)
	assert.Zero(t, countRows(t, db, &models.LedgerEntry{}, "user_id = ?", 10))
}

func TestConcurrentPurchasesOfSameItemChargeOnce(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 1, 4)
	fund(t, e, 10, 4)

	results := make([]*PurchaseResult, 2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.Purchase(ctx, 10, 1)
		}(i)
	}
	wg.Wait()

	statuses := make([]models.PurchaseStatus, 0, 2)
	for i := range results {
		require.NoError(t, errs[i])
		statuses = append(statuses, results[i].Status)
	}
	assert.ElementsMatch(t, []models.PurchaseStatus{models.PurchaseCompleted, models.PurchaseAlreadyOwned}, statuses)
	assert.Zero(t, account(t, db, 10).CoinBalance)
	assert.Equal(t, int64(1), countRows(t, db, &models.PurchaseRecord{}, "user_id = ? AND item_id = ?", 10, 1))
}

func TestConcurrentPurchasesNeverOverdraw(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	for id := int64(1); id <= 4; id++ {
		seedItem(t, db, id, 2)
	}
	fund(t, e, 10, 5)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		declined  int
	)
	for id := int64(1); id <= 4; id++ {
		wg.Add(1)
		go func(itemID int64) {
			defer wg.Done()
			_, err := e.Purchase(ctx, 10, itemID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
				declined++
				return
			}
			completed++
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 2, completed)
	assert.Equal(t, 2, declined)
	assert.Equal(t, int64(1), account(t, db, 10).CoinBalance)
	assert.Equal(t, int64(2), countRows(t, db, &models.PurchaseRecord{}, "user_id = ?", 10))
}

func TestOwnedListsEntitlements(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	seedItem(t, db, 1, 1)
	seedItem(t, db, 2, 1)
	fund(t, e, 10, 5)

	_, err := e.Purchase(ctx, 10, 1)
	require.NoError(t, err)
	_, err = e.Purchase(ctx, 10, 2)
	require.NoError(t, err)

	owned, err := e.Purchases.Owned(ctx, 10)
	require.NoError(t, err)
	require.Len(t, owned, 2)
	ids := []int64{owned[0].ItemID, owned[1].ItemID}
	assert.ElementsMatch(t, []int64{1, 2}, ids)
}
