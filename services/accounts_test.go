package services

import (
	"context"
	"sync"
	"testing"

	"content-unlock-service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureAccountStartsEmpty(t *testing.T) {
	e, _ := newTestEngine(t)

	acct, err := e.EnsureAccount(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), acct.UserID)
	assert.Zero(t, acct.CoinBalance)
	assert.Zero(t, acct.InviteCount)
}

func TestEnsureAccountKeepsExistingBalance(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 10)

	acct, err := e.EnsureAccount(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acct.CoinBalance)
}

func TestEnsureAccountConcurrentCreatesOneRow(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.EnsureAccount(ctx, 7)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), countRows(t, db, &models.Account{}, "user_id = ?", 7))
}

func TestGetBalanceUnknownUserIsZeroWithoutCreating(t *testing.T) {
	e, db := newTestEngine(t)

	balance, err := e.GetBalance(context.Background(), 99)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Zero(t, countRows(t, db, &models.Account{}, "user_id = ?", 99))
}

func TestCreditAndDebit(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 0)

	balance, err := e.Accounts.Credit(ctx, 1, 5, models.LedgerGrant, "")
	require.NoError(t, err)
	assert.Equal(t, int64(5), balance)

	balance, err = e.Accounts.Debit(ctx, 1, 2, models.LedgerPurchase, "")
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestDebitInsufficientFundsLeavesBalance(t *testing.T) {
	e, db := newTestEngine(t)
	fund(t, e, 1, 3)

	_, err := e.Accounts.Debit(context.Background(), 1, 5, models.LedgerPurchase, "")
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, int64(3), account(t, db, 1).CoinBalance)
}

func TestDebitUnknownAccount(t *testing.T) {
	e, _ := newTestEngine(t)

	_, err := e.Accounts.Debit(context.Background(), 5, 1, models.LedgerPurchase, "")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAmountsMustBePositive(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 3)

	_, err := e.Accounts.Credit(ctx, 1, 0, models.LedgerGrant, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.Accounts.Debit(ctx, 1, -2, models.LedgerPurchase, "")
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	e, db := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 5)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok, fail int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Accounts.Debit(ctx, 1, 1, models.LedgerPurchase, "")
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, ErrInsufficientFunds)
				fail++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 5, fail)
	assert.Zero(t, account(t, db, 1).CoinBalance)
}

func TestHistoryRecordsEveryMovement(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	fund(t, e, 1, 4)
	_, err := e.Accounts.Debit(ctx, 1, 3, models.LedgerPurchase, "9")
	require.NoError(t, err)

	entries, err := e.Accounts.History(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var sum int64
	for _, en := range entries {
		sum += en.Delta
	}
	assert.Equal(t, int64(1), sum)
	balances := []int64{entries[0].BalanceAfter, entries[1].BalanceAfter}
	assert.ElementsMatch(t, []int64{4, 1}, balances)
}
