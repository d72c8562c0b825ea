package ledger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestMemoryStore_ConcurrentDeduct(t *testing.T) {
	store := NewMemoryStore(dec("1000"))
	ctx := context.Background()

	var (
		wg           sync.WaitGroup
		mu           sync.Mutex
		succeeded    int
		insufficient int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.Deduct(ctx, DefaultAccount, dec("600"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrInsufficientFunds):
				insufficient++
			}
		}()
	}
	wg.Wait()

	balance, err := store.Balance(ctx, DefaultAccount)
	require.NoError(t, err)
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, insufficient)
	assert.True(t, balance.Equal(dec("400")), "balance %s", balance)
}

func TestMemoryStore_ManyConcurrentDeductsNeverGoNegative(t *testing.T) {
	store := NewMemoryStore(dec("100"))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Deduct(ctx, "acc", dec("3"))
		}()
	}
	wg.Wait()

	balance, _ := store.Balance(ctx, "acc")
	assert.True(t, balance.Equal(dec("1")), "balance %s", balance)
}

func TestMemoryStore_AccountsArePartitioned(t *testing.T) {
	store := NewMemoryStore(dec("100"))
	ctx := context.Background()

	require.NoError(t, store.Deduct(ctx, "a", dec("40")))
	require.NoError(t, store.Credit(ctx, "b", dec("5")))

	a, _ := store.Balance(ctx, "a")
	b, _ := store.Balance(ctx, "b")
	assert.True(t, a.Equal(dec("60")))
	assert.True(t, b.Equal(dec("105")))
}

func TestMemoryStore_ChargeAndRefund(t *testing.T) {
	store := NewMemoryStore(dec("100"))
	ctx := context.Background()

	tx := &domain.Transaction{ID: uuid.New(), OrderID: "1", AccountID: "a", Amount: dec("30"), CreatedAt: time.Now()}
	require.NoError(t, store.Charge(ctx, tx))
	assert.Equal(t, domain.TransactionPaid, tx.Status)

	ok, err := store.Refund(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Refund(ctx, tx.ID)
	require.NoError(t, err)
	assert.False(t, ok, "second refund must not credit twice")

	balance, _ := store.Balance(ctx, "a")
	assert.True(t, balance.Equal(dec("100")))

	latest, err := store.LatestForOrder(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionRefunded, latest.Status)
}

func TestMemoryStore_ChargeInsufficientRecordsFailure(t *testing.T) {
	store := NewMemoryStore(dec("10"))
	ctx := context.Background()

	tx := &domain.Transaction{ID: uuid.New(), OrderID: "2", AccountID: "a", Amount: dec("30")}
	err := store.Charge(ctx, tx)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	found, _ := store.FindTransaction(ctx, tx.ID)
	require.NotNil(t, found)
	assert.Equal(t, domain.TransactionFailed, found.Status)
	balance, _ := store.Balance(ctx, "a")
	assert.True(t, balance.Equal(dec("10")))
}
