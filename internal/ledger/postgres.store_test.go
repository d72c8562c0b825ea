package ledger

import (
	"context"
	"regexp"
	"testing"
	"time"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPoolMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestPostgresStore_Balance(t *testing.T) {
	mock := newPoolMock(t)
	mock.ExpectExec(regexp.QuoteMeta(ensureAccountSQL)).
		WithArgs("u1", "10000").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT balance::text FROM accounts WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(pgxmock.NewRows([]string{"balance"}).AddRow("9500.00"))

	store := NewPostgresStore(mock, dec("10000"))
	balance, err := store.Balance(context.Background(), "u1")

	require.NoError(t, err)
	assert.True(t, balance.Equal(dec("9500")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ChargePaid(t *testing.T) {
	mock := newPoolMock(t)
	tx := &domain.Transaction{
		ID: uuid.New(), OrderID: "5", AccountID: "u1", Amount: dec("300"), Currency: "RUB",
		CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(ensureAccountSQL)).
		WithArgs("u1", "10000").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta(deductSQL)).
		WithArgs("u1", "300").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_transactions")).
		WithArgs(tx.ID.String(), "5", "u1", "300", "RUB", "PAID", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := NewPostgresStore(mock, dec("10000")).Charge(context.Background(), tx)

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionPaid, tx.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ChargeInsufficient(t *testing.T) {
	mock := newPoolMock(t)
	tx := &domain.Transaction{ID: uuid.New(), OrderID: "6", AccountID: "u1", Amount: dec("99999"), Currency: "RUB"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(ensureAccountSQL)).
		WithArgs("u1", "10000").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectExec(regexp.QuoteMeta(deductSQL)).
		WithArgs("u1", "99999").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ledger_transactions")).
		WithArgs(tx.ID.String(), "6", "u1", "99999", "RUB", "FAILED", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := NewPostgresStore(mock, dec("10000")).Charge(context.Background(), tx)

	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, domain.TransactionFailed, tx.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefundOnlyPaid(t *testing.T) {
	mock := newPoolMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE ledger_transactions SET status = 'REFUNDED'")).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "amount"}).AddRow("u1", "300.00"))
	mock.ExpectExec(regexp.QuoteMeta(creditSQL)).
		WithArgs("u1", "300.00").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ok, err := NewPostgresStore(mock, dec("10000")).Refund(context.Background(), id)

	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefundNotPaid(t *testing.T) {
	mock := newPoolMock(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE ledger_transactions SET status = 'REFUNDED'")).
		WithArgs(id.String()).
		WillReturnRows(pgxmock.NewRows([]string{"account_id", "amount"}))
	mock.ExpectRollback()

	ok, err := NewPostgresStore(mock, dec("10000")).Refund(context.Background(), id)

	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LatestForOrder(t *testing.T) {
	mock := newPoolMock(t)
	id := uuid.New()
	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(selectTxSQL + ` WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`)).
		WithArgs("5").
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "account_id", "amount", "currency", "status", "created_at", "updated_at"}).
			AddRow(id.String(), "5", "u1", "300.00", "RUB", "CONFIRMED", now, now))

	tx, err := NewPostgresStore(mock, dec("10000")).LatestForOrder(context.Background(), "5")

	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, id, tx.ID)
	assert.Equal(t, domain.TransactionConfirmed, tx.Status)
	assert.True(t, tx.Amount.Equal(dec("300")))
}

func TestPostgresStore_LatestForOrder_None(t *testing.T) {
	mock := newPoolMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM ledger_transactions WHERE order_id = $1")).
		WithArgs("404").
		WillReturnRows(pgxmock.NewRows([]string{"id", "order_id", "account_id", "amount", "currency", "status", "created_at", "updated_at"}))

	tx, err := NewPostgresStore(mock, dec("10000")).LatestForOrder(context.Background(), "404")

	require.NoError(t, err)
	assert.Nil(t, tx)
}
