package ledger

import (
	"context"
	"errors"
	"fmt"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// DBPool matches the methods from *pgxpool.Pool that the store uses.
type DBPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type PostgresStore struct {
	pool    DBPool
	initial decimal.Decimal
}

func NewPostgresStore(pool DBPool, initial decimal.Decimal) *PostgresStore {
	return &PostgresStore{pool: pool, initial: initial}
}

const (
	ensureAccountSQL = `INSERT INTO accounts (id, balance) VALUES ($1, $2::numeric) ON CONFLICT (id) DO NOTHING`
	deductSQL        = `UPDATE accounts SET balance = balance - $2::numeric WHERE id = $1 AND balance >= $2::numeric`
	creditSQL        = `UPDATE accounts SET balance = balance + $2::numeric WHERE id = $1`
	insertTxSQL      = `INSERT INTO ledger_transactions (id, order_id, account_id, amount, currency, status, created_at, updated_at)
		VALUES ($1::uuid, $2, $3, $4::numeric, $5, $6, $7, $8)`
	selectTxSQL = `SELECT id::text, order_id, account_id, amount::text, currency, status, created_at, updated_at FROM ledger_transactions`
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func (s *PostgresStore) ensureAccount(ctx context.Context, q execer, accountID string) error {
	if _, err := q.Exec(ctx, ensureAccountSQL, accountID, s.initial.String()); err != nil {
		return fmt.Errorf("ensure account %s: %w", accountID, err)
	}
	return nil
}

func (s *PostgresStore) Balance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	if err := s.ensureAccount(ctx, s.pool, accountID); err != nil {
		return decimal.Zero, err
	}
	var raw string
	if err := s.pool.QueryRow(ctx, `SELECT balance::text FROM accounts WHERE id = $1`, accountID).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("read balance: %w", err)
	}
	return decimal.NewFromString(raw)
}

func (s *PostgresStore) Charge(ctx context.Context, t *domain.Transaction) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.ensureAccount(ctx, tx, t.AccountID); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, deductSQL, t.AccountID, t.Amount.String())
	if err != nil {
		return fmt.Errorf("deduct: %w", err)
	}
	var chargeErr error
	if tag.RowsAffected() == 1 {
		t.Status = domain.TransactionPaid
	} else {
		t.Status = domain.TransactionFailed
		chargeErr = ErrInsufficientFunds
	}

	_, err = tx.Exec(ctx, insertTxSQL,
		t.ID.String(), t.OrderID, t.AccountID, t.Amount.String(), t.Currency, string(t.Status), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return chargeErr
}

func (s *PostgresStore) Credit(ctx context.Context, accountID string, amount decimal.Decimal) error {
	if err := s.ensureAccount(ctx, s.pool, accountID); err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, creditSQL, accountID, amount.String()); err != nil {
		return fmt.Errorf("credit: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return s.scanTx(s.pool.QueryRow(ctx, selectTxSQL+` WHERE id = $1::uuid`, id.String()))
}

func (s *PostgresStore) LatestForOrder(ctx context.Context, orderID string) (*domain.Transaction, error) {
	return s.scanTx(s.pool.QueryRow(ctx, selectTxSQL+` WHERE order_id = $1 ORDER BY created_at DESC LIMIT 1`, orderID))
}

func (s *PostgresStore) Transition(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE ledger_transactions SET status = $2, updated_at = now() WHERE id = $1::uuid AND status = $3`,
		id.String(), string(to), string(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) Refund(ctx context.Context, id uuid.UUID) (bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var accountID, amount string
	err = tx.QueryRow(ctx,
		`UPDATE ledger_transactions SET status = 'REFUNDED', updated_at = now()
		WHERE id = $1::uuid AND status = 'PAID' RETURNING account_id, amount::text`,
		id.String(),
	).Scan(&accountID, &amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("mark refunded: %w", err)
	}

	if _, err := tx.Exec(ctx, creditSQL, accountID, amount); err != nil {
		return false, fmt.Errorf("credit refund: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, err
	}
	return true, nil
}

func (s *PostgresStore) scanTx(row pgx.Row) (*domain.Transaction, error) {
	var (
		t          domain.Transaction
		id, amount string
		status     string
	)
	err := row.Scan(&id, &t.OrderID, &t.AccountID, &amount, &t.Currency, &status, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	if t.ID, err = uuid.Parse(id); err != nil {
		return nil, err
	}
	if t.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	t.Status = domain.TransactionStatus(status)
	return &t, nil
}
