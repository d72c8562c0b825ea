package ledger

import (
	"context"
	"errors"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrInvalidAmount       = errors.New("amount must be positive")
)

const DefaultAccount = "default"

// Store keeps per-account balances and the transactions recorded against them.
// Accounts that were never seen start at the configured initial balance.
type Store interface {
	Balance(ctx context.Context, accountID string) (decimal.Decimal, error)
	// Charge deducts tx.Amount and records tx as PAID. When funds are short it
	// records tx as FAILED and returns ErrInsufficientFunds.
	Charge(ctx context.Context, tx *domain.Transaction) error
	Credit(ctx context.Context, accountID string, amount decimal.Decimal) error
	FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	LatestForOrder(ctx context.Context, orderID string) (*domain.Transaction, error)
	// Transition moves a transaction from one status to another; false when it was not in from.
	Transition(ctx context.Context, id uuid.UUID, from, to domain.TransactionStatus) (bool, error)
	// Refund marks a PAID transaction REFUNDED and credits its amount back in one step.
	Refund(ctx context.Context, id uuid.UUID) (bool, error)
}
