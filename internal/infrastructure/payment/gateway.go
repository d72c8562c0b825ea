package payment

import (
	"context"
	"errors"

	"toyshop/internal/domain"
)

// Integration failures. Domain outcomes such as a declined payment come back
// as regular responses, never as these errors.
var (
	ErrServiceUnavailable = errors.New("payment service unavailable")
	ErrUnauthorized       = errors.New("payment service rejected credentials")
	ErrBadResponse        = errors.New("unexpected payment service response")
)

type Gateway interface {
	GetBalance(ctx context.Context, accountID string) (domain.BalanceResponse, error)
	Pay(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error)
	Confirm(ctx context.Context, orderID, transactionID string) (domain.ConfirmResponse, error)
	Refund(ctx context.Context, orderID, transactionID string) (domain.RefundResponse, error)
	// PaymentStatus returns nil when the ledger has no transaction for the order.
	PaymentStatus(ctx context.Context, orderID string) (*domain.PaymentStatusResponse, error)
}

// IsIntegrationError reports whether err came from talking to the ledger
// rather than from a business decision.
func IsIntegrationError(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, ErrBadResponse)
}
