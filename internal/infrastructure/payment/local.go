package payment

import (
	"context"
	"errors"
	"fmt"

	"toyshop/internal/domain"
	"toyshop/internal/ledger"
)

// LocalGateway runs the ledger in-process. It backs PAYMENT_MODE=local and
// lets the storefront run without the payment service or an identity provider.
type LocalGateway struct {
	ledger *ledger.Service
}

func NewLocalGateway(svc *ledger.Service) *LocalGateway {
	return &LocalGateway{ledger: svc}
}

func (g *LocalGateway) GetBalance(ctx context.Context, accountID string) (domain.BalanceResponse, error) {
	resp, err := g.ledger.Balance(ctx, accountID)
	return resp, wrapLocal(err)
}

func (g *LocalGateway) Pay(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	resp, err := g.ledger.Pay(ctx, req)
	if errors.Is(err, ledger.ErrInvalidAmount) {
		return resp, fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	return resp, wrapLocal(err)
}

func (g *LocalGateway) Confirm(ctx context.Context, orderID, transactionID string) (domain.ConfirmResponse, error) {
	resp, err := g.ledger.Confirm(ctx, domain.ConfirmRequest{OrderID: orderID, TransactionID: transactionID})
	return resp, wrapLocal(err)
}

func (g *LocalGateway) Refund(ctx context.Context, orderID, transactionID string) (domain.RefundResponse, error) {
	resp, err := g.ledger.Refund(ctx, domain.RefundRequest{OrderID: orderID, TransactionID: transactionID})
	return resp, wrapLocal(err)
}

func (g *LocalGateway) PaymentStatus(ctx context.Context, orderID string) (*domain.PaymentStatusResponse, error) {
	resp, err := g.ledger.PaymentStatus(ctx, orderID)
	if errors.Is(err, ledger.ErrTransactionNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapLocal(err)
	}
	return &resp, nil
}

func wrapLocal(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
}
