package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"toyshop/internal/domain"
	"toyshop/internal/infrastructure/events"
	"toyshop/internal/infrastructure/payment"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	PaymentMethodBalance = "BALANCE"

	msgConfirmFailed  = "order confirmation failed"
	msgPaymentUnknown = "payment service call failed, the order will be reconciled shortly"
)

// CartPage is what the cart view renders: the cart plus the owner's balance.
type CartPage struct {
	Cart     domain.CartView `json:"cart"`
	Balance  decimal.Decimal `json:"currentBalance"`
	Currency string          `json:"currency"`
}

// CheckoutResult is either a redirect to the new order or the cart page with an error.
type CheckoutResult struct {
	RedirectURL string
	Page        CartPage
	Error       string
	// IntegrationFailure marks errors caused by the ledger being unreachable
	// or misbehaving, as opposed to a declined payment.
	IntegrationFailure bool
}

type CheckoutService interface {
	PrepareCart(ctx context.Context, owner string) (CartPage, error)
	CheckoutAndPay(ctx context.Context, owner string) (CheckoutResult, error)
	CurrentBalance(ctx context.Context, owner string) (domain.BalanceResponse, error)
}

type checkoutService struct {
	carts     CartService
	gateway   payment.Gateway
	publisher events.Publisher
	currency  string
	logger    logrus.FieldLogger
}

func NewCheckoutService(
	carts CartService,
	gateway payment.Gateway,
	publisher events.Publisher,
	currency string,
	logger logrus.FieldLogger,
) CheckoutService {
	return &checkoutService{
		carts:     carts,
		gateway:   gateway,
		publisher: publisher,
		currency:  currency,
		logger:    logger,
	}
}

func (s *checkoutService) CurrentBalance(ctx context.Context, owner string) (domain.BalanceResponse, error) {
	return s.gateway.GetBalance(ctx, owner)
}

// balanceOrZero hides ledger outages from read-only pages.
func (s *checkoutService) balanceOrZero(ctx context.Context, owner string) (decimal.Decimal, string) {
	bal, err := s.gateway.GetBalance(ctx, owner)
	if err != nil {
		s.logger.WithError(err).WithField("owner", owner).Warn("balance unavailable, showing zero")
		return decimal.Zero, s.currency
	}
	if bal.Currency == "" {
		bal.Currency = s.currency
	}
	return bal.Balance, bal.Currency
}

// PrepareCart reads the cart view and the balance concurrently.
func (s *checkoutService) PrepareCart(ctx context.Context, owner string) (CartPage, error) {
	var page CartPage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		view, err := s.carts.GetCartView(gctx, owner)
		if err != nil {
			return err
		}
		page.Cart = view
		return nil
	})
	g.Go(func() error {
		page.Balance, page.Currency = s.balanceOrZero(gctx, owner)
		return nil
	})
	if err := g.Wait(); err != nil {
		return CartPage{}, err
	}
	return page, nil
}

func (s *checkoutService) CheckoutAndPay(ctx context.Context, owner string) (CheckoutResult, error) {
	page, err := s.PrepareCart(ctx, owner)
	if err != nil {
		return CheckoutResult{}, err
	}
	result := CheckoutResult{Page: page}

	cart, err := s.carts.Checkout(ctx, owner)
	if errors.Is(err, ErrNoActiveCart) || errors.Is(err, ErrEmptyCart) || errors.Is(err, ErrCheckoutInProgress) {
		result.Error = err.Error()
		return result, nil
	}
	if err != nil {
		return CheckoutResult{}, err
	}

	log := s.logger.WithFields(logrus.Fields{"owner": owner, "cart_id": cart.ID})

	items, err := s.carts.ItemViews(ctx, cart.ID)
	if err != nil {
		s.revert(ctx, log, cart.ID)
		return CheckoutResult{}, err
	}
	view := domain.NewCartView(items)
	if view.TotalAmount <= 0 {
		s.revert(ctx, log, cart.ID)
		result.Error = ErrEmptyCart.Error()
		return result, nil
	}
	result.Page.Cart = view

	orderID := OrderID(cart.ID)
	amount := decimal.New(view.TotalAmount, -2)

	pay, err := s.gateway.Pay(ctx, domain.PaymentRequest{
		OrderID:   orderID,
		Amount:    amount,
		Currency:  s.currency,
		Method:    PaymentMethodBalance,
		AccountID: owner,
	})
	if err != nil {
		// the deduction may or may not have happened; leave the cart for reconciliation
		log.WithError(err).Error("pay call failed, cart left pending")
		return s.afterPay(ctx, owner, integrationFailure(result)), nil
	}

	if pay.Status != domain.PaymentSuccess {
		log.WithField("message", pay.Message).Info("payment declined")
		s.revert(ctx, log, cart.ID)
		result.Error = pay.Message
		if result.Error == "" {
			result.Error = "payment failed"
		}
		return s.afterPay(ctx, owner, result), nil
	}

	log = log.WithField("transaction_id", pay.TransactionID)
	conf, err := s.gateway.Confirm(ctx, orderID, pay.TransactionID)
	if err != nil {
		log.WithError(err).Error("confirm call failed, cart left pending")
		return s.afterPay(ctx, owner, integrationFailure(result)), nil
	}

	if !conf.Confirmed {
		log.WithField("message", conf.Message).Warn("order confirmation refused, refunding")
		if _, err := s.gateway.Refund(ctx, orderID, pay.TransactionID); err != nil {
			log.WithError(err).Error("refund failed, cart left pending")
			return s.afterPay(ctx, owner, integrationFailure(result)), nil
		}
		s.revert(ctx, log, cart.ID)
		result.Error = msgConfirmFailed
		return s.afterPay(ctx, owner, result), nil
	}

	if err := s.carts.CompleteCheckout(ctx, cart.ID); err != nil {
		return CheckoutResult{}, fmt.Errorf("complete cart %d: %w", cart.ID, err)
	}
	log.Info("order completed")

	s.publishCompleted(ctx, log, owner, cart.ID, amount, pay.TransactionID)
	result.RedirectURL = fmt.Sprintf("/orders/%d", cart.ID)
	return s.afterPay(ctx, owner, result), nil
}

// afterPay re-reads the balance so every outcome shows where the money stands.
func (s *checkoutService) afterPay(ctx context.Context, owner string, result CheckoutResult) CheckoutResult {
	result.Page.Balance, result.Page.Currency = s.balanceOrZero(ctx, owner)
	return result
}

func integrationFailure(result CheckoutResult) CheckoutResult {
	result.IntegrationFailure = true
	result.Error = msgPaymentUnknown
	return result
}

func (s *checkoutService) revert(ctx context.Context, log logrus.FieldLogger, cartID int64) {
	if err := s.carts.RevertCheckout(ctx, cartID); err != nil {
		log.WithError(err).Error("revert checkout failed")
	}
}

func (s *checkoutService) publishCompleted(ctx context.Context, log logrus.FieldLogger, owner string, cartID int64, amount decimal.Decimal, txID string) {
	err := s.publisher.PublishOrderCompleted(ctx, events.OrderCompleted{
		OrderID:       cartID,
		OwnerID:       owner,
		TotalAmount:   amount,
		Currency:      s.currency,
		TransactionID: txID,
		CompletedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("publish order.completed failed")
	}
}
