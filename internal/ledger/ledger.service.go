package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"toyshop/internal/domain"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type Service struct {
	store    Store
	currency string
	logger   logrus.FieldLogger

	locksMu    sync.Mutex
	orderLocks map[string]*orderLock
}

// orderLock is dropped from the map once nobody holds or waits on it.
type orderLock struct {
	mu   sync.Mutex
	refs int
}

func NewService(store Store, currency string, logger logrus.FieldLogger) *Service {
	return &Service{
		store:      store,
		currency:   currency,
		logger:     logger,
		orderLocks: make(map[string]*orderLock),
	}
}

const msgPaymentMismatch = "order already paid with a different amount or account"

func accountOrDefault(id string) string {
	if id == "" {
		return DefaultAccount
	}
	return id
}

func (s *Service) lockOrder(orderID string) func() {
	s.locksMu.Lock()
	l, ok := s.orderLocks[orderID]
	if !ok {
		l = &orderLock{}
		s.orderLocks[orderID] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.orderLocks, orderID)
		}
		s.locksMu.Unlock()
	}
}


func (s *Service) Balance(ctx context.Context, accountID string) (domain.BalanceResponse, error) {
	balance, err := s.store.Balance(ctx, accountOrDefault(accountID))
	if err != nil {
		return domain.BalanceResponse{}, fmt.Errorf("get balance: %w", err)
	}
	return domain.BalanceResponse{Balance: balance, Currency: s.currency}, nil
}

// Pay deducts the order amount. An order that already holds a PAID or
// CONFIRMED transaction gets that transaction back without a second deduction.
func (s *Service) Pay(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResponse, error) {
	if !req.Amount.IsPositive() {
		return domain.PaymentResponse{}, ErrInvalidAmount
	}
	unlock := s.lockOrder(req.OrderID)
	defer unlock()

	log := s.logger.WithFields(logrus.Fields{"order_id": req.OrderID, "amount": req.Amount.String()})

	existing, err := s.store.LatestForOrder(ctx, req.OrderID)
	if err != nil {
		return domain.PaymentResponse{}, err
	}
	if existing != nil && (existing.Status == domain.TransactionPaid || existing.Status == domain.TransactionConfirmed) {
		log = log.WithField("transaction_id", existing.ID)
		if !existing.Amount.Equal(req.Amount) || existing.AccountID != accountOrDefault(req.AccountID) {
			log.WithFields(logrus.Fields{
				"paid_amount":  existing.Amount.String(),
				"paid_account": existing.AccountID,
			}).Warn("repeat payment does not match the recorded one")
			return domain.PaymentResponse{
				TransactionID: existing.ID.String(),
				Status:        domain.PaymentFailed,
				Message:       msgPaymentMismatch,
			}, nil
		}
		log.Info("order already paid")
		return domain.PaymentResponse{
			TransactionID: existing.ID.String(),
			Status:        domain.PaymentSuccess,
			Message:       "already paid",
		}, nil
	}

	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}
	now := time.Now()
	tx := &domain.Transaction{
		ID:        uuid.New(),
		OrderID:   req.OrderID,
		AccountID: accountOrDefault(req.AccountID),
		Amount:    req.Amount,
		Currency:  currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.Charge(ctx, tx)
	if errors.Is(err, ErrInsufficientFunds) {
		log.Info("payment declined: insufficient funds")
		return domain.PaymentResponse{
			TransactionID: tx.ID.String(),
			Status:        domain.PaymentFailed,
			Message:       ErrInsufficientFunds.Error(),
		}, nil
	}
	if err != nil {
		return domain.PaymentResponse{}, fmt.Errorf("charge: %w", err)
	}

	log.WithField("transaction_id", tx.ID).Info("payment accepted")
	return domain.PaymentResponse{
		TransactionID: tx.ID.String(),
		Status:        domain.PaymentSuccess,
		Message:       "payment accepted",
	}, nil
}

// lookup returns the transaction only when it was issued for orderID.
func (s *Service) lookup(ctx context.Context, orderID, transactionID string) (*domain.Transaction, string, error) {
	id, err := uuid.Parse(transactionID)
	if err != nil {
		return nil, "unknown transaction", nil
	}
	tx, err := s.store.FindTransaction(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if tx == nil {
		return nil, "unknown transaction", nil
	}
	if tx.OrderID != orderID {
		return nil, "transaction does not belong to order", nil
	}
	return tx, "", nil
}

func (s *Service) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResponse, error) {
	resp := domain.ConfirmResponse{OrderID: req.OrderID, TransactionID: req.TransactionID}

	tx, reason, err := s.lookup(ctx, req.OrderID, req.TransactionID)
	if err != nil {
		return resp, err
	}
	if tx == nil {
		resp.Message = reason
		return resp, nil
	}

	switch tx.Status {
	case domain.TransactionConfirmed:
		resp.Confirmed = true
		resp.Message = "already confirmed"
	case domain.TransactionPaid:
		ok, err := s.store.Transition(ctx, tx.ID, domain.TransactionPaid, domain.TransactionConfirmed)
		if err != nil {
			return resp, err
		}
		if !ok {
			// raced with a refund or another confirm
			return s.Confirm(ctx, req)
		}
		resp.Confirmed = true
		resp.Message = "order confirmed"
	default:
		resp.Message = fmt.Sprintf("transaction is %s", tx.Status)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       req.OrderID,
		"transaction_id": req.TransactionID,
		"confirmed":      resp.Confirmed,
	}).Info("confirm processed")
	return resp, nil
}

func (s *Service) Refund(ctx context.Context, req domain.RefundRequest) (domain.RefundResponse, error) {
	resp := domain.RefundResponse{OrderID: req.OrderID, TransactionID: req.TransactionID}

	tx, reason, err := s.lookup(ctx, req.OrderID, req.TransactionID)
	if err != nil {
		return resp, err
	}
	if tx == nil {
		resp.Message = reason
		return resp, nil
	}

	switch tx.Status {
	case domain.TransactionRefunded:
		resp.Refunded = true
		resp.Message = "already refunded"
	case domain.TransactionPaid:
		ok, err := s.store.Refund(ctx, tx.ID)
		if err != nil {
			return resp, err
		}
		if !ok {
			return s.Refund(ctx, req)
		}
		resp.Refunded = true
		resp.Message = "refunded"
	default:
		resp.Message = fmt.Sprintf("transaction is %s", tx.Status)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       req.OrderID,
		"transaction_id": req.TransactionID,
		"refunded":       resp.Refunded,
	}).Info("refund processed")
	return resp, nil
}

func (s *Service) PaymentStatus(ctx context.Context, orderID string) (domain.PaymentStatusResponse, error) {
	tx, err := s.store.LatestForOrder(ctx, orderID)
	if err != nil {
		return domain.PaymentStatusResponse{}, err
	}
	if tx == nil {
		return domain.PaymentStatusResponse{}, ErrTransactionNotFound
	}
	return domain.PaymentStatusResponse{
		OrderID:       orderID,
		TransactionID: tx.ID.String(),
		Status:        tx.Status,
	}, nil
}
