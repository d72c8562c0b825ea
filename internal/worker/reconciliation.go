package worker

import (
	"context"
	"time"

	"toyshop/internal/domain"
	"toyshop/internal/infrastructure/events"
	"toyshop/internal/infrastructure/payment"
	"toyshop/internal/repo"
	"toyshop/internal/service"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ReconciliationWorker settles carts left in PENDING_PAYMENT when a checkout
// lost contact with the ledger. The ledger is the source of truth.
type ReconciliationWorker struct {
	cartRepo   repo.CartRepo
	carts      service.CartService
	gateway    payment.Gateway
	publisher  events.Publisher
	currency   string
	interval   time.Duration
	stuckAfter time.Duration
	logger     logrus.FieldLogger
}

func NewReconciliationWorker(
	cartRepo repo.CartRepo,
	carts service.CartService,
	gateway payment.Gateway,
	publisher events.Publisher,
	currency string,
	interval time.Duration,
	stuckAfter time.Duration,
	logger logrus.FieldLogger,
) *ReconciliationWorker {
	return &ReconciliationWorker{
		cartRepo:   cartRepo,
		carts:      carts,
		gateway:    gateway,
		publisher:  publisher,
		currency:   currency,
		interval:   interval,
		stuckAfter: stuckAfter,
		logger:     logger.WithField("component", "reconciliation"),
	}
}

func (rw *ReconciliationWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(rw.interval)
	defer ticker.Stop()

	rw.logger.WithField("interval", rw.interval.String()).Info("reconciliation worker started")

	for {
		select {
		case <-ctx.Done():
			rw.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if err := rw.process(ctx); err != nil {
				rw.logger.WithError(err).Error("reconciliation failed")
			}
		}
	}
}

func (rw *ReconciliationWorker) process(ctx context.Context) error {
	stuck, err := rw.cartRepo.FindStuckCarts(ctx, rw.stuckAfter)
	if err != nil {
		return err
	}
	if len(stuck) == 0 {
		return nil
	}

	rw.logger.WithField("count", len(stuck)).Info("found stuck carts")
	for _, cart := range stuck {
		rw.settle(ctx, cart)
	}
	return nil
}

// settle resolves one cart. Errors are logged and the cart is retried on the next tick.
func (rw *ReconciliationWorker) settle(ctx context.Context, cart domain.Cart) {
	orderID := service.OrderID(cart.ID)
	log := rw.logger.WithFields(logrus.Fields{"cart_id": cart.ID, "owner": cart.UserID})

	status, err := rw.gateway.PaymentStatus(ctx, orderID)
	if err != nil {
		log.WithError(err).Warn("payment status lookup failed")
		return
	}
	if status == nil {
		log.Info("no payment recorded, reverting cart")
		rw.revert(ctx, log, cart.ID)
		return
	}

	log = log.WithFields(logrus.Fields{"transaction_id": status.TransactionID, "payment_status": status.Status})
	switch status.Status {
	case domain.TransactionFailed, domain.TransactionRefunded:
		rw.revert(ctx, log, cart.ID)

	case domain.TransactionConfirmed:
		rw.complete(ctx, log, cart, status.TransactionID)

	case domain.TransactionPaid:
		conf, err := rw.gateway.Confirm(ctx, orderID, status.TransactionID)
		if err != nil {
			log.WithError(err).Warn("confirm failed")
			return
		}
		if conf.Confirmed {
			rw.complete(ctx, log, cart, status.TransactionID)
			return
		}
		if _, err := rw.gateway.Refund(ctx, orderID, status.TransactionID); err != nil {
			log.WithError(err).Warn("refund failed")
			return
		}
		rw.revert(ctx, log, cart.ID)

	default:
		log.Warn("unknown payment status")
	}
}

func (rw *ReconciliationWorker) revert(ctx context.Context, log logrus.FieldLogger, cartID int64) {
	if err := rw.carts.RevertCheckout(ctx, cartID); err != nil {
		log.WithError(err).Error("revert failed")
		return
	}
	log.Info("stuck cart reverted to ACTIVE")
}

func (rw *ReconciliationWorker) complete(ctx context.Context, log logrus.FieldLogger, cart domain.Cart, txID string) {
	if err := rw.carts.CompleteCheckout(ctx, cart.ID); err != nil {
		log.WithError(err).Error("complete failed")
		return
	}
	log.Info("stuck cart completed")

	items, err := rw.carts.ItemViews(ctx, cart.ID)
	if err != nil {
		log.WithError(err).Warn("order total unavailable, skipping event")
		return
	}
	err = rw.publisher.PublishOrderCompleted(ctx, events.OrderCompleted{
		OrderID:       cart.ID,
		OwnerID:       cart.UserID,
		TotalAmount:   decimal.New(domain.NewCartView(items).TotalAmount, -2),
		Currency:      rw.currency,
		TransactionID: txID,
		CompletedAt:   time.Now().UTC(),
	})
	if err != nil {
		log.WithError(err).Warn("publish order.completed failed")
	}
}
