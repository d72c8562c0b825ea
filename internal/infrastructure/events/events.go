package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const EventTypeOrderCompleted = "order.completed"

type OrderCompleted struct {
	EventType     string          `json:"eventType"`
	OrderID       int64           `json:"orderId"`
	OwnerID       string          `json:"ownerId"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	Currency      string          `json:"currency"`
	TransactionID string          `json:"transactionId"`
	CompletedAt   time.Time       `json:"completedAt"`
}

type Publisher interface {
	PublishOrderCompleted(ctx context.Context, ev OrderCompleted) error
	Close() error
}

// NoopPublisher is used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCompleted(context.Context, OrderCompleted) error { return nil }
func (NoopPublisher) Close() error                                               { return nil }
