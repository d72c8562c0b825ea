package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts go over the wire as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// TransactionStatus is the ledger-side lifecycle of one pay attempt.
type TransactionStatus string

const (
	TransactionPaid      TransactionStatus = "PAID"
	TransactionConfirmed TransactionStatus = "CONFIRMED"
	TransactionRefunded  TransactionStatus = "REFUNDED"
	TransactionFailed    TransactionStatus = "FAILED"
)

type Transaction struct {
	ID        uuid.UUID
	OrderID   string
	AccountID string
	Amount    decimal.Decimal
	Currency  string
	Status    TransactionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type BalanceResponse struct {
	Balance  decimal.Decimal `json:"balance"`
	Currency string          `json:"currency"`
}

type PaymentRequest struct {
	OrderID   string          `json:"orderId" binding:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	AccountID string          `json:"accountId,omitempty"`
}

type PaymentResponse struct {
	TransactionID string        `json:"transactionId"`
	Status        PaymentStatus `json:"status"`
	Message       string        `json:"message,omitempty"`
}

type ConfirmRequest struct {
	OrderID       string `json:"orderId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
}

type ConfirmResponse struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Confirmed     bool   `json:"confirmed"`
	Message       string `json:"message,omitempty"`
}

type RefundRequest struct {
	OrderID       string `json:"orderId" binding:"required"`
	TransactionID string `json:"transactionId" binding:"required"`
}

type RefundResponse struct {
	OrderID       string `json:"orderId"`
	TransactionID string `json:"transactionId"`
	Refunded      bool   `json:"refunded"`
	Message       string `json:"message,omitempty"`
}

type PaymentStatusResponse struct {
	OrderID       string            `json:"orderId"`
	TransactionID string            `json:"transactionId"`
	Status        TransactionStatus `json:"status"`
}
