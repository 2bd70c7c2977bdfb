package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order lifecycle event types published to Kafka.
const (
	EventOrderCreated     = "order_created"
	EventPaymentSucceeded = "payment_succeeded"
	EventPaymentFailed    = "payment_failed"
)

// OrderEvent is the message published on the order-events topic after an
// order is created or a payment outcome is reconciled.
type OrderEvent struct {
	Type           string          `json:"type"`
	OrderID        string          `json:"order_id"`
	OrderReference string          `json:"order_reference"`
	UserID         string          `json:"user_id"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Timestamp      time.Time       `json:"timestamp"`
}
