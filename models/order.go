package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order statuses. Pending is the only non-terminal status: once an order
// leaves Pending no webhook or user action may change it again.
const (
	StatusPending         = "Pending"
	StatusPaid            = "Paid"
	StatusPaymentMismatch = "PaymentMismatch"
	StatusPaymentFailed   = "PaymentFailed"
	StatusExpired         = "Expired"
	StatusCancelled       = "Cancelled"
)

var AllStatuses = []string{
	StatusPending, StatusPaid, StatusPaymentMismatch,
	StatusPaymentFailed, StatusExpired, StatusCancelled,
}

func IsValidStatus(status string) bool {
	for _, s := range AllStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// IsTerminalStatus reports whether an order in the given status may still
// be transitioned by the reconciler or a cancel request.
func IsTerminalStatus(status string) bool {
	return status != StatusPending
}

type Order struct {
	ID                    uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID                string          `gorm:"type:varchar(255);not null;index" json:"user_id"`
	OrderReference        string          `gorm:"type:varchar(12);not null;uniqueIndex" json:"order_reference"`
	TotalAmount           decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"total_amount"`
	Status                string          `gorm:"type:varchar(20);not null;index" json:"status"`
	StripeSessionID       *string         `gorm:"type:varchar(255);index" json:"stripe_session_id,omitempty"`
	StripePaymentIntentID *string         `gorm:"type:varchar(255);index" json:"stripe_payment_intent_id,omitempty"`
	PaymentMethod         *string         `gorm:"type:varchar(50)" json:"payment_method,omitempty"`
	FailureReason         *string         `gorm:"type:varchar(500)" json:"failure_reason,omitempty"`
	SessionExpiresAt      *time.Time      `json:"session_expires_at,omitempty"`
	PaidAt                *time.Time      `json:"paid_at,omitempty"`
	CancelledAt           *time.Time      `json:"cancelled_at,omitempty"`
	CreatedAt             time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	OrderItems            []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"order_items"`
}

// IsExpired reports whether the checkout session window has passed while the
// order is still Pending.
func (o *Order) IsExpired(now time.Time) bool {
	return o.Status == StatusPending &&
		o.SessionExpiresAt != nil && o.SessionExpiresAt.Before(now)
}

// CanBeCancelled reports whether a user-initiated cancel is still permitted.
func (o *Order) CanBeCancelled(now time.Time) bool {
	return o.Status == StatusPending && !o.IsExpired(now)
}

func (o *Order) TotalItems() int {
	total := 0
	for _, it := range o.OrderItems {
		total += it.Quantity
	}
	return total
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID string          `gorm:"type:varchar(255)" json:"product_id"`
	Name      string          `gorm:"type:varchar(255);not null" json:"name"`
	ImageURL  *string         `gorm:"type:varchar(500)" json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"unit_price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Discount  decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"discount"`
}

// Subtotal is unit price times quantity minus the per-line discount.
func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))).Sub(i.Discount)
}
