package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	MaxCartItems      = 50
	MaxProductNameLen = 255
	MaxQuantity       = 999

	// SessionWindow bounds both the order's expiry timestamp and the
	// provider-side session expiry; the two must match.
	SessionWindow = 30 * time.Minute

	maxReferenceAttempts = 3
)

var (
	MaxItemPrice  = decimal.NewFromInt(1_000_000)
	MaxOrderTotal = decimal.NewFromInt(10_000_000)
)

// CartItem is one line of the submitted cart. Prices are validated but the
// total is always recomputed server-side.
type CartItem struct {
	ProductID   string          `json:"product_id" binding:"required"`
	ProductName string          `json:"product_name" binding:"required"`
	ImageURL    string          `json:"image_url"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
}

type CheckoutResult struct {
	SessionID      string    `json:"session_id"`
	SessionURL     string    `json:"session_url"`
	OrderReference string    `json:"order_reference"`
	OrderID        string    `json:"order_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// EventPublisher publishes order lifecycle events. Publishing is always
// best-effort from the caller's point of view.
type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

type CheckoutService struct {
	orders         repository.OrderRepository
	gateway        PaymentGateway
	publisher      EventPublisher
	logger         *zap.Logger
	currency       string
	gatewayTimeout time.Duration
	now            func() time.Time
	newReference   func() string
}

func NewCheckoutService(
	orders repository.OrderRepository,
	gateway PaymentGateway,
	publisher EventPublisher,
	logger *zap.Logger,
	currency string,
	gatewayTimeout time.Duration,
) *CheckoutService {
	return &CheckoutService{
		orders:         orders,
		gateway:        gateway,
		publisher:      publisher,
		logger:         logger,
		currency:       currency,
		gatewayTimeout: gatewayTimeout,
		now:            time.Now,
		newReference:   NewOrderReference,
	}
}

// NewOrderReference generates the short human-facing reference used as the
// correlation key with the payment provider. Uniqueness is ultimately
// enforced by the database constraint, not by this generator.
func NewOrderReference() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:12])
}

// CreateCheckoutSession validates the cart, creates a Pending order with
// immutable price snapshots, then opens a hosted payment session. The order
// insert is atomic; the provider call happens after commit, so a provider
// failure leaves a Pending order with no session reference. That condition
// is reported as an external error carrying the order reference so the
// caller can retry or let the order expire.
func (s *CheckoutService) CreateCheckoutSession(ctx context.Context, userID string, items []CartItem) (*CheckoutResult, *ServiceError) {
	if verr := validateCart(items); verr != nil {
		return nil, verr
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !total.IsPositive() {
		return nil, NewValidationError("Order total must be greater than zero")
	}
	if total.GreaterThan(MaxOrderTotal) {
		return nil, NewValidationError("Order total exceeds maximum")
	}

	now := s.now().UTC()
	expiresAt := now.Add(SessionWindow)

	order := &models.Order{
		ID:               uuid.New(),
		UserID:           userID,
		TotalAmount:      total,
		Status:           models.StatusPending,
		SessionExpiresAt: &expiresAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, item := range items {
		oi := models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: item.ProductID,
			Name:      strings.TrimSpace(item.ProductName),
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Discount:  decimal.Zero,
		}
		if item.ImageURL != "" {
			img := item.ImageURL
			oi.ImageURL = &img
		}
		order.OrderItems = append(order.OrderItems, oi)
	}

	// A reference collision surfaces as a unique-constraint violation;
	// regenerate and retry instead of failing the checkout.
	var createErr error
	for attempt := 0; attempt < maxReferenceAttempts; attempt++ {
		order.OrderReference = s.newReference()
		createErr = s.orders.Create(ctx, order)
		if createErr == nil {
			break
		}
		if !errors.Is(createErr, gorm.ErrDuplicatedKey) {
			s.logger.Error("Failed to create order",
				zap.String("user_id", userID),
				zap.Error(createErr),
			)
			return nil, NewInternalError("Failed to create order")
		}
		s.logger.Warn("Order reference collision, retrying",
			zap.String("order_reference", order.OrderReference),
			zap.Int("attempt", attempt+1),
		)
	}
	if createErr != nil {
		return nil, NewInternalError("Failed to create order")
	}

	s.logger.Info("Order created",
		zap.String("order_reference", order.OrderReference),
		zap.String("user_id", userID),
		zap.String("total_amount", total.StringFixed(2)),
	)

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()
	sess, err := s.gateway.CreateSession(gwCtx, order)
	if err != nil {
		s.logger.Error("Stripe session creation failed after order commit",
			zap.String("order_reference", order.OrderReference),
			zap.Error(err),
		)
		return &CheckoutResult{
				OrderReference: order.OrderReference,
				OrderID:        order.ID.String(),
			}, NewExternalError(fmt.Sprintf(
				"Payment session could not be created for order %s", order.OrderReference))
	}

	if err := s.orders.SetStripeSession(ctx, order.ID, sess.ID); err != nil {
		// The session exists and the webhook correlates by reference, so the
		// checkout still proceeds; the missing session id is recoverable.
		s.logger.Warn("Failed to persist stripe session id",
			zap.String("order_reference", order.OrderReference),
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
	}

	s.publishEvent(ctx, models.OrderEvent{
		Type:           models.EventOrderCreated,
		OrderID:        order.ID.String(),
		OrderReference: order.OrderReference,
		UserID:         userID,
		Amount:         total,
		Currency:       s.currency,
		Timestamp:      s.now().UTC(),
	})

	return &CheckoutResult{
		SessionID:      sess.ID,
		SessionURL:     sess.URL,
		OrderReference: order.OrderReference,
		OrderID:        order.ID.String(),
		ExpiresAt:      expiresAt,
	}, nil
}

func (s *CheckoutService) publishEvent(ctx context.Context, event models.OrderEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("event_type", event.Type),
			zap.String("order_reference", event.OrderReference),
			zap.Error(err),
		)
	}
}

func validateCart(items []CartItem) *ServiceError {
	if len(items) == 0 {
		return NewValidationError("Cart is empty")
	}
	if len(items) > MaxCartItems {
		return NewValidationError(fmt.Sprintf("Cart cannot exceed %d items", MaxCartItems))
	}
	for _, item := range items {
		name := strings.TrimSpace(item.ProductName)
		if name == "" {
			return NewValidationError("Product name is required")
		}
		if len(name) > MaxProductNameLen {
			return NewValidationError("Product name too long")
		}
		if !item.UnitPrice.IsPositive() || item.UnitPrice.GreaterThan(MaxItemPrice) {
			return NewValidationError(fmt.Sprintf("Invalid price for %s", name))
		}
		if item.Quantity <= 0 || item.Quantity > MaxQuantity {
			return NewValidationError(fmt.Sprintf("Invalid quantity for %s", name))
		}
	}
	return nil
}
