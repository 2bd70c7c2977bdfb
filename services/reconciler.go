package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AmountTolerance is the largest absolute difference between the paid amount
// and the stored total that still counts as a match: one minor currency unit.
var AmountTolerance = decimal.NewFromFloat(0.01)

// Webhook event types this service acts on. Anything else is acknowledged,
// logged and recorded in the ledger without touching order state.
const (
	eventCheckoutCompleted = "checkout.session.completed"
	eventSessionExpired    = "checkout.session.expired"
	eventPaymentFailed     = "payment_intent.payment_failed"
	eventPaymentSucceeded  = "payment_intent.succeeded"
)

// WebhookReconciler verifies, deduplicates and applies provider webhook
// events against order state. The order mutation and the ledger insert for
// one event always commit in a single transaction with the order row locked.
type WebhookReconciler struct {
	verifier  EventVerifier
	uow       repository.UnitOfWork
	publisher EventPublisher
	logger    *zap.Logger
	currency  string
	now       func() time.Time
}

func NewWebhookReconciler(
	verifier EventVerifier,
	uow repository.UnitOfWork,
	publisher EventPublisher,
	logger *zap.Logger,
	currency string,
) *WebhookReconciler {
	return &WebhookReconciler{
		verifier:  verifier,
		uow:       uow,
		publisher: publisher,
		logger:    logger,
		currency:  currency,
		now:       time.Now,
	}
}

// Handle processes one raw webhook delivery. It returns a ServiceError only
// for authentication or parse failures; every business-level condition
// (unknown order, duplicate event, terminal state, unhandled type) is
// absorbed and acknowledged so the provider does not retry.
func (r *WebhookReconciler) Handle(ctx context.Context, payload []byte, sigHeader string) *ServiceError {
	event, err := r.verifier.VerifyEvent(payload, sigHeader)
	if err != nil {
		r.logger.Warn("Webhook signature verification failed", zap.Error(err))
		return NewValidationError("Invalid webhook signature")
	}

	r.logger.Info("Processing webhook event",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	var outcome *models.OrderEvent
	txErr := r.uow.Do(ctx, func(orders repository.OrderRepository, ledger repository.EventLedger) error {
		seen, err := ledger.Exists(ctx, event.ID)
		if err != nil {
			return err
		}
		if seen {
			r.logger.Info("Event already processed",
				zap.String("event_id", event.ID),
			)
			return nil
		}

		outcome, err = r.dispatch(ctx, orders, event)
		if err != nil {
			return err
		}

		return ledger.Record(ctx, &models.ProcessedEvent{
			EventID:     event.ID,
			EventType:   string(event.Type),
			ProcessedAt: r.now().UTC(),
			Payload:     string(payload),
		})
	})

	if txErr != nil {
		// A duplicate-key conflict on the ledger insert means a concurrent
		// delivery of the same event committed first. Same as the dedup case.
		if errors.Is(txErr, gorm.ErrDuplicatedKey) {
			r.logger.Info("Concurrent duplicate event delivery",
				zap.String("event_id", event.ID),
			)
			return nil
		}
		r.logger.Error("Webhook transaction failed",
			zap.String("event_id", event.ID),
			zap.Error(txErr),
		)
		return NewInternalError("Webhook processing failed")
	}

	if outcome != nil {
		r.publish(ctx, *outcome)
	}
	return nil
}

// dispatch applies the event to order state and returns the lifecycle event
// to publish after commit, if any. It runs inside the ledger transaction.
func (r *WebhookReconciler) dispatch(ctx context.Context, orders repository.OrderRepository, event stripe.Event) (*models.OrderEvent, error) {
	switch string(event.Type) {
	case eventCheckoutCompleted:
		return r.handleCheckoutCompleted(ctx, orders, event)
	case eventSessionExpired:
		return nil, r.handleSessionExpired(ctx, orders, event)
	case eventPaymentFailed:
		return r.handlePaymentFailed(ctx, orders, event)
	case eventPaymentSucceeded:
		// Informational only: checkout.session.completed is authoritative
		// for marking orders paid.
		r.logger.Info("PaymentIntent succeeded", zap.String("event_id", event.ID))
		return nil, nil
	default:
		r.logger.Info("Unhandled webhook event type",
			zap.String("event_type", string(event.Type)),
		)
		return nil, nil
	}
}

func (r *WebhookReconciler) handleCheckoutCompleted(ctx context.Context, orders repository.OrderRepository, event stripe.Event) (*models.OrderEvent, error) {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		r.logger.Error("Failed to unmarshal checkout session",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil, nil
	}
	if sess.ClientReferenceID == "" {
		r.logger.Error("Checkout session without client reference",
			zap.String("session_id", sess.ID),
		)
		return nil, nil
	}

	order, err := orders.LockByReference(ctx, sess.ClientReferenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Error("Order not found for checkout session",
				zap.String("order_reference", sess.ClientReferenceID),
			)
			return nil, nil
		}
		return nil, err
	}

	if models.IsTerminalStatus(order.Status) {
		r.logger.Info("Skipping checkout event for non-pending order",
			zap.String("order_reference", order.OrderReference),
			zap.String("status", order.Status),
		)
		return nil, nil
	}

	now := r.now().UTC()
	paid := fromMinorUnits(sess.AmountTotal)

	if paid.Sub(order.TotalAmount).Abs().GreaterThan(AmountTolerance) {
		r.logger.Error("Paid amount does not match order total",
			zap.String("order_reference", order.OrderReference),
			zap.String("expected", order.TotalAmount.StringFixed(2)),
			zap.String("paid", paid.StringFixed(2)),
		)
		order.Status = models.StatusPaymentMismatch
		order.UpdatedAt = now
		return nil, orders.Save(ctx, order)
	}

	order.Status = models.StatusPaid
	if sess.PaymentIntent != nil && sess.PaymentIntent.ID != "" {
		intentID := sess.PaymentIntent.ID
		order.StripePaymentIntentID = &intentID
	}
	if len(sess.PaymentMethodTypes) > 0 {
		method := sess.PaymentMethodTypes[0]
		order.PaymentMethod = &method
	}
	order.PaidAt = &now
	order.UpdatedAt = now
	if err := orders.Save(ctx, order); err != nil {
		return nil, err
	}

	r.logger.Info("Payment confirmed",
		zap.String("order_reference", order.OrderReference),
	)
	return &models.OrderEvent{
		Type:           models.EventPaymentSucceeded,
		OrderID:        order.ID.String(),
		OrderReference: order.OrderReference,
		UserID:         order.UserID,
		Amount:         order.TotalAmount,
		Currency:       r.currency,
		Timestamp:      now,
	}, nil
}

func (r *WebhookReconciler) handleSessionExpired(ctx context.Context, orders repository.OrderRepository, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		r.logger.Error("Failed to unmarshal checkout session",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil
	}
	if sess.ClientReferenceID == "" {
		return nil
	}

	order, err := orders.LockByReference(ctx, sess.ClientReferenceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Warn("Order not found for expired session",
				zap.String("order_reference", sess.ClientReferenceID),
			)
			return nil
		}
		return err
	}

	if order.Status != models.StatusPending {
		return nil
	}

	now := r.now().UTC()
	order.Status = models.StatusExpired
	order.CancelledAt = &now
	order.UpdatedAt = now
	if err := orders.Save(ctx, order); err != nil {
		return err
	}

	r.logger.Info("Order expired",
		zap.String("order_reference", order.OrderReference),
	)
	return nil
}

func (r *WebhookReconciler) handlePaymentFailed(ctx context.Context, orders repository.OrderRepository, event stripe.Event) (*models.OrderEvent, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		r.logger.Error("Failed to unmarshal payment intent",
			zap.String("event_id", event.ID),
			zap.Error(err),
		)
		return nil, nil
	}
	if intent.ID == "" {
		return nil, nil
	}

	// Failure events may not carry the client reference, so the lookup runs
	// on the payment intent id recorded when the order was marked paid-able.
	order, err := orders.LockByPaymentIntent(ctx, intent.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.logger.Warn("Order not found for failed payment intent",
				zap.String("payment_intent_id", intent.ID),
			)
			return nil, nil
		}
		return nil, err
	}

	if order.Status != models.StatusPending {
		return nil, nil
	}

	now := r.now().UTC()
	order.Status = models.StatusPaymentFailed
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason := intent.LastPaymentError.Msg
		order.FailureReason = &reason
	}
	order.UpdatedAt = now
	if err := orders.Save(ctx, order); err != nil {
		return nil, err
	}

	r.logger.Warn("Payment failed",
		zap.String("order_reference", order.OrderReference),
		zap.Stringp("reason", order.FailureReason),
	)
	return &models.OrderEvent{
		Type:           models.EventPaymentFailed,
		OrderID:        order.ID.String(),
		OrderReference: order.OrderReference,
		UserID:         order.UserID,
		Amount:         order.TotalAmount,
		Currency:       r.currency,
		Timestamp:      now,
	}, nil
}

func (r *WebhookReconciler) publish(ctx context.Context, event models.OrderEvent) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.Warn("Failed to publish order event",
			zap.String("event_type", event.Type),
			zap.String("order_reference", event.OrderReference),
			zap.Error(err),
		)
	}
}
