package repository

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	FindByReferenceAndUser(ctx context.Context, reference, userID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID, status string, page, limit int) ([]models.Order, int64, error)
	// LockByReference and LockByPaymentIntent load the order row FOR UPDATE.
	// They are only meaningful inside a UnitOfWork transaction.
	LockByReference(ctx context.Context, reference string) (*models.Order, error)
	LockByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts the order and its items in one transaction. GORM cascades
// the OrderItems association inside the same insert transaction, so a
// failure on any row leaves nothing behind.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// SetStripeSession records the checkout session reference returned by the
// provider. This is deliberately a separate update from Create: the session
// is requested only after the order row is committed.
func (r *GormOrderRepository) SetStripeSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("stripe_session_id", sessionID).Error
}

func (r *GormOrderRepository) FindByReferenceAndUser(ctx context.Context, reference, userID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Preload("OrderItems").
		Where("order_reference = ? AND user_id = ?", reference, userID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) ListByUser(ctx context.Context, userID, status string, page, limit int) ([]models.Order, int64, error) {
	var orders []models.Order
	var total int64

	query := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ?", userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * limit
	if err := query.
		Offset(offset).
		Limit(limit).
		Order("created_at DESC").
		Find(&orders).Error; err != nil {
		return nil, 0, err
	}

	return orders, total, nil
}

func (r *GormOrderRepository) LockByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("order_reference = ?", reference).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) LockByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_payment_intent_id = ?", paymentIntentID).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *GormOrderRepository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}
