package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// OrderItemView is the per-line projection returned to the order owner.
type OrderItemView struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  *string         `json:"image_url,omitempty"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderView struct {
	OrderID        string          `json:"order_id"`
	OrderReference string          `json:"order_reference"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	IsExpired      bool            `json:"is_expired"`
	CanBeCancelled bool            `json:"can_be_cancelled"`
	Items          []OrderItemView `json:"items"`
}

type OrderSummary struct {
	OrderID        string          `json:"order_id"`
	OrderReference string          `json:"order_reference"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	CreatedAt      time.Time       `json:"created_at"`
	PaidAt         *time.Time      `json:"paid_at,omitempty"`
}

type OrderListResponse struct {
	Orders []OrderSummary `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService serves the owner-scoped query, list and cancel surface.
type OrderService struct {
	orders repository.OrderRepository
	uow    repository.UnitOfWork
	logger *zap.Logger
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepository, uow repository.UnitOfWork, logger *zap.Logger) *OrderService {
	return &OrderService{
		orders: orders,
		uow:    uow,
		logger: logger,
		now:    time.Now,
	}
}

// GetOrderByReference returns the order projection for its owner. A
// reference belonging to another user is indistinguishable from one that
// does not exist.
func (s *OrderService) GetOrderByReference(ctx context.Context, userID, reference string) (*OrderView, *ServiceError) {
	if reference == "" {
		return nil, NewValidationError("Order reference required")
	}

	order, err := s.orders.FindByReferenceAndUser(ctx, reference, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NewNotFoundError("Order not found")
		}
		s.logger.Error("Failed to fetch order",
			zap.String("order_reference", reference),
			zap.Error(err),
		)
		return nil, NewInternalError("Failed to fetch order")
	}

	now := s.now().UTC()
	view := &OrderView{
		OrderID:        order.ID.String(),
		OrderReference: order.OrderReference,
		Status:         order.Status,
		TotalAmount:    order.TotalAmount,
		CreatedAt:      order.CreatedAt,
		PaidAt:         order.PaidAt,
		ExpiresAt:      order.SessionExpiresAt,
		IsExpired:      order.IsExpired(now),
		CanBeCancelled: order.CanBeCancelled(now),
		Items:          make([]OrderItemView, 0, len(order.OrderItems)),
	}
	for _, item := range order.OrderItems {
		view.Items = append(view.Items, OrderItemView{
			ProductID: item.ProductID,
			Name:      item.Name,
			ImageURL:  item.ImageURL,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal(),
		})
	}
	return view, nil
}

// CancelOrder cancels a Pending, unexpired order owned by the caller. The
// status check and the update run under the same row lock the reconciler
// uses, so a cancel cannot race a concurrent webhook into a double
// transition.
func (s *OrderService) CancelOrder(ctx context.Context, userID, reference string) *ServiceError {
	if reference == "" {
		return NewValidationError("Order reference required")
	}

	var svcErr *ServiceError
	err := s.uow.Do(ctx, func(orders repository.OrderRepository, _ repository.EventLedger) error {
		order, err := orders.LockByReference(ctx, reference)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				svcErr = NewNotFoundError("Order not found")
				return nil
			}
			return err
		}
		if order.UserID != userID {
			svcErr = NewNotFoundError("Order not found")
			return nil
		}

		now := s.now().UTC()
		if !order.CanBeCancelled(now) {
			svcErr = NewConflictError(fmt.Sprintf("Cannot cancel order with status: %s", order.Status))
			return nil
		}

		order.Status = models.StatusCancelled
		order.CancelledAt = &now
		order.UpdatedAt = now
		return orders.Save(ctx, order)
	})
	if err != nil {
		s.logger.Error("Failed to cancel order",
			zap.String("order_reference", reference),
			zap.Error(err),
		)
		return NewInternalError("Failed to cancel order")
	}
	if svcErr != nil {
		return svcErr
	}

	s.logger.Info("Order cancelled",
		zap.String("order_reference", reference),
		zap.String("user_id", userID),
	)
	return nil
}

// ListOrders returns a paginated summary of the caller's orders, optionally
// filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, userID string, page, limit int, status string) (*OrderListResponse, *ServiceError) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	if status != "" && !models.IsValidStatus(status) {
		return nil, NewValidationError(fmt.Sprintf("Invalid status filter: %s", status))
	}

	orders, total, err := s.orders.ListByUser(ctx, userID, status, page, limit)
	if err != nil {
		s.logger.Error("Failed to list orders",
			zap.String("user_id", userID),
			zap.Error(err),
		)
		return nil, NewInternalError("Failed to fetch orders")
	}

	summaries := make([]OrderSummary, 0, len(orders))
	for _, order := range orders {
		summaries = append(summaries, OrderSummary{
			OrderID:        order.ID.String(),
			OrderReference: order.OrderReference,
			Status:         order.Status,
			TotalAmount:    order.TotalAmount,
			CreatedAt:      order.CreatedAt,
			PaidAt:         order.PaidAt,
		})
	}

	return &OrderListResponse{
		Orders: summaries,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}, nil
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
