package repository

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
)

// EventLedger records processed webhook event ids for deduplication.
type EventLedger interface {
	Exists(ctx context.Context, eventID string) (bool, error)
	// Record inserts the ledger row. A gorm.ErrDuplicatedKey result means a
	// concurrent delivery of the same event won the race; callers treat that
	// as the dedup case.
	Record(ctx context.Context, event *models.ProcessedEvent) error
}

type GormEventLedger struct {
	db *gorm.DB
}

func NewGormEventLedger(db *gorm.DB) *GormEventLedger {
	return &GormEventLedger{db: db}
}

func (l *GormEventLedger) Exists(ctx context.Context, eventID string) (bool, error) {
	var count int64
	if err := l.db.WithContext(ctx).
		Model(&models.ProcessedEvent{}).
		Where("event_id = ?", eventID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (l *GormEventLedger) Record(ctx context.Context, event *models.ProcessedEvent) error {
	return l.db.WithContext(ctx).Create(event).Error
}
