package repository

import (
	"context"

	"gorm.io/gorm"
)

// UnitOfWork runs order and ledger operations inside a single database
// transaction. Webhook reconciliation requires the dedup check, the order
// mutation and the ledger insert to commit or roll back together, with the
// order row held under a row-level lock for the duration.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(orders OrderRepository, ledger EventLedger) error) error
}

type GormUnitOfWork struct {
	db *gorm.DB
}

func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

func (u *GormUnitOfWork) Do(ctx context.Context, fn func(orders OrderRepository, ledger EventLedger) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormOrderRepository(tx), NewGormEventLedger(tx))
	})
}
