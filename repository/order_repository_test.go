package repository_test

import (
	"context"
	"regexp"
	"testing"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{TranslateError: true})
	assert.NoError(t, err)
	return gormDB, mock
}

func TestFindByReferenceAndUser_NotFound(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "orders"`)).
		WillReturnRows(sqlmock.NewRows([]string{}))

	order, err := repo.FindByReferenceAndUser(context.Background(), "REF123", "user-1")
	assert.Error(t, err)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.Nil(t, order)
}

func TestSetStripeSession_UpdatesRow(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	orderID := uuid.New()
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "orders"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.SetStripeSession(context.Background(), orderID, "cs_123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockByReference_UsesForUpdate(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormOrderRepository(gormDB)

	mock.ExpectQuery(`SELECT \* FROM "orders".*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{}))

	_, err := repo.LockByReference(context.Background(), "REF123")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventLedger_Exists(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	ledger := repository.NewGormEventLedger(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "processed_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	seen, err := ledger.Exists(context.Background(), "evt_1")
	assert.NoError(t, err)
	assert.True(t, seen)
}

func TestEventLedger_ExistsFalse(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	ledger := repository.NewGormEventLedger(gormDB)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "processed_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	seen, err := ledger.Exists(context.Background(), "evt_1")
	assert.NoError(t, err)
	assert.False(t, seen)
}

func TestEventLedger_Record(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	ledger := repository.NewGormEventLedger(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "processed_events"`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	err := ledger.Record(context.Background(), &models.ProcessedEvent{
		EventID:   "evt_1",
		EventType: "checkout.session.completed",
		Payload:   "{}",
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
