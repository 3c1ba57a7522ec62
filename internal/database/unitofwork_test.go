package database

import (
	"context"
	"fmt"
	"testing"
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/events"
	"fintrack-backend/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	return db
}

func testUnitOfWork(t *testing.T, bus events.Publisher) *UnitOfWork {
	t.Helper()
	uow := NewUnitOfWork(openTestDB(t), bus, zerolog.Nop())
	uow.initialBackoff = time.Millisecond
	uow.maxBackoff = 4 * time.Millisecond
	return uow
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	uow := testUnitOfWork(t, nil)

	err := uow.Run(context.Background(), TxOptions{}, func(scope *Scope) error {
		return scope.DB().Create(&models.Workspace{Name: "Family", CreatedBy: 1}).Error
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, uow.db.Model(&models.Workspace{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRun_RollsBackOnError(t *testing.T) {
	uow := testUnitOfWork(t, nil)

	err := uow.Run(context.Background(), TxOptions{}, func(scope *Scope) error {
		if err := scope.DB().Create(&models.Workspace{Name: "Family", CreatedBy: 1}).Error; err != nil {
			return err
		}
		return apperr.Validation("boom")
	})
	require.True(t, apperr.Is(err, apperr.KindValidation))

	var count int64
	require.NoError(t, uow.db.Model(&models.Workspace{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRun_RetriesTransientErrors(t *testing.T) {
	uow := testUnitOfWork(t, nil)

	attempts := 0
	err := uow.Run(context.Background(), TxOptions{MaxRetries: 3}, func(scope *Scope) error {
		attempts++
		if attempts < 3 {
			return &pgconn.PgError{Code: "40001"}
		}
		return scope.DB().Create(&models.Workspace{Name: "Family", CreatedBy: 1}).Error
	})
	require.NoError(t, err)
	require.Equal(t, 3, attempts)

	var count int64
	require.NoError(t, uow.db.Model(&models.Workspace{}).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestRun_DoesNotRetryNonTransient(t *testing.T) {
	uow := testUnitOfWork(t, nil)

	attempts := 0
	err := uow.Run(context.Background(), TxOptions{MaxRetries: 3}, func(scope *Scope) error {
		attempts++
		return apperr.NotFound("account")
	})
	require.True(t, apperr.Is(err, apperr.KindNotFound))
	require.Equal(t, 1, attempts)
}

func TestRun_ExhaustionReturnsLastError(t *testing.T) {
	uow := testUnitOfWork(t, nil)

	attempts := 0
	err := uow.Run(context.Background(), TxOptions{MaxRetries: 2}, func(scope *Scope) error {
		attempts++
		return &pgconn.PgError{Code: "40P01"}
	})
	require.Error(t, err)
	require.True(t, apperr.IsTransient(err))
	require.Equal(t, 3, attempts) // initial try + 2 retries
}

func TestRun_PublishesEventsAfterCommitOnly(t *testing.T) {
	bus := events.NewBus()
	var seen []events.Event
	bus.Subscribe(func(evt events.Event) { seen = append(seen, evt) })

	uow := testUnitOfWork(t, bus)

	err := uow.Run(context.Background(), TxOptions{}, func(scope *Scope) error {
		scope.Emit(events.New(events.TransactionCreated, 1, nil))
		// Nothing may reach subscribers while the transaction is open.
		require.Empty(t, seen)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	require.Equal(t, events.TransactionCreated, seen[0].Name)
}

func TestRun_DropsEventsOnRollback(t *testing.T) {
	bus := events.NewBus()
	var seen []events.Event
	bus.Subscribe(func(evt events.Event) { seen = append(seen, evt) })

	uow := testUnitOfWork(t, bus)

	err := uow.Run(context.Background(), TxOptions{}, func(scope *Scope) error {
		scope.Emit(events.New(events.TransactionCreated, 1, nil))
		return apperr.Validation("boom")
	})
	require.Error(t, err)
	require.Empty(t, seen)
}

func TestRun_ContextCancelDuringBackoff(t *testing.T) {
	uow := testUnitOfWork(t, nil)
	uow.initialBackoff = 50 * time.Millisecond
	uow.maxBackoff = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := uow.Run(ctx, TxOptions{MaxRetries: 5}, func(scope *Scope) error {
		return &pgconn.PgError{Code: "40001"}
	})
	require.ErrorIs(t, err, context.Canceled)
}

func TestBackoffDelay_DoublesAndCaps(t *testing.T) {
	uow := NewUnitOfWork(nil, nil, zerolog.Nop())

	require.Equal(t, 1*time.Second, uow.backoffDelay(0))
	require.Equal(t, 2*time.Second, uow.backoffDelay(1))
	require.Equal(t, 4*time.Second, uow.backoffDelay(2))
	require.Equal(t, 8*time.Second, uow.backoffDelay(3))
	require.Equal(t, 10*time.Second, uow.backoffDelay(4))
	require.Equal(t, 10*time.Second, uow.backoffDelay(20))
	require.Equal(t, 10*time.Second, uow.backoffDelay(63)) // overflow guard
}
