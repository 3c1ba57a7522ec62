package database

import (
	"context"
	"database/sql"
	"time"

	"fintrack-backend/internal/apperr"
	"fintrack-backend/internal/events"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	initialBackoff    = 1 * time.Second
	maxBackoff        = 10 * time.Second
)

// TxOptions configures one unit of work. Zero values fall back to the
// defaults: serializable isolation, 30s timeout, 3 retries.
type TxOptions struct {
	Timeout    time.Duration
	MaxRetries int
	Isolation  sql.IsolationLevel
}

// UnitOfWork runs callbacks inside a single database transaction and retries
// the whole open/run/commit cycle on transient failures (serialization
// conflicts, deadlocks, dropped connections) with capped exponential backoff.
// Validation, integrity, not-found and conflict errors surface immediately.
type UnitOfWork struct {
	db  *gorm.DB
	bus events.Publisher
	log zerolog.Logger

	// overridden in tests to keep retries fast
	initialBackoff time.Duration
	maxBackoff     time.Duration
}

func NewUnitOfWork(db *gorm.DB, bus events.Publisher, log zerolog.Logger) *UnitOfWork {
	return &UnitOfWork{
		db:             db,
		bus:            bus,
		log:            log,
		initialBackoff: initialBackoff,
		maxBackoff:     maxBackoff,
	}
}

// Run executes fn inside one transaction. Events emitted through the scope
// are published only after a successful commit. On retry exhaustion the last
// transient error is returned.
func (u *UnitOfWork) Run(ctx context.Context, opts TxOptions, fn func(scope *Scope) error) error {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.Isolation == sql.LevelDefault {
		// The increment+conditional-check pattern throughout the engine wants
		// the strictest level the store offers cheaply.
		opts.Isolation = sql.LevelSerializable
	}

	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := u.backoffDelay(attempt - 1)
			u.log.Warn().
				Int("attempt", attempt).
				Dur("backoff", delay).
				Err(lastErr).
				Msg("retrying unit of work after transient error")
			if err := sleepWithContext(ctx, delay); err != nil {
				return err
			}
		}

		err := u.runOnce(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !apperr.IsTransient(err) {
			return err
		}
		lastErr = err
	}
	return lastErr
}

func (u *UnitOfWork) runOnce(ctx context.Context, opts TxOptions, fn func(scope *Scope) error) error {
	runCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var pending []events.Event
	err := u.db.WithContext(runCtx).Transaction(func(tx *gorm.DB) error {
		scope := newTxScope(tx, u.db, u.bus)
		if err := fn(scope); err != nil {
			return err
		}
		pending = scope.drain()
		return nil
	}, &sql.TxOptions{Isolation: opts.Isolation})
	if err != nil {
		return err
	}

	// Post-commit only: subscribers must never see uncommitted state.
	if u.bus != nil {
		for _, evt := range pending {
			u.bus.Publish(evt)
		}
	}
	return nil
}

// backoffDelay doubles from the initial delay per attempt, capped.
func (u *UnitOfWork) backoffDelay(attempt int) time.Duration {
	delay := u.initialBackoff << attempt
	if delay > u.maxBackoff || delay <= 0 {
		return u.maxBackoff
	}
	return delay
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
