package apperr

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Postgres SQLSTATE classes. Serialization failures and deadlocks come back
// as class 40 under repeatable-read/serializable; class 08 covers dropped
// connections.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
)

// IsTransient reports whether err is worth retrying with a fresh transaction:
// serialization failures, deadlocks and connection-level drops. Integrity and
// validation errors are never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if Is(err, KindTransient) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, context.DeadlineExceeded)
}

// Translate maps driver-level errors into the taxonomy. Unique and foreign
// key violations not caused by version races become Integrity errors naming
// the offending constraint; record-not-found becomes NotFound.
func Translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			field := pgErr.ColumnName
			if field == "" {
				field = pgErr.ConstraintName
			}
			return Integrity(field, err)
		}
	}
	if IsTransient(err) {
		return Transient(err)
	}
	return err
}
