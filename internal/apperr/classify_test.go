package apperr

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsTransient(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"connection failure class", &pgconn.PgError{Code: "08006"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped pg error", Translate(&pgconn.PgError{Code: "40001"}, "account"), true},
		{"net error", &net.OpError{Op: "read", Err: errors.New("connection reset")}, true},
		{"eof", io.EOF, true},
		{"deadline", context.DeadlineExceeded, true},
		{"plain error", errors.New("nope"), false},
		{"validation", Validation("bad"), false},
		{"not found", NotFound("account"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsTransient(tc.err))
		})
	}
}

func TestTranslate_RecordNotFound(t *testing.T) {
	err := Translate(gorm.ErrRecordNotFound, "account")
	require.True(t, Is(err, KindNotFound))
	require.Contains(t, err.Error(), "account")
}

func TestTranslate_IntegrityViolations(t *testing.T) {
	err := Translate(&pgconn.PgError{Code: "23505", ConstraintName: "idx_entity_version"}, "entity version")
	require.True(t, Is(err, KindIntegrity))

	var appErr *Error
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "idx_entity_version", appErr.Field)

	err = Translate(&pgconn.PgError{Code: "23503", ColumnName: "account_id"}, "transaction")
	require.True(t, Is(err, KindIntegrity))
	require.True(t, errors.As(err, &appErr))
	require.Equal(t, "account_id", appErr.Field)
}

func TestTranslate_TransientWrapped(t *testing.T) {
	err := Translate(&pgconn.PgError{Code: "40P01"}, "transaction")
	require.True(t, Is(err, KindTransient))
	require.True(t, IsTransient(err))
}

func TestTranslate_PassesThroughUnknown(t *testing.T) {
	cause := errors.New("something else")
	require.Same(t, cause, Translate(cause, "account"))
	require.NoError(t, Translate(nil, "account"))
}

func TestKindOf_ConflictError(t *testing.T) {
	err := error(&ConflictError{EntityType: "account", EntityID: 1, CurrentVersion: 3, IncomingVersion: 2})
	require.Equal(t, KindConflict, KindOf(err))
	require.True(t, Is(err, KindConflict))
	require.Contains(t, err.Error(), "version 3")
}
