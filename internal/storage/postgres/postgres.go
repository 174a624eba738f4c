// Package postgres is the pgx storage adapter. Aggregate increments are single UPDATE
// statements so concurrent submissions never lose an update.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizhub/internal/errors"
)

const (
	defaultTimeout = 5 * time.Second

	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

type Store struct {
	db      *pgxpool.Pool
	timeout time.Duration
}

// New creates a store whose every call is bounded by timeout.
func New(db *pgxpool.Pool, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Store{
		db:      db,
		timeout: timeout,
	}
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// convert maps driver errors onto the service error codes. Everything that is neither a
// missing row nor a constraint violation is a persistence failure.
func convert(err error, notFound func() *errors.Error) error {
	if err == nil {
		return nil
	}

	if stderrors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound()
	}

	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return errors.New(errors.CodeAlreadyExists,
				errors.WithMessagef("already exists: %s", pgErr.ConstraintName),
				errors.WithCause(err),
			)
		case codeForeignKeyViolation:
			return errors.New(errors.CodeNotFound,
				errors.WithMessagef("referenced record not found: %s", pgErr.ConstraintName),
				errors.WithCause(err),
			)
		}
	}

	return errors.Persistence(err)
}

func quizNotFound(quizID string) func() *errors.Error {
	return func() *errors.Error {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("quiz not found: quiz=%s", quizID))
	}
}

func userNotFound(userID string) func() *errors.Error {
	return func() *errors.Error {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("user not found: user=%s", userID))
	}
}

func scoreNotFound(format string, args ...any) func() *errors.Error {
	return func() *errors.Error {
		return errors.New(errors.CodeNotFound, errors.WithMessagef(format, args...))
	}
}

// DSN builds a postgres connection string.
func DSN(user, pass, addr, name, sslMode string) string {
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=%s", user, pass, addr, name, sslMode)
}
