// Package pg persists bookings, seat assignments, payments, rate rules and
// the notification outbox. All multi-row state changes go through WithTx so
// the seat-conflict check and the seat-assignment write always share one
// transaction.
package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/DucAnhIT03/movie-serverside/internal/domain"
	"github.com/DucAnhIT03/movie-serverside/internal/observability"
)

const (
	serializationFailureCode = "40001"
	uniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

// WithTx runs fn inside a SERIALIZABLE transaction. Serialization failures
// surface as domain.ErrSerializationFailure so callers can retry; a unique
// violation on the active seat-assignment index surfaces as a seat conflict,
// the database-level backstop against double booking.
func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE"); err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		return mapPgError(err)
	}
	return mapPgError(tx.Commit(ctx))
}

func mapPgError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case serializationFailureCode:
			return domain.ErrSerializationFailure
		case uniqueViolationCode:
			if pgErr.ConstraintName == "seat_assignments_active_uniq" {
				return &domain.SeatConflictError{}
			}
		}
	}
	return err
}
