package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const openAttemptConstraint = "attempts_one_open_idx"

// TxManager runs units of work in a PostgreSQL transaction with a bounded retry.
type TxManager struct {
	pool        *pgxpool.Pool
	maxAttempts int
	log         zerolog.Logger
}

// NewTxManager creates a TxManager. maxAttempts below 1 is treated as 1.
func NewTxManager(pool *pgxpool.Pool, maxAttempts int, log zerolog.Logger) *TxManager {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &TxManager{
		pool:        pool,
		maxAttempts: maxAttempts,
		log:         log.With().Str("component", "tx_manager").Logger(),
	}
}

// WithTx implements Transactor.
func (m *TxManager) WithTx(ctx context.Context, fn func(ctx context.Context, s Stores) error) error {
	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		err = pgx.BeginFunc(ctx, m.pool, func(tx pgx.Tx) error {
			return fn(ctx, StoresFor(tx))
		})
		if err == nil || !IsRetryable(err) || ctx.Err() != nil {
			return err
		}
		m.log.Warn().Err(err).Int("attempt", attempt).Msg("Transaction conflict, retrying")
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", m.maxAttempts, err)
}

// StoresFor binds every transactional repository to db.
func StoresFor(db DBTX) Stores {
	return Stores{
		Attempts:  NewAttemptRepository(db),
		Snapshots: NewSnapshotRepository(db),
		Outcomes:  NewEnrollmentRepository(db),
	}
}

// IsRetryable reports whether err is a conflict that a fresh transaction can resolve:
// a concurrent open attempt for the same slot, a serialization failure or a deadlock.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01":
		return true
	case "23505":
		return pgErr.ConstraintName == openAttemptConstraint
	default:
		return false
	}
}
