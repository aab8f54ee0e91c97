// Package db provides the Postgres connection pool and storage error classification.
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrTransient marks a storage failure that may succeed on retry (timeout,
// connection loss). Callers may retry these; security-relevant errors are
// never wrapped with it.
var ErrTransient = errors.New("transient storage error")

// Open opens a Postgres connection pool using the given DSN and verifies
// connectivity. Caller must call Close when done.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Classify wraps err with ErrTransient when it looks retryable: context
// deadline hit by a query timeout, or a network-level pgconn failure. Other
// errors pass through unchanged. nil stays nil.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Join(ErrTransient, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08: connection exceptions; class 57: operator intervention (shutdown).
		if len(pgErr.Code) >= 2 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "57") {
			return errors.Join(ErrTransient, err)
		}
		return err
	}
	if pgconn.SafeToRetry(err) {
		return errors.Join(ErrTransient, err)
	}
	return err
}
