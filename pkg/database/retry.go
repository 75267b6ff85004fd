package database

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/richxcame/fraud-investigator/pkg/resilience"
)

// Querier is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock-style fakes.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// UniqueViolation is the SQLSTATE raised for duplicate primary or unique keys.
const UniqueViolation = "23505"

func retryConfig() resilience.RetryConfig {
	cfg := resilience.DefaultRetryConfig()
	cfg.RetryableChecker = IsRetryable
	return cfg
}

// RetryableQuery runs query and hands the rows to scanner, retrying transient failures.
func RetryableQuery[T any](ctx context.Context, db Querier, query string, args []interface{}, scanner func(pgx.Rows) (T, error)) (T, error) {
	return resilience.Do(ctx, retryConfig(), "database.query", func(ctx context.Context) (T, error) {
		rows, err := db.Query(ctx, query, args...)
		if err != nil {
			var zero T
			return zero, err
		}
		defer rows.Close()
		return scanner(rows)
	})
}

// RetryableQueryRow runs a single-row query, retrying transient failures.
func RetryableQueryRow[T any](ctx context.Context, db Querier, query string, args []interface{}, scanner func(pgx.Row) (T, error)) (T, error) {
	return resilience.Do(ctx, retryConfig(), "database.query_row", func(ctx context.Context) (T, error) {
		return scanner(db.QueryRow(ctx, query, args...))
	})
}

// RetryableExec executes a command, retrying transient failures.
func RetryableExec(ctx context.Context, db Querier, query string, args ...interface{}) (pgconn.CommandTag, error) {
	return resilience.Do(ctx, retryConfig(), "database.exec", func(ctx context.Context) (pgconn.CommandTag, error) {
		return db.Exec(ctx, query, args...)
	})
}

// IsUniqueViolation reports whether err is a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}

// IsRetryable determines if a PostgreSQL error should be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"53000", // insufficient_resources
			"53300", // too_many_connections
			"08000", "08003", "08006", // connection_exception
			"57P01", "57P02", "57P03": // shutdown / cannot_connect_now
			return true
		}
		// constraint violations, data exceptions, syntax errors and the rest
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"timeout",
		"server closed",
		"unexpected eof",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
