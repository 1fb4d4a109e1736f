package loginguard

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool and pgx.Tx.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresBackend calls the check_login_rate_limit and log_login_attempt
// functions installed by the schema migration.
type PostgresBackend struct {
	db DB
}

func NewPostgresBackend(db DB) *PostgresBackend {
	return &PostgresBackend{db: db}
}

const checkLoginRateLimitSQL = `SELECT is_allowed, attempts_count, time_until_reset, COALESCE(message, '')
	FROM check_login_rate_limit($1, $2, $3)`

func (b *PostgresBackend) CheckLoginRateLimit(ctx context.Context, identifier string, window time.Duration, maxAttempts int) (Status, error) {
	var (
		st      Status
		seconds int
	)
	windowMinutes := int((window + time.Minute - 1) / time.Minute)
	err := b.db.QueryRow(ctx, checkLoginRateLimitSQL, identifier, windowMinutes, maxAttempts).
		Scan(&st.Allowed, &st.AttemptsCount, &seconds, &st.Message)
	if err != nil {
		return Status{}, fmt.Errorf("check_login_rate_limit: %w", err)
	}
	st.TimeUntilReset = time.Duration(seconds) * time.Second
	return st, nil
}

const logLoginAttemptSQL = `SELECT log_login_attempt($1, $2, $3)`

func (b *PostgresBackend) RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error {
	if _, err := b.db.Exec(ctx, logLoginAttemptSQL, identifier, success, at); err != nil {
		return fmt.Errorf("log_login_attempt: %w", err)
	}
	return nil
}

const pruneLoginAttemptsSQL = `DELETE FROM login_attempts WHERE attempted_at < $1`

// Prune deletes audit rows older than before.
func (b *PostgresBackend) Prune(ctx context.Context, before time.Time) (int64, error) {
	tag, err := b.db.Exec(ctx, pruneLoginAttemptsSQL, before)
	if err != nil {
		return 0, fmt.Errorf("prune login attempts: %w", err)
	}
	return tag.RowsAffected(), nil
}
