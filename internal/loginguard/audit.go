package loginguard

import (
	"context"
	"errors"
	"time"
)

// Recorder persists one login attempt.
type Recorder interface {
	RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error
}

// AuditedBackend decides with one backend and also writes every attempt,
// success or failure, to a durable audit recorder. The Redis backend forgets
// failures on success and when its sets expire, so it is paired with the
// Postgres login_attempts table.
type AuditedBackend struct {
	Backend
	audit Recorder
}

// WithAudit wraps decider so attempts are also written to audit.
func WithAudit(decider Backend, audit Recorder) *AuditedBackend {
	return &AuditedBackend{Backend: decider, audit: audit}
}

// RecordAttempt writes to both; either failure is returned.
func (b *AuditedBackend) RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error {
	return errors.Join(
		b.Backend.RecordAttempt(ctx, identifier, success, at),
		b.audit.RecordAttempt(ctx, identifier, success, at),
	)
}
