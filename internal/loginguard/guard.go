// Package loginguard enforces the shared login rate limit. Counting happens
// in a backend (Postgres function or Redis script) so every server instance
// sees the same attempts; this package only proxies to it and fails open.
package loginguard

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/riverside-fc/backend/pkg/metrics"
)

const (
	DefaultWindow      = 15 * time.Minute
	DefaultMaxAttempts = 5
)

// Status is the backend's verdict for an identifier.
type Status struct {
	Allowed        bool          `json:"allowed"`
	AttemptsCount  int           `json:"attempts_count"`
	TimeUntilReset time.Duration `json:"time_until_reset"`
	Message        string        `json:"message"`
}

// Backend owns the attempt history and the atomic allow/deny decision.
type Backend interface {
	CheckLoginRateLimit(ctx context.Context, identifier string, window time.Duration, maxAttempts int) (Status, error)
	RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error
}

// AttemptSink receives login attempts for audit. Implementations must not
// block the caller on the backend and must swallow their own failures.
type AttemptSink interface {
	LogLoginAttempt(identifier string, success bool)
}

// Guard is the fail-open proxy in front of a Backend.
type Guard struct {
	backend     Backend
	sink        AttemptSink
	logger      *zap.Logger
	window      time.Duration
	maxAttempts int
}

// Option configures a Guard.
type Option func(*Guard)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithSink replaces the default DirectLogger.
func WithSink(sink AttemptSink) Option {
	return func(g *Guard) {
		if sink != nil {
			g.sink = sink
		}
	}
}

// WithDefaults sets the window and max attempts used when a caller passes zero.
func WithDefaults(window time.Duration, maxAttempts int) Option {
	return func(g *Guard) {
		if window > 0 {
			g.window = window
		}
		if maxAttempts > 0 {
			g.maxAttempts = maxAttempts
		}
	}
}

// NewGuard wraps backend. Without WithSink, attempts are written straight to
// the backend from a goroutine.
func NewGuard(backend Backend, opts ...Option) *Guard {
	g := &Guard{
		backend:     backend,
		logger:      zap.NewNop(),
		window:      DefaultWindow,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.sink == nil {
		g.sink = NewDirectLogger(backend, g.logger)
	}
	return g
}

// CheckLoginRateLimit asks the backend whether identifier may try to sign in.
// Zero window or maxAttempts select the guard's defaults.
func (g *Guard) CheckLoginRateLimit(ctx context.Context, identifier string, window time.Duration, maxAttempts int) Status {
	if window <= 0 {
		window = g.window
	}
	if maxAttempts <= 0 {
		maxAttempts = g.maxAttempts
	}
	status, err := g.backend.CheckLoginRateLimit(ctx, identifier, window, maxAttempts)
	return g.decide(identifier, status, err)
}

// decide is the only place a backend error is interpreted: any failure to
// reach the backend allows the attempt.
func (g *Guard) decide(identifier string, status Status, err error) Status {
	if err == nil {
		return status
	}
	g.logger.Error("login rate limit check failed, allowing attempt",
		zap.String("identifier", identifier),
		zap.Error(err))
	metrics.RecordLoginGuardFailOpen()
	return Status{Allowed: true}
}

// LogLoginAttempt hands the attempt to the sink and returns immediately.
func (g *Guard) LogLoginAttempt(identifier string, success bool) {
	g.sink.LogLoginAttempt(identifier, success)
}
