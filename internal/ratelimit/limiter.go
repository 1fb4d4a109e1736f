package ratelimit

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riverside-fc/backend/pkg/metrics"
)

// Limiter applies a Policy per key over a Store.
type Limiter struct {
	mu     sync.Mutex
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger sets the logger used for block events.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Limiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a limiter over store; a nil store means a fresh MemoryStore.
func New(store Store, opts ...Option) *Limiter {
	if store == nil {
		store = NewMemoryStore()
	}
	l := &Limiter{store: store, now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check records one attempt for key and decides whether it may proceed.
func (l *Limiter) Check(key string, p Policy) Decision {
	l.mu.Lock()
	d := l.check(key, p)
	l.mu.Unlock()

	metrics.RecordRateLimitDecision(p.Name, d.Allowed)
	return d
}

func (l *Limiter) check(key string, p Policy) Decision {
	now := l.now()
	rec, ok := l.store.Get(key)
	if !ok {
		return l.start(key, p, now)
	}

	if rec.BlockedUntil != nil {
		if now.Before(*rec.BlockedUntil) {
			return Decision{Allowed: false, Remaining: rec.BlockedUntil.Sub(now)}
		}
		// block served: start over
		return l.start(key, p, now)
	}

	if now.Sub(rec.FirstAttempt) > p.Window {
		return l.start(key, p, now)
	}

	rec.Count++
	if rec.Count > p.MaxAttempts {
		until := now.Add(p.BlockDuration)
		rec.BlockedUntil = &until
		l.store.Set(key, rec)
		l.logger.Info("rate limit block",
			zap.String("policy", p.Name),
			zap.String("key", key),
			zap.Time("blocked_until", until))
		return Decision{Allowed: false, Remaining: p.BlockDuration}
	}
	l.store.Set(key, rec)
	return Decision{Allowed: true, AttemptsLeft: p.MaxAttempts - rec.Count}
}

func (l *Limiter) start(key string, p Policy, now time.Time) Decision {
	l.store.Set(key, AttemptRecord{Count: 1, FirstAttempt: now})
	return Decision{Allowed: true, AttemptsLeft: p.MaxAttempts - 1}
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Delete(key)
}

// ClearAll forgets every key.
func (l *Limiter) ClearAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.store.Clear()
}

// AttemptCount returns the recorded count for key, 0 when unknown.
func (l *Limiter) AttemptCount(key string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.store.Get(key)
	if !ok {
		return 0
	}
	return rec.Count
}
