package loginguard

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/riverside-fc/backend/internal/ratelimit"
)

//go:embed login_rate_limit.lua
var checkScriptSrc string

//go:embed log_attempt.lua
var logScriptSrc string

var (
	checkScript = redis.NewScript(checkScriptSrc)
	logScript   = redis.NewScript(logScriptSrc)
)

const redisKeyPrefix = "club:login_attempts:"

// RedisBackend keeps failed attempts per identifier in a sorted set. A
// successful sign-in clears the set.
type RedisBackend struct {
	client    redis.Scripter
	retention time.Duration
	now       func() time.Time
}

// NewRedisBackend returns a backend whose sets expire after retention
// without new failures; it should be at least the longest window checked.
func NewRedisBackend(client redis.Scripter, retention time.Duration) *RedisBackend {
	if retention <= 0 {
		retention = DefaultWindow
	}
	return &RedisBackend{client: client, retention: retention, now: time.Now}
}

func (b *RedisBackend) CheckLoginRateLimit(ctx context.Context, identifier string, window time.Duration, maxAttempts int) (Status, error) {
	res, err := checkScript.Run(ctx, b.client, []string{redisKeyPrefix + identifier},
		b.now().UnixMilli(), window.Milliseconds(), maxAttempts).Int64Slice()
	if err != nil {
		return Status{}, fmt.Errorf("login rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Status{}, errors.New("login rate limit script: unexpected reply")
	}
	st := Status{
		Allowed:        res[0] == 1,
		AttemptsCount:  int(res[1]),
		TimeUntilReset: time.Duration(res[2]) * time.Second,
	}
	if !st.Allowed {
		st.Message = fmt.Sprintf("Too many failed login attempts. Please try again in %s.",
			ratelimit.FormatRemainingTime(st.TimeUntilReset))
	}
	return st, nil
}

func (b *RedisBackend) RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error {
	flag := "0"
	if success {
		flag = "1"
	}
	err := logScript.Run(ctx, b.client, []string{redisKeyPrefix + identifier},
		at.UnixMilli(), flag, uuid.NewString(), b.retention.Milliseconds()).Err()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("log attempt script: %w", err)
	}
	return nil
}
