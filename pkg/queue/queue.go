package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueLoginAttempts is the Redis list key for login attempt audit jobs.
	QueueLoginAttempts = "club:jobs:login_attempts"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "club:jobs:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 3
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
	// dequeueBlock bounds BLPOP so shutdown is noticed.
	dequeueBlock = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeLoginAttempt JobType = "login_attempt"
)

// LoginAttemptPayload is the payload for login attempt jobs.
type LoginAttemptPayload struct {
	Identifier  string    `json:"identifier"`
	Success     bool      `json:"success"`
	AttemptedAt time.Time `json:"attempted_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client redis.Cmdable
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client redis.Cmdable, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueLoginAttempt enqueues a login attempt for the worker to persist.
func (q *Queue) EnqueueLoginAttempt(ctx context.Context, payload LoginAttemptPayload) error {
	job, err := q.enqueue(ctx, QueueLoginAttempts, JobTypeLoginAttempt, payload)
	if err != nil {
		return err
	}
	q.logger.Debug("enqueued login attempt job", zap.String("job_id", job.ID), zap.Bool("success", payload.Success))
	return nil
}

func (q *Queue) enqueue(ctx context.Context, key string, typ JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      typ,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	return job, nil
}

// Dequeue waits briefly for a job. It returns a nil job when none arrived or
// the payload was unreadable.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, dequeueBlock, QueueLoginAttempts).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if job.Attempt >= MaxRetries {
		if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.client.RPush(ctx, QueueLoginAttempts, raw).Err(); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
