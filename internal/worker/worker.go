package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/riverside-fc/backend/pkg/queue"
)

// AttemptRecorder persists one login attempt.
type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, identifier string, success bool, at time.Time) error
}

// JobQueue is the part of queue.Queue the processor uses.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// LoginAttemptProcessor writes queued login attempts to the audit store.
type LoginAttemptProcessor struct {
	recorder AttemptRecorder
	queue    JobQueue
	logger   *zap.Logger
	backoff  time.Duration
}

// NewLoginAttemptProcessor creates a login attempt processor.
func NewLoginAttemptProcessor(recorder AttemptRecorder, q JobQueue, logger *zap.Logger) *LoginAttemptProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LoginAttemptProcessor{recorder: recorder, queue: q, logger: logger, backoff: queue.RetryBackoff}
}

// Process executes one login attempt job.
func (p *LoginAttemptProcessor) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeLoginAttempt {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.LoginAttemptPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	at := payload.AttemptedAt
	if at.IsZero() {
		at = job.CreatedAt
	}
	if err := p.recorder.RecordAttempt(ctx, payload.Identifier, payload.Success, at); err != nil {
		return fmt.Errorf("record attempt: %w", err)
	}
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *LoginAttemptProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("login attempt worker stopping")
			return
		default:
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *LoginAttemptProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
