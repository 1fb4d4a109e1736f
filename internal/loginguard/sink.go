package loginguard

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/riverside-fc/backend/pkg/metrics"
	"github.com/riverside-fc/backend/pkg/queue"
)

const defaultLogTimeout = 5 * time.Second

// DirectLogger writes each attempt to the backend from its own goroutine.
type DirectLogger struct {
	backend Backend
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewDirectLogger returns a sink that writes to backend.
func NewDirectLogger(backend Backend, logger *zap.Logger) *DirectLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DirectLogger{backend: backend, logger: logger, timeout: defaultLogTimeout, now: time.Now}
}

func (d *DirectLogger) LogLoginAttempt(identifier string, success bool) {
	at := d.now()
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.backend.RecordAttempt(ctx, identifier, success, at); err != nil {
			d.logger.Warn("failed to log login attempt",
				zap.String("identifier", identifier),
				zap.Bool("success", success),
				zap.Error(err))
			metrics.RecordLoginAttemptLog(false)
			return
		}
		metrics.RecordLoginAttemptLog(true)
	}()
}

// Wait blocks until in-flight writes finish; used on shutdown.
func (d *DirectLogger) Wait() {
	d.wg.Wait()
}

// Enqueuer is the part of queue.Queue used by QueueLogger.
type Enqueuer interface {
	EnqueueLoginAttempt(ctx context.Context, payload queue.LoginAttemptPayload) error
}

// QueueLogger pushes attempts onto the job queue; cmd/worker writes them.
type QueueLogger struct {
	q       Enqueuer
	logger  *zap.Logger
	timeout time.Duration
	now     func() time.Time
}

// NewQueueLogger returns a sink backed by the job queue.
func NewQueueLogger(q Enqueuer, logger *zap.Logger) *QueueLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueLogger{q: q, logger: logger, timeout: 2 * time.Second, now: time.Now}
}

func (l *QueueLogger) LogLoginAttempt(identifier string, success bool) {
	ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
	defer cancel()
	err := l.q.EnqueueLoginAttempt(ctx, queue.LoginAttemptPayload{
		Identifier:  identifier,
		Success:     success,
		AttemptedAt: l.now(),
	})
	if err != nil {
		l.logger.Warn("failed to enqueue login attempt",
			zap.String("identifier", identifier),
			zap.Error(err))
		metrics.RecordLoginAttemptLog(false)
	}
}
