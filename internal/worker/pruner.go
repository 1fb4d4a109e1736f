package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// AttemptPruner deletes audit rows older than a cutoff.
type AttemptPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// Pruner periodically trims the login attempt audit table.
type Pruner struct {
	store     AttemptPruner
	retention time.Duration
	interval  time.Duration
	logger    *zap.Logger
	now       func() time.Time
}

// NewPruner creates a pruner. A non-positive retention disables pruning.
func NewPruner(store AttemptPruner, retention, interval time.Duration, logger *zap.Logger) *Pruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Pruner{store: store, retention: retention, interval: interval, logger: logger, now: time.Now}
}

// PruneOnce deletes rows older than the retention period.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	n, err := p.store.Prune(ctx, p.now().Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned login attempts", zap.Int64("rows", n))
	}
	return n, nil
}

// Run prunes immediately and then on every interval until ctx is done.
func (p *Pruner) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		if _, err := p.PruneOnce(ctx); err != nil && ctx.Err() == nil {
			p.logger.Warn("prune login attempts failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			p.logger.Info("pruner stopping")
			return
		case <-ticker.C:
		}
	}
}
