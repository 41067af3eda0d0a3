// Package cleanup periodically removes rate-limit records that no longer count against any quota.
package cleanup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/axellelanca/acortador/internal/logger"
)

// Purger deletes expired records and returns how many were removed.
type Purger interface {
	Purge(ctx context.Context) (int64, error)
}

// Janitor runs a Purger on a fixed interval.
type Janitor struct {
	purger   Purger
	interval time.Duration
}

// NewJanitor creates and returns a new instance of Janitor.
func NewJanitor(purger Purger, interval time.Duration) *Janitor {
	return &Janitor{
		purger:   purger,
		interval: interval,
	}
}

// Start purges immediately, then on every tick, until ctx is cancelled.
func (j *Janitor) Start(ctx context.Context) {
	logger.Log.Info("starting rate limit janitor", zap.Duration("interval", j.interval))
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("rate limit janitor stopped")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single purge. Errors are logged, the next tick tries again.
func (j *Janitor) RunOnce(ctx context.Context) int64 {
	n, err := j.purger.Purge(ctx)
	if err != nil {
		logger.Log.Error("failed to purge rate limit records", zap.Error(err))
		return 0
	}
	if n > 0 {
		logger.Log.Info("purged expired rate limit records", zap.Int64("count", n))
	}
	return n
}
