// Package cleanup removes expired session rows on a schedule. Revocation
// never depends on it: an expired session already fails refresh. It bounds
// table growth and keeps the per-owner session scan short.
package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultInterval = time.Hour

type expiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

type Job struct {
	sessions expiredSessionDeleter
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// New returns a cleanup job over the session store. A non-positive interval
// falls back to hourly.
func New(sessions expiredSessionDeleter, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{
		sessions: sessions,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run deletes every session whose expiry has passed.
func (j *Job) Run(ctx context.Context) error {
	if j.sessions == nil {
		return nil
	}
	deleted, err := j.sessions.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}
	if deleted > 0 {
		j.logger.Info("cleanup expired sessions completed", zap.Int64("deleted", deleted))
	}
	return nil
}

// Start runs the job on its interval until the context is canceled.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("session cleanup run failed", zap.Error(err))
			}
		}
	}
}
