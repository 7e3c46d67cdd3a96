package outbox

import (
	"context"
	"log/slog"
	"time"
)

// Janitor deletes published rows past the retention window on a slow cycle.
type Janitor struct {
	repo      *Repository
	logger    *slog.Logger
	every     time.Duration
	retention time.Duration
}

func NewJanitor(repo *Repository, logger *slog.Logger, every, retention time.Duration) *Janitor {
	if every <= 0 {
		every = time.Hour
	}
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	return &Janitor{repo: repo, logger: logger, every: every, retention: retention}
}

func (j *Janitor) Run(ctx context.Context) {
	ticker := time.NewTicker(j.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-j.retention)
			deleted, err := j.repo.DeletePublishedBefore(ctx, cutoff)
			if err != nil {
				j.logger.Error("outbox cleanup failed", "err", err)
				continue
			}
			if deleted > 0 {
				j.logger.Info("outbox cleanup", "deleted", deleted)
			}
		}
	}
}
