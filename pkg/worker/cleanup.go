package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/referral-api/pkg/logger"
)

// CleanupFunc deletes records older than cutoff and returns how many it removed.
type CleanupFunc func(ctx context.Context, cutoff time.Time) (int64, error)

// CleanupWorker periodically enforces a retention period.
type CleanupWorker struct {
	name      string
	cleanup   CleanupFunc
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
}

func NewCleanupWorker(name string, cleanup CleanupFunc, retention, interval time.Duration, log *logger.Logger) *CleanupWorker {
	return &CleanupWorker{
		name:      name,
		cleanup:   cleanup,
		retention: retention,
		interval:  interval,
		logger:    log.With(name + "-cleanup"),
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce deletes everything older than the retention period. Errors are logged.
func (w *CleanupWorker) RunOnce(ctx context.Context) int64 {
	cutoff := time.Now().Add(-w.retention)
	rows, err := w.cleanup(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "cleanup failed", "cutoff", cutoff)
		return 0
	}
	if rows > 0 {
		w.logger.Info("cleaned up old records", "rows", rows, "cutoff", cutoff)
	}
	return rows
}
