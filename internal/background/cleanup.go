package background

import (
	"context"
	"log/slog"
	"time"
)

// AttemptCleaner removes aged-out rows from the attempt log.
type AttemptCleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff int64) (int64, error)
}

// SessionCleaner removes persistent sessions that have not validated
// recently.
type SessionCleaner interface {
	DeleteStale(ctx context.Context, cutoff int64) (int64, error)
}

// CleanupManager periodically prunes the attempt log and stale sessions.
// Throttling never depends on this running: counts use trailing windows, so
// retention is purely about table size.
type CleanupManager struct {
	attempts         AttemptCleaner
	sessions         SessionCleaner
	logger           *slog.Logger
	interval         time.Duration
	attemptRetention time.Duration
	sessionRetention time.Duration
	stopCh           chan struct{}
}

func NewCleanupManager(
	attempts AttemptCleaner,
	sessions SessionCleaner,
	logger *slog.Logger,
	interval, attemptRetention, sessionRetention time.Duration,
) *CleanupManager {
	return &CleanupManager{
		attempts:         attempts,
		sessions:         sessions,
		logger:           logger,
		interval:         interval,
		attemptRetention: attemptRetention,
		sessionRetention: sessionRetention,
		stopCh:           make(chan struct{}),
	}
}

// Start begins the periodic cleanup task. Blocks until Stop or context
// cancellation.
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	cm.runCleanup(ctx)

	for {
		select {
		case <-ticker.C:
			cm.runCleanup(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	attempts, err := cm.attempts.DeleteOlderThan(cleanupCtx, now.Add(-cm.attemptRetention).Unix())
	if err != nil {
		cm.logger.Error("failed to prune login attempts", slog.Any("error", err))
	} else if attempts > 0 {
		cm.logger.Info("pruned login attempts", slog.Int64("rows_deleted", attempts))
	}

	sessions, err := cm.sessions.DeleteStale(cleanupCtx, now.Add(-cm.sessionRetention).Unix())
	if err != nil {
		cm.logger.Error("failed to prune stale sessions", slog.Any("error", err))
	} else if sessions > 0 {
		cm.logger.Info("pruned stale sessions", slog.Int64("rows_deleted", sessions))
	}
}

// Stop signals the cleanup manager to stop.
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}
