package background

import (
	"context"
	"log/slog"
	"time"
)

// SessionSweeper defines the sweep operation the manager drives
type SessionSweeper interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// SweepManager periodically retires sessions whose idle window has lapsed.
// Expiry is also enforced lazily on each request; the sweep just keeps the
// ledger from accumulating dead rows.
type SweepManager struct {
	sessions SessionSweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewSweepManager creates a new sweep manager
func NewSweepManager(sessions SessionSweeper, logger *slog.Logger, interval time.Duration) *SweepManager {
	return &SweepManager{
		sessions: sessions,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (sm *SweepManager) Start(ctx context.Context) {
	ticker := time.NewTicker(sm.interval)
	defer ticker.Stop()

	// Run immediately on startup
	sm.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			sm.runSweep(ctx)
		case <-sm.stopCh:
			sm.logger.Info("session sweeper stopped")
			return
		case <-ctx.Done():
			sm.logger.Info("session sweeper context cancelled")
			return
		}
	}
}

func (sm *SweepManager) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	retired, err := sm.sessions.SweepExpired(sweepCtx)
	if err != nil {
		sm.logger.Error("failed to sweep expired sessions", slog.Any("error", err))
		return
	}

	if retired > 0 {
		sm.logger.Info("expired session sweep completed", slog.Int64("sessions_retired", retired))
	}
}

// Stop signals the sweep manager to stop
func (sm *SweepManager) Stop() {
	close(sm.stopCh)
}
