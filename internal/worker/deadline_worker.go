package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// DeadlineSweeper applies every negotiation and evidence deadline that has passed.
type DeadlineSweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// StartDeadlineWorker sweeps on every tick until ctx is cancelled. A
// non-positive interval disables the worker; reads still expire lazily.
func StartDeadlineWorker(ctx context.Context, sweeper DeadlineSweeper, interval time.Duration, logger *zap.Logger) error {
	if sweeper == nil || interval <= 0 {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("deadline worker started", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("deadline worker stopped")
			return nil
		case <-ticker.C:
			moved, err := sweeper.SweepExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("deadline sweep failed", zap.Error(err))
				continue
			}
			if moved > 0 {
				logger.Info("deadlines applied", zap.Int("disputes", moved))
			}
		}
	}
}
