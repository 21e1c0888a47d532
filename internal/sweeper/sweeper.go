// Package sweeper periodically reaps the command queue: commands that
// finished (completed or failed) past their retention window, and
// commands stuck pending after exhausting their retries.
package sweeper

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/daniel-mekuria/zk-server/internal/config"
)

type Sweeper struct {
	db     *sql.DB
	cfg    config.QueueConfig
	logger *zap.Logger
}

func New(db *sql.DB, cfg config.QueueConfig, logger *zap.Logger) *Sweeper {
	return &Sweeper{db: db, cfg: cfg, logger: logger}
}

// Run blocks, sweeping on cfg.SweepInterval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	if err := s.sweepOnce(ctx); err != nil {
		s.logger.Error("initial sweep failed", zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				s.logger.Error("sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	finished, err := s.deleteFinished(ctx)
	if err != nil {
		return err
	}
	stalled, err := s.deleteStalledPending(ctx)
	if err != nil {
		return err
	}
	if finished > 0 || stalled > 0 {
		s.logger.Info("swept command queue",
			zap.Int64("finished_deleted", finished),
			zap.Int64("stalled_deleted", stalled),
		)
	}
	return nil
}

func (s *Sweeper) deleteFinished(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.CompletedRetention)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM commands
		WHERE state IN ('completed', 'failed')
		  AND COALESCE(completed_at, created_at) < $1
	`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Sweeper) deleteStalledPending(ctx context.Context) (int64, error) {
	cutoff := time.Now().Add(-s.cfg.FailedPendingRetention)
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM commands
		WHERE state = 'pending'
		  AND retry_count >= $1
		  AND created_at < $2
	`, s.cfg.RetryLimit, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
