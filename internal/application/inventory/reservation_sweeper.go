package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ReservationSweeper periodically clears spare piece reservations whose
// holders never came back. Expired holds are already ignored by readers;
// the sweep keeps the columns from accumulating stale tokens.
type ReservationSweeper struct {
	scope    TransactionScope
	logger   *zap.Logger
	timeout  time.Duration
	interval time.Duration
}

// NewReservationSweeper creates a sweeper with the given hold timeout and
// sweep interval
func NewReservationSweeper(scope TransactionScope, logger *zap.Logger, timeout, interval time.Duration) *ReservationSweeper {
	if timeout <= 0 {
		timeout = DefaultReservationTimeout
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &ReservationSweeper{
		scope:    scope,
		logger:   logger,
		timeout:  timeout,
		interval: interval,
	}
}

// Run sweeps on the configured interval until the context is cancelled
func (s *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.logger.Warn("reservation sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce releases all reservations older than the timeout
func (s *ReservationSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().Add(-s.timeout)
	return s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		released, err := repos.SparePieceRepo().ReleaseStaleReservations(ctx, cutoff)
		if err != nil {
			return err
		}
		if released > 0 {
			s.logger.Info("released stale spare reservations", zap.Int64("count", released))
		}
		return nil
	})
}
