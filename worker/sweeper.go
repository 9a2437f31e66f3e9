// Package worker runs background maintenance for the link registry.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"go-link-registry/storage"
)

// Sweeper periodically removes expired records from a store.
// Expired records are already invisible to reads; sweeping only reclaims space.
type Sweeper struct {
	store    storage.Evictor
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger
}

// NewSweeper returns a sweeper that evicts every interval.
func NewSweeper(store storage.Evictor, interval time.Duration, logger *zap.Logger) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		store:    store,
		interval: interval,
		timeout:  interval,
		logger:   logger,
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("Starting expired link sweeper", zap.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Expired link sweeper stopped")
			return
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
			if _, err := s.SweepOnce(sweepCtx); err != nil {
				s.logger.Error("Cannot evict expired links", zap.Error(err))
			}
			cancel()
		}
	}
}

// SweepOnce performs a single eviction pass and returns the number of removed records.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	n, err := s.store.EvictExpired(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Debug("Sweep finished", zap.Int("evicted", n))
	return n, nil
}
