// Package sweeper runs the periodic cleanup of expired sessions.
package sweeper

import (
	"context"
	"time"

	"github.com/taskkeeper/taskkeeper/internal/logging"
)

// Store is the part of the session store the sweeper needs.
type Store interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper deletes expired session rows on a fixed interval. A failed pass is
// logged and retried on the next tick; expired sessions are already rejected
// at lookup, so the sweep only reclaims storage.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   logging.Logger
}

func New(store Store, interval time.Duration, logger logging.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps once immediately and then on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info(ctx, "session sweeper started", "interval", s.interval.String())

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "session sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.store.SweepExpired(ctx)
	if err != nil {
		s.logger.Error(ctx, "error sweeping expired sessions", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info(ctx, "expired sessions removed", "count", count)
	}
}
