package license

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops keys that expired more than Retention ago.
type Sweeper struct {
	Registry  *Registry
	Now       Clock
	Retention time.Duration
	Logger    *slog.Logger
}

// SweepOnce performs a single pass. A zero Retention disables sweeping.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	if s.Retention <= 0 {
		return 0, nil
	}
	n, err := s.Registry.Sweep(ctx, s.Now().Add(-s.Retention))
	if err != nil {
		return 0, err
	}
	if n > 0 && s.Logger != nil {
		s.Logger.Info("expired keys swept", slog.Int("count", n))
	}
	return n, nil
}

// Start runs SweepOnce at startup and then on every tick until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	if s.Retention <= 0 || interval <= 0 {
		return
	}
	go func() {
		if _, err := s.SweepOnce(ctx); err != nil {
			s.logError(err)
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logError(err)
				}
			}
		}
	}()
}

func (s *Sweeper) logError(err error) {
	if s.Logger != nil {
		s.Logger.Error("key sweep failed", slog.String("error", err.Error()))
	}
}
