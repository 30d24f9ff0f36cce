package service

import (
	"context"
	"sync/atomic"
	"time"

	"seatgrid/pkg/config"
)

// Sweeper runs the expiry sweep on a fixed interval. Ticks fire on the
// wall clock regardless of how long a sweep takes; a tick that arrives
// while the previous sweep is still running is skipped, never queued.
type Sweeper struct {
	service ReservationService
	cfg     *config.Config
	running atomic.Bool
}

func NewSweeper(service ReservationService, cfg *config.Config) *Sweeper {
	return &Sweeper{
		service: service,
		cfg:     cfg,
	}
}

// Run blocks until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	s.cfg.Log.Info("Expiry sweeper started", "interval", s.cfg.SweepInterval)

	for {
		select {
		case <-ctx.Done():
			s.cfg.Log.Info("Expiry sweeper stopped")
			return
		case <-ticker.C:
			go s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.cfg.Log.Warn("Skipping sweep tick, previous sweep still running")
		return
	}
	defer s.running.Store(false)

	if _, err := s.service.ExpireSweep(ctx); err != nil {
		s.cfg.Log.Error("Expiry sweep failed", "error", err)
	}
}
