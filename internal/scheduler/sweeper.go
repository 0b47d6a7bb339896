package scheduler

import (
	"context"
	"time"

	"leadcall_backend/platform/logger"
)

// StuckCallSweeper is the reconciliation slice the sweeper loop needs.
type StuckCallSweeper interface {
	Sweep(ctx context.Context) error
}

// Sweeper periodically resolves calls whose webhook never arrived.
type Sweeper struct {
	svc      StuckCallSweeper
	interval time.Duration
	log      *logger.Logger
}

func NewSweeper(svc StuckCallSweeper, interval time.Duration, log *logger.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{svc: svc, interval: interval, log: log}
}

func (s *Sweeper) Run(ctx context.Context) {
	if s == nil || s.svc == nil {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.log.Info("reconciliation sweeper started", "interval", s.interval.String())

	for {
		select {
		case <-ctx.Done():
			s.log.Info("reconciliation sweeper stopped")
			return
		case <-ticker.C:
		}

		if err := s.svc.Sweep(ctx); err != nil {
			s.log.Warn("reconciliation sweep failed", "error", err.Error())
		}
	}
}
