package scheduler

import (
	"context"
	"time"
)

func (s *Scheduler) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	recoveryTicker := time.NewTicker(s.interval)
	defer recoveryTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-recoveryTicker.C:
			s.Sweep(ctx)
		}
	}
}

// MaybeSweep sweeps when at least one interval has passed since the last
// sweep. A non-positive interval disables sweeping.
func (s *Scheduler) MaybeSweep(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	if !s.lastSweep.IsZero() && s.now().Sub(s.lastSweep) < s.interval {
		return
	}

	s.Sweep(ctx)
}

// Sweep recovers expired leases once. Failures are logged; the next sweep
// retries.
func (s *Scheduler) Sweep(ctx context.Context) int {
	s.lastSweep = s.now()

	recovered, err := s.recoverer.RecoverExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error("lease recovery failed", "err", err)
		}
		return 0
	}

	if len(recovered) > 0 {
		s.logger.Info("lease recovery finished", "recovered", len(recovered))
	}

	return len(recovered)
}
