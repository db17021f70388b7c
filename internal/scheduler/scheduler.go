// Package scheduler periodically returns jobs with expired leases to the
// queue. Long-running processes call Run; idle workers call MaybeSweep
// between polls.
package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type Recoverer interface {
	RecoverExpired(ctx context.Context) ([]string, error)
}

// Scheduler is not safe for concurrent use.
type Scheduler struct {
	recoverer Recoverer
	interval  time.Duration
	logger    *slog.Logger
	now       func() time.Time
	lastSweep time.Time
}

func New(
	recoverer Recoverer,
	interval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		recoverer: recoverer,
		interval:  interval,
		logger:    logger,
		now:       time.Now,
	}
}
