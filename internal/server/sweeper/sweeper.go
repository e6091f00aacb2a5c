// Package sweeper purges expired edit leases on a cron schedule.
package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
)

// Purger deletes leases that expired before now.
type Purger interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	schedule string
	purger   Purger
	logger   logging.Logger

	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

// New validates schedule (standard five-field cron) and builds a Sweeper.
func New(schedule string, p Purger, l logging.Logger) (*Sweeper, error) {
	if !gronx.IsValid(schedule) {
		return nil, fmt.Errorf("invalid sweep schedule: %q", schedule)
	}
	return &Sweeper{
		schedule: schedule,
		purger:   p,
		logger:   l.With("module", "sweeper"),
		now:      time.Now,
		after:    time.After,
	}, nil
}

// Run sleeps until each scheduled tick and sweeps, until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info(ctx, "Starting lease sweeper", "schedule", s.schedule)

	for {
		now := s.now().UTC()
		next, err := gronx.NextTickAfter(s.schedule, now, false)
		wait := next.Sub(now)
		if err != nil {
			s.logger.Error(ctx, "next tick failed", "error", err)
			wait = 30 * time.Second
		}

		select {
		case <-ctx.Done():
			s.logger.Info(ctx, "Stopping lease sweeper...")
			return
		case <-s.after(wait):
		}

		if err == nil {
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single purge and logs the outcome.
func (s *Sweeper) SweepOnce(ctx context.Context) {
	n, err := s.purger.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
		return
	}
	if n > 0 {
		s.logger.Info(ctx, "expired leases removed", "count", n)
	}
}
