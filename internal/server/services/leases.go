package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/leases"
)

// LeaseService is the authority for edit leases. At most one (user, device)
// holds an unexpired lease per draft.
type LeaseService struct {
	repo    leases.Repository
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewLeaseService(repo leases.Repository, ttl time.Duration, m *metrics.Metrics, l logging.Logger) *LeaseService {
	return &LeaseService{repo: repo, ttl: ttl, metrics: m, logger: l.With("module", "lease_service")}
}

// Acquire returns granted=false together with the current holder when
// someone else holds the lease.
func (s *LeaseService) Acquire(ctx context.Context, caller auth.Identity, draftID string) (bool, *im.LeaseInfo, error) {
	if draftID == "" {
		return false, nil, common.ErrInvalidArgument
	}

	l, granted, err := s.repo.Acquire(ctx, draftID, caller.UserID, caller.DeviceID, s.ttl)
	if err != nil {
		s.logger.Error(ctx, "acquire failed", "draft_id", draftID, "error", err)
		return false, nil, err
	}
	s.metrics.LeaseResult("acquire", granted)

	if l == nil {
		return granted, nil, nil
	}
	if !granted {
		s.logger.Info(ctx, "lease held by another device", "draft_id", draftID,
			"holder", l.UserID, "holder_device", l.DeviceID, "user_id", caller.UserID)
	}
	return granted, l.Info(), nil
}

func (s *LeaseService) Renew(ctx context.Context, caller auth.Identity, draftID string) (bool, error) {
	if draftID == "" {
		return false, common.ErrInvalidArgument
	}
	ok, err := s.repo.Renew(ctx, draftID, caller.UserID, caller.DeviceID, s.ttl)
	if err != nil {
		s.logger.Error(ctx, "renew failed", "draft_id", draftID, "error", err)
		return false, err
	}
	s.metrics.LeaseResult("renew", ok)
	return ok, nil
}

func (s *LeaseService) Release(ctx context.Context, caller auth.Identity, draftID string) error {
	if draftID == "" {
		return common.ErrInvalidArgument
	}
	if err := s.repo.Release(ctx, draftID, caller.UserID, caller.DeviceID); err != nil {
		s.logger.Error(ctx, "release failed", "draft_id", draftID, "error", err)
		return err
	}
	s.metrics.LeaseResult("release", true)
	return nil
}

// Info returns the live lease, or nil when the draft is free.
func (s *LeaseService) Info(ctx context.Context, draftID string) (*im.LeaseInfo, error) {
	if draftID == "" {
		return nil, common.ErrInvalidArgument
	}
	l, err := s.repo.Get(ctx, draftID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return l.Info(), nil
}

// Sweep purges expired leases.
func (s *LeaseService) Sweep(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	s.metrics.SweptLeases.Add(float64(n))
	return n, nil
}
