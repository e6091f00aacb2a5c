package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/server/archive"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/drafts"
)

// DraftService is the remote draft store: compare-and-swap pushes, forced
// overwrites and fetches.
type DraftService struct {
	run      drafts.Runner
	archiver archive.Archiver
	metrics  *metrics.Metrics
	logger   logging.Logger
}

// NewDraftService builds the service; archiver may be nil to disable archiving.
func NewDraftService(run drafts.Runner, archiver archive.Archiver, m *metrics.Metrics, l logging.Logger) *DraftService {
	return &DraftService{run: run, archiver: archiver, metrics: m, logger: l.With("module", "draft_service")}
}

// Push stores d when expectedVersion matches the stored version (0 meaning
// the draft does not exist yet). A mismatch is reported in the result, not
// as an error. With force the version check is skipped and the replaced copy
// is archived.
func (s *DraftService) Push(ctx context.Context, caller auth.Identity, d im.Draft, expectedVersion int64, force bool) (im.PushResult, error) {
	if d.ID == "" {
		return im.PushResult{}, common.ErrInvalidArgument
	}

	var (
		result      im.PushResult
		overwritten *models.StoredDraft
	)

	err := s.run(ctx, func(ctx context.Context, repo drafts.Repository) error {
		sd := &models.StoredDraft{Draft: d.Clone(), UpdatedBy: caller.UserID, DeviceID: caller.DeviceID}
		result, overwritten = im.PushResult{}, nil

		if force {
			prev, err := repo.Get(ctx, d.ID)
			if err != nil && !errors.Is(err, common.ErrorNotFound) {
				return err
			}
			if err := repo.Overwrite(ctx, sd); err != nil {
				return err
			}
			overwritten = prev
			result = accepted(sd)
			return nil
		}

		var err error
		if expectedVersion == 0 {
			err = repo.Create(ctx, sd)
		} else {
			err = repo.Update(ctx, sd, expectedVersion)
		}
		if err == nil {
			result = accepted(sd)
			return nil
		}
		if !errors.Is(err, common.ErrVersionConflict) {
			return err
		}

		current, err := repo.Get(ctx, d.ID)
		if errors.Is(err, common.ErrorNotFound) {
			// stored copy is gone; this push recreates it
			if err := repo.Create(ctx, sd); err != nil {
				return err
			}
			result = accepted(sd)
			return nil
		}
		if err != nil {
			return err
		}

		remote := current.Draft.Clone()
		result = im.PushResult{
			Conflict:        true,
			Remote:          &remote,
			RemoteVersion:   current.Draft.Version,
			RemoteUpdatedAt: current.UpdatedAt,
		}
		return nil
	})
	if err != nil {
		s.logger.Error(ctx, "push failed", "draft_id", d.ID, "error", err)
		return im.PushResult{}, fmt.Errorf("push draft: %w", err)
	}

	switch {
	case result.Conflict:
		s.metrics.Pushes.WithLabelValues(metrics.PushConflict).Inc()
		s.logger.Info(ctx, "push conflict", "draft_id", d.ID, "expected", expectedVersion, "remote", result.RemoteVersion)
	case force:
		s.metrics.Pushes.WithLabelValues(metrics.PushForced).Inc()
		s.logger.Info(ctx, "forced push", "draft_id", d.ID, "version", result.NewVersion, "user_id", caller.UserID)
		s.archive(ctx, overwritten)
	default:
		s.metrics.Pushes.WithLabelValues(metrics.PushAccepted).Inc()
	}

	return result, nil
}

// archive copies a draft replaced by a forced push. Failures are logged and
// counted; the push itself has already succeeded.
func (s *DraftService) archive(ctx context.Context, d *models.StoredDraft) {
	if d == nil || s.archiver == nil {
		return
	}
	key, err := s.archiver.Archive(ctx, d)
	if err != nil {
		s.metrics.Archived.WithLabelValues("error").Inc()
		s.logger.Warn(ctx, "archive failed", "draft_id", d.Draft.ID, "version", d.Draft.Version, "error", err)
		return
	}
	s.metrics.Archived.WithLabelValues("ok").Inc()
	s.logger.Info(ctx, "archived overwritten draft", "draft_id", d.Draft.ID, "key", key)
}

// Fetch returns the stored draft or common.ErrorNotFound.
func (s *DraftService) Fetch(ctx context.Context, draftID string) (*models.StoredDraft, error) {
	if draftID == "" {
		return nil, common.ErrInvalidArgument
	}
	var out *models.StoredDraft
	err := s.run(ctx, func(ctx context.Context, repo drafts.Repository) error {
		d, err := repo.Get(ctx, draftID)
		out = d
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func accepted(sd *models.StoredDraft) im.PushResult {
	return im.PushResult{OK: true, NewVersion: sd.Draft.Version, UpdatedAt: sd.UpdatedAt}
}
