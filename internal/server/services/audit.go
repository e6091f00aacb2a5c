package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/repositories/auditlog"
)

type AuditService struct {
	repo    auditlog.Repository
	metrics *metrics.Metrics
	logger  logging.Logger
}

func NewAuditService(repo auditlog.Repository, m *metrics.Metrics, l logging.Logger) *AuditService {
	return &AuditService{repo: repo, metrics: m, logger: l.With("module", "audit_service")}
}

// Record stores an event reported by caller. Missing severity defaults to
// info and a missing timestamp to the receive time.
func (s *AuditService) Record(ctx context.Context, caller auth.Identity, e audit.Event) error {
	if e.Kind == "" {
		return common.ErrInvalidArgument
	}
	if e.Severity == "" {
		e.Severity = audit.SeverityInfo
	}
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}

	rec := &models.AuditEvent{
		UserID:     caller.UserID,
		DeviceID:   caller.DeviceID,
		Kind:       string(e.Kind),
		Subject:    e.Subject,
		Message:    e.Message,
		Severity:   string(e.Severity),
		OccurredAt: e.OccurredAt,
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		s.logger.Error(ctx, "audit insert failed", "kind", rec.Kind, "error", err)
		return err
	}
	s.metrics.AuditEvents.WithLabelValues(rec.Kind, rec.Severity).Inc()
	return nil
}
