// Package auditlog persists client-reported audit events.
package auditlog

import (
	"context"

	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

type Repository interface {
	Insert(ctx context.Context, e *models.AuditEvent) error
}
