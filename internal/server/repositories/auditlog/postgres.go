package auditlog

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/draftkeeper/internal/dbx"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, e *models.AuditEvent) error {
	query := `
		INSERT INTO audit_events (user_id, device_id, kind, subject, message, severity, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING received_at
	`
	err := r.db.QueryRowContext(ctx, query,
		e.UserID, e.DeviceID, e.Kind, e.Subject, e.Message, e.Severity, e.OccurredAt).Scan(&e.ReceivedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
