package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/dbx"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id string) (*models.StoredDraft, error) {
	query := `
		SELECT id, client_name, type, status, current_step, data, last_modified,
			linked_assessment_id, schema_version, version, updated_at, updated_by, device_id
		FROM drafts
		WHERE id = $1
	`

	var (
		d    models.StoredDraft
		data []byte
	)
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.Draft.ID, &d.Draft.ClientName, &d.Draft.Type, &d.Draft.Status, &d.Draft.CurrentStep,
		&data, &d.Draft.LastModified, &d.Draft.LinkedAssessmentID, &d.Draft.SchemaVersion,
		&d.Draft.Version, &d.UpdatedAt, &d.UpdatedBy, &d.DeviceID,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if err := json.Unmarshal(data, &d.Draft.Data); err != nil {
		return nil, fmt.Errorf("decode draft data: %w", err)
	}

	return &d, nil
}

func (r *PostgresRepository) Create(ctx context.Context, d *models.StoredDraft) error {
	query := `
		INSERT INTO drafts (id, client_name, type, status, current_step, data, last_modified,
			linked_assessment_id, schema_version, updated_by, device_id, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, now())
		ON CONFLICT (id) DO NOTHING
		RETURNING version, updated_at
	`
	args, err := draftArgs(d)
	if err != nil {
		return err
	}
	return r.write(ctx, d, query, args...)
}

func (r *PostgresRepository) Update(ctx context.Context, d *models.StoredDraft, expectedVersion int64) error {
	query := `
		UPDATE drafts SET
			client_name = $2,
			type = $3,
			status = $4,
			current_step = $5,
			data = $6,
			last_modified = $7,
			linked_assessment_id = $8,
			schema_version = $9,
			updated_by = $10,
			device_id = $11,
			version = version + 1,
			updated_at = now()
		WHERE id = $1 AND version = $12
		RETURNING version, updated_at
	`
	args, err := draftArgs(d)
	if err != nil {
		return err
	}
	return r.write(ctx, d, query, append(args, expectedVersion)...)
}

func (r *PostgresRepository) Overwrite(ctx context.Context, d *models.StoredDraft) error {
	query := `
		INSERT INTO drafts (id, client_name, type, status, current_step, data, last_modified,
			linked_assessment_id, schema_version, updated_by, device_id, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, 1, now())
		ON CONFLICT (id)
		DO UPDATE SET
			client_name = EXCLUDED.client_name,
			type = EXCLUDED.type,
			status = EXCLUDED.status,
			current_step = EXCLUDED.current_step,
			data = EXCLUDED.data,
			last_modified = EXCLUDED.last_modified,
			linked_assessment_id = EXCLUDED.linked_assessment_id,
			schema_version = EXCLUDED.schema_version,
			updated_by = EXCLUDED.updated_by,
			device_id = EXCLUDED.device_id,
			version = drafts.version + 1,
			updated_at = now()
		RETURNING version, updated_at
	`
	args, err := draftArgs(d)
	if err != nil {
		return err
	}
	return r.write(ctx, d, query, args...)
}

// write runs a RETURNING statement; no row back means the version check failed.
func (r *PostgresRepository) write(ctx context.Context, d *models.StoredDraft, query string, args ...any) error {
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&d.Draft.Version, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.ErrVersionConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func draftArgs(d *models.StoredDraft) ([]any, error) {
	data := d.Draft.Data
	if data == nil {
		data = im.Record{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode draft data: %w", err)
	}
	return []any{
		d.Draft.ID, d.Draft.ClientName, string(d.Draft.Type), string(d.Draft.Status), d.Draft.CurrentStep,
		raw, d.Draft.LastModified, d.Draft.LinkedAssessmentID, d.Draft.SchemaVersion,
		d.UpdatedBy, d.DeviceID,
	}, nil
}
