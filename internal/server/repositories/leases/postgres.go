package leases

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/dbx"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

// PostgresRepository keeps leases in draft_leases. Acquire is a single
// conditional upsert, so two racing callers cannot both be granted.
type PostgresRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

func (r *PostgresRepository) Acquire(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (*models.Lease, bool, error) {
	query := `
		INSERT INTO draft_leases (draft_id, user_id, device_id, acquired_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (draft_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			device_id = EXCLUDED.device_id,
			acquired_at = CASE
				WHEN draft_leases.expires_at > EXCLUDED.acquired_at THEN draft_leases.acquired_at
				ELSE EXCLUDED.acquired_at
			END,
			expires_at = EXCLUDED.expires_at
			WHERE draft_leases.expires_at <= EXCLUDED.acquired_at
				OR (draft_leases.user_id = EXCLUDED.user_id AND draft_leases.device_id = EXCLUDED.device_id)
		RETURNING draft_id, user_id, device_id, acquired_at, expires_at
	`
	now := r.now().UTC()

	l, err := scanLease(r.db.QueryRowContext(ctx, query, draftID, userID, deviceID, now, now.Add(ttl)))
	if err == nil {
		return l, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	// the holder may release between the upsert and this read
	holder, err := r.Get(ctx, draftID)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}
	return holder, false, nil
}

func (r *PostgresRepository) Renew(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (bool, error) {
	query := `
		UPDATE draft_leases SET expires_at = $4
		WHERE draft_id = $1 AND user_id = $2 AND device_id = $3
	`
	res, err := r.db.ExecContext(ctx, query, draftID, userID, deviceID, r.now().UTC().Add(ttl))
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected error: %w", err)
	}
	return n == 1, nil
}

func (r *PostgresRepository) Release(ctx context.Context, draftID, userID, deviceID string) error {
	query := `DELETE FROM draft_leases WHERE draft_id = $1 AND user_id = $2 AND device_id = $3`
	if _, err := r.db.ExecContext(ctx, query, draftID, userID, deviceID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Get(ctx context.Context, draftID string) (*models.Lease, error) {
	query := `
		SELECT draft_id, user_id, device_id, acquired_at, expires_at FROM draft_leases
		WHERE draft_id = $1 AND expires_at > $2
	`
	l, err := scanLease(r.db.QueryRowContext(ctx, query, draftID, r.now().UTC()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return l, nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM draft_leases WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}

func scanLease(row *sql.Row) (*models.Lease, error) {
	var l models.Lease
	if err := row.Scan(&l.DraftID, &l.UserID, &l.DeviceID, &l.AcquiredAt, &l.ExpiresAt); err != nil {
		return nil, err
	}
	return &l, nil
}
