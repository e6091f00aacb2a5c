// Package leases stores the server-side edit leases. A lease belongs to a
// (user, device) pair and is free again once its expiry passes.
package leases

import (
	"context"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

type Repository interface {
	// Acquire grants the lease to the caller when it is free, expired or
	// already theirs, extending it by ttl. Otherwise it returns the current
	// holder with granted=false.
	Acquire(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (lease *models.Lease, granted bool, err error)
	// Renew extends a lease the caller still holds.
	Renew(ctx context.Context, draftID, userID, deviceID string, ttl time.Duration) (bool, error)
	// Release drops the lease if the caller holds it; otherwise it is a no-op.
	Release(ctx context.Context, draftID, userID, deviceID string) error
	// Get returns the live lease or common.ErrorNotFound.
	Get(ctx context.Context, draftID string) (*models.Lease, error)
	// DeleteExpired purges leases that expired before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}
