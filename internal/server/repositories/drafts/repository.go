// Package drafts stores the authoritative remote copies of drafts.
//
// Every write assigns the next version itself: Create starts at 1, Update
// and Overwrite bump the stored version by one. The caller's draft is
// updated in place with the assigned Version and UpdatedAt.
package drafts

import (
	"context"

	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

type Repository interface {
	// Get returns common.ErrorNotFound when no draft has the id.
	Get(ctx context.Context, id string) (*models.StoredDraft, error)
	// Create fails with common.ErrVersionConflict when the id is taken.
	Create(ctx context.Context, d *models.StoredDraft) error
	// Update fails with common.ErrVersionConflict unless the stored version
	// equals expectedVersion.
	Update(ctx context.Context, d *models.StoredDraft, expectedVersion int64) error
	// Overwrite writes d regardless of the stored version.
	Overwrite(ctx context.Context, d *models.StoredDraft) error
}

// Runner executes fn against a Repository. Backends whose single calls are
// not enough to keep a read and a following write consistent run fn inside
// a transaction.
type Runner func(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error

// Direct runs fn against repo as is.
func Direct(repo Repository) Runner {
	return func(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
		return fn(ctx, repo)
	}
}
