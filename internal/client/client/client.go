package client

import (
	"context"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

type Client interface {
	Close() error
	Ping(ctx context.Context) error

	AcquireLease(ctx context.Context, draftID string) (bool, *models.LeaseInfo, error)
	RenewLease(ctx context.Context, draftID string) (bool, error)
	ReleaseLease(ctx context.Context, draftID string) error
	GetLeaseInfo(ctx context.Context, draftID string) (*models.LeaseInfo, error)

	PushDraft(ctx context.Context, d models.Draft, expectedVersion int64, force bool) (models.PushResult, error)
	FetchDraft(ctx context.Context, draftID string) (*models.Draft, error)

	LogEvent(ctx context.Context, e audit.Event) error
}
