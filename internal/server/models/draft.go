// Package models holds the server-side records persisted by the repositories.
package models

import (
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

// StoredDraft is the authoritative remote copy of a draft. Draft.Version is
// the server version and is only ever bumped by a repository.
type StoredDraft struct {
	Draft     models.Draft
	UpdatedAt time.Time
	UpdatedBy string
	DeviceID  string
}
