package models

import "time"

// PushResult is the outcome of a compare-and-swap push.
//
// Exactly one of OK and Conflict is set. On conflict Remote carries the
// stored copy (nil when the remote record no longer exists).
type PushResult struct {
	OK         bool
	NewVersion int64
	UpdatedAt  time.Time

	Conflict        bool
	Remote          *Draft
	RemoteVersion   int64
	RemoteUpdatedAt time.Time
}
