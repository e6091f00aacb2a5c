package models

import "time"

// LeaseInfo describes who currently holds the edit lease on a draft.
type LeaseInfo struct {
	LockedBy     string    `json:"lockedBy"`
	LockedAt     time.Time `json:"lockedAt"`
	LockDeviceID string    `json:"lockDeviceId"`
}
