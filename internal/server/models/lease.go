package models

import (
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

type Lease struct {
	DraftID    string
	UserID     string
	DeviceID   string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// HeldBy reports whether the lease belongs to the given user on the given device.
func (l *Lease) HeldBy(userID, deviceID string) bool {
	return l.UserID == userID && l.DeviceID == deviceID
}

func (l *Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Info is the client-facing view of the lease.
func (l *Lease) Info() *models.LeaseInfo {
	return &models.LeaseInfo{
		LockedBy:     l.UserID,
		LockedAt:     l.AcquiredAt,
		LockDeviceID: l.DeviceID,
	}
}
