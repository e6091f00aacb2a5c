// Package models contains the domain types shared by the draftkeeper client
// and server.
package models

import (
	"time"

	"github.com/google/uuid"
)

type DraftType string

const (
	DraftTypeAssessment      DraftType = "assessment"
	DraftTypeServiceContract DraftType = "serviceContract"
)

// ParseDraftType accepts the canonical names plus the short "contract".
func ParseDraftType(s string) (DraftType, bool) {
	switch s {
	case string(DraftTypeAssessment):
		return DraftTypeAssessment, true
	case string(DraftTypeServiceContract), "contract":
		return DraftTypeServiceContract, true
	}
	return "", false
}

type DraftStatus string

const (
	DraftStatusDraft     DraftStatus = "draft"
	DraftStatusSubmitted DraftStatus = "submitted"
)

// Draft is the unit of local persistence and remote synchronization.
//
// Data is owned by the form layer; the core only migrates it on load.
// Version is the remote version this copy was last based on.
type Draft struct {
	ID                 string      `json:"id"`
	ClientName         string      `json:"clientName"`
	Type               DraftType   `json:"type"`
	Status             DraftStatus `json:"status"`
	CurrentStep        int         `json:"currentStep"`
	Data               Record      `json:"data"`
	LastModified       time.Time   `json:"lastModified"`
	LinkedAssessmentID string      `json:"linkedAssessmentId,omitempty"`
	Version            int64       `json:"version"`
	SchemaVersion      int         `json:"schemaVersion"`
}

// Clone returns a copy that shares no mutable state with d.
func (d Draft) Clone() Draft {
	c := d
	c.Data = CloneRecord(d.Data)
	return c
}

// Touch advances LastModified to now, or by one millisecond past the
// previous value when the clock did not move forward.
func (d *Draft) Touch(now time.Time) {
	next := now.UTC().Truncate(time.Millisecond)
	if !next.After(d.LastModified) {
		next = d.LastModified.Add(time.Millisecond)
	}
	d.LastModified = next
}

// NewDraftID returns a time-ordered identifier (UUIDv7).
func NewDraftID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
