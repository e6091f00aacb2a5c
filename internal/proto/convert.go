package proto

import (
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/models"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Timestamp converts t to its wire form; the zero time maps to nil.
func Timestamp(t time.Time) *timestamppb.Timestamp {
	if t.IsZero() {
		return nil
	}
	return timestamppb.New(t)
}

// Time is the inverse of Timestamp.
func Time(ts *timestamppb.Timestamp) time.Time {
	if ts == nil {
		return time.Time{}
	}
	return ts.AsTime()
}

func DraftToProto(d *models.Draft) *Draft {
	if d == nil {
		return nil
	}
	return &Draft{
		Id:                 d.ID,
		ClientName:         d.ClientName,
		Type:               string(d.Type),
		Status:             string(d.Status),
		CurrentStep:        int32(d.CurrentStep),
		Data:               models.CloneRecord(d.Data),
		LastModified:       Timestamp(d.LastModified),
		LinkedAssessmentId: d.LinkedAssessmentID,
		Version:            d.Version,
		SchemaVersion:      int32(d.SchemaVersion),
	}
}

func DraftFromProto(p *Draft) *models.Draft {
	if p == nil {
		return nil
	}
	return &models.Draft{
		ID:                 p.Id,
		ClientName:         p.ClientName,
		Type:               models.DraftType(p.Type),
		Status:             models.DraftStatus(p.Status),
		CurrentStep:        int(p.CurrentStep),
		Data:               models.CloneRecord(p.Data),
		LastModified:       Time(p.LastModified),
		LinkedAssessmentID: p.LinkedAssessmentId,
		Version:            p.Version,
		SchemaVersion:      int(p.SchemaVersion),
	}
}

func LeaseToProto(l *models.LeaseInfo) *Lease {
	if l == nil {
		return nil
	}
	return &Lease{
		LockedBy:     l.LockedBy,
		LockDeviceId: l.LockDeviceID,
		LockedAt:     Timestamp(l.LockedAt),
	}
}

func LeaseFromProto(p *Lease) *models.LeaseInfo {
	if p == nil {
		return nil
	}
	return &models.LeaseInfo{
		LockedBy:     p.LockedBy,
		LockDeviceID: p.LockDeviceId,
		LockedAt:     Time(p.LockedAt),
	}
}

func PushResultFromProto(p *PushDraftResponse) models.PushResult {
	return models.PushResult{
		OK:              p.Ok,
		NewVersion:      p.NewVersion,
		UpdatedAt:       Time(p.UpdatedAt),
		Conflict:        p.Conflict,
		Remote:          DraftFromProto(p.RemoteDraft),
		RemoteVersion:   p.RemoteVersion,
		RemoteUpdatedAt: Time(p.RemoteUpdatedAt),
	}
}

func PushResultToProto(r models.PushResult) *PushDraftResponse {
	return &PushDraftResponse{
		Ok:              r.OK,
		NewVersion:      r.NewVersion,
		UpdatedAt:       Timestamp(r.UpdatedAt),
		Conflict:        r.Conflict,
		RemoteDraft:     DraftToProto(r.Remote),
		RemoteVersion:   r.RemoteVersion,
		RemoteUpdatedAt: Timestamp(r.RemoteUpdatedAt),
	}
}
