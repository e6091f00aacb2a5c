package proto

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

type Draft struct {
	Id                 string                 `json:"id"`
	ClientName         string                 `json:"clientName"`
	Type               string                 `json:"type"`
	Status             string                 `json:"status"`
	CurrentStep        int32                  `json:"currentStep"`
	Data               map[string]any         `json:"data"`
	LastModified       *timestamppb.Timestamp `json:"lastModified,omitempty"`
	LinkedAssessmentId string                 `json:"linkedAssessmentId,omitempty"`
	Version            int64                  `json:"version"`
	SchemaVersion      int32                  `json:"schemaVersion"`
}

type Lease struct {
	LockedBy     string                 `json:"lockedBy"`
	LockDeviceId string                 `json:"lockDeviceId"`
	LockedAt     *timestamppb.Timestamp `json:"lockedAt,omitempty"`
	ExpiresAt    *timestamppb.Timestamp `json:"expiresAt,omitempty"`
}

type OpenSessionRequest struct {
	UserId   string `json:"userId"`
	DeviceId string `json:"deviceId"`
}

type OpenSessionResponse struct {
	AccessToken string                 `json:"accessToken"`
	ExpiresAt   *timestamppb.Timestamp `json:"expiresAt,omitempty"`
}

type PingRequest struct{}

type PingResponse struct {
	Status string `json:"status"`
}

type LeaseRequest struct {
	DraftId string `json:"draftId"`
}

type AcquireLeaseResponse struct {
	Granted bool   `json:"granted"`
	Lease   *Lease `json:"lease,omitempty"`
}

type RenewLeaseResponse struct {
	Renewed bool `json:"renewed"`
}

type ReleaseLeaseResponse struct{}

type GetLeaseInfoResponse struct {
	Lease *Lease `json:"lease,omitempty"`
}

type PushDraftRequest struct {
	Draft           *Draft `json:"draft"`
	ExpectedVersion int64  `json:"expectedVersion"`
	Force           bool   `json:"force"`
}

type PushDraftResponse struct {
	Ok         bool                   `json:"ok"`
	NewVersion int64                  `json:"newVersion,omitempty"`
	UpdatedAt  *timestamppb.Timestamp `json:"updatedAt,omitempty"`

	Conflict        bool                   `json:"conflict"`
	RemoteDraft     *Draft                 `json:"remoteDraft,omitempty"`
	RemoteVersion   int64                  `json:"remoteVersion,omitempty"`
	RemoteUpdatedAt *timestamppb.Timestamp `json:"remoteUpdatedAt,omitempty"`
}

type FetchDraftRequest struct {
	DraftId string `json:"draftId"`
}

type FetchDraftResponse struct {
	Draft     *Draft                 `json:"draft"`
	UpdatedAt *timestamppb.Timestamp `json:"updatedAt,omitempty"`
}

type LogEventRequest struct {
	Kind       string                 `json:"kind"`
	Subject    string                 `json:"subject"`
	Message    string                 `json:"message"`
	Severity   string                 `json:"severity"`
	OccurredAt *timestamppb.Timestamp `json:"occurredAt,omitempty"`
}

type LogEventResponse struct{}
