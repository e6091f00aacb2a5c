package proto

import (
	"context"

	"google.golang.org/grpc"
)

type DraftServiceClient interface {
	OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*OpenSessionResponse, error)
	Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error)
	AcquireLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*AcquireLeaseResponse, error)
	RenewLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*RenewLeaseResponse, error)
	ReleaseLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*ReleaseLeaseResponse, error)
	GetLeaseInfo(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*GetLeaseInfoResponse, error)
	PushDraft(ctx context.Context, in *PushDraftRequest, opts ...grpc.CallOption) (*PushDraftResponse, error)
	FetchDraft(ctx context.Context, in *FetchDraftRequest, opts ...grpc.CallOption) (*FetchDraftResponse, error)
	LogEvent(ctx context.Context, in *LogEventRequest, opts ...grpc.CallOption) (*LogEventResponse, error)
}

type draftServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewDraftServiceClient(cc grpc.ClientConnInterface) DraftServiceClient {
	return &draftServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *draftServiceClient) OpenSession(ctx context.Context, in *OpenSessionRequest, opts ...grpc.CallOption) (*OpenSessionResponse, error) {
	return invoke[OpenSessionResponse](ctx, c.cc, DraftService_OpenSession_FullMethodName, in, opts)
}

func (c *draftServiceClient) Ping(ctx context.Context, in *PingRequest, opts ...grpc.CallOption) (*PingResponse, error) {
	return invoke[PingResponse](ctx, c.cc, DraftService_Ping_FullMethodName, in, opts)
}

func (c *draftServiceClient) AcquireLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*AcquireLeaseResponse, error) {
	return invoke[AcquireLeaseResponse](ctx, c.cc, DraftService_AcquireLease_FullMethodName, in, opts)
}

func (c *draftServiceClient) RenewLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*RenewLeaseResponse, error) {
	return invoke[RenewLeaseResponse](ctx, c.cc, DraftService_RenewLease_FullMethodName, in, opts)
}

func (c *draftServiceClient) ReleaseLease(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*ReleaseLeaseResponse, error) {
	return invoke[ReleaseLeaseResponse](ctx, c.cc, DraftService_ReleaseLease_FullMethodName, in, opts)
}

func (c *draftServiceClient) GetLeaseInfo(ctx context.Context, in *LeaseRequest, opts ...grpc.CallOption) (*GetLeaseInfoResponse, error) {
	return invoke[GetLeaseInfoResponse](ctx, c.cc, DraftService_GetLeaseInfo_FullMethodName, in, opts)
}

func (c *draftServiceClient) PushDraft(ctx context.Context, in *PushDraftRequest, opts ...grpc.CallOption) (*PushDraftResponse, error) {
	return invoke[PushDraftResponse](ctx, c.cc, DraftService_PushDraft_FullMethodName, in, opts)
}

func (c *draftServiceClient) FetchDraft(ctx context.Context, in *FetchDraftRequest, opts ...grpc.CallOption) (*FetchDraftResponse, error) {
	return invoke[FetchDraftResponse](ctx, c.cc, DraftService_FetchDraft_FullMethodName, in, opts)
}

func (c *draftServiceClient) LogEvent(ctx context.Context, in *LogEventRequest, opts ...grpc.CallOption) (*LogEventResponse, error) {
	return invoke[LogEventResponse](ctx, c.cc, DraftService_LogEvent_FullMethodName, in, opts)
}
