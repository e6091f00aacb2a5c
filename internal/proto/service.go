package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const ServiceName = "draftkeeper.v1.DraftService"

const (
	DraftService_OpenSession_FullMethodName  = "/" + ServiceName + "/OpenSession"
	DraftService_Ping_FullMethodName         = "/" + ServiceName + "/Ping"
	DraftService_AcquireLease_FullMethodName = "/" + ServiceName + "/AcquireLease"
	DraftService_RenewLease_FullMethodName   = "/" + ServiceName + "/RenewLease"
	DraftService_ReleaseLease_FullMethodName = "/" + ServiceName + "/ReleaseLease"
	DraftService_GetLeaseInfo_FullMethodName = "/" + ServiceName + "/GetLeaseInfo"
	DraftService_PushDraft_FullMethodName    = "/" + ServiceName + "/PushDraft"
	DraftService_FetchDraft_FullMethodName   = "/" + ServiceName + "/FetchDraft"
	DraftService_LogEvent_FullMethodName     = "/" + ServiceName + "/LogEvent"
)

type DraftServiceServer interface {
	OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error)
	Ping(context.Context, *PingRequest) (*PingResponse, error)
	AcquireLease(context.Context, *LeaseRequest) (*AcquireLeaseResponse, error)
	RenewLease(context.Context, *LeaseRequest) (*RenewLeaseResponse, error)
	ReleaseLease(context.Context, *LeaseRequest) (*ReleaseLeaseResponse, error)
	GetLeaseInfo(context.Context, *LeaseRequest) (*GetLeaseInfoResponse, error)
	PushDraft(context.Context, *PushDraftRequest) (*PushDraftResponse, error)
	FetchDraft(context.Context, *FetchDraftRequest) (*FetchDraftResponse, error)
	LogEvent(context.Context, *LogEventRequest) (*LogEventResponse, error)
}

// UnimplementedDraftServiceServer can be embedded to satisfy
// DraftServiceServer while implementing only some methods.
type UnimplementedDraftServiceServer struct{}

func (UnimplementedDraftServiceServer) OpenSession(context.Context, *OpenSessionRequest) (*OpenSessionResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method OpenSession not implemented")
}
func (UnimplementedDraftServiceServer) Ping(context.Context, *PingRequest) (*PingResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method Ping not implemented")
}
func (UnimplementedDraftServiceServer) AcquireLease(context.Context, *LeaseRequest) (*AcquireLeaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method AcquireLease not implemented")
}
func (UnimplementedDraftServiceServer) RenewLease(context.Context, *LeaseRequest) (*RenewLeaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method RenewLease not implemented")
}
func (UnimplementedDraftServiceServer) ReleaseLease(context.Context, *LeaseRequest) (*ReleaseLeaseResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ReleaseLease not implemented")
}
func (UnimplementedDraftServiceServer) GetLeaseInfo(context.Context, *LeaseRequest) (*GetLeaseInfoResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetLeaseInfo not implemented")
}
func (UnimplementedDraftServiceServer) PushDraft(context.Context, *PushDraftRequest) (*PushDraftResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method PushDraft not implemented")
}
func (UnimplementedDraftServiceServer) FetchDraft(context.Context, *FetchDraftRequest) (*FetchDraftResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FetchDraft not implemented")
}
func (UnimplementedDraftServiceServer) LogEvent(context.Context, *LogEventRequest) (*LogEventResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method LogEvent not implemented")
}

func RegisterDraftServiceServer(s grpc.ServiceRegistrar, srv DraftServiceServer) {
	s.RegisterService(&DraftService_ServiceDesc, srv)
}

// unary builds a grpc.MethodHandler that decodes Req and dispatches through
// the server's interceptor chain.
func unary[Req any, Resp any](fullMethod string, call func(DraftServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DraftServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DraftServiceServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var DraftService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DraftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "OpenSession", Handler: unary(DraftService_OpenSession_FullMethodName, DraftServiceServer.OpenSession)},
		{MethodName: "Ping", Handler: unary(DraftService_Ping_FullMethodName, DraftServiceServer.Ping)},
		{MethodName: "AcquireLease", Handler: unary(DraftService_AcquireLease_FullMethodName, DraftServiceServer.AcquireLease)},
		{MethodName: "RenewLease", Handler: unary(DraftService_RenewLease_FullMethodName, DraftServiceServer.RenewLease)},
		{MethodName: "ReleaseLease", Handler: unary(DraftService_ReleaseLease_FullMethodName, DraftServiceServer.ReleaseLease)},
		{MethodName: "GetLeaseInfo", Handler: unary(DraftService_GetLeaseInfo_FullMethodName, DraftServiceServer.GetLeaseInfo)},
		{MethodName: "PushDraft", Handler: unary(DraftService_PushDraft_FullMethodName, DraftServiceServer.PushDraft)},
		{MethodName: "FetchDraft", Handler: unary(DraftService_FetchDraft_FullMethodName, DraftServiceServer.FetchDraft)},
		{MethodName: "LogEvent", Handler: unary(DraftService_LogEvent_FullMethodName, DraftServiceServer.LogEvent)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "draftkeeper/v1/draft_service",
}
