package grpc

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	pb "github.com/dmitrijs2005/draftkeeper/internal/proto"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) OpenSession(ctx context.Context, req *pb.OpenSessionRequest) (*pb.OpenSessionResponse, error) {

	token, expiresAt, err := s.sessions.Open(ctx, req.UserId, req.DeviceId)
	if err != nil {
		return nil, s.statusError(ctx, "open session", err)
	}

	s.logger.Info(ctx, "Session opened", "user_id", req.UserId, "device_id", req.DeviceId)
	return &pb.OpenSessionResponse{AccessToken: token, ExpiresAt: pb.Timestamp(expiresAt)}, nil

}

func (s *GRPCServer) Ping(ctx context.Context, req *pb.PingRequest) (*pb.PingResponse, error) {

	return &pb.PingResponse{Status: "OK"}, nil

}

func (s *GRPCServer) AcquireLease(ctx context.Context, req *pb.LeaseRequest) (*pb.AcquireLeaseResponse, error) {

	granted, info, err := s.leases.Acquire(ctx, caller(ctx), req.DraftId)
	if err != nil {
		return nil, s.statusError(ctx, "acquire lease", err)
	}

	return &pb.AcquireLeaseResponse{Granted: granted, Lease: pb.LeaseToProto(info)}, nil

}

func (s *GRPCServer) RenewLease(ctx context.Context, req *pb.LeaseRequest) (*pb.RenewLeaseResponse, error) {

	ok, err := s.leases.Renew(ctx, caller(ctx), req.DraftId)
	if err != nil {
		return nil, s.statusError(ctx, "renew lease", err)
	}

	return &pb.RenewLeaseResponse{Renewed: ok}, nil

}

func (s *GRPCServer) ReleaseLease(ctx context.Context, req *pb.LeaseRequest) (*pb.ReleaseLeaseResponse, error) {

	if err := s.leases.Release(ctx, caller(ctx), req.DraftId); err != nil {
		return nil, s.statusError(ctx, "release lease", err)
	}

	return &pb.ReleaseLeaseResponse{}, nil

}

func (s *GRPCServer) GetLeaseInfo(ctx context.Context, req *pb.LeaseRequest) (*pb.GetLeaseInfoResponse, error) {

	info, err := s.leases.Info(ctx, req.DraftId)
	if err != nil {
		return nil, s.statusError(ctx, "lease info", err)
	}

	return &pb.GetLeaseInfoResponse{Lease: pb.LeaseToProto(info)}, nil

}

func (s *GRPCServer) PushDraft(ctx context.Context, req *pb.PushDraftRequest) (*pb.PushDraftResponse, error) {

	if req.Draft == nil {
		return nil, status.Error(codes.InvalidArgument, "draft is required")
	}

	res, err := s.drafts.Push(ctx, caller(ctx), *pb.DraftFromProto(req.Draft), req.ExpectedVersion, req.Force)
	if err != nil {
		return nil, s.statusError(ctx, "push draft", err)
	}

	return pb.PushResultToProto(res), nil

}

func (s *GRPCServer) FetchDraft(ctx context.Context, req *pb.FetchDraftRequest) (*pb.FetchDraftResponse, error) {

	d, err := s.drafts.Fetch(ctx, req.DraftId)
	if err != nil {
		return nil, s.statusError(ctx, "fetch draft", err)
	}

	return &pb.FetchDraftResponse{Draft: pb.DraftToProto(&d.Draft), UpdatedAt: pb.Timestamp(d.UpdatedAt)}, nil

}

func (s *GRPCServer) LogEvent(ctx context.Context, req *pb.LogEventRequest) (*pb.LogEventResponse, error) {

	e := audit.Event{
		Kind:       audit.Kind(req.Kind),
		Subject:    req.Subject,
		Message:    req.Message,
		Severity:   audit.Severity(req.Severity),
		OccurredAt: pb.Time(req.OccurredAt),
	}
	if err := s.audit.Record(ctx, caller(ctx), e); err != nil {
		return nil, s.statusError(ctx, "log event", err)
	}

	return &pb.LogEventResponse{}, nil

}

func caller(ctx context.Context) auth.Identity {
	id, _ := auth.FromContext(ctx)
	return id
}

// statusError maps service errors to gRPC codes; unknown errors are logged
// and hidden behind Internal.
func (s *GRPCServer) statusError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error(ctx, op+" failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}
