// Package grpc exposes the draft store, lease authority and audit trail over
// the DraftService gRPC contract.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	pb "github.com/dmitrijs2005/draftkeeper/internal/proto"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/metrics"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
	"google.golang.org/grpc"
)

type SessionService interface {
	Open(ctx context.Context, userID, deviceID string) (string, time.Time, error)
	Verify(token string) (auth.Identity, error)
}

type DraftService interface {
	Push(ctx context.Context, caller auth.Identity, d im.Draft, expectedVersion int64, force bool) (im.PushResult, error)
	Fetch(ctx context.Context, draftID string) (*models.StoredDraft, error)
}

type LeaseService interface {
	Acquire(ctx context.Context, caller auth.Identity, draftID string) (bool, *im.LeaseInfo, error)
	Renew(ctx context.Context, caller auth.Identity, draftID string) (bool, error)
	Release(ctx context.Context, caller auth.Identity, draftID string) error
	Info(ctx context.Context, draftID string) (*im.LeaseInfo, error)
}

type AuditService interface {
	Record(ctx context.Context, caller auth.Identity, e audit.Event) error
}

// Services groups the handlers' dependencies.
type Services struct {
	Sessions SessionService
	Drafts   DraftService
	Leases   LeaseService
	Audit    AuditService
}

type GRPCServer struct {
	pb.UnimplementedDraftServiceServer
	address  string
	sessions SessionService
	drafts   DraftService
	leases   LeaseService
	audit    AuditService
	limiter  *limiterPool
	metrics  *metrics.Metrics
	logger   logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, svc Services, m *metrics.Metrics, rps float64, burst int) *GRPCServer {
	return &GRPCServer{
		address:  a,
		logger:   l.With("module", "grpc_server"),
		sessions: svc.Sessions,
		drafts:   svc.Drafts,
		leases:   svc.Leases,
		audit:    svc.Audit,
		limiter:  newLimiterPool(rps, burst),
		metrics:  m,
	}
}

// NewServer builds the grpc.Server with the interceptor chain and the
// service registered.
func (s *GRPCServer) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(s.accessTokenInterceptor, s.rateLimitInterceptor),
	}, opts...)

	srv := grpc.NewServer(opts...)
	pb.RegisterDraftServiceServer(srv, s)
	return srv
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := s.NewServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gPRC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
