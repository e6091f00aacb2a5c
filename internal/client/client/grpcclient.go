package client

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
	pb "github.com/dmitrijs2005/draftkeeper/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// PingTimeout bounds a single connectivity probe.
const PingTimeout = 3 * time.Second

type GRPCClient struct {
	endpointURL string
	userID      string
	deviceID    string

	conn   *grpc.ClientConn
	client pb.DraftServiceClient

	mu          sync.Mutex
	accessToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

// publicMethods are callable without a session.
var publicMethods = map[string]bool{
	pb.DraftService_OpenSession_FullMethodName: true,
	pb.DraftService_Ping_FullMethodName:        true,
}

func (s *GRPCClient) token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {

	if publicMethods[method] {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	token := s.token()
	if token == "" {
		var err error
		if token, err = s.openSession(ctx); err != nil {
			return err
		}
	}

	err := invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
	if err == nil {
		return nil
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || st.Message() != common.ErrTokenExpired.Error() {
		return err
	}

	// session expired, open a new one and retry once
	token, err = s.openSession(ctx)
	if err != nil {
		return err
	}
	return invoker(withAccessToken(ctx, token), method, req, reply, cc, opts...)
}

func (s *GRPCClient) openSession(ctx context.Context) (string, error) {
	resp, err := s.client.OpenSession(ctx, &pb.OpenSessionRequest{UserId: s.userID, DeviceId: s.deviceID})
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.accessToken = resp.AccessToken
	s.mu.Unlock()

	return resp.AccessToken, nil
}

// NewDraftKeeperClient dials endpointURL; the identity is sent when the
// session is opened on first use.
func NewDraftKeeperClient(endpointURL, userID, deviceID string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL, userID: userID, deviceID: deviceID}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(extra ...grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, extra...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewDraftServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, PingTimeout)
	defer cancel()

	resp, err := s.client.Ping(ctx, &pb.PingRequest{})
	if err != nil {
		return s.mapError(err)
	}

	if resp.Status != "OK" {
		return ErrUnavailable
	}

	return nil
}

func (s *GRPCClient) AcquireLease(ctx context.Context, draftID string) (bool, *models.LeaseInfo, error) {
	resp, err := s.client.AcquireLease(ctx, &pb.LeaseRequest{DraftId: draftID})
	if err != nil {
		return false, nil, s.mapError(err)
	}
	return resp.Granted, pb.LeaseFromProto(resp.Lease), nil
}

func (s *GRPCClient) RenewLease(ctx context.Context, draftID string) (bool, error) {
	resp, err := s.client.RenewLease(ctx, &pb.LeaseRequest{DraftId: draftID})
	if err != nil {
		return false, s.mapError(err)
	}
	return resp.Renewed, nil
}

func (s *GRPCClient) ReleaseLease(ctx context.Context, draftID string) error {
	_, err := s.client.ReleaseLease(ctx, &pb.LeaseRequest{DraftId: draftID})
	return s.mapError(err)
}

func (s *GRPCClient) GetLeaseInfo(ctx context.Context, draftID string) (*models.LeaseInfo, error) {
	resp, err := s.client.GetLeaseInfo(ctx, &pb.LeaseRequest{DraftId: draftID})
	if err != nil {
		return nil, s.mapError(err)
	}
	return pb.LeaseFromProto(resp.Lease), nil
}

func (s *GRPCClient) PushDraft(ctx context.Context, d models.Draft, expectedVersion int64, force bool) (models.PushResult, error) {
	req := &pb.PushDraftRequest{Draft: pb.DraftToProto(&d), ExpectedVersion: expectedVersion, Force: force}

	resp, err := s.client.PushDraft(ctx, req)
	if err != nil {
		return models.PushResult{}, s.mapError(err)
	}
	return pb.PushResultFromProto(resp), nil
}

func (s *GRPCClient) FetchDraft(ctx context.Context, draftID string) (*models.Draft, error) {
	resp, err := s.client.FetchDraft(ctx, &pb.FetchDraftRequest{DraftId: draftID})
	if err != nil {
		return nil, s.mapError(err)
	}
	d := pb.DraftFromProto(resp.Draft)
	if d == nil {
		return nil, common.ErrorNotFound
	}
	return d, nil
}

func (s *GRPCClient) LogEvent(ctx context.Context, e audit.Event) error {
	req := &pb.LogEventRequest{
		Kind:       string(e.Kind),
		Subject:    e.Subject,
		Message:    e.Message,
		Severity:   string(e.Severity),
		OccurredAt: pb.Timestamp(e.OccurredAt),
	}
	_, err := s.client.LogEvent(ctx, req)
	return s.mapError(err)
}

func (s *GRPCClient) mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return ErrUnauthorized
	case codes.Unavailable, codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.NotFound:
		return common.ErrorNotFound
	case codes.ResourceExhausted:
		return common.ErrRateLimited
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
