package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
	pb "github.com/dmitrijs2005/draftkeeper/internal/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

/*************
 * Fake pb client
 *************/

type fakePB struct {
	lastOpenReq  *pb.OpenSessionRequest
	lastLeaseReq *pb.LeaseRequest
	lastPushReq  *pb.PushDraftRequest
	lastFetchReq *pb.FetchDraftRequest
	lastEventReq *pb.LogEventRequest
	openCalls    int

	openResp *pb.OpenSessionResponse
	openErr  error

	pingResp *pb.PingResponse
	pingErr  error

	acquireResp *pb.AcquireLeaseResponse
	renewResp   *pb.RenewLeaseResponse
	infoResp    *pb.GetLeaseInfoResponse
	leaseErr    error

	pushResp *pb.PushDraftResponse
	pushErr  error

	fetchResp *pb.FetchDraftResponse
	fetchErr  error

	eventErr error
}

func (f *fakePB) OpenSession(ctx context.Context, in *pb.OpenSessionRequest, opts ...grpc.CallOption) (*pb.OpenSessionResponse, error) {
	f.lastOpenReq = in
	f.openCalls++
	return f.openResp, f.openErr
}
func (f *fakePB) Ping(ctx context.Context, in *pb.PingRequest, opts ...grpc.CallOption) (*pb.PingResponse, error) {
	return f.pingResp, f.pingErr
}
func (f *fakePB) AcquireLease(ctx context.Context, in *pb.LeaseRequest, opts ...grpc.CallOption) (*pb.AcquireLeaseResponse, error) {
	f.lastLeaseReq = in
	return f.acquireResp, f.leaseErr
}
func (f *fakePB) RenewLease(ctx context.Context, in *pb.LeaseRequest, opts ...grpc.CallOption) (*pb.RenewLeaseResponse, error) {
	f.lastLeaseReq = in
	return f.renewResp, f.leaseErr
}
func (f *fakePB) ReleaseLease(ctx context.Context, in *pb.LeaseRequest, opts ...grpc.CallOption) (*pb.ReleaseLeaseResponse, error) {
	f.lastLeaseReq = in
	return &pb.ReleaseLeaseResponse{}, f.leaseErr
}
func (f *fakePB) GetLeaseInfo(ctx context.Context, in *pb.LeaseRequest, opts ...grpc.CallOption) (*pb.GetLeaseInfoResponse, error) {
	f.lastLeaseReq = in
	return f.infoResp, f.leaseErr
}
func (f *fakePB) PushDraft(ctx context.Context, in *pb.PushDraftRequest, opts ...grpc.CallOption) (*pb.PushDraftResponse, error) {
	f.lastPushReq = in
	return f.pushResp, f.pushErr
}
func (f *fakePB) FetchDraft(ctx context.Context, in *pb.FetchDraftRequest, opts ...grpc.CallOption) (*pb.FetchDraftResponse, error) {
	f.lastFetchReq = in
	return f.fetchResp, f.fetchErr
}
func (f *fakePB) LogEvent(ctx context.Context, in *pb.LogEventRequest, opts ...grpc.CallOption) (*pb.LogEventResponse, error) {
	f.lastEventReq = in
	return &pb.LogEventResponse{}, f.eventErr
}

func tokenOf(t *testing.T, ctx context.Context) string {
	t.Helper()
	md, _ := metadata.FromOutgoingContext(ctx)
	toks := md.Get(common.AccessTokenHeaderName)
	require.Len(t, toks, 1)
	return toks[0]
}

/*************
 * accessTokenInterceptor tests
 *************/

func TestInterceptor_OpensSessionLazily(t *testing.T) {
	f := &fakePB{openResp: &pb.OpenSessionResponse{AccessToken: "A1"}}
	c := &GRPCClient{client: f, userID: "u1", deviceID: "dev1"}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		require.Equal(t, "A1", tokenOf(t, ctx))
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), pb.DraftService_PushDraft_FullMethodName, nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, "u1", f.lastOpenReq.UserId)
	require.Equal(t, "dev1", f.lastOpenReq.DeviceId)
	require.Equal(t, "A1", c.accessToken)
}

func TestInterceptor_ReopensSessionOnExpiredAndRetries(t *testing.T) {
	f := &fakePB{openResp: &pb.OpenSessionResponse{AccessToken: "A2"}}
	c := &GRPCClient{client: f, accessToken: "A1"}

	callCount := 0
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		callCount++
		if callCount == 1 {
			require.Equal(t, "A1", tokenOf(t, ctx))
			return status.Error(codes.Unauthenticated, common.ErrTokenExpired.Error())
		}
		require.Equal(t, "A2", tokenOf(t, ctx))
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.NoError(t, err)
	require.Equal(t, 2, callCount)
	require.Equal(t, 1, f.openCalls)
	require.Equal(t, "A2", c.accessToken)
}

func TestInterceptor_PublicMethodsSkipSession(t *testing.T) {
	f := &fakePB{}
	c := &GRPCClient{client: f}

	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		md, _ := metadata.FromOutgoingContext(ctx)
		require.Empty(t, md.Get(common.AccessTokenHeaderName))
		return nil
	}

	require.NoError(t, c.accessTokenInterceptor(context.Background(), pb.DraftService_Ping_FullMethodName, nil, nil, nil, invoker))
	require.Equal(t, 0, f.openCalls)
}

func TestInterceptor_SessionOpenFailureIsReturned(t *testing.T) {
	f := &fakePB{openErr: status.Error(codes.Unavailable, "down")}
	c := &GRPCClient{client: f}

	called := false
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		called = true
		return nil
	}

	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Error(t, err)
	require.False(t, called)
}

func TestInterceptor_UnauthenticatedButDifferentMessage_NoReopen(t *testing.T) {
	f := &fakePB{}
	c := &GRPCClient{client: f, accessToken: "X"}
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		return status.Error(codes.Unauthenticated, "some other reason")
	}
	err := c.accessTokenInterceptor(context.Background(), "/svc/Method", nil, nil, nil, invoker)
	require.Error(t, err)
	require.Equal(t, 0, f.openCalls)
}

/*************
 * mapError tests
 *************/

func TestMapError(t *testing.T) {
	c := &GRPCClient{}

	require.NoError(t, c.mapError(nil))
	require.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.Unauthenticated, "x")))
	require.Equal(t, ErrUnauthorized, c.mapError(status.Error(codes.PermissionDenied, "x")))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.Unavailable, "x")))
	require.Equal(t, ErrUnavailable, c.mapError(status.Error(codes.DeadlineExceeded, "x")))
	require.Equal(t, common.ErrorNotFound, c.mapError(status.Error(codes.NotFound, "x")))
	require.Equal(t, common.ErrRateLimited, c.mapError(status.Error(codes.ResourceExhausted, "x")))
	require.ErrorContains(t, c.mapError(errors.New("plain")), "rpc error:")
}

/*************
 * RPC wrappers
 *************/

func TestPing(t *testing.T) {
	c := &GRPCClient{client: &fakePB{pingResp: &pb.PingResponse{Status: "OK"}}}
	require.NoError(t, c.Ping(context.Background()))

	c = &GRPCClient{client: &fakePB{pingResp: &pb.PingResponse{Status: "DRAINING"}}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)

	c = &GRPCClient{client: &fakePB{pingErr: status.Error(codes.Unavailable, "down")}}
	require.ErrorIs(t, c.Ping(context.Background()), ErrUnavailable)
}

func TestLeaseCalls(t *testing.T) {
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	f := &fakePB{
		acquireResp: &pb.AcquireLeaseResponse{Granted: false, Lease: &pb.Lease{LockedBy: "u2", LockDeviceId: "tablet", LockedAt: pb.Timestamp(at)}},
		renewResp:   &pb.RenewLeaseResponse{Renewed: true},
		infoResp:    &pb.GetLeaseInfoResponse{},
	}
	c := &GRPCClient{client: f}
	ctx := context.Background()

	granted, holder, err := c.AcquireLease(ctx, "d1")
	require.NoError(t, err)
	require.False(t, granted)
	require.Equal(t, &models.LeaseInfo{LockedBy: "u2", LockDeviceID: "tablet", LockedAt: at}, holder)
	require.Equal(t, "d1", f.lastLeaseReq.DraftId)

	renewed, err := c.RenewLease(ctx, "d1")
	require.NoError(t, err)
	require.True(t, renewed)

	info, err := c.GetLeaseInfo(ctx, "d1")
	require.NoError(t, err)
	require.Nil(t, info)

	require.NoError(t, c.ReleaseLease(ctx, "d1"))

	f.leaseErr = status.Error(codes.Unavailable, "x")
	_, _, err = c.AcquireLease(ctx, "d1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.ErrorIs(t, c.ReleaseLease(ctx, "d1"), ErrUnavailable)
}

func TestPushDraft_MapsReqAndConflict(t *testing.T) {
	remoteAt := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	f := &fakePB{pushResp: &pb.PushDraftResponse{
		Conflict:        true,
		RemoteDraft:     &pb.Draft{Id: "d1", ClientName: "Jane", Version: 4, CurrentStep: 3},
		RemoteVersion:   4,
		RemoteUpdatedAt: pb.Timestamp(remoteAt),
	}}
	c := &GRPCClient{client: f}

	d := models.Draft{ID: "d1", ClientName: "Jane", Version: 3, Data: models.Record{"a": 1.0}}
	res, err := c.PushDraft(context.Background(), d, 3, false)
	require.NoError(t, err)

	require.EqualValues(t, 3, f.lastPushReq.ExpectedVersion)
	require.False(t, f.lastPushReq.Force)
	require.Equal(t, "d1", f.lastPushReq.Draft.Id)

	require.True(t, res.Conflict)
	require.False(t, res.OK)
	require.EqualValues(t, 4, res.RemoteVersion)
	require.True(t, res.RemoteUpdatedAt.Equal(remoteAt))
	require.Equal(t, 3, res.Remote.CurrentStep)
}

func TestFetchDraft(t *testing.T) {
	f := &fakePB{fetchResp: &pb.FetchDraftResponse{Draft: &pb.Draft{Id: "d1", Version: 7}}}
	c := &GRPCClient{client: f}

	d, err := c.FetchDraft(context.Background(), "d1")
	require.NoError(t, err)
	require.EqualValues(t, 7, d.Version)
	require.Equal(t, "d1", f.lastFetchReq.DraftId)

	f.fetchResp = &pb.FetchDraftResponse{}
	_, err = c.FetchDraft(context.Background(), "d1")
	require.ErrorIs(t, err, common.ErrorNotFound)

	f.fetchErr = status.Error(codes.NotFound, "gone")
	_, err = c.FetchDraft(context.Background(), "d1")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestLogEvent(t *testing.T) {
	f := &fakePB{}
	c := &GRPCClient{client: f}

	at := time.Unix(1700000000, 0).UTC()
	err := c.LogEvent(context.Background(), audit.Event{
		Kind: audit.KindConflict, Subject: "d1", Message: "kept local", Severity: audit.SeverityWarning, OccurredAt: at,
	})
	require.NoError(t, err)
	require.Equal(t, "conflict", f.lastEventReq.Kind)
	require.Equal(t, "warning", f.lastEventReq.Severity)
	require.True(t, pb.Time(f.lastEventReq.OccurredAt).Equal(at))
}

func TestCloseWithoutConnection(t *testing.T) {
	require.NoError(t, (&GRPCClient{}).Close())
}

var _ Client = (*GRPCClient)(nil)
