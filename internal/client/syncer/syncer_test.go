package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer is an in-memory compare-and-swap draft store.
type fakeServer struct {
	mu         sync.Mutex
	drafts     map[string]models.Draft
	updated    map[string]time.Time
	pushes     []models.Draft
	fetches    int
	err        error
	omitRemote bool
	clock      time.Time
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		drafts:  map[string]models.Draft{},
		updated: map[string]time.Time{},
		clock:   time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *fakeServer) PushDraft(_ context.Context, d models.Draft, expected int64, force bool) (models.PushResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return models.PushResult{}, s.err
	}
	s.pushes = append(s.pushes, d.Clone())

	cur, exists := s.drafts[d.ID]
	if !force && expected != cur.Version {
		res := models.PushResult{Conflict: true, RemoteVersion: cur.Version, RemoteUpdatedAt: s.updated[d.ID]}
		if exists && !s.omitRemote {
			c := cur.Clone()
			res.Remote = &c
		}
		return res, nil
	}
	s.clock = s.clock.Add(time.Second)
	d = d.Clone()
	d.Version = cur.Version + 1
	s.drafts[d.ID] = d
	s.updated[d.ID] = s.clock
	return models.PushResult{OK: true, NewVersion: d.Version, UpdatedAt: s.clock}, nil
}

func (s *fakeServer) FetchDraft(_ context.Context, id string) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	d, ok := s.drafts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := d.Clone()
	return &c, nil
}

func (s *fakeServer) seed(d models.Draft) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts[d.ID] = d.Clone()
	s.updated[d.ID] = s.clock
}

func (s *fakeServer) pushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pushes)
}

func (s *fakeServer) lastPush() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushes[len(s.pushes)-1]
}

func (s *fakeServer) version(id string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafts[id].Version
}

func (s *fakeServer) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type fakeConn struct {
	mu     sync.Mutex
	online bool
	subs   []chan bool
}

func (c *fakeConn) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

func (c *fakeConn) Subscribe() (<-chan bool, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan bool, 4)
	c.subs = append(c.subs, ch)
	return ch, func() {}
}

func (c *fakeConn) set(online bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.online = online
	for _, ch := range c.subs {
		ch <- online
	}
}

func draft(id string, version int64, notes string) models.Draft {
	d := models.Template(id, models.DraftTypeAssessment)
	d.ClientName = "Jane Doe"
	d.Version = version
	d.Data["notes"] = notes
	return d
}

func newEngine(t *testing.T, srv Remote, conn Connectivity, base int64) *Engine {
	t.Helper()
	e := New(srv, conn, Options{BaseVersion: base, Delay: 20 * time.Millisecond, RetryInterval: 30 * time.Millisecond})
	e.Start()
	t.Cleanup(e.Close)
	return e
}

func TestScheduleSync_CoalescesToLatestSnapshot(t *testing.T) {
	srv := newFakeServer()
	e := newEngine(t, srv, &fakeConn{online: true}, 0)

	for _, n := range []string{"a", "b", "c"} {
		e.ScheduleSync(draft("d1", 0, n))
	}
	require.Equal(t, StatusPending, e.Status())

	require.Eventually(t, func() bool { return e.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, srv.pushCount())
	require.Equal(t, "c", srv.lastPush().Data["notes"])
	require.EqualValues(t, 1, e.BaseVersion())
	require.False(t, e.HasPending())
}

func TestConflictRoundTrip_TwoDevices(t *testing.T) {
	srv := newFakeServer()
	srv.seed(draft("d1", 3, "base"))

	x := newEngine(t, srv, &fakeConn{online: true}, 3)
	y := newEngine(t, srv, &fakeConn{online: true}, 3)
	ctx := context.Background()

	x.ScheduleSync(draft("d1", 3, "from x"))
	require.NoError(t, x.FlushSync(ctx))
	require.EqualValues(t, 4, x.BaseVersion())
	require.EqualValues(t, 4, srv.version("d1"))

	y.ScheduleSync(draft("d1", 3, "from y"))
	require.NoError(t, y.FlushSync(ctx))

	require.Equal(t, StatusConflict, y.Status())
	info := y.Conflict()
	require.NotNil(t, info)
	require.EqualValues(t, 4, info.RemoteVersion)
	require.Equal(t, "Jane Doe", info.ClientName)
	require.False(t, info.RemoteUpdatedAt.IsZero())
	require.Equal(t, "from x", info.Remote.Data["notes"])
	require.True(t, y.HasPending())
}

func conflicted(t *testing.T, srv *fakeServer) *Engine {
	t.Helper()
	remote := draft("d1", 4, "remote")
	remote.CurrentStep = 5
	srv.seed(remote)

	e := newEngine(t, srv, &fakeConn{online: true}, 3)
	e.ScheduleSync(draft("d1", 3, "mine"))
	require.NoError(t, e.FlushSync(context.Background()))
	require.Equal(t, StatusConflict, e.Status())
	return e
}

func TestResolveConflict_KeepMineForcesAndBumpsVersion(t *testing.T) {
	srv := newFakeServer()
	e := conflicted(t, srv)

	var synced int64
	e.OnSynced(func(v int64, _ time.Time) { synced = v })

	got, err := e.ResolveConflict(context.Background(), KeepMine)
	require.NoError(t, err)

	require.EqualValues(t, 5, got.Version)
	require.Equal(t, "mine", got.Data["notes"])
	require.EqualValues(t, 5, srv.version("d1"))
	require.EqualValues(t, 5, e.BaseVersion())
	require.EqualValues(t, 5, synced)
	require.Equal(t, StatusIdle, e.Status())
	require.Nil(t, e.Conflict())
}

func TestResolveConflict_UseTheirsIsReadOnly(t *testing.T) {
	srv := newFakeServer()
	e := conflicted(t, srv)
	pushes := srv.pushCount()

	got, err := e.ResolveConflict(context.Background(), UseTheirs)
	require.NoError(t, err)

	require.Equal(t, "remote", got.Data["notes"])
	require.Equal(t, 5, got.CurrentStep)
	require.EqualValues(t, 4, got.Version)
	require.Equal(t, pushes, srv.pushCount())
	require.EqualValues(t, 4, srv.version("d1"))
	require.EqualValues(t, 4, e.BaseVersion())
	require.False(t, e.HasPending())
	require.Equal(t, StatusIdle, e.Status())
}

func TestResolveConflict_UseTheirsFetchesWhenRemoteMissing(t *testing.T) {
	srv := newFakeServer()
	srv.omitRemote = true
	e := conflicted(t, srv)
	require.Nil(t, e.Conflict().Remote)

	got, err := e.ResolveConflict(context.Background(), UseTheirs)
	require.NoError(t, err)
	require.Equal(t, "remote", got.Data["notes"])
	require.Equal(t, 1, srv.fetches)
}

func TestResolveConflict_WithoutConflict(t *testing.T) {
	e := newEngine(t, newFakeServer(), &fakeConn{online: true}, 0)

	_, err := e.ResolveConflict(context.Background(), KeepMine)
	require.ErrorIs(t, err, common.ErrNoConflict)
}

func TestResolveConflict_KeepMineOffline(t *testing.T) {
	srv := newFakeServer()
	remote := draft("d1", 4, "remote")
	srv.seed(remote)
	conn := &fakeConn{online: true}
	e := newEngine(t, srv, conn, 3)
	e.ScheduleSync(draft("d1", 3, "mine"))
	require.NoError(t, e.FlushSync(context.Background()))

	conn.set(false)
	_, err := e.ResolveConflict(context.Background(), KeepMine)
	require.ErrorIs(t, err, common.ErrOffline)
	require.Equal(t, StatusConflict, e.Status())
}

func TestDismissConflict_ReconflictsOnNextPush(t *testing.T) {
	srv := newFakeServer()
	e := conflicted(t, srv)

	e.DismissConflict()
	require.Equal(t, StatusPending, e.Status())
	require.Nil(t, e.Conflict())

	e.ScheduleSync(draft("d1", 3, "mine, more"))
	require.NoError(t, e.FlushSync(context.Background()))
	require.Equal(t, StatusConflict, e.Status())
}

func TestConflict_SuspendsPushes(t *testing.T) {
	srv := newFakeServer()
	e := conflicted(t, srv)
	pushes := srv.pushCount()

	e.ScheduleSync(draft("d1", 3, "typing during conflict"))
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, e.FlushSync(context.Background()))

	require.Equal(t, pushes, srv.pushCount())
	require.Equal(t, StatusConflict, e.Status())
}

func TestOffline_FlushKeepsChangesAndReconnectRetries(t *testing.T) {
	srv := newFakeServer()
	conn := &fakeConn{online: false}
	e := newEngine(t, srv, conn, 0)

	e.ScheduleSync(draft("d1", 0, "offline edit"))
	err := e.FlushSync(context.Background())
	require.ErrorIs(t, err, common.ErrOffline)
	require.Equal(t, StatusOffline, e.Status())
	require.True(t, e.HasPending())
	require.Equal(t, 0, srv.pushCount())

	conn.set(true)
	require.Eventually(t, func() bool { return e.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, srv.pushCount())
	require.Equal(t, "offline edit", srv.lastPush().Data["notes"])
}

func TestTransportFailure_RetriedNotEscalated(t *testing.T) {
	srv := newFakeServer()
	srv.setErr(errors.New("connection reset"))
	e := newEngine(t, srv, &fakeConn{online: true}, 0)

	e.ScheduleSync(draft("d1", 0, "x"))
	require.Eventually(t, func() bool { return e.Status() == StatusFailed }, time.Second, 5*time.Millisecond)
	require.Error(t, e.LastError())
	require.Nil(t, e.Conflict())

	srv.setErr(nil)
	require.Eventually(t, func() bool { return e.Status() == StatusIdle }, time.Second, 5*time.Millisecond)
	require.NoError(t, e.LastError())
	require.EqualValues(t, 1, srv.version("d1"))
}

func TestUnchangedSnapshotIsNotPushedAgain(t *testing.T) {
	srv := newFakeServer()
	e := newEngine(t, srv, &fakeConn{online: true}, 0)
	ctx := context.Background()

	d := draft("d1", 0, "same")
	e.ScheduleSync(d)
	require.NoError(t, e.FlushSync(ctx))
	require.Equal(t, 1, srv.pushCount())

	// the store records the new version; content is unchanged
	d.Version = 1
	e.ScheduleSync(d)
	require.NoError(t, e.FlushSync(ctx))
	require.Equal(t, 1, srv.pushCount())
	require.Equal(t, StatusIdle, e.Status())

	d.Data["notes"] = "changed"
	e.ScheduleSync(d)
	require.NoError(t, e.FlushSync(ctx))
	require.Equal(t, 2, srv.pushCount())
	require.EqualValues(t, 2, e.BaseVersion())
}

func TestFlushSync_NothingPending(t *testing.T) {
	e := newEngine(t, newFakeServer(), &fakeConn{online: false}, 0)
	require.NoError(t, e.FlushSync(context.Background()))
}

func TestClose_DropsPendingAndStopsTimers(t *testing.T) {
	srv := newFakeServer()
	e := New(srv, &fakeConn{online: true}, Options{Delay: 20 * time.Millisecond})
	e.Start()

	e.ScheduleSync(draft("d1", 0, "x"))
	e.Close()
	time.Sleep(60 * time.Millisecond)

	require.Equal(t, 0, srv.pushCount())
	e.ScheduleSync(draft("d1", 0, "y"))
	e.Close()
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "synced", StatusIdle.String())
	assert.Equal(t, "conflict", StatusConflict.String())
	assert.Equal(t, "offline", StatusOffline.String())
}
