package cli

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/client/config"
	"github.com/dmitrijs2005/draftkeeper/internal/client/repositories/kv"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/cryptox"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory server implementing client.Client.
type fakeAPI struct {
	mu     sync.Mutex
	drafts map[string]models.Draft
	holder map[string]models.LeaseInfo
	events []audit.Event
	device string

	// releaseDelay stalls ReleaseLease; after Close the call fails the way
	// a closed grpc connection does.
	releaseDelay time.Duration
	closed       bool
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		drafts: map[string]models.Draft{},
		holder: map[string]models.LeaseInfo{},
		device: "dev-1",
	}
}

func (f *fakeAPI) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeAPI) Ping(ctx context.Context) error { return nil }

func (f *fakeAPI) AcquireLease(_ context.Context, id string) (bool, *models.LeaseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if h, ok := f.holder[id]; ok && h.LockDeviceID != f.device {
		return false, &h, nil
	}
	f.holder[id] = models.LeaseInfo{LockedBy: "alice", LockDeviceID: f.device, LockedAt: time.Now()}
	return true, nil, nil
}

func (f *fakeAPI) RenewLease(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holder[id]
	return ok && h.LockDeviceID == f.device, nil
}

func (f *fakeAPI) ReleaseLease(_ context.Context, id string) error {
	f.mu.Lock()
	delay := f.releaseDelay
	f.mu.Unlock()
	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return errors.New("grpc: the client connection is closing")
	}
	if h, ok := f.holder[id]; ok && h.LockDeviceID == f.device {
		delete(f.holder, id)
	}
	return nil
}

func (f *fakeAPI) GetLeaseInfo(_ context.Context, id string) (*models.LeaseInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.holder[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

func (f *fakeAPI) PushDraft(_ context.Context, d models.Draft, expected int64, force bool) (models.PushResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, exists := f.drafts[d.ID]
	if !force && expected != cur.Version {
		res := models.PushResult{Conflict: true, RemoteVersion: cur.Version, RemoteUpdatedAt: time.Now()}
		if exists {
			c := cur.Clone()
			res.Remote = &c
		}
		return res, nil
	}
	d = d.Clone()
	d.Version = cur.Version + 1
	f.drafts[d.ID] = d
	return models.PushResult{OK: true, NewVersion: d.Version, UpdatedAt: time.Now()}, nil
}

func (f *fakeAPI) FetchDraft(_ context.Context, id string) (*models.Draft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.drafts[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	c := d.Clone()
	return &c, nil
}

func (f *fakeAPI) LogEvent(_ context.Context, e audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAPI) draft(id string) models.Draft {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[id].Clone()
}

func (f *fakeAPI) seed(d models.Draft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[d.ID] = d.Clone()
}

func (f *fakeAPI) lockBy(id, device string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.holder[id] = models.LeaseInfo{LockedBy: "bob", LockDeviceID: device, LockedAt: time.Now()}
}

func (f *fakeAPI) held(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.holder[id]
	return ok
}

func (f *fakeAPI) unlock(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.holder, id)
}

type staticConn struct{ online bool }

func (c staticConn) Online() bool { return c.online }

func (c staticConn) Subscribe() (<-chan bool, func()) {
	return make(chan bool), func() {}
}

func newMemKV(t *testing.T) *kv.PebbleRepository {
	t.Helper()
	r, err := kv.OpenPebble("kv", &pebble.Options{FS: vfs.NewMem()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// newTestApp returns an unlocked, connected App writing to out.
func newTestApp(t *testing.T, api *fakeAPI, input string) (*App, *bytes.Buffer) {
	t.Helper()
	c, err := cryptox.NewAESCipher(make([]byte, 32))
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.SaveDebounce = 10 * time.Millisecond
	cfg.SyncDelay = time.Hour

	out := &bytes.Buffer{}
	logger := logging.NewNop()
	a := &App{
		config:   cfg,
		logger:   logger,
		kv:       newMemKV(t),
		userID:   "alice",
		deviceID: "dev-1",
		cipher:   c,
		api:      api,
		conn:     staticConn{online: true},
		audit:    audit.NewLogSink(logger),
		reader:   bufio.NewReader(strings.NewReader(input)),
		out:      out,
	}
	t.Cleanup(func() { _ = a.Close(context.Background()) })
	return a, out
}
