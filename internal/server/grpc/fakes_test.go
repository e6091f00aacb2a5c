package grpc

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	im "github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/dmitrijs2005/draftkeeper/internal/server/auth"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

type fakeDrafts struct {
	pushRes  im.PushResult
	pushErr  error
	pushed   im.Draft
	caller   auth.Identity
	fetchOut *models.StoredDraft
	fetchErr error
}

func (f *fakeDrafts) Push(ctx context.Context, c auth.Identity, d im.Draft, expected int64, force bool) (im.PushResult, error) {
	f.caller, f.pushed = c, d
	return f.pushRes, f.pushErr
}

func (f *fakeDrafts) Fetch(ctx context.Context, id string) (*models.StoredDraft, error) {
	return f.fetchOut, f.fetchErr
}

type fakeLeases struct {
	granted bool
	info    *im.LeaseInfo
	err     error
}

func (f *fakeLeases) Acquire(ctx context.Context, c auth.Identity, id string) (bool, *im.LeaseInfo, error) {
	return f.granted, f.info, f.err
}

func (f *fakeLeases) Renew(ctx context.Context, c auth.Identity, id string) (bool, error) {
	return f.granted, f.err
}

func (f *fakeLeases) Release(ctx context.Context, c auth.Identity, id string) error {
	return f.err
}

func (f *fakeLeases) Info(ctx context.Context, id string) (*im.LeaseInfo, error) {
	return f.info, f.err
}

type fakeAudit struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (f *fakeAudit) Record(ctx context.Context, c auth.Identity, e audit.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, e)
	return nil
}

func (f *fakeAudit) recorded() []audit.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]audit.Event(nil), f.events...)
}

// memDrafts is an in-memory drafts.Repository used by the end-to-end tests.
type memDrafts struct {
	mu   sync.Mutex
	rows map[string]models.StoredDraft
}

func newMemDrafts() *memDrafts {
	return &memDrafts{rows: map[string]models.StoredDraft{}}
}

func (m *memDrafts) Get(ctx context.Context, id string) (*models.StoredDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	d.Draft = d.Draft.Clone()
	return &d, nil
}

func (m *memDrafts) store(d *models.StoredDraft, version int64) {
	d.Draft.Version = version
	d.UpdatedAt = time.Now().UTC()
	cp := *d
	cp.Draft = d.Draft.Clone()
	m.rows[d.Draft.ID] = cp
}

func (m *memDrafts) Create(ctx context.Context, d *models.StoredDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[d.Draft.ID]; ok {
		return common.ErrVersionConflict
	}
	m.store(d, 1)
	return nil
}

func (m *memDrafts) Update(ctx context.Context, d *models.StoredDraft, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.rows[d.Draft.ID]; !ok || cur.Draft.Version != expected {
		return common.ErrVersionConflict
	}
	m.store(d, expected+1)
	return nil
}

func (m *memDrafts) Overwrite(ctx context.Context, d *models.StoredDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(d, m.rows[d.Draft.ID].Draft.Version+1)
	return nil
}
