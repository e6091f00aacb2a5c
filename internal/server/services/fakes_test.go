package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/server/models"
)

// memDrafts is an in-memory drafts.Repository with the same version rules
// as the real backends.
type memDrafts struct {
	mu     sync.Mutex
	rows   map[string]models.StoredDraft
	now    time.Time
	getErr error
}

func newMemDrafts() *memDrafts {
	return &memDrafts{rows: map[string]models.StoredDraft{}, now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (m *memDrafts) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

func (m *memDrafts) Get(ctx context.Context, id string) (*models.StoredDraft, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	d, ok := m.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	d.Draft = d.Draft.Clone()
	return &d, nil
}

func (m *memDrafts) put(d *models.StoredDraft, version int64) {
	d.Draft.Version = version
	d.UpdatedAt = m.tick()
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
	m.put(d, 1)
	return nil
}

func (m *memDrafts) Update(ctx context.Context, d *models.StoredDraft, expected int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.rows[d.Draft.ID]
	if !ok || cur.Draft.Version != expected {
		return common.ErrVersionConflict
	}
	m.put(d, expected+1)
	return nil
}

func (m *memDrafts) Overwrite(ctx context.Context, d *models.StoredDraft) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.put(d, m.rows[d.Draft.ID].Draft.Version+1)
	return nil
}

type fakeArchiver struct {
	got []*models.StoredDraft
	err error
}

func (f *fakeArchiver) Archive(ctx context.Context, d *models.StoredDraft) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.got = append(f.got, d)
	return "drafts/" + d.Draft.ID, nil
}

var errBoom = errors.New("boom")
