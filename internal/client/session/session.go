// Package session wires the local store, the edit lease and the sync
// engine for one open draft.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/client/lease"
	"github.com/dmitrijs2005/draftkeeper/internal/client/localstore"
	"github.com/dmitrijs2005/draftkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

// StorageKeyPrefix namespaces drafts in the device KV.
const StorageKeyPrefix = "draft:"

func StorageKey(draftID string) string {
	return StorageKeyPrefix + draftID
}

type Remote interface {
	lease.Remote
	syncer.Remote
}

type Config struct {
	DraftID       string
	Type          models.DraftType
	Debounce      time.Duration
	SyncDelay     time.Duration
	RetryInterval time.Duration
	RenewInterval time.Duration
	Logger        logging.Logger
	Audit         audit.Sink
}

type Session struct {
	cfg    Config
	remote Remote
	conn   syncer.Connectivity
	logger logging.Logger

	store  *localstore.Store
	lease  *lease.Manager
	engine *syncer.Engine

	unsubscribe func()
}

// Status is a point-in-time view for rendering.
type Status struct {
	Lease         lease.State
	Optimistic    bool
	Holder        *models.LeaseInfo
	Sync          syncer.Status
	Conflict      *syncer.ConflictInfo
	Dirty         bool
	BaseVersion   int64
	LastSaveError error
	LastSyncError error
}

func New(kv localstore.KV, cipher localstore.Cipher, remote Remote, conn syncer.Connectivity, cfg Config) *Session {
	if cfg.Logger == nil {
		cfg.Logger = logging.NewNop()
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewLogSink(cfg.Logger)
	}
	store := localstore.New(kv, cipher, localstore.Options{
		Key:      StorageKey(cfg.DraftID),
		Initial:  models.Template(cfg.DraftID, cfg.Type),
		Debounce: cfg.Debounce,
		Logger:   cfg.Logger,
		Audit:    cfg.Audit,
	})
	lm := lease.NewManager(remote, lease.Options{
		DraftID:       cfg.DraftID,
		RenewInterval: cfg.RenewInterval,
		Logger:        cfg.Logger,
		Audit:         cfg.Audit,
	})
	return &Session{
		cfg:    cfg,
		remote: remote,
		conn:   conn,
		logger: cfg.Logger.With("draft", cfg.DraftID),
		store:  store,
		lease:  lm,
	}
}

// FetchTimeout bounds the remote read done by Open when the device has no
// local copy.
const FetchTimeout = 10 * time.Second

// Open loads the local copy, requests the edit lease and starts syncing.
// A draft that exists only on the server is pulled down first.
func (s *Session) Open(ctx context.Context) (models.Draft, lease.State) {
	d := s.store.Load(ctx)
	if !s.store.HasDraft(ctx) && s.conn.Online() {
		if remote := s.fetch(ctx); remote != nil {
			d = s.store.Update(func(models.Draft) models.Draft { return *remote },
				localstore.Silent(), localstore.NoNotify(), localstore.Adopt())
		}
	}

	s.engine = syncer.New(s.remote, s.conn, syncer.Options{
		BaseVersion:   d.Version,
		Delay:         s.cfg.SyncDelay,
		RetryInterval: s.cfg.RetryInterval,
		Logger:        s.cfg.Logger,
		Audit:         s.cfg.Audit,
	})
	s.engine.OnSynced(func(version int64, _ time.Time) {
		s.store.Update(func(d models.Draft) models.Draft {
			d.Version = version
			return d
		}, localstore.Silent(), localstore.NoNotify())
	})
	s.unsubscribe = s.store.OnCommit(s.engine.ScheduleSync)
	s.engine.Start()

	state := s.lease.Acquire(ctx)
	if state == lease.Held && s.store.Dirty() {
		// recovered local edits may never have reached the server
		s.engine.ScheduleSync(d)
	}
	return s.store.Value(), state
}

func (s *Session) fetch(ctx context.Context) *models.Draft {
	fctx, cancel := context.WithTimeout(ctx, FetchTimeout)
	defer cancel()
	remote, err := s.remote.FetchDraft(fctx, s.cfg.DraftID)
	if err != nil {
		if !errors.Is(err, common.ErrorNotFound) {
			s.logger.Warn(ctx, "failed to fetch remote copy", "error", err)
		}
		return nil
	}
	s.logger.Info(ctx, "pulled remote copy", "version", remote.Version)
	return remote
}

// Edit applies fn to the draft. It is refused while another device holds
// the lease.
func (s *Session) Edit(fn func(models.Draft) models.Draft, opts ...localstore.UpdateOption) (models.Draft, error) {
	if !s.lease.CanEdit() {
		return s.store.Value(), common.ErrLeaseHeld
	}
	return s.store.Update(fn, opts...), nil
}

// Merge sets top-level keys of the draft data.
func (s *Session) Merge(patch models.Record, opts ...localstore.UpdateOption) (models.Draft, error) {
	if !s.lease.CanEdit() {
		return s.store.Value(), common.ErrLeaseHeld
	}
	return s.store.Merge(patch, opts...), nil
}

func (s *Session) Value() models.Draft {
	return s.store.Value()
}

func (s *Session) Status() Status {
	st := Status{
		Lease:         s.lease.State(),
		Optimistic:    s.lease.Optimistic(),
		Holder:        s.lease.Holder(),
		Dirty:         s.store.Dirty(),
		LastSaveError: s.store.LastSaveError(),
	}
	if s.engine != nil {
		st.Sync = s.engine.Status()
		st.Conflict = s.engine.Conflict()
		st.BaseVersion = s.engine.BaseVersion()
		st.LastSyncError = s.engine.LastError()
	}
	return st
}

// Sync pushes pending changes now.
func (s *Session) Sync(ctx context.Context) error {
	if s.engine == nil {
		return nil
	}
	return s.engine.FlushSync(ctx)
}

// Resolve settles a conflict and records the outcome in the local copy.
// KeepMine overwrites the server, so it is refused while another device
// holds the lease; UseTheirs only reads.
func (s *Session) Resolve(ctx context.Context, r syncer.Resolution) (models.Draft, error) {
	if s.engine == nil {
		return models.Draft{}, common.ErrNoConflict
	}
	if r == syncer.KeepMine && !s.lease.CanEdit() {
		return s.store.Value(), common.ErrLeaseHeld
	}
	d, err := s.engine.ResolveConflict(ctx, r)
	if err != nil {
		return s.store.Value(), err
	}
	return s.store.Update(func(models.Draft) models.Draft { return d },
		localstore.Silent(), localstore.NoNotify(), localstore.Adopt()), nil
}

func (s *Session) Dismiss() {
	if s.engine != nil {
		s.engine.DismissConflict()
	}
}

// Retry re-requests a lease held elsewhere and re-sends a pending push.
func (s *Session) Retry(ctx context.Context) lease.State {
	state := s.lease.Retry(ctx)
	if s.engine != nil {
		s.engine.Retry()
	}
	return state
}

// ReleaseWait bounds how long Close lets the lease release run before
// returning. The server TTL covers a release that does not make it.
const ReleaseWait = time.Second

// Close flushes pending work and releases the lease. The release is not
// acknowledged; Close only gives it up to ReleaseWait so the caller can
// shut the transport down afterwards.
func (s *Session) Close(ctx context.Context) {
	if s.engine != nil {
		if err := s.engine.FlushSync(ctx); err != nil && !errors.Is(err, common.ErrOffline) {
			s.logger.Warn(ctx, "final sync failed, changes kept locally", "error", err)
		}
	}
	if err := s.store.Flush(ctx); err != nil {
		s.logger.Warn(ctx, "final save failed", "error", err)
	}
	s.teardown()

	done := s.lease.Close()
	timer := time.NewTimer(ReleaseWait)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		s.logger.Warn(ctx, "lease release still in flight, leaving it to expire")
	case <-ctx.Done():
	}
}

// Discard deletes the local copy and releases the lease.
func (s *Session) Discard(ctx context.Context) error {
	s.teardown()
	s.lease.Release(ctx)
	err := s.store.ClearDraft(ctx)
	s.store.Close()
	return err
}

func (s *Session) teardown() {
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	if s.engine != nil {
		s.engine.Close()
	}
	s.store.Close()
}
