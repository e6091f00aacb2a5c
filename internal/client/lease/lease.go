// Package lease gates editing of one draft behind a time-bounded lease
// held on the server.
//
// The server is the authority on who holds a lease. The manager only
// tracks what it last learned: a failed renewal never takes the lease
// away, and a lease request that cannot reach the server leaves the draft
// editable in optimistic mode. Only an explicit refusal from a fresh
// acquire moves a held lease to BlockedByOther.
package lease

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

const (
	DefaultRenewInterval = 5 * time.Minute
	DefaultCallTimeout   = 10 * time.Second
)

type State int

const (
	Unleased State = iota
	Held
	BlockedByOther
)

func (s State) String() string {
	switch s {
	case Held:
		return "held"
	case BlockedByOther:
		return "blocked"
	default:
		return "unleased"
	}
}

// Remote is the lease half of the remote draft store. The caller identity
// is bound to the implementation.
type Remote interface {
	AcquireLease(ctx context.Context, draftID string) (bool, *models.LeaseInfo, error)
	RenewLease(ctx context.Context, draftID string) (bool, error)
	ReleaseLease(ctx context.Context, draftID string) error
	GetLeaseInfo(ctx context.Context, draftID string) (*models.LeaseInfo, error)
}

type Options struct {
	DraftID       string
	RenewInterval time.Duration
	CallTimeout   time.Duration
	Logger        logging.Logger
	Audit         audit.Sink
}

type Manager struct {
	remote      Remote
	draftID     string
	interval    time.Duration
	callTimeout time.Duration
	logger      logging.Logger
	audit       audit.Sink

	mu          sync.Mutex
	state       State
	optimistic  bool
	holder      *models.LeaseInfo
	gen         uint64
	stopRenewal context.CancelFunc
	closed      bool
	subs        []func(State)
}

func NewManager(remote Remote, opts Options) *Manager {
	if opts.RenewInterval <= 0 {
		opts.RenewInterval = DefaultRenewInterval
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = DefaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLogSink(opts.Logger)
	}
	return &Manager{
		remote:      remote,
		draftID:     opts.DraftID,
		interval:    opts.RenewInterval,
		callTimeout: opts.CallTimeout,
		logger:      opts.Logger.With("module", "lease", "draft", opts.DraftID),
		audit:       opts.Audit,
	}
}

// Acquire requests the lease and returns the resulting state.
func (m *Manager) Acquire(ctx context.Context) State {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return Unleased
	}
	gen := m.gen
	m.mu.Unlock()

	granted, holder, err := m.acquire(ctx)

	switch {
	case err != nil:
		if m.setHeld(gen, true) {
			m.logger.Warn(ctx, "lease request failed, editing optimistically", "error", err)
			m.audit.LogEvent(ctx, audit.KindLease, m.draftID, "lease server unreachable, editing optimistically", audit.SeverityWarning)
		}
	case granted:
		if m.setHeld(gen, false) {
			m.logger.Info(ctx, "lease granted")
		} else {
			// released while the request was in flight
			m.releaseDetached(make(chan struct{}))
		}
	default:
		m.setBlocked(ctx, gen, holder)
	}
	return m.State()
}

func (m *Manager) acquire(ctx context.Context) (bool, *models.LeaseInfo, error) {
	cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
	defer cancel()
	return m.remote.AcquireLease(cctx, m.draftID)
}

// setHeld moves to Held unless gen went stale meanwhile.
func (m *Manager) setHeld(gen uint64, optimistic bool) bool {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return false
	}
	m.optimistic = optimistic
	m.holder = nil
	changed := m.state != Held
	m.state = Held
	if m.stopRenewal == nil {
		m.startRenewalLocked()
	}
	subs := m.subsLocked(changed)
	m.mu.Unlock()

	notify(subs, Held)
	return true
}

func (m *Manager) setBlocked(ctx context.Context, gen uint64, holder *models.LeaseInfo) {
	if holder == nil {
		cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
		info, err := m.remote.GetLeaseInfo(cctx, m.draftID)
		cancel()
		if err != nil {
			m.logger.Warn(ctx, "lease holder lookup failed", "error", err)
		}
		holder = info
	}

	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.stopRenewalLocked()
	m.optimistic = false
	m.holder = holder
	changed := m.state != BlockedByOther
	m.state = BlockedByOther
	subs := m.subsLocked(changed)
	m.mu.Unlock()

	msg := "draft is locked by another device"
	if holder != nil {
		msg = fmt.Sprintf("draft is locked by %s on %s since %s", holder.LockedBy, holder.LockDeviceID, holder.LockedAt.Format(time.RFC3339))
	}
	m.logger.Info(ctx, msg)
	m.audit.LogEvent(ctx, audit.KindLease, m.draftID, msg, audit.SeverityInfo)

	notify(subs, BlockedByOther)
}

func (m *Manager) startRenewalLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	m.stopRenewal = cancel
	gen := m.gen

	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.renew(ctx, gen)
			}
		}
	}()
}

// stopRenewalLocked cancels the renewal task and invalidates results of
// calls still in flight.
func (m *Manager) stopRenewalLocked() {
	m.gen++
	if m.stopRenewal != nil {
		m.stopRenewal()
		m.stopRenewal = nil
	}
}

func (m *Manager) renew(ctx context.Context, gen uint64) {
	m.mu.Lock()
	optimistic := m.optimistic
	m.mu.Unlock()

	if !optimistic {
		cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
		renewed, err := m.remote.RenewLease(cctx, m.draftID)
		cancel()
		if err != nil {
			m.logger.Warn(ctx, "lease renewal failed", "error", err)
			return
		}
		if renewed {
			m.logger.Debug(ctx, "lease renewed")
			return
		}
		m.logger.Warn(ctx, "lease no longer held, re-acquiring")
	}

	granted, holder, err := m.acquire(ctx)

	switch {
	case err != nil:
		m.logger.Warn(ctx, "lease re-acquire failed", "error", err)
	case granted:
		m.mu.Lock()
		if gen == m.gen {
			m.optimistic = false
		}
		m.mu.Unlock()
	default:
		m.setBlocked(ctx, gen, holder)
	}
}

// Release gives the lease up. Failures are logged only.
func (m *Manager) Release(ctx context.Context) {
	m.mu.Lock()
	m.stopRenewalLocked()
	wasHeld := m.state == Held
	changed := m.state != Unleased
	m.state = Unleased
	m.optimistic = false
	m.holder = nil
	subs := m.subsLocked(changed)
	m.mu.Unlock()

	if wasHeld {
		cctx, cancel := context.WithTimeout(ctx, m.callTimeout)
		if err := m.remote.ReleaseLease(cctx, m.draftID); err != nil {
			m.logger.Warn(ctx, "lease release failed", "error", err)
		}
		cancel()
	}
	notify(subs, Unleased)
}

// Retry re-runs Acquire when another device held the lease.
func (m *Manager) Retry(ctx context.Context) State {
	if m.State() != BlockedByOther {
		return m.State()
	}
	return m.Acquire(ctx)
}

// Close stops renewal and sends a release without waiting for it. The
// returned channel is closed once that release has finished (at once when
// there was nothing to release), so callers tearing down the transport can
// give it a bounded head start.
func (m *Manager) Close() <-chan struct{} {
	done := make(chan struct{})

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		close(done)
		return done
	}
	m.closed = true
	m.stopRenewalLocked()
	wasHeld := m.state == Held
	m.state = Unleased
	m.subs = nil
	m.mu.Unlock()

	if !wasHeld {
		close(done)
		return done
	}
	m.releaseDetached(done)
	return done
}

func (m *Manager) releaseDetached(done chan struct{}) {
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.Background(), m.callTimeout)
		defer cancel()
		if err := m.remote.ReleaseLease(ctx, m.draftID); err != nil {
			m.logger.Debug(ctx, "release on close failed", "error", err)
		}
	}()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// CanEdit reports whether the draft may accept input.
func (m *Manager) CanEdit() bool {
	return m.State() == Held
}

// Optimistic reports whether Held rests on an unconfirmed acquire.
func (m *Manager) Optimistic() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == Held && m.optimistic
}

// Holder is the other device's lease while BlockedByOther, if known.
func (m *Manager) Holder() *models.LeaseInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.holder == nil {
		return nil
	}
	h := *m.holder
	return &h
}

// OnChange registers fn to be called after every state transition.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}

func (m *Manager) subsLocked(changed bool) []func(State) {
	if !changed {
		return nil
	}
	return append([]func(State){}, m.subs...)
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
