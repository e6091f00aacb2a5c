// Package syncer pushes locally committed drafts to the remote store in
// the background using compare-and-swap on the draft version.
//
// A version mismatch puts the engine into the Conflict status; pushes stay
// suspended until the caller resolves or dismisses it. Transport failures
// are retried on the next opportunity (next schedule, reconnect or retry
// timer) and never surface as conflicts.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
	"github.com/gowebpki/jcs"
)

const (
	DefaultDelay         = 2 * time.Second
	DefaultRetryInterval = 30 * time.Second
	DefaultCallTimeout   = 15 * time.Second
)

type Remote interface {
	PushDraft(ctx context.Context, d models.Draft, expectedVersion int64, force bool) (models.PushResult, error)
	FetchDraft(ctx context.Context, draftID string) (*models.Draft, error)
}

// Connectivity reports whether the device is online. Subscribe delivers
// every transition until the returned cancel func is called.
type Connectivity interface {
	Online() bool
	Subscribe() (<-chan bool, func())
}

type Status int

const (
	StatusIdle Status = iota
	StatusPending
	StatusSyncing
	StatusOffline
	StatusFailed
	StatusConflict
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSyncing:
		return "syncing"
	case StatusOffline:
		return "offline"
	case StatusFailed:
		return "retrying"
	case StatusConflict:
		return "conflict"
	default:
		return "synced"
	}
}

type Resolution int

const (
	KeepMine Resolution = iota
	UseTheirs
)

// ConflictInfo is what the caller needs to ask the user how to proceed.
type ConflictInfo struct {
	ClientName      string
	RemoteUpdatedAt time.Time
	RemoteVersion   int64
	Remote          *models.Draft
}

type Options struct {
	// BaseVersion is the remote version the local draft was last based on.
	BaseVersion   int64
	Delay         time.Duration
	RetryInterval time.Duration
	CallTimeout   time.Duration
	Logger        logging.Logger
	Audit         audit.Sink
}

type Engine struct {
	remote        Remote
	conn          Connectivity
	delay         time.Duration
	retryInterval time.Duration
	callTimeout   time.Duration
	logger        logging.Logger
	audit         audit.Sink

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// pushMu serializes round trips to the remote.
	pushMu sync.Mutex

	mu          sync.Mutex
	pending     *models.Draft
	seq         uint64
	baseVersion int64
	lastAcked   string
	status      Status
	conflict    *ConflictInfo
	lastErr     error
	timer       *time.Timer
	closed      bool
	subs        []func(version int64, updatedAt time.Time)
}

func New(remote Remote, conn Connectivity, opts Options) *Engine {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
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
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		remote:        remote,
		conn:          conn,
		delay:         opts.Delay,
		retryInterval: opts.RetryInterval,
		callTimeout:   opts.CallTimeout,
		logger:        opts.Logger.With("module", "syncer"),
		audit:         opts.Audit,
		ctx:           ctx,
		cancel:        cancel,
		baseVersion:   opts.BaseVersion,
	}
}

// Start watches connectivity and retries a pending push on reconnect.
func (e *Engine) Start() {
	ch, unsubscribe := e.conn.Subscribe()
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-e.ctx.Done():
				return
			case online, ok := <-ch:
				if !ok {
					return
				}
				if online {
					e.logger.Debug(e.ctx, "back online, retrying pending push")
					e.kick()
				} else {
					e.setOffline()
				}
			}
		}
	}()
}

func (e *Engine) setOffline() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pending != nil && e.status != StatusConflict && e.status != StatusSyncing {
		e.status = StatusOffline
	}
}

// ScheduleSync queues d for a debounced push. Only the latest snapshot is
// sent.
func (e *Engine) ScheduleSync(d models.Draft) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	snap := d.Clone()
	e.pending = &snap
	e.seq++
	if e.status == StatusConflict {
		return
	}
	if e.status != StatusSyncing {
		e.status = StatusPending
	}
	e.armLocked(e.delay)
}

func (e *Engine) armLocked(after time.Duration) {
	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(after, e.kick)
}

// kick runs a background push.
func (e *Engine) kick() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	go func() {
		defer e.wg.Done()
		if err := e.push(e.ctx); err != nil && !errors.Is(err, common.ErrOffline) {
			e.logger.Warn(e.ctx, "background push failed", "error", err)
		}
	}()
}

// FlushSync pushes the pending snapshot now. It returns common.ErrOffline
// when the device is offline and the transport error when the push failed;
// in both cases the snapshot stays queued. A conflict is not an error: check
// Conflict afterwards.
func (e *Engine) FlushSync(ctx context.Context) error {
	e.mu.Lock()
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()
	return e.push(ctx)
}

func (e *Engine) push(ctx context.Context) error {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	e.mu.Lock()
	if e.closed || e.pending == nil || e.status == StatusConflict {
		e.mu.Unlock()
		return nil
	}
	if !e.conn.Online() {
		e.status = StatusOffline
		e.mu.Unlock()
		return common.ErrOffline
	}
	snap := e.pending.Clone()
	seq := e.seq
	base := e.baseVersion
	lastAcked := e.lastAcked
	e.status = StatusSyncing
	e.mu.Unlock()

	canon, err := canonical(snap)
	if err != nil {
		e.logger.Error(ctx, "draft snapshot is not serializable", "error", err)
	}
	if err == nil && canon == lastAcked {
		e.mu.Lock()
		e.settleLocked(seq)
		e.mu.Unlock()
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	res, err := e.remote.PushDraft(cctx, snap, base, false)
	cancel()

	e.mu.Lock()
	if err != nil {
		e.status = StatusFailed
		e.lastErr = err
		if !e.closed {
			e.armLocked(e.retryInterval)
		}
		e.mu.Unlock()
		e.logger.Warn(ctx, "push failed, will retry", "error", err)
		return err
	}

	if res.Conflict {
		e.status = StatusConflict
		e.conflict = &ConflictInfo{
			ClientName:      conflictName(res.Remote, snap),
			RemoteUpdatedAt: res.RemoteUpdatedAt,
			RemoteVersion:   res.RemoteVersion,
			Remote:          res.Remote,
		}
		e.lastErr = nil
		e.mu.Unlock()

		msg := fmt.Sprintf("version conflict: local base %d, remote %d", base, res.RemoteVersion)
		e.logger.Warn(ctx, msg, "draft", snap.ID)
		e.audit.LogEvent(ctx, audit.KindConflict, snap.ID, msg, audit.SeverityWarning)
		return nil
	}

	e.baseVersion = res.NewVersion
	e.lastAcked = canon
	e.lastErr = nil
	e.settleLocked(seq)
	subs := append([]func(int64, time.Time){}, e.subs...)
	e.mu.Unlock()

	e.logger.Debug(ctx, "draft pushed", "draft", snap.ID, "version", res.NewVersion)
	for _, fn := range subs {
		fn(res.NewVersion, res.UpdatedAt)
	}
	return nil
}

// settleLocked clears the pending snapshot unless a newer one arrived
// while the push was in flight.
func (e *Engine) settleLocked(seq uint64) {
	if seq == e.seq {
		e.pending = nil
		e.status = StatusIdle
		return
	}
	e.status = StatusPending
	if !e.closed {
		e.armLocked(e.delay)
	}
}

// ResolveConflict settles the current conflict. KeepMine force-pushes the
// local snapshot and returns it with its new version. UseTheirs discards
// the local snapshot and returns the remote draft.
func (e *Engine) ResolveConflict(ctx context.Context, r Resolution) (models.Draft, error) {
	e.pushMu.Lock()
	defer e.pushMu.Unlock()

	e.mu.Lock()
	if e.status != StatusConflict || e.conflict == nil {
		e.mu.Unlock()
		return models.Draft{}, common.ErrNoConflict
	}
	info := *e.conflict
	var snap *models.Draft
	if e.pending != nil {
		c := e.pending.Clone()
		snap = &c
	}
	seq := e.seq
	base := e.baseVersion
	e.mu.Unlock()

	switch r {
	case KeepMine:
		return e.keepMine(ctx, info, snap, base, seq)
	case UseTheirs:
		return e.useTheirs(ctx, info, snap)
	default:
		return models.Draft{}, fmt.Errorf("%w: unknown resolution %d", common.ErrInvalidArgument, r)
	}
}

func (e *Engine) keepMine(ctx context.Context, info ConflictInfo, snap *models.Draft, base int64, seq uint64) (models.Draft, error) {
	if snap == nil {
		return models.Draft{}, common.ErrNoConflict
	}
	if !e.conn.Online() {
		return models.Draft{}, common.ErrOffline
	}

	cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
	res, err := e.remote.PushDraft(cctx, *snap, base, true)
	cancel()
	if err != nil {
		return models.Draft{}, err
	}
	if !res.OK {
		return models.Draft{}, fmt.Errorf("forced push rejected: %w", common.ErrVersionConflict)
	}

	canon, _ := canonical(*snap)

	e.mu.Lock()
	e.baseVersion = res.NewVersion
	e.lastAcked = canon
	e.conflict = nil
	e.settleLocked(seq)
	subs := append([]func(int64, time.Time){}, e.subs...)
	e.mu.Unlock()

	out := snap.Clone()
	out.Version = res.NewVersion

	msg := fmt.Sprintf("kept local copy over remote version %d, now version %d", info.RemoteVersion, res.NewVersion)
	e.logger.Info(ctx, msg, "draft", snap.ID)
	e.audit.LogEvent(ctx, audit.KindConflict, snap.ID, msg, audit.SeverityWarning)

	for _, fn := range subs {
		fn(res.NewVersion, res.UpdatedAt)
	}
	return out, nil
}

func (e *Engine) useTheirs(ctx context.Context, info ConflictInfo, snap *models.Draft) (models.Draft, error) {
	remote := info.Remote
	if remote == nil {
		if snap == nil {
			return models.Draft{}, common.ErrNoConflict
		}
		cctx, cancel := context.WithTimeout(ctx, e.callTimeout)
		fetched, err := e.remote.FetchDraft(cctx, snap.ID)
		cancel()
		if err != nil {
			return models.Draft{}, err
		}
		remote = fetched
	}

	out := remote.Clone()
	canon, _ := canonical(out)

	e.mu.Lock()
	e.pending = nil
	e.seq++
	e.conflict = nil
	e.baseVersion = out.Version
	e.lastAcked = canon
	e.status = StatusIdle
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	msg := fmt.Sprintf("discarded local changes for remote version %d", out.Version)
	e.logger.Info(ctx, msg, "draft", out.ID)
	e.audit.LogEvent(ctx, audit.KindConflict, out.ID, msg, audit.SeverityInfo)
	return out, nil
}

// DismissConflict leaves the conflict unresolved. The local snapshot stays
// queued and conflicts again on the next push.
func (e *Engine) DismissConflict() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != StatusConflict {
		return
	}
	e.conflict = nil
	if e.pending != nil {
		e.status = StatusPending
	} else {
		e.status = StatusIdle
	}
}

// Retry pushes the pending snapshot now in the background.
func (e *Engine) Retry() {
	e.kick()
}

func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) Conflict() *ConflictInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.conflict == nil {
		return nil
	}
	c := *e.conflict
	return &c
}

func (e *Engine) BaseVersion() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseVersion
}

// LastError is the most recent transport failure, cleared by a successful
// round trip.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// HasPending reports whether a snapshot is waiting to be pushed.
func (e *Engine) HasPending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pending != nil
}

// OnSynced registers fn to receive the new remote version after every
// accepted push.
func (e *Engine) OnSynced(fn func(version int64, updatedAt time.Time)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subs = append(e.subs, fn)
}

// Close stops timers and background work. Pending snapshots are dropped;
// call FlushSync first to keep them.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}

func conflictName(remote *models.Draft, local models.Draft) string {
	if remote != nil && remote.ClientName != "" {
		return remote.ClientName
	}
	return local.ClientName
}

// canonical is the RFC 8785 form of d without its version, used to skip
// pushing a snapshot identical to the last acknowledged one.
func canonical(d models.Draft) (string, error) {
	d.Version = 0
	raw, err := json.Marshal(d)
	if err != nil {
		return "", err
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
