// Package localstore keeps one draft in memory and persists it to the
// device under encryption.
//
// Writes are debounced: only the trailing value of a burst of updates is
// encrypted and written. Failures while loading, encrypting or writing are
// logged and recorded in the audit trail; they never reach the caller,
// which keeps working on the in-memory value.
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/audit"
	"github.com/dmitrijs2005/draftkeeper/internal/logging"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

const (
	DefaultDebounce = 500 * time.Millisecond
	writeTimeout    = 10 * time.Second
)

// KV is the device-local persistence the store writes to.
// Get returns (nil, nil) for an absent key.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

type Cipher interface {
	Encrypt(v any) (string, error)
	Decrypt(s string, v any) error
	IsEncrypted(s string) bool
}

type Options struct {
	// Key is the storage key of the draft.
	Key string
	// Initial is the template the store starts from and falls back to.
	Initial  models.Draft
	Debounce time.Duration
	Logger   logging.Logger
	Audit    audit.Sink
	Now      func() time.Time
}

type Store struct {
	kv     KV
	cipher Cipher
	key    string

	initial  models.Draft
	debounce time.Duration
	logger   logging.Logger
	audit    audit.Sink
	now      func() time.Time

	mu          sync.Mutex
	value       models.Draft
	dirty       bool
	pending     bool
	gen         uint64
	timer       *time.Timer
	closed      bool
	lastSaveErr error
	subs        map[int]func(models.Draft)
	nextSub     int

	// writeMu orders physical writes against deletes.
	writeMu sync.Mutex
}

func New(kv KV, cipher Cipher, opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewLogSink(opts.Logger)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		kv:       kv,
		cipher:   cipher,
		key:      opts.Key,
		initial:  opts.Initial.Clone(),
		debounce: opts.Debounce,
		logger:   opts.Logger.With("module", "localstore", "key", opts.Key),
		audit:    opts.Audit,
		now:      opts.Now,
		value:    opts.Initial.Clone(),
		subs:     make(map[int]func(models.Draft)),
	}
}

// Load reads the stored draft, migrating it to the current shape. It
// returns the initial template when nothing usable is stored.
func (s *Store) Load(ctx context.Context) models.Draft {
	d, found := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = d
	s.dirty = found
	s.pending = false
	return s.value.Clone()
}

func (s *Store) load(ctx context.Context) (models.Draft, bool) {
	raw, err := s.kv.Get(ctx, s.key)
	if err != nil {
		s.fail(ctx, audit.KindStorage, "failed to read stored draft", err)
		return s.initial.Clone(), false
	}
	if raw == nil {
		return s.initial.Clone(), false
	}

	var stored map[string]any
	if text := string(raw); s.cipher.IsEncrypted(text) {
		if err := s.cipher.Decrypt(text, &stored); err != nil {
			s.fail(ctx, audit.KindEncryption, "stored draft could not be decrypted", err)
			return s.initial.Clone(), false
		}
	} else {
		if err := json.Unmarshal(raw, &stored); err != nil || stored == nil {
			if err == nil {
				err = fmt.Errorf("stored value is not an object")
			}
			s.fail(ctx, audit.KindStorage, "stored draft could not be parsed", err)
			return s.initial.Clone(), false
		}
		s.reencrypt(ctx, stored)
	}

	d, from, err := migrateDraft(stored, s.initial)
	if err != nil {
		s.fail(ctx, audit.KindMigration, "stored draft could not be migrated", err)
		return s.initial.Clone(), false
	}
	if from < models.CurrentSchemaVersion {
		s.audit.LogEvent(ctx, audit.KindMigration, s.key,
			fmt.Sprintf("upgraded draft from schema %d to %d", from, models.CurrentSchemaVersion), audit.SeverityInfo)
	}
	return d, true
}

// reencrypt replaces a legacy plaintext record with its ciphertext. When
// encryption fails the plaintext stays on disk.
func (s *Store) reencrypt(ctx context.Context, stored map[string]any) {
	enc, err := s.cipher.Encrypt(stored)
	if err != nil {
		s.logger.Warn(ctx, "legacy draft kept in plaintext", "error", err)
		s.audit.LogEvent(ctx, audit.KindEncryption, s.key, "legacy draft kept in plaintext: "+err.Error(), audit.SeverityWarning)
		return
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.kv.Set(ctx, s.key, []byte(enc)); err != nil {
		s.fail(ctx, audit.KindStorage, "failed to write back encrypted legacy draft", err)
	}
}

type updateOptions struct {
	silent   bool
	noNotify bool
	adopt    bool
}

type UpdateOption func(*updateOptions)

// Silent marks an update as derived: it is persisted but does not mark the
// draft dirty.
func Silent() UpdateOption {
	return func(o *updateOptions) { o.silent = true }
}

// NoNotify keeps commit subscribers from seeing the update.
func NoNotify() UpdateOption {
	return func(o *updateOptions) { o.noNotify = true }
}

// Adopt marks the new value as a copy taken from elsewhere (the server).
// Its LastModified is kept when later than the local one; otherwise the
// update is stamped like any other.
func Adopt() UpdateOption {
	return func(o *updateOptions) { o.adopt = true }
}

// Update applies fn to a copy of the current value and schedules a write.
// fn must not call back into the store.
func (s *Store) Update(fn func(models.Draft) models.Draft, opts ...UpdateOption) models.Draft {
	var o updateOptions
	for _, opt := range opts {
		opt(&o)
	}

	s.mu.Lock()
	if s.closed {
		v := s.value.Clone()
		s.mu.Unlock()
		return v
	}
	next := fn(s.value.Clone())
	incoming := next.LastModified
	next.LastModified = s.value.LastModified
	if o.adopt && incoming.After(next.LastModified) {
		next.LastModified = incoming
	} else {
		next.Touch(s.now())
	}
	s.value = next
	if !o.silent {
		s.dirty = true
	}
	s.scheduleLocked()

	var subs []func(models.Draft)
	if !o.noNotify {
		for _, fn := range s.subs {
			subs = append(subs, fn)
		}
	}
	out := s.value.Clone()
	s.mu.Unlock()

	for _, fn := range subs {
		fn(out.Clone())
	}
	return out
}

// Merge sets the given top-level keys of the draft's data.
func (s *Store) Merge(patch models.Record, opts ...UpdateOption) models.Draft {
	return s.Update(func(d models.Draft) models.Draft {
		if d.Data == nil {
			d.Data = models.Record{}
		}
		for k, v := range patch {
			d.Data[k] = models.CloneValue(v)
		}
		return d
	}, opts...)
}

func (s *Store) scheduleLocked() {
	s.gen++
	s.pending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_ = s.persist(ctx, gen)
	})
}

// persist writes the current value if gen is still the latest scheduled
// generation.
func (s *Store) persist(ctx context.Context, gen uint64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed || gen != s.gen || !s.pending {
		s.mu.Unlock()
		return nil
	}
	s.pending = false
	snapshot := s.value.Clone()
	s.mu.Unlock()

	err := s.write(ctx, snapshot)

	s.mu.Lock()
	s.lastSaveErr = err
	s.mu.Unlock()
	return err
}

func (s *Store) write(ctx context.Context, d models.Draft) error {
	enc, err := s.cipher.Encrypt(d)
	if err != nil {
		s.fail(ctx, audit.KindEncryption, "draft not saved: encryption failed", err)
		return err
	}
	if err := s.kv.Set(ctx, s.key, []byte(enc)); err != nil {
		s.fail(ctx, audit.KindStorage, "draft not saved: write failed", err)
		return err
	}
	s.logger.Debug(ctx, "draft saved", "lastModified", d.LastModified)
	return nil
}

// Flush writes a pending update now instead of waiting for the debounce.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.mu.Unlock()

	return s.persist(ctx, gen)
}

// ClearDraft cancels any pending write, deletes the stored record and
// resets the in-memory value to the template.
func (s *Store) ClearDraft(ctx context.Context) error {
	s.mu.Lock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	s.pending = false
	s.mu.Unlock()

	s.writeMu.Lock()
	err := s.kv.Delete(ctx, s.key)
	s.writeMu.Unlock()
	if err != nil {
		s.fail(ctx, audit.KindStorage, "failed to delete stored draft", err)
	}

	s.mu.Lock()
	s.value = s.initial.Clone()
	s.dirty = false
	s.mu.Unlock()
	return err
}

// HasDraft reports whether a record exists under the key without
// decrypting it.
func (s *Store) HasDraft(ctx context.Context) bool {
	ok, err := s.kv.Exists(ctx, s.key)
	if err != nil {
		s.logger.Warn(ctx, "draft existence check failed", "error", err)
		return false
	}
	return ok
}

func (s *Store) Value() models.Draft {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value.Clone()
}

func (s *Store) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Pending reports whether an update is waiting for its debounced write.
func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// LastSaveError is the outcome of the most recent physical write.
func (s *Store) LastSaveError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSaveErr
}

// OnCommit registers fn to receive every committed value. The returned
// func removes the subscription.
func (s *Store) OnCommit(fn func(models.Draft)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

// Close cancels the pending write. Call Flush first to keep it.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.closed = true
	s.pending = false
	s.subs = make(map[int]func(models.Draft))
}

func (s *Store) fail(ctx context.Context, kind audit.Kind, msg string, err error) {
	s.logger.Error(ctx, msg, "error", err)
	s.audit.LogEvent(ctx, kind, s.key, msg+": "+err.Error(), audit.SeverityError)
}
