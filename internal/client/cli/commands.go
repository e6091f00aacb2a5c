package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/draftkeeper/internal/client/lease"
	"github.com/dmitrijs2005/draftkeeper/internal/client/session"
	"github.com/dmitrijs2005/draftkeeper/internal/client/syncer"
	"github.com/dmitrijs2005/draftkeeper/internal/common"
	"github.com/dmitrijs2005/draftkeeper/internal/models"
)

var errNoDraft = errors.New("no draft is open, use new or open")

func (a *App) hasDraft() bool {
	return a.session != nil
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// New starts a fresh draft of the given type (assessment by default).
func (a *App) New(ctx context.Context, args []string) error {
	t := models.DraftTypeAssessment
	if len(args) > 0 {
		parsed, ok := models.ParseDraftType(args[0])
		if !ok {
			err := fmt.Errorf("%w: unknown draft type %q", common.ErrInvalidArgument, args[0])
			a.printf("error: %v\n", err)
			return err
		}
		t = parsed
	}
	return a.open(ctx, models.NewDraftID(), t)
}

// Open resumes a draft by id, prompting for the id when none is given.
func (a *App) Open(ctx context.Context, args []string) error {
	var id string
	if len(args) > 0 {
		id = args[0]
	} else {
		var err error
		if id, err = getSimpleText(a.reader, "Enter draft id", a.out); err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("%w: empty draft id", common.ErrInvalidArgument)
	}
	return a.open(ctx, id, models.DraftTypeAssessment)
}

func (a *App) open(ctx context.Context, id string, t models.DraftType) error {
	if a.session != nil {
		a.session.Close(ctx)
		a.session = nil
	}

	s := session.New(a.kv, a.cipher, a.api, a.conn, session.Config{
		DraftID:       id,
		Type:          t,
		Debounce:      a.config.SaveDebounce,
		SyncDelay:     a.config.SyncDelay,
		RenewInterval: a.config.LeaseRenewInterval,
		Logger:        a.logger,
		Audit:         a.audit,
	})
	d, state := s.Open(ctx)
	a.session = s
	a.draftID = id

	a.printf("Opened %s (%s), step %d\n", d.ID, d.Type, d.CurrentStep)
	if state == lease.BlockedByOther {
		a.printBlocked(s.Status().Holder)
	}
	return nil
}

func (a *App) printBlocked(h *models.LeaseInfo) {
	if h == nil {
		a.printf("This draft is being edited on another device. It is read-only here; use retry later.\n")
		return
	}
	a.printf("This draft is being edited by %s on device %s since %s. It is read-only here; use retry later.\n",
		h.LockedBy, h.LockDeviceID, h.LockedAt.Local().Format(time.DateTime))
}

// List prints the drafts kept on this device.
func (a *App) List(ctx context.Context) error {
	keys, err := a.kv.List(ctx, session.StorageKeyPrefix)
	if err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	if len(keys) == 0 {
		a.printf("No drafts on this device\n")
		return nil
	}
	sort.Strings(keys)

	for _, key := range keys {
		id := strings.TrimPrefix(key, session.StorageKeyPrefix)
		mark := " "
		if id == a.draftID && a.session != nil {
			mark = "*"
		}
		d, err := a.peek(ctx, key)
		if err != nil {
			a.printf("%s %s  <unreadable: %v>\n", mark, id, err)
			continue
		}
		a.printf("%s %s  %-15s  %-20q  step %d  %s\n", mark, id, d.Type, d.ClientName, d.CurrentStep,
			d.LastModified.Local().Format(time.DateTime))
	}
	return nil
}

// peek decodes a stored draft for listing without opening it.
func (a *App) peek(ctx context.Context, key string) (models.Draft, error) {
	var d models.Draft
	raw, err := a.kv.Get(ctx, key)
	if err != nil {
		return d, err
	}
	if raw == nil {
		return d, common.ErrorNotFound
	}
	if a.cipher.IsEncrypted(string(raw)) {
		err = a.cipher.Decrypt(string(raw), &d)
	} else {
		err = json.Unmarshal(raw, &d)
	}
	return d, err
}

// Set writes one or more fields. Without arguments it reads assignments
// interactively.
func (a *App) Set(ctx context.Context, args []string) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	lines := args
	if len(lines) == 0 {
		var err error
		if lines, err = GetAssignments(a.reader, a.out); err != nil {
			return err
		}
	}

	list := make([]assignment, 0, len(lines))
	for _, l := range lines {
		as, err := parseAssignment(l)
		if err != nil {
			a.printf("error: %v\n", err)
			return err
		}
		list = append(list, as)
	}

	_, err := a.session.Edit(func(d models.Draft) models.Draft {
		for _, as := range list {
			applyAssignment(&d, as)
		}
		return d
	})
	if err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	a.printf("Saved %d field(s)\n", len(list))
	return nil
}

func applyAssignment(d *models.Draft, as assignment) {
	if d.Data == nil {
		d.Data = models.Record{}
	}
	if len(as.path) == 1 {
		switch as.path[0] {
		case "clientName":
			d.ClientName = fmt.Sprint(as.value)
		case "linkedAssessmentId":
			d.LinkedAssessmentID = fmt.Sprint(as.value)
		default:
			d.Data[as.path[0]] = as.value
		}
		return
	}
	section, ok := d.Data[as.path[0]].(map[string]any)
	if !ok {
		section = map[string]any{}
	}
	section[as.path[1]] = as.value
	d.Data[as.path[0]] = section
}

// Step moves the wizard: "next", "back" or an absolute step number.
func (a *App) Step(ctx context.Context, args []string) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	if len(args) == 0 {
		a.printf("Usage: step <n>|next|back\n")
		return common.ErrInvalidArgument
	}

	var move func(int) int
	switch args[0] {
	case "next", "+":
		move = func(cur int) int { return cur + 1 }
	case "back", "-":
		move = func(cur int) int { return max(cur-1, 0) }
	default:
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 0 {
			a.printf("Usage: step <n>|next|back\n")
			return common.ErrInvalidArgument
		}
		move = func(int) int { return n }
	}

	d, err := a.session.Edit(func(d models.Draft) models.Draft {
		d.CurrentStep = move(d.CurrentStep)
		return d
	})
	if err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	a.printf("Step %d\n", d.CurrentStep)
	return nil
}

// Submit marks the draft as submitted and pushes it.
func (a *App) Submit(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	if _, err := a.session.Edit(func(d models.Draft) models.Draft {
		d.Status = models.DraftStatusSubmitted
		return d
	}); err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	return a.Sync(ctx)
}

// Show prints the open draft as JSON.
func (a *App) Show(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	b, err := json.MarshalIndent(a.session.Value(), "", "  ")
	if err != nil {
		return err
	}
	a.printf("%s\n", b)
	return nil
}

// Sync pushes pending changes now.
func (a *App) Sync(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	err := a.session.Sync(ctx)
	switch {
	case errors.Is(err, common.ErrOffline):
		a.printf("Offline: changes are kept on this device and will be sent when the connection returns\n")
		return err
	case err != nil:
		a.printf("Sync failed, will retry: %v\n", err)
		return err
	}

	st := a.session.Status()
	if st.Conflict != nil {
		a.printConflict(st.Conflict)
		return nil
	}
	a.printf("Synced, version %d\n", st.BaseVersion)
	return nil
}

func (a *App) printConflict(c *syncer.ConflictInfo) {
	a.printf("Conflict: %q was changed elsewhere (remote version %d, %s).\n", c.ClientName, c.RemoteVersion,
		c.RemoteUpdatedAt.Local().Format(time.DateTime))
	a.printf("Use 'resolve mine' to overwrite it, 'resolve theirs' to take it, or 'dismiss' to decide later.\n")
}

// Resolve settles a conflict with "mine" or "theirs".
func (a *App) Resolve(ctx context.Context, args []string) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	if len(args) == 0 {
		a.printf("Usage: resolve mine|theirs\n")
		return common.ErrInvalidArgument
	}

	var r syncer.Resolution
	switch args[0] {
	case "mine":
		r = syncer.KeepMine
	case "theirs":
		r = syncer.UseTheirs
	default:
		a.printf("Usage: resolve mine|theirs\n")
		return common.ErrInvalidArgument
	}

	d, err := a.session.Resolve(ctx, r)
	if err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	a.printf("Resolved, version %d, step %d\n", d.Version, d.CurrentStep)
	return nil
}

func (a *App) Dismiss(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	a.session.Dismiss()
	return nil
}

// Retry re-requests the lease and re-sends a pending push.
func (a *App) Retry(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	if a.session.Retry(ctx) == lease.BlockedByOther {
		a.printBlocked(a.session.Status().Holder)
		return common.ErrLeaseHeld
	}
	a.printf("Editing enabled\n")
	return nil
}

// Status prints the lease, sync and local save state of the open draft.
func (a *App) Status(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	d := a.session.Value()
	st := a.session.Status()

	a.printf("draft:  %s (%s, %s) %q step %d\n", d.ID, d.Type, d.Status, d.ClientName, d.CurrentStep)

	leaseLine := st.Lease.String()
	if st.Optimistic {
		leaseLine += " (not confirmed by server)"
	}
	a.printf("lease:  %s\n", leaseLine)

	a.printf("sync:   %s, version %d\n", st.Sync, st.BaseVersion)
	if st.LastSyncError != nil {
		a.printf("        last error: %v\n", st.LastSyncError)
	}
	if st.LastSaveError != nil {
		a.printf("saving: failed: %v\n", st.LastSaveError)
	} else {
		a.printf("saving: ok\n")
	}
	if st.Conflict != nil {
		a.printConflict(st.Conflict)
	}
	return nil
}

// Discard deletes the local copy of the open draft and closes it.
func (a *App) Discard(ctx context.Context) error {
	if a.session == nil {
		a.printf("%v\n", errNoDraft)
		return errNoDraft
	}
	err := a.session.Discard(ctx)
	a.session = nil
	a.draftID = ""
	if err != nil {
		a.printf("error: %v\n", err)
		return err
	}
	a.printf("Local copy discarded\n")
	return nil
}

// Close saves and closes the open draft.
func (a *App) Close(ctx context.Context) error {
	if a.session == nil {
		return nil
	}
	a.session.Close(ctx)
	a.session = nil
	a.draftID = ""
	return nil
}
