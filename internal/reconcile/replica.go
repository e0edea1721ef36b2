package reconcile

import (
	"context"
	"log"
	"sync"
	"time"

	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/parse"
	"checkin-billboard-backend/internal/pickup"
)

// DefaultEditLease bounds how long an uncommitted edit blocks server sync.
const DefaultEditLease = 10 * time.Second

// Selection is the event, date and codes a client has selected.
type Selection struct {
	EventID       string
	EventName     string
	EventDate     string
	SecurityCodes []string
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool {
	return s.EventID == "" && s.EventDate == "" && len(s.SecurityCodes) == 0
}

func (s Selection) clone() Selection {
	s.SecurityCodes = append([]string(nil), s.SecurityCodes...)
	return s
}

func selectionOf(snap *billboard.Snapshot) Selection {
	return Selection{
		EventID:       snap.EventID,
		EventName:     snap.EventName,
		EventDate:     snap.EventDate,
		SecurityCodes: append([]string(nil), snap.SecurityCodes...),
	}
}

// Result is the outcome of one poll. Seq is taken from Replica.Begin when the
// poll starts.
type Result struct {
	Seq              uint64
	Billboard        *billboard.Snapshot
	BillboardErr     error
	Notifications    []pickup.Notification
	NotificationsErr error
}

// Replica is a client's local copy of the billboard, merged with server
// state on every poll.
type Replica struct {
	mu     sync.Mutex
	source Source
	lease  time.Duration
	now    func() time.Time

	phase      Phase
	leaseUntil time.Time
	sel        Selection
	// synced is set when sel was copied from the server rather than edited locally.
	synced bool
	// dirty is set by an edit made while a commit is in flight.
	dirty bool

	server        *billboard.Snapshot
	dismissed     bool
	dismissedAt   time.Time
	notifications []pickup.Notification
	lastErr       error

	nextSeq uint64
	applied uint64
	stopped bool
}

// ReplicaOption configures a Replica.
type ReplicaOption func(*Replica)

// WithLease sets the manual-edit lease.
func WithLease(d time.Duration) ReplicaOption {
	return func(r *Replica) {
		if d > 0 {
			r.lease = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ReplicaOption {
	return func(r *Replica) { r.now = now }
}

// NewReplica creates an idle replica. source serves Commit and ClearGlobal.
func NewReplica(source Source, opts ...ReplicaOption) *Replica {
	r := &Replica{
		source:        source,
		lease:         DefaultEditLease,
		now:           time.Now,
		notifications: []pickup.Notification{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Begin reserves the sequence number of a request about to start.
func (r *Replica) Begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSeq++
	return r.nextSeq
}

// Apply merges a poll result. It returns false when the result was
// discarded because a later request has already been applied or the
// replica has been stopped.
func (r *Replica) Apply(res Result) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped || res.Seq <= r.applied {
		return false
	}
	r.applied = res.Seq
	r.expireLease()

	// Read-only displays update in every phase.
	if res.NotificationsErr == nil && res.Notifications != nil {
		r.notifications = append([]pickup.Notification(nil), res.Notifications...)
	}

	if res.BillboardErr != nil {
		r.lastErr = res.BillboardErr
		return true
	}
	r.lastErr = res.NotificationsErr
	r.observe(res.Billboard)
	return true
}

// observe records a fresh server snapshot and, when idle, lets the server
// win. Caller holds mu.
func (r *Replica) observe(snap *billboard.Snapshot) {
	r.server = snap.Clone()
	if r.dismissed && (r.server == nil || !r.server.LastUpdated.Equal(r.dismissedAt)) {
		r.dismissed = false
	}
	if r.phase != Idle {
		return
	}

	if visible := r.visible(); visible != nil {
		r.sel = selectionOf(visible)
		r.synced = true
		return
	}
	// A local selection that was never launched is staging work; keep it.
	if r.sel.EventID != "" && !r.synced {
		return
	}
	r.sel = Selection{}
	r.synced = false
}

func (r *Replica) visible() *billboard.Snapshot {
	if r.dismissed {
		return nil
	}
	return r.server
}

// expireLease returns to Idle once an uncommitted edit's lease has run out.
// Caller holds mu.
func (r *Replica) expireLease() {
	if r.phase == ManualEditInProgress && !r.now().Before(r.leaseUntil) {
		r.phase = Idle
	}
}

// edit marks a user-initiated change. Caller holds mu.
func (r *Replica) edit() {
	r.synced = false
	if r.phase == SubmittingEdit {
		r.dirty = true
		return
	}
	r.phase = ManualEditInProgress
	r.leaseUntil = r.now().Add(r.lease)
}

// SelectDate changes the selected date. A different date drops the event,
// which belongs to the old date.
func (r *Replica) SelectDate(date string) error {
	if _, err := parse.OptionalEventDate(date); err != nil {
		return apperr.Validation("date must be YYYY-MM-DD")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if date != r.sel.EventDate {
		r.sel.EventID, r.sel.EventName = "", ""
	}
	r.sel.EventDate = date
	r.edit()
	return nil
}

// SelectEvent changes the selected event.
func (r *Replica) SelectEvent(eventID, eventName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sel.EventID, r.sel.EventName = eventID, eventName
	r.edit()
}

// AddCodes adds normalized codes to the selection.
func (r *Replica) AddCodes(codes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sel.SecurityCodes = parse.MergeCodes(r.sel.SecurityCodes, codes)
	r.edit()
}

// RemoveCode removes one code from the selection.
func (r *Replica) RemoveCode(code string) {
	code = parse.SecurityCode(code)
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := make([]string, 0, len(r.sel.SecurityCodes))
	for _, c := range r.sel.SecurityCodes {
		if c != code {
			kept = append(kept, c)
		}
	}
	r.sel.SecurityCodes = kept
	r.edit()
}

// Commit launches the local selection as the global billboard. On success
// the replica is Idle and in sync unless the user edited the selection while
// the request was in flight, in which case that edit stays in progress with a
// fresh lease. On failure the edit stays in progress with a fresh lease.
func (r *Replica) Commit(ctx context.Context) (*billboard.Snapshot, error) {
	r.mu.Lock()
	sel := r.sel.clone()
	if sel.EventID == "" || sel.EventDate == "" || len(sel.SecurityCodes) == 0 {
		r.mu.Unlock()
		return nil, apperr.Validation("select an event, a date and at least one security code")
	}
	r.phase = SubmittingEdit
	r.dirty = false
	r.nextSeq++
	seq := r.nextSeq
	r.mu.Unlock()

	snap, err := r.source.SetActive(ctx, billboard.SetRequest{
		EventID:       sel.EventID,
		EventName:     sel.EventName,
		EventDate:     sel.EventDate,
		SecurityCodes: sel.SecurityCodes,
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	editedInFlight := r.dirty
	r.dirty = false
	if err != nil || editedInFlight {
		r.phase = ManualEditInProgress
		r.leaseUntil = r.now().Add(r.lease)
	}
	if err != nil {
		r.lastErr = err
		return nil, err
	}
	if !editedInFlight {
		r.phase = Idle
	}
	if r.stopped {
		return snap, nil
	}
	if seq > r.applied {
		r.applied = seq
	}
	r.dismissed = false
	r.lastErr = nil
	r.observe(snap)
	return snap.Clone(), nil
}

// ClearGlobal destroys the global billboard for every client.
func (r *Replica) ClearGlobal(ctx context.Context) error {
	seq := r.Begin()
	if err := r.source.ClearActive(ctx); err != nil {
		r.mu.Lock()
		r.lastErr = err
		r.mu.Unlock()
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return nil
	}
	if seq > r.applied {
		r.applied = seq
	}
	r.phase = Idle
	r.sel = Selection{}
	r.synced = false
	r.dismissed = false
	r.server = nil
	r.notifications = []pickup.Notification{}
	return nil
}

// DismissLocal hides the current server billboard on this client only. It
// reappears when the server's billboard changes.
func (r *Replica) DismissLocal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.server == nil {
		return
	}
	r.dismissed = true
	r.dismissedAt = r.server.LastUpdated
	if r.phase == Idle && r.synced {
		r.sel = Selection{}
		r.synced = false
	}
	log.Printf("Billboard for event %s dismissed locally", r.server.EventID)
}

// Selection returns a copy of the local selection.
func (r *Replica) Selection() Selection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sel.clone()
}

// Phase returns the current phase, expiring a lapsed edit lease first.
func (r *Replica) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expireLease()
	return r.phase
}

// Visible returns the server billboard unless it was dismissed locally.
func (r *Replica) Visible() *billboard.Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.visible().Clone()
}

// Notifications returns the last successfully fetched notifications.
func (r *Replica) Notifications() []pickup.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pickup.Notification{}, r.notifications...)
}

// Err returns the error of the most recent request, if it failed.
func (r *Replica) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// stop makes every later Apply a no-op.
func (r *Replica) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
}
