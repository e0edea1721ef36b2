package billboard

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/parse"
)

// Store holds the single active billboard shared by every client.
//
// Readers load an immutable snapshot through an atomic pointer and never
// wait on writers. Writers serialize on mu so persistence and publication
// happen in the same order; the last Set wins.
type Store struct {
	mu        sync.Mutex
	active    atomic.Pointer[Snapshot]
	persister Persister
	now       func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithPersister writes every mutation through to p.
func WithPersister(p Persister) Option {
	return func(s *Store) { s.persister = p }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Restore loads the persisted billboard, if any. Called once at boot.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	snap, err := s.persister.LoadBillboard(ctx)
	if err != nil {
		return err
	}
	if snap != nil && len(snap.SecurityCodes) > 0 {
		s.mu.Lock()
		s.active.Store(snap.Clone())
		s.mu.Unlock()
		log.Printf("Restored active billboard for event %s on %s (%d codes)", snap.EventID, snap.EventDate, len(snap.SecurityCodes))
	}
	return nil
}

// Active returns a copy of the current billboard, or nil when none is active.
func (s *Store) Active() *Snapshot {
	return s.active.Load().Clone()
}

// Set replaces the active billboard with exactly the requested state. Codes
// from any earlier billboard are not merged in; callers pass the complete set.
func (s *Store) Set(ctx context.Context, req SetRequest, actor Actor) (*Snapshot, error) {
	if req.EventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if req.EventName == "" {
		return nil, apperr.Validation("eventName is required")
	}
	date, err := parse.EventDate(req.EventDate)
	if err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}
	codes := parse.SecurityCodes(req.SecurityCodes)
	if len(codes) == 0 {
		return nil, apperr.Validation("at least one security code is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		EventID:       req.EventID,
		EventName:     req.EventName,
		EventDate:     date,
		SecurityCodes: codes,
		CreatedBy:     actor,
		LastUpdated:   s.now().UTC(),
	}
	if s.persister != nil {
		if err := s.persister.SaveBillboard(ctx, snap); err != nil {
			log.Printf("Warning: failed to persist active billboard: %v", err)
		}
	}
	s.active.Store(snap)
	s.audit(ctx, ActionSet, actor, snap)

	log.Printf("Active billboard set by %s: event %s (%s) on %s with %d codes", actor.Name, snap.EventID, snap.EventName, snap.EventDate, len(codes))
	return snap.Clone(), nil
}

// Clear destroys the active billboard. Clearing an empty store is a no-op
// apart from the audit entry.
func (s *Store) Clear(ctx context.Context, actor Actor) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.active.Swap(nil)
	if s.persister != nil {
		if err := s.persister.DeleteBillboard(ctx); err != nil {
			log.Printf("Warning: failed to delete persisted billboard: %v", err)
		}
	}
	s.audit(ctx, ActionClear, actor, prev)
	if prev != nil {
		log.Printf("Active billboard for event %s cleared by %s", prev.EventID, actor.Name)
	}
}

// RecordSoftClear notes that a client hid the billboard locally. The shared
// state is untouched.
func (s *Store) RecordSoftClear(ctx context.Context, actor Actor) {
	s.audit(ctx, ActionSoftClear, actor, s.active.Load())
}

func (s *Store) audit(ctx context.Context, action AuditAction, actor Actor, snap *Snapshot) {
	if s.persister == nil {
		return
	}
	entry := AuditEntry{Action: action, Actor: actor, At: s.now().UTC()}
	if snap != nil {
		entry.EventID = snap.EventID
		entry.EventDate = snap.EventDate
		entry.CodeCount = len(snap.SecurityCodes)
	}
	if err := s.persister.AppendAudit(ctx, entry); err != nil {
		log.Printf("Warning: failed to record billboard audit %s: %v", action, err)
	}
}
