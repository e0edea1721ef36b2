package billboard

import (
	"context"
	"time"
)

// Actor identifies the admin who mutated the billboard.
type Actor struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is one immutable state of the active billboard. A Snapshot is
// never modified after it is published; the store swaps in a new one.
type Snapshot struct {
	EventID       string    `json:"eventId"`
	EventName     string    `json:"eventName"`
	EventDate     string    `json:"eventDate"`
	SecurityCodes []string  `json:"securityCodes"`
	CreatedBy     Actor     `json:"createdBy"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

// Clone returns a deep copy the caller may modify freely.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.SecurityCodes = append([]string(nil), s.SecurityCodes...)
	return &c
}

// HasCode reports whether the normalized code is on the billboard.
func (s *Snapshot) HasCode(code string) bool {
	if s == nil {
		return false
	}
	for _, c := range s.SecurityCodes {
		if c == code {
			return true
		}
	}
	return false
}

// Covers reports whether the billboard is for the given event and date.
func (s *Snapshot) Covers(eventID, eventDate string) bool {
	return s != nil && s.EventID == eventID && s.EventDate == eventDate
}

// SetRequest is the full desired state passed to Store.Set.
type SetRequest struct {
	EventID       string   `json:"eventId"`
	EventName     string   `json:"eventName"`
	SecurityCodes []string `json:"securityCodes"`
	EventDate     string   `json:"eventDate"`
}

// AuditAction names a billboard mutation.
type AuditAction string

const (
	ActionSet       AuditAction = "set"
	ActionSoftClear AuditAction = "soft_clear"
	ActionClear     AuditAction = "clear"
)

// AuditEntry is one recorded mutation.
type AuditEntry struct {
	ID        string      `json:"id"`
	Action    AuditAction `json:"action"`
	Actor     Actor       `json:"actor"`
	EventID   string      `json:"eventId,omitempty"`
	EventDate string      `json:"eventDate,omitempty"`
	CodeCount int         `json:"codeCount"`
	At        time.Time   `json:"at"`
}

// Persister durably records the active billboard so it survives restarts.
type Persister interface {
	SaveBillboard(ctx context.Context, snap *Snapshot) error
	DeleteBillboard(ctx context.Context) error
	LoadBillboard(ctx context.Context) (*Snapshot, error)
	AppendAudit(ctx context.Context, entry AuditEntry) error
}
