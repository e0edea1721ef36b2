package reconcile

import (
	"fmt"
	"strings"
	"time"

	"checkin-billboard-backend/config"
)

// Phase is the edit state of a client replica.
type Phase int

const (
	// Idle means the server wins on every poll.
	Idle Phase = iota
	// ManualEditInProgress holds the local selection until the lease expires or the edit is committed.
	ManualEditInProgress
	// SubmittingEdit holds the local selection while a commit is in flight.
	SubmittingEdit
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case ManualEditInProgress:
		return "manual_edit"
	case SubmittingEdit:
		return "submitting"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Role is the kind of long-lived client. Each polls on its own cadence.
type Role int

const (
	Admin Role = iota
	PublicBillboard
	LocationStatus
	Kiosk
	StatusBoard
)

var roleNames = map[Role]string{
	Admin:           "admin",
	PublicBillboard: "billboard",
	LocationStatus:  "location",
	Kiosk:           "kiosk",
	StatusBoard:     "status",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole maps a role name as printed by String back to its Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// Interval is the role's default poll cadence.
func (r Role) Interval() time.Duration {
	switch r {
	case Admin, PublicBillboard:
		return 10 * time.Second
	case LocationStatus, Kiosk:
		return 15 * time.Second
	default:
		return 30 * time.Second
	}
}

// IntervalFrom returns the role's cadence as configured.
func (r Role) IntervalFrom(p config.PollingConfig) time.Duration {
	var secs int
	switch r {
	case Admin:
		secs = p.AdminSeconds
	case PublicBillboard:
		secs = p.BillboardSeconds
	case LocationStatus:
		secs = p.LocationSeconds
	case Kiosk:
		secs = p.KioskSeconds
	case StatusBoard:
		secs = p.StatusSeconds
	}
	if secs <= 0 {
		return r.Interval()
	}
	return time.Duration(secs) * time.Second
}

// watchesNotifications reports whether the role displays pickup notifications.
func (r Role) watchesNotifications() bool {
	return r != Kiosk
}
