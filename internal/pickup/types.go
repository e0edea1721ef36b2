package pickup

import (
	"context"
	"time"

	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/upstream"
)

// Directory is the subset of the check-in directory the pickup service reads.
type Directory interface {
	ListLocations(ctx context.Context, eventID string) ([]upstream.Location, error)
	ListCheckIns(ctx context.Context, eventID string, q upstream.CheckInQuery) ([]upstream.CheckIn, error)
}

// BillboardReader exposes the active billboard.
type BillboardReader interface {
	Active() *billboard.Snapshot
}

// Alerter receives a pickup request for delivery to volunteers.
type Alerter interface {
	Dispatch(alert Alert)
}

// Notification says a child is awaiting pickup. It is derived from live
// check-in data on every read and never stored.
type Notification struct {
	ID           string    `json:"id"`
	ChildName    string    `json:"childName"`
	SecurityCode string    `json:"securityCode"`
	LocationID   string    `json:"locationId,omitempty"`
	LocationName string    `json:"locationName"`
	NotifiedAt   time.Time `json:"notifiedAt"`
}

// Child is one checked-in child matched by a security code.
type Child struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LocationID   string    `json:"locationId,omitempty"`
	LocationName string    `json:"locationName"`
	CheckInTime  time.Time `json:"checkInTime"`
}

// SubmitResult answers a security-code submission. A code with no active
// check-in is a normal result with Success false, not an error.
type SubmitResult struct {
	Success       bool    `json:"success"`
	ChildName     string  `json:"childName,omitempty"`
	AddedChildren []Child `json:"addedChildren,omitempty"`
	Message       string  `json:"message"`
}

// Alert is handed to the Alerter after a successful submission.
type Alert struct {
	EventID      string
	EventDate    string
	SecurityCode string
	Children     []Child
}

// LocationChild is a child listed on a location snapshot.
type LocationChild struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	CheckInTime  time.Time `json:"checkInTime"`
	SecurityCode string    `json:"securityCode"`
}

// LocationSnapshot is the live roster of one location.
type LocationSnapshot struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	ChildCount int             `json:"childCount"`
	Children   []LocationChild `json:"children"`
}

// CodeLookup is the per-code answer of LookupCodes.
type CodeLookup struct {
	SecurityCode string             `json:"securityCode"`
	Records      []upstream.CheckIn `json:"records,omitempty"`
	Error        string             `json:"error,omitempty"`
}

const (
	// UnassignedLocationID buckets check-ins that have no location.
	UnassignedLocationID = "unassigned"
	unassignedName       = "Unassigned"

	// AllLocations requests every location plus the unassigned bucket.
	AllLocations = "all"

	msgCodeNotFound = "Security code not found"
)
