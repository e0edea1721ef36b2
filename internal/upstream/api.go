package upstream

import (
	"encoding/json"
	"time"
)

// Document models the top-level structure of the directory's list responses.
type Document struct {
	Data     []Resource `json:"data"`
	Included []Resource `json:"included"`
	Links    struct {
		Next string `json:"next"`
	} `json:"links"`
	Meta struct {
		TotalCount int `json:"total_count"`
	} `json:"meta"`
}

// Resource is a single typed record with attributes and relationships.
type Resource struct {
	Type          string                  `json:"type"`
	ID            string                  `json:"id"`
	Attributes    json.RawMessage         `json:"attributes"`
	Relationships map[string]Relationship `json:"relationships,omitempty"`
}

// Relationship points at one or many related resources.
type Relationship struct {
	Data json.RawMessage `json:"data"`
}

// ResourceID identifies a related resource.
type ResourceID struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// IDs decodes a to-one or to-many relationship into a list of identifiers.
func (r Relationship) IDs() []ResourceID {
	if len(r.Data) == 0 || string(r.Data) == "null" {
		return nil
	}
	var many []ResourceID
	if err := json.Unmarshal(r.Data, &many); err == nil {
		return many
	}
	var one ResourceID
	if err := json.Unmarshal(r.Data, &one); err == nil && one.ID != "" {
		return []ResourceID{one}
	}
	return nil
}

type eventAttributes struct {
	Name       string     `json:"name"`
	ArchivedAt *time.Time `json:"archived_at"`
	StartsAt   *time.Time `json:"starts_at"`
}

type locationAttributes struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

type checkInAttributes struct {
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Name         string     `json:"name"`
	SecurityCode string     `json:"security_code"`
	CreatedAt    time.Time  `json:"created_at"`
	CheckedOutAt *time.Time `json:"checked_out_at"`
}

// Event is a scheduled check-in event.
type Event struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	ArchivedAt *time.Time `json:"archivedAt,omitempty"`
	StartsAt   *time.Time `json:"startsAt,omitempty"`
}

// Location is a room or group children are checked into.
type Location struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Kind     string `json:"kind,omitempty"`
	ParentID string `json:"parentId,omitempty"`
}

// CheckIn is a single check-in record, owned by the directory.
type CheckIn struct {
	ID           string     `json:"id"`
	PersonName   string     `json:"personName"`
	SecurityCode string     `json:"securityCode"`
	CheckInTime  time.Time  `json:"checkInTime"`
	CheckOutTime *time.Time `json:"checkOutTime"`
	LocationID   string     `json:"locationId"`
	LocationName string     `json:"locationName"`
	EventID      string     `json:"eventId"`
	EventName    string     `json:"eventName"`
}

// CheckedOut reports whether the child has been picked up.
func (c CheckIn) CheckedOut() bool {
	return c.CheckOutTime != nil
}

// CheckInQuery narrows ListCheckIns. Empty fields do not filter.
type CheckInQuery struct {
	LocationID        string
	Date              string
	SecurityCode      string
	IncludeCheckedOut bool
}
