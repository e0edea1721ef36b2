// Package upstreamtest serves a fake check-in directory over httptest for
// tests that need a real HTTP round trip.
package upstreamtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"checkin-billboard-backend/config"
)

// Event is a fake directory event.
type Event struct {
	ID         string
	Name       string
	ArchivedAt *time.Time
	StartsAt   *time.Time
}

// Location is a fake directory location.
type Location struct {
	ID      string
	EventID string
	Name    string
}

// CheckIn is a fake directory check-in.
type CheckIn struct {
	ID           string
	EventID      string
	FirstName    string
	LastName     string
	SecurityCode string
	CreatedAt    time.Time
	CheckedOutAt *time.Time
	LocationID   string
}

// Directory is an in-memory directory behind an httptest.Server. Pages hold
// PerPage records each and are chained with links.next.
type Directory struct {
	Server  *httptest.Server
	PerPage int

	mu        sync.Mutex
	events    []Event
	locations []Location
	checkIns  []CheckIn
	status    int
	delay     time.Duration
	requests  []string
}

// New starts a fake directory. Call Close when done.
func New() *Directory {
	d := &Directory{PerPage: 2}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	return d
}

// Close shuts the server down.
func (d *Directory) Close() {
	d.Server.Close()
}

// Config returns an upstream config pointing at the fake directory.
func (d *Directory) Config() config.UpstreamConfig {
	return config.UpstreamConfig{
		BaseURL:  d.Server.URL,
		PerPage:  d.PerPage,
		MaxPages: 50,
		Timezone: "UTC",
		Timeout:  2 * time.Second,
	}
}

// AddEvent adds events.
func (d *Directory) AddEvent(events ...Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, events...)
}

// AddLocation adds locations.
func (d *Directory) AddLocation(locations ...Location) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.locations = append(d.locations, locations...)
}

// AddCheckIn adds check-ins.
func (d *Directory) AddCheckIn(checkIns ...CheckIn) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.checkIns = append(d.checkIns, checkIns...)
}

// CheckOut marks a check-in as picked up.
func (d *Directory) CheckOut(id string, at time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.checkIns {
		if d.checkIns[i].ID == id {
			d.checkIns[i].CheckedOutAt = &at
		}
	}
}

// FailWith makes every request answer status. Zero restores normal service.
func (d *Directory) FailWith(status int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.status = status
}

// Delay makes every request wait before answering.
func (d *Directory) Delay(delay time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.delay = delay
}

// Requests returns the request URIs seen so far.
func (d *Directory) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

type resource struct {
	Type          string                    `json:"type"`
	ID            string                    `json:"id"`
	Attributes    map[string]any            `json:"attributes"`
	Relationships map[string]map[string]any `json:"relationships,omitempty"`
}

func (d *Directory) serve(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.requests = append(d.requests, r.URL.RequestURI())
	status, delay := d.status, d.delay
	d.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		w.WriteHeader(status)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	var data, included []resource
	switch {
	case len(parts) == 1 && parts[0] == "events":
		data = d.eventResources(r)
	case len(parts) == 3 && parts[0] == "events" && parts[2] == "locations":
		data = d.locationResources(parts[1])
	case len(parts) == 3 && parts[0] == "events" && parts[2] == "check_ins":
		data, included = d.checkInResources(r, parts[1])
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	end := offset + d.PerPage
	if end > len(data) {
		end = len(data)
	}
	page := data[offset:end]

	doc := map[string]any{
		"data":     page,
		"included": included,
		"links":    map[string]any{},
		"meta":     map[string]any{"total_count": len(data)},
	}
	if end < len(data) {
		q := r.URL.Query()
		q.Set("offset", strconv.Itoa(end))
		doc["links"] = map[string]any{"next": r.URL.Path + "?" + q.Encode()}
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (d *Directory) eventResources(r *http.Request) []resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	date := r.URL.Query().Get("where[date]")
	out := []resource{}
	for _, e := range d.events {
		if date != "" && (e.StartsAt == nil || e.StartsAt.UTC().Format("2006-01-02") != date) {
			continue
		}
		out = append(out, resource{Type: "Event", ID: e.ID, Attributes: map[string]any{
			"name": e.Name, "archived_at": e.ArchivedAt, "starts_at": e.StartsAt,
		}})
	}
	return out
}

func (d *Directory) locationResources(eventID string) []resource {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := []resource{}
	for _, l := range d.locations {
		if l.EventID != eventID {
			continue
		}
		out = append(out, resource{Type: "Location", ID: l.ID, Attributes: map[string]any{"name": l.Name, "kind": "Folder"}})
	}
	return out
}

func (d *Directory) checkInResources(r *http.Request, eventID string) ([]resource, []resource) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := r.URL.Query()
	onlyActive := q.Get("filter") == "checked_in"
	code := q.Get("where[security_code]")

	var eventName string
	for _, e := range d.events {
		if e.ID == eventID {
			eventName = e.Name
		}
	}

	out := []resource{}
	seen := map[string]bool{}
	included := []resource{{Type: "Event", ID: eventID, Attributes: map[string]any{"name": eventName}}}
	for _, c := range d.checkIns {
		if c.EventID != eventID {
			continue
		}
		if onlyActive && c.CheckedOutAt != nil {
			continue
		}
		if code != "" && !strings.EqualFold(code, c.SecurityCode) {
			continue
		}
		res := resource{Type: "CheckIn", ID: c.ID, Attributes: map[string]any{
			"first_name": c.FirstName, "last_name": c.LastName,
			"security_code": c.SecurityCode, "created_at": c.CreatedAt,
			"checked_out_at": c.CheckedOutAt,
		}, Relationships: map[string]map[string]any{
			"event": {"data": map[string]any{"type": "Event", "id": eventID}},
		}}
		if c.LocationID != "" {
			res.Relationships["locations"] = map[string]any{"data": []map[string]any{{"type": "Location", "id": c.LocationID}}}
			if !seen[c.LocationID] {
				seen[c.LocationID] = true
				for _, l := range d.locations {
					if l.ID == c.LocationID {
						included = append(included, resource{Type: "Location", ID: l.ID, Attributes: map[string]any{"name": l.Name}})
					}
				}
			}
		}
		out = append(out, res)
	}
	return out, included
}
