package pickup

import (
	"context"
	"fmt"
	"log"
	"sort"

	"golang.org/x/sync/errgroup"

	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/parse"
	"checkin-billboard-backend/internal/upstream"
)

// lookupConcurrency bounds parallel directory calls in LookupCodes.
const lookupConcurrency = 4

// Service joins security codes against live check-in data.
type Service struct {
	dir    Directory
	board  BillboardReader
	alerts Alerter
}

// NewService creates a pickup service. alerts may be nil.
func NewService(dir Directory, board BillboardReader, alerts Alerter) *Service {
	return &Service{dir: dir, board: board, alerts: alerts}
}

// ListActiveNotifications returns the children awaiting pickup for an event
// and date. With no scope given the active billboard supplies it; with no
// active billboard the result is empty.
//
// When the active billboard covers the scope only its security codes
// qualify; otherwise every active check-in carrying a code does. Order is
// whatever the directory returned.
func (s *Service) ListActiveNotifications(ctx context.Context, eventID, eventDate string) ([]Notification, error) {
	if _, err := parse.OptionalEventDate(eventDate); err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}

	active := s.board.Active()
	if eventID == "" && eventDate == "" {
		if active == nil {
			return []Notification{}, nil
		}
		eventID, eventDate = active.EventID, active.EventDate
	}
	if eventID == "" {
		return nil, apperr.Validation("eventId is required when eventDate is given")
	}

	checkIns, err := s.dir.ListCheckIns(ctx, eventID, upstream.CheckInQuery{Date: eventDate})
	if err != nil {
		return nil, err
	}

	joined := covering(active, eventID, eventDate)

	notifications := make([]Notification, 0, len(checkIns))
	for _, ci := range checkIns {
		if ci.CheckedOut() {
			continue
		}
		code := parse.SecurityCode(ci.SecurityCode)
		if code == "" {
			continue
		}
		notifiedAt := ci.CheckInTime
		if joined {
			if !active.HasCode(code) {
				continue
			}
			notifiedAt = active.LastUpdated
		}
		notifications = append(notifications, Notification{
			ID:           ci.ID,
			ChildName:    ci.PersonName,
			SecurityCode: code,
			LocationID:   ci.LocationID,
			LocationName: locationName(ci.LocationName, ci.LocationID),
			NotifiedAt:   notifiedAt,
		})
	}
	return notifications, nil
}

// covering reports whether active restricts notifications for the scope. An
// empty date matches the billboard's event on any date.
func covering(active *billboard.Snapshot, eventID, eventDate string) bool {
	if eventDate == "" {
		return active != nil && active.EventID == eventID
	}
	return active.Covers(eventID, eventDate)
}

// SubmitSecurityCode looks up the active check-ins for a code. Repeated
// submissions are answered again from live data; nothing is suppressed.
//
// While the active billboard covers the scope a code it does not carry is
// not found, so every success shows up in ListActiveNotifications.
func (s *Service) SubmitSecurityCode(ctx context.Context, rawCode, eventID, eventDate string) (*SubmitResult, error) {
	code := parse.SecurityCode(rawCode)
	if code == "" {
		return nil, apperr.Validation("securityCode is required")
	}
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if _, err := parse.OptionalEventDate(eventDate); err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}

	if active := s.board.Active(); covering(active, eventID, eventDate) && !active.HasCode(code) {
		log.Printf("Security code %s is not on the active billboard for event %s", code, eventID)
		return &SubmitResult{Success: false, Message: msgCodeNotFound}, nil
	}

	checkIns, err := s.dir.ListCheckIns(ctx, eventID, upstream.CheckInQuery{SecurityCode: code, Date: eventDate})
	if err != nil {
		return nil, err
	}
	if len(checkIns) == 0 {
		log.Printf("Security code %s not found for event %s on %q", code, eventID, eventDate)
		return &SubmitResult{Success: false, Message: msgCodeNotFound}, nil
	}

	children := make([]Child, 0, len(checkIns))
	for _, ci := range checkIns {
		children = append(children, Child{
			ID:           ci.ID,
			Name:         ci.PersonName,
			LocationID:   ci.LocationID,
			LocationName: locationName(ci.LocationName, ci.LocationID),
			CheckInTime:  ci.CheckInTime,
		})
	}

	result := &SubmitResult{Success: true, AddedChildren: children}
	if len(children) == 1 {
		result.ChildName = children[0].Name
		result.Message = fmt.Sprintf("%s is ready for pickup", children[0].Name)
	} else {
		result.Message = fmt.Sprintf("%d children are ready for pickup", len(children))
	}

	if s.alerts != nil {
		s.alerts.Dispatch(Alert{EventID: eventID, EventDate: eventDate, SecurityCode: code, Children: children})
	}
	log.Printf("Security code %s matched %d active check-ins for event %s", code, len(children), eventID)
	return result, nil
}

// LookupCodes resolves each code to its active check-ins. Results keep the
// order of the normalized, deduplicated input.
func (s *Service) LookupCodes(ctx context.Context, eventID string, rawCodes []string) ([]CodeLookup, error) {
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	codes := parse.SecurityCodes(rawCodes)
	if len(codes) == 0 {
		return nil, apperr.Validation("securityCodes must contain at least one code")
	}

	results := make([]CodeLookup, len(codes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, code := range codes {
		g.Go(func() error {
			checkIns, err := s.dir.ListCheckIns(gctx, eventID, upstream.CheckInQuery{SecurityCode: code})
			if err != nil {
				return err
			}
			results[i] = CodeLookup{SecurityCode: code, Records: checkIns}
			if len(checkIns) == 0 {
				results[i].Records = nil
				results[i].Error = msgCodeNotFound
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// CheckIns lists active check-ins for an event. locationID "all" or empty
// includes every location and the unassigned ones.
func (s *Service) CheckIns(ctx context.Context, eventID, locationID, date string) ([]upstream.CheckIn, error) {
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if _, err := parse.OptionalEventDate(date); err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	if locationID == AllLocations {
		locationID = ""
	}
	return s.dir.ListCheckIns(ctx, eventID, upstream.CheckInQuery{LocationID: locationID, Date: date})
}

// LocationSnapshots groups an event's active check-ins by location. Every
// configured location is listed, empty ones included; check-ins without a
// location land in the unassigned bucket.
func (s *Service) LocationSnapshots(ctx context.Context, eventID, date, locationID string) ([]LocationSnapshot, error) {
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if locationID == AllLocations {
		locationID = ""
	}
	checkIns, err := s.CheckIns(ctx, eventID, locationID, date)
	if err != nil {
		return nil, err
	}
	locations, err := s.dir.ListLocations(ctx, eventID)
	if err != nil {
		return nil, err
	}

	var snapshots []LocationSnapshot
	index := make(map[string]int, len(locations)+1)
	add := func(id, name string) int {
		if i, ok := index[id]; ok {
			return i
		}
		index[id] = len(snapshots)
		snapshots = append(snapshots, LocationSnapshot{ID: id, Name: name, Children: []LocationChild{}})
		return index[id]
	}

	for _, l := range locations {
		if locationID != "" && l.ID != locationID {
			continue
		}
		add(l.ID, l.Name)
	}

	for _, ci := range checkIns {
		id, name := ci.LocationID, ci.LocationName
		if id == "" {
			id, name = UnassignedLocationID, unassignedName
		}
		i := add(id, locationName(name, id))
		snapshots[i].Children = append(snapshots[i].Children, LocationChild{
			ID:           ci.ID,
			Name:         ci.PersonName,
			CheckInTime:  ci.CheckInTime,
			SecurityCode: parse.SecurityCode(ci.SecurityCode),
		})
	}

	for i := range snapshots {
		children := snapshots[i].Children
		sort.SliceStable(children, func(a, b int) bool {
			return children[a].CheckInTime.Before(children[b].CheckInTime)
		})
		snapshots[i].ChildCount = len(children)
	}
	if snapshots == nil {
		snapshots = []LocationSnapshot{}
	}
	return snapshots, nil
}

func locationName(name, id string) string {
	if name != "" {
		return name
	}
	if id == "" {
		return unassignedName
	}
	return id
}
