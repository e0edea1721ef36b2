package upstream_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkin-billboard-backend/config"
	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/upstream"
	"checkin-billboard-backend/internal/upstream/upstreamtest"
)

var sunday = time.Date(2024, 1, 7, 9, 30, 0, 0, time.UTC)

func newClient(t *testing.T, dir *upstreamtest.Directory) *upstream.Client {
	t.Helper()
	c, err := upstream.NewClient(dir.Config())
	require.NoError(t, err)
	return c
}

func TestClient_ListEventsSkipsArchived(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	archived := sunday.Add(-24 * time.Hour)
	dir.AddEvent(
		upstreamtest.Event{ID: "E1", Name: "Sunday AM", StartsAt: &sunday},
		upstreamtest.Event{ID: "E2", Name: "Old Event", StartsAt: &sunday, ArchivedAt: &archived},
		upstreamtest.Event{ID: "E3", Name: "Sunday PM", StartsAt: &sunday},
	)

	events, err := newClient(t, dir).ListEvents(context.Background(), "2024-01-07")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "E1", events[0].ID)
	assert.Equal(t, "E3", events[1].ID)
}

func TestClient_ListEventsRejectsBadDate(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	_, err := newClient(t, dir).ListEvents(context.Background(), "01/07/2024")
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Empty(t, dir.Requests(), "validation must happen before any request is issued")
}

func TestClient_ListCheckInsFollowsEveryPage(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	picked := sunday.Add(time.Hour)
	dir.AddEvent(upstreamtest.Event{ID: "E1", Name: "Sunday AM"})
	dir.AddLocation(upstreamtest.Location{ID: "L1", EventID: "E1", Name: "Nursery"})
	dir.AddCheckIn(
		upstreamtest.CheckIn{ID: "C1", EventID: "E1", FirstName: "Ava", LastName: "Smith", SecurityCode: "abc1", CreatedAt: sunday, LocationID: "L1"},
		upstreamtest.CheckIn{ID: "C2", EventID: "E1", FirstName: "Ben", LastName: "Smith", SecurityCode: "ABC1", CreatedAt: sunday},
		upstreamtest.CheckIn{ID: "C3", EventID: "E1", FirstName: "Cal", LastName: "Jones", SecurityCode: "XY7", CreatedAt: sunday, LocationID: "L1"},
		upstreamtest.CheckIn{ID: "C4", EventID: "E1", FirstName: "Dee", LastName: "Jones", SecurityCode: "XY7", CreatedAt: sunday, CheckedOutAt: &picked},
		upstreamtest.CheckIn{ID: "C5", EventID: "E1", FirstName: "Eve", LastName: "Park", SecurityCode: "Q1", CreatedAt: sunday.AddDate(0, 0, -7)},
	)

	client := newClient(t, dir)
	checkIns, err := client.ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{Date: "2024-01-07"})
	require.NoError(t, err)

	ids := make([]string, 0, len(checkIns))
	for _, c := range checkIns {
		ids = append(ids, c.ID)
	}
	assert.Equal(t, []string{"C1", "C2", "C3"}, ids, "checked-out and other-day check-ins are excluded")
	assert.Equal(t, "Ava Smith", checkIns[0].PersonName)
	assert.Equal(t, "ABC1", checkIns[0].SecurityCode)
	assert.Equal(t, "Nursery", checkIns[0].LocationName)
	assert.Equal(t, "Sunday AM", checkIns[0].EventName)
	assert.Empty(t, checkIns[1].LocationID)

	// Four active records at two per page.
	assert.Len(t, dir.Requests(), 2)
}

func TestClient_ListCheckInsBySecurityCodeAndLocation(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	dir.AddEvent(upstreamtest.Event{ID: "E1", Name: "Sunday AM"})
	dir.AddCheckIn(
		upstreamtest.CheckIn{ID: "C1", EventID: "E1", FirstName: "Ava", SecurityCode: "ABC1", CreatedAt: sunday, LocationID: "L1"},
		upstreamtest.CheckIn{ID: "C2", EventID: "E1", FirstName: "Ben", SecurityCode: "ABC1", CreatedAt: sunday, LocationID: "L2"},
		upstreamtest.CheckIn{ID: "C3", EventID: "E1", FirstName: "Cal", SecurityCode: "ZZZ", CreatedAt: sunday, LocationID: "L1"},
	)

	client := newClient(t, dir)
	byCode, err := client.ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{SecurityCode: " abc1 "})
	require.NoError(t, err)
	assert.Len(t, byCode, 2)

	byLocation, err := client.ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{LocationID: "L1"})
	require.NoError(t, err)
	assert.Len(t, byLocation, 2)
}

func TestClient_ListLocations(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	dir.AddLocation(
		upstreamtest.Location{ID: "L1", EventID: "E1", Name: "Nursery"},
		upstreamtest.Location{ID: "L2", EventID: "E1", Name: "Toddlers"},
		upstreamtest.Location{ID: "L3", EventID: "E2", Name: "Elsewhere"},
	)

	locations, err := newClient(t, dir).ListLocations(context.Background(), "E1")
	require.NoError(t, err)
	require.Len(t, locations, 2)
	assert.Equal(t, "Toddlers", locations[1].Name)
}

func TestClient_FailureKinds(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		kind   apperr.Kind
	}{
		{name: "401 is auth expired", status: http.StatusUnauthorized, kind: apperr.KindUpstreamAuthExpired},
		{name: "500 is unavailable", status: http.StatusInternalServerError, kind: apperr.KindUpstreamUnavailable},
		{name: "502 is unavailable", status: http.StatusBadGateway, kind: apperr.KindUpstreamUnavailable},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := upstreamtest.New()
			defer dir.Close()
			dir.FailWith(tc.status)

			_, err := newClient(t, dir).ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{})
			require.Error(t, err)
			assert.Equal(t, tc.kind, apperr.KindOf(err))
		})
	}
}

func TestClient_AuthExpiredUnwrapsToSentinel(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()
	dir.FailWith(http.StatusUnauthorized)

	_, err := newClient(t, dir).ListEvents(context.Background(), "")
	assert.ErrorIs(t, err, upstream.ErrAuthExpired)
}

func TestClient_TimeoutIsUnavailable(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()
	dir.Delay(500 * time.Millisecond)

	cfg := dir.Config()
	cfg.Timeout = 50 * time.Millisecond
	client, err := upstream.NewClient(cfg)
	require.NoError(t, err)

	_, err = client.ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestClient_UnknownEventIsEmpty(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()

	// The fake answers 404 for unknown paths; an unknown resource is no data, not an error.
	cfg := dir.Config()
	cfg.BaseURL = dir.Server.URL + "/missing"
	client, err := upstream.NewClient(cfg)
	require.NoError(t, err)

	locations, err := client.ListLocations(context.Background(), "E404")
	require.NoError(t, err)
	assert.Empty(t, locations)
}

func TestClient_PaginationLimit(t *testing.T) {
	dir := upstreamtest.New()
	defer dir.Close()
	for i := 0; i < 5; i++ {
		dir.AddLocation(upstreamtest.Location{ID: string(rune('a' + i)), EventID: "E1", Name: "Room"})
	}

	cfg := dir.Config()
	cfg.MaxPages = 2
	client, err := upstream.NewClient(cfg)
	require.NoError(t, err)

	_, err = client.ListLocations(context.Background(), "E1")
	require.Error(t, err, "a truncated listing must fail rather than return partial pages")
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

// pagedServer serves one check-in on the first page with a next link to next.
// Any other path answers 404.
func pagedServer(t *testing.T, next func(base string) string) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/events/E1/check_ins" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"data":[{"type":"CheckIn","id":"C1","attributes":{"first_name":"Ava","last_name":"Smith","security_code":"ABC1","created_at":"2024-01-07T09:30:00Z"}}],"links":{"next":%q}}`, next(srv.URL))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func pagedClient(t *testing.T, srv *httptest.Server) *upstream.Client {
	t.Helper()
	c, err := upstream.NewClient(config.UpstreamConfig{BaseURL: srv.URL, Timezone: "UTC", Timeout: 2 * time.Second})
	require.NoError(t, err)
	return c
}

func TestClient_MissingLaterPageFailsListing(t *testing.T) {
	srv := pagedServer(t, func(base string) string { return base + "/events/E1/check_ins/page2" })

	checkIns, err := pagedClient(t, srv).ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{})
	require.Error(t, err, "records from page 1 must not be dropped as an empty success")
	assert.Nil(t, checkIns)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
}

func TestClient_RejectsForeignNextLink(t *testing.T) {
	var foreignHits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		w.Write([]byte(`{"data":[]}`))
	}))
	defer foreign.Close()

	srv := pagedServer(t, func(string) string { return foreign.URL + "/events/E1/check_ins?page=2" })

	_, err := pagedClient(t, srv).ListCheckIns(context.Background(), "E1", upstream.CheckInQuery{})
	require.Error(t, err)
	assert.Equal(t, apperr.KindUpstreamUnavailable, apperr.KindOf(err))
	assert.Zero(t, foreignHits.Load(), "credentials must never be sent to another host")
}
