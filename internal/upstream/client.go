package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"checkin-billboard-backend/config"
	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/parse"
)

// ErrAuthExpired is the cause wrapped when the directory answers 401.
var ErrAuthExpired = errors.New("directory returned 401 unauthorized")

// errNotFound marks a 404 from the directory, which callers see as an empty result.
var errNotFound = errors.New("directory returned 404")

// Client queries the external check-in directory.
type Client struct {
	baseURL    *url.URL
	appID      string
	secret     string
	client     *http.Client
	perPage    int
	maxPages   int
	loc        *time.Location
	dateFilter bool
}

// NewClient creates a directory client from configuration.
func NewClient(cfg config.UpstreamConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream.base_url is required")
	}
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid upstream.base_url %q: %w", cfg.BaseURL, err)
	}

	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Directory client will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 12 * time.Second
	}
	perPage := cfg.PerPage
	if perPage <= 0 {
		perPage = 100
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 50
	}

	return &Client{
		baseURL: base,
		appID:   cfg.AppID,
		secret:  cfg.Secret,
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		perPage:    perPage,
		maxPages:   maxPages,
		loc:        loc,
		dateFilter: cfg.DateFilterEnabled(),
	}, nil
}

// Location returns the timezone calendar dates are interpreted in.
func (c *Client) Location() *time.Location {
	return c.loc
}

// ListEvents returns every non-archived event, optionally those occurring on date.
func (c *Client) ListEvents(ctx context.Context, date string) ([]Event, error) {
	q := url.Values{}
	q.Set("filter", "not_archived")
	if date != "" {
		if _, err := parse.EventDate(date); err != nil {
			return nil, apperr.Validation("date must be YYYY-MM-DD")
		}
		q.Set("where[date]", date)
	}

	docs, err := c.fetchAll(ctx, "events", q)
	if err != nil {
		return nil, err
	}

	events := []Event{}
	for _, doc := range docs {
		for _, r := range doc.Data {
			var attrs eventAttributes
			if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
				log.Printf("Warning: skipping event %s with malformed attributes: %v", r.ID, err)
				continue
			}
			if attrs.ArchivedAt != nil {
				continue
			}
			if date != "" && !c.dateFilter && attrs.StartsAt != nil && !parse.SameDay(*attrs.StartsAt, date, c.loc) {
				continue
			}
			events = append(events, Event{ID: r.ID, Name: attrs.Name, StartsAt: attrs.StartsAt})
		}
	}
	return events, nil
}

// ListLocations returns the locations configured for an event.
func (c *Client) ListLocations(ctx context.Context, eventID string) ([]Location, error) {
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	docs, err := c.fetchAll(ctx, "events/"+url.PathEscape(eventID)+"/locations", url.Values{})
	if err != nil {
		return nil, err
	}

	locations := []Location{}
	for _, doc := range docs {
		for _, r := range doc.Data {
			var attrs locationAttributes
			if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
				log.Printf("Warning: skipping location %s with malformed attributes: %v", r.ID, err)
				continue
			}
			loc := Location{ID: r.ID, Name: attrs.Name, Kind: attrs.Kind}
			if ids := r.Relationships["parent"].IDs(); len(ids) > 0 {
				loc.ParentID = ids[0].ID
			}
			locations = append(locations, loc)
		}
	}
	return locations, nil
}

// ListCheckIns returns the event's check-ins, following every page. Checked-out
// records are excluded unless q.IncludeCheckedOut is set. Filters the
// directory ignores are re-applied locally.
func (c *Client) ListCheckIns(ctx context.Context, eventID string, q CheckInQuery) ([]CheckIn, error) {
	if eventID == "" {
		return nil, apperr.Validation("eventId is required")
	}
	if _, err := parse.OptionalEventDate(q.Date); err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	code := parse.SecurityCode(q.SecurityCode)

	params := url.Values{}
	params.Set("include", "locations,event")
	if !q.IncludeCheckedOut {
		params.Set("filter", "checked_in")
	}
	if code != "" {
		params.Set("where[security_code]", code)
	}
	if q.LocationID != "" {
		params.Set("where[location_id]", q.LocationID)
	}
	if q.Date != "" && c.dateFilter {
		start, end, _ := parse.DayBounds(q.Date, c.loc)
		params.Set("where[created_at][gte]", start.UTC().Format(time.RFC3339))
		params.Set("where[created_at][lt]", end.UTC().Format(time.RFC3339))
	}

	docs, err := c.fetchAll(ctx, "events/"+url.PathEscape(eventID)+"/check_ins", params)
	if err != nil {
		return nil, err
	}

	checkIns := []CheckIn{}
	for _, doc := range docs {
		names := includedNames(doc.Included)
		for _, r := range doc.Data {
			ci, ok := decodeCheckIn(r, eventID, names)
			if !ok {
				continue
			}
			if ci.CheckedOut() && !q.IncludeCheckedOut {
				continue
			}
			if code != "" && ci.SecurityCode != code {
				continue
			}
			if q.LocationID != "" && ci.LocationID != q.LocationID {
				continue
			}
			if q.Date != "" && !parse.SameDay(ci.CheckInTime, q.Date, c.loc) {
				continue
			}
			checkIns = append(checkIns, ci)
		}
	}
	return checkIns, nil
}

func decodeCheckIn(r Resource, eventID string, names map[string]string) (CheckIn, bool) {
	var attrs checkInAttributes
	if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
		log.Printf("Warning: skipping check-in %s with malformed attributes: %v", r.ID, err)
		return CheckIn{}, false
	}

	name := strings.TrimSpace(attrs.FirstName + " " + attrs.LastName)
	if name == "" {
		name = attrs.Name
	}
	ci := CheckIn{
		ID:           r.ID,
		PersonName:   name,
		SecurityCode: parse.SecurityCode(attrs.SecurityCode),
		CheckInTime:  attrs.CreatedAt,
		CheckOutTime: attrs.CheckedOutAt,
		EventID:      eventID,
	}
	if ids := r.Relationships["locations"].IDs(); len(ids) > 0 {
		ci.LocationID = ids[0].ID
		ci.LocationName = names["Location/"+ids[0].ID]
	}
	if ids := r.Relationships["event"].IDs(); len(ids) > 0 {
		ci.EventID = ids[0].ID
		ci.EventName = names["Event/"+ids[0].ID]
	}
	return ci, true
}

// includedNames indexes the name attribute of side-loaded resources by "Type/ID".
func includedNames(included []Resource) map[string]string {
	names := make(map[string]string, len(included))
	for _, r := range included {
		var attrs struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(r.Attributes, &attrs); err != nil {
			continue
		}
		names[r.Type+"/"+r.ID] = attrs.Name
	}
	return names
}

// fetchAll follows links.next until the directory stops returning one. A
// failure on any page fails the whole call; partial results are never returned.
func (c *Client) fetchAll(ctx context.Context, path string, q url.Values) ([]*Document, error) {
	q.Set("per_page", strconv.Itoa(c.perPage))
	next := c.baseURL.ResolveReference(&url.URL{Path: path, RawQuery: q.Encode()})

	var docs []*Document
	for page := 1; next != nil; page++ {
		if page > c.maxPages {
			return nil, apperr.Unavailable(fmt.Errorf("pagination for %s exceeded %d pages", path, c.maxPages))
		}
		doc, err := c.fetchPage(ctx, next.String())
		if errors.Is(err, errNotFound) {
			if page == 1 {
				return nil, nil
			}
			return nil, apperr.Unavailable(fmt.Errorf("%s page %d disappeared mid-listing", path, page))
		}
		if err != nil {
			log.Printf("Error fetching %s page %d: %v", path, page, err)
			return nil, err
		}
		docs = append(docs, doc)

		next = nil
		if doc.Links.Next != "" {
			u, err := url.Parse(doc.Links.Next)
			if err != nil {
				return nil, apperr.Unavailable(fmt.Errorf("invalid next link %q: %w", doc.Links.Next, err))
			}
			next = c.baseURL.ResolveReference(u)
			if next.Scheme != c.baseURL.Scheme || next.Host != c.baseURL.Host {
				return nil, apperr.Unavailable(fmt.Errorf("next link %q leaves %s", doc.Links.Next, c.baseURL.Host))
			}
		}
	}
	return docs, nil
}

// fetchPage fetches and decodes a single page.
func (c *Client) fetchPage(ctx context.Context, rawURL string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.appID != "" || c.secret != "" {
		req.SetBasicAuth(c.appID, c.secret)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, apperr.AuthExpired(ErrAuthExpired)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.Unavailable(fmt.Errorf("received non-200 status code: %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("failed to read response body: %w", err))
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("failed to unmarshal directory response: %w", err))
	}
	return &doc, nil
}
