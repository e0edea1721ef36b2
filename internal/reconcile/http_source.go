package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"checkin-billboard-backend/internal/apperr"
	"checkin-billboard-backend/internal/billboard"
	"checkin-billboard-backend/internal/parse"
	"checkin-billboard-backend/internal/pickup"
)

// ErrMalformedResponse marks a server response that could not be decoded.
var ErrMalformedResponse = errors.New("malformed server response")

// HTTPSource talks to the billboard server's REST endpoints.
type HTTPSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithToken sends an admin bearer token on every request.
func WithToken(token string) HTTPOption {
	return func(s *HTTPSource) { s.token = token }
}

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) { s.client = c }
}

// NewHTTPSource creates a source for the server at baseURL.
func NewHTTPSource(baseURL string, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ActiveBillboard fetches the global billboard; nil means none is active.
func (s *HTTPSource) ActiveBillboard(ctx context.Context) (*billboard.Snapshot, error) {
	body, err := s.do(ctx, http.MethodGet, "/global-billboard", nil)
	if err != nil {
		return nil, err
	}
	return decodeBillboard(body)
}

// decodeBillboard accepts both the {"activeBillboard": ...} envelope and a
// bare billboard or null.
func decodeBillboard(body []byte) (*billboard.Snapshot, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	raw, ok := envelope["activeBillboard"]
	if !ok {
		raw = body
	}
	if raw = bytes.TrimSpace(raw); len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var snap billboard.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if snap.EventID == "" {
		return nil, fmt.Errorf("%w: billboard without eventId", ErrMalformedResponse)
	}
	return &snap, nil
}

// ActiveNotifications fetches the pickup notifications for an event.
func (s *HTTPSource) ActiveNotifications(ctx context.Context, eventID, eventDate string) ([]pickup.Notification, error) {
	if _, err := parse.OptionalEventDate(eventDate); err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}
	q := url.Values{}
	if eventID != "" {
		q.Set("eventId", eventID)
	}
	if eventDate != "" {
		q.Set("eventDate", eventDate)
	}
	path := "/active-notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	body, err := s.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	notifications := []pickup.Notification{}
	if err := json.Unmarshal(body, &notifications); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return notifications, nil
}

// SetActive replaces the global billboard.
func (s *HTTPSource) SetActive(ctx context.Context, req billboard.SetRequest) (*billboard.Snapshot, error) {
	if _, err := parse.EventDate(req.EventDate); err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}
	body, err := s.do(ctx, http.MethodPost, "/set-global-billboard", req)
	if err != nil {
		return nil, err
	}
	return decodeBillboard(body)
}

// ClearActive destroys the global billboard.
func (s *HTTPSource) ClearActive(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodDelete, "/global-billboard", nil)
	return err
}

// SoftClear records a local dismissal on the server.
func (s *HTTPSource) SoftClear(ctx context.Context) error {
	_, err := s.do(ctx, http.MethodPost, "/clear-global-billboard", nil)
	return err
}

// SubmitCode submits a kiosk security-code entry.
func (s *HTTPSource) SubmitCode(ctx context.Context, code, eventID, eventDate string) (*pickup.SubmitResult, error) {
	if _, err := parse.OptionalEventDate(eventDate); err != nil {
		return nil, apperr.Validation("eventDate must be YYYY-MM-DD")
	}
	body, err := s.do(ctx, http.MethodPost, "/security-code-entry", map[string]string{
		"securityCode": code,
		"eventId":      eventID,
		"eventDate":    eventDate,
	})
	if err != nil {
		return nil, err
	}
	var result pickup.SubmitResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return &result, nil
}

func (s *HTTPSource) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("http request failed: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Unavailable(fmt.Errorf("failed to read response body: %w", err))
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	var e struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &e)
	cause := fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, e.Error)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return nil, apperr.Validation(e.Error)
	case http.StatusUnauthorized:
		return nil, apperr.AuthExpired(cause)
	case http.StatusNotFound:
		return nil, apperr.NotFound(e.Error)
	default:
		return nil, apperr.Unavailable(cause)
	}
}
