package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/escolab/agenda-api/pkg/config"
)

const maxErrorBodyBytes = 2048

// Client talks to the external calendar provider over its REST API.
type Client struct {
	baseURL    string
	token      string
	calendarID string
	location   *time.Location
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient builds a provider client from configuration.
func NewClient(cfg config.CalendarConfig, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	loc := time.UTC
	if cfg.Timezone != "" {
		if parsed, err := time.LoadLocation(cfg.Timezone); err == nil {
			loc = parsed
		} else {
			logger.Sugar().Warnw("unknown calendar timezone, falling back to UTC", "timezone", cfg.Timezone)
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		calendarID: cfg.CalendarID,
		location:   loc,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// CreateEvent inserts a new event into the configured calendar.
func (c *Client) CreateEvent(ctx context.Context, ev Event) (*EventRef, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))

	resp, err := c.do(ctx, http.MethodPost, endpoint, c.encodeEvent(ev))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, failureFrom("create", resp)
	}

	return decodeRef(resp.Body)
}

// UpdateEvent replaces the remote event identified by externalID.
func (c *Client) UpdateEvent(ctx context.Context, externalID string, ev Event) (*EventRef, error) {
	resp, err := c.do(ctx, http.MethodPut, c.eventURL(externalID), c.encodeEvent(ev))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, failureFrom("update", resp)
	}

	return decodeRef(resp.Body)
}

// DeleteEvent removes the remote event. A provider answering 404 or 410
// means the event is already gone, which is the desired end state.
func (c *Client) DeleteEvent(ctx context.Context, externalID string) error {
	resp, err := c.do(ctx, http.MethodDelete, c.eventURL(externalID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return nil
	}

	return failureFrom("delete", resp)
}

// Ping verifies the provider answers for the configured calendar.
func (c *Client) Ping(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/calendars/%s", c.baseURL, url.PathEscape(c.calendarID))

	resp, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return failureFrom("ping", resp)
	}

	return nil
}

func (c *Client) eventURL(externalID string) string {
	return fmt.Sprintf("%s/calendars/%s/events/%s", c.baseURL, url.PathEscape(c.calendarID), url.PathEscape(externalID))
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	return c.httpClient.Do(req)
}

type wireDateTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireAttendee struct {
	Email string `json:"email"`
}

type wireEvent struct {
	Summary     string         `json:"summary"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	Start       wireDateTime   `json:"start"`
	End         wireDateTime   `json:"end"`
	Attendees   []wireAttendee `json:"attendees,omitempty"`
	Conference  bool           `json:"conferencing,omitempty"`
}

type wireEventRef struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

func (c *Client) encodeEvent(ev Event) wireEvent {
	attendees := make([]wireAttendee, 0, len(ev.Attendees))
	for _, email := range ev.Attendees {
		if email == "" {
			continue
		}
		attendees = append(attendees, wireAttendee{Email: email})
	}

	tzName := c.location.String()

	return wireEvent{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       wireDateTime{DateTime: ev.StartsAt.In(c.location).Format(time.RFC3339), TimeZone: tzName},
		End:         wireDateTime{DateTime: ev.EndsAt.In(c.location).Format(time.RFC3339), TimeZone: tzName},
		Attendees:   attendees,
		Conference:  ev.Conference,
	}
}

func decodeRef(r io.Reader) (*EventRef, error) {
	var ref wireEventRef
	if err := json.NewDecoder(r).Decode(&ref); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &EventRef{ID: ref.ID, Link: ref.HTMLLink}, nil
}

func failureFrom(op string, resp *http.Response) *Failure {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &Failure{
		Op:         op,
		StatusCode: resp.StatusCode,
		Transient:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
		Body:       strings.TrimSpace(string(body)),
	}
}
