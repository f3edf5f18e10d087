// Package toggl implements a small Toggl Track API v9 client scoped to one
// workspace, project and entry description.
package toggl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/loggy"
)

// createdWith tags every entry this tool writes, so they can be told apart
// from manually tracked time
const createdWith = "AnkiToggl"

// Client talks to the Toggl Track API. Requests are rate limited and never
// retried; a failed call surfaces immediately and the next sync tries again.
type Client struct {
	baseURL     string
	apiToken    string
	workspaceID int64
	projectID   int64
	description string
	userAgent   string

	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *loggy.Logger
}

// NewClient creates a Client from the Toggl section of the configuration
func NewClient(cfg config.TogglConfig, version string, logger *loggy.Logger) *Client {
	if logger == nil {
		logger = loggy.NewNoopLogger()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	dialer := &net.Dialer{Timeout: cfg.ConnectTimeout}
	transport := &http.Transport{
		DialContext:     dialer.DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}

	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiToken:    cfg.APIToken,
		workspaceID: cfg.WorkspaceID,
		projectID:   cfg.ProjectID,
		description: cfg.Description,
		userAgent:   fmt.Sprintf("AnkiToggl/%s (+https://github.com/gamagoat/anki-toggl)", version),
		httpClient: &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: transport,
		},
		// Toggl allows roughly 1 request per second per token
		limiter: rate.NewLimiter(rate.Limit(1), 3),
		logger:  logger,
	}
}

// CreateEntry posts a new time entry for the configured project
func (c *Client) CreateEntry(ctx context.Context, start time.Time, durationSeconds int64) (*Response, error) {
	entry := TimeEntry{
		WorkspaceID: c.workspaceID,
		ProjectID:   c.projectID,
		Description: c.description,
		Start:       start.Format(time.RFC3339),
		Duration:    durationSeconds,
		CreatedWith: createdWith,
	}

	c.logger.Debug("creating time entry", "start", entry.Start, "duration_seconds", durationSeconds)

	path := fmt.Sprintf("/workspaces/%d/time_entries", c.workspaceID)
	return c.sendRequest(ctx, http.MethodPost, path, entry)
}

// UpdateEntry replaces an existing entry's start and duration. Toggl treats
// PUT as a whole-entry update, so the full payload is sent every time.
func (c *Client) UpdateEntry(ctx context.Context, entryID int64, durationSeconds int64, start time.Time) (*Response, error) {
	entry := TimeEntry{
		WorkspaceID: c.workspaceID,
		ProjectID:   c.projectID,
		Description: c.description,
		Start:       start.Format(time.RFC3339),
		Duration:    durationSeconds,
		CreatedWith: createdWith,
	}

	c.logger.Debug("updating time entry", "entry_id", entryID, "duration_seconds", durationSeconds)

	path := fmt.Sprintf("/workspaces/%d/time_entries/%d", c.workspaceID, entryID)
	return c.sendRequest(ctx, http.MethodPut, path, entry)
}

// FindExistingEntry looks for an entry on the target date matching the
// configured project and description. Lookup failures just mean "not
// found": creating a duplicate is recoverable, blocking the sync is not.
func (c *Client) FindExistingEntry(ctx context.Context, targetDate time.Time) *TimeEntry {
	entries, err := c.listEntries(ctx, targetDate)
	if err != nil {
		c.logger.Warn("could not list time entries", "date", targetDate.Format("2006-01-02"), "error", err)
		return nil
	}

	for i := range entries {
		if entries[i].ProjectID == c.projectID && entries[i].Description == c.description {
			return &entries[i]
		}
	}

	return nil
}

// Me fetches the authenticated account, used to verify credentials
func (c *Client) Me(ctx context.Context) (*Account, error) {
	resp, err := c.sendRequest(ctx, http.MethodGet, "/me", nil)
	if err != nil {
		return nil, err
	}

	var account Account
	if err := json.Unmarshal(resp.Body, &account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}

	return &account, nil
}

// listEntries fetches the entries for one calendar day. The end date is
// exclusive, so the window is the target date plus one day.
func (c *Client) listEntries(ctx context.Context, targetDate time.Time) ([]TimeEntry, error) {
	startDate := targetDate.Format("2006-01-02")
	endDate := targetDate.AddDate(0, 0, 1).Format("2006-01-02")

	path := fmt.Sprintf("/me/time_entries?start_date=%s&end_date=%s", startDate, endDate)
	resp, err := c.sendRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var entries []TimeEntry
	if err := json.Unmarshal(resp.Body, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode time entries: %w", err)
	}

	return entries, nil
}

// sendRequest performs a single API call and returns the raw response.
// Statuses of 400 and above come back as *APIError so callers can branch
// on them; transport failures are ordinary wrapped errors.
func (c *Client) sendRequest(ctx context.Context, method, path string, body any) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("failed to wait for rate limit: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(c.apiToken, "api_token")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{
			StatusCode:   resp.StatusCode,
			ResponseText: strings.TrimSpace(string(respBody)),
		}
	}

	return &Response{StatusCode: resp.StatusCode, Body: respBody}, nil
}
