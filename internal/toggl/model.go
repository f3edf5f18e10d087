package toggl

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// TimeEntry is the wire shape of a Toggl time entry, used both for request
// payloads and for decoding API responses
type TimeEntry struct {
	ID          int64  `json:"id,omitempty"`
	WorkspaceID int64  `json:"workspace_id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	Start       string `json:"start"`
	Duration    int64  `json:"duration"`
	CreatedWith string `json:"created_with,omitempty"`
}

// Account is the authenticated Toggl user, fetched when verifying credentials
type Account struct {
	ID                 int64  `json:"id"`
	Fullname           string `json:"fullname"`
	Email              string `json:"email"`
	DefaultWorkspaceID int64  `json:"default_workspace_id"`
}

// Response is the raw outcome of a successful API call
type Response struct {
	StatusCode int
	Body       []byte
}

// JSON decodes the response body as a generic object
func (r *Response) JSON() (map[string]any, error) {
	var decoded map[string]any
	if err := json.Unmarshal(r.Body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response body: %w", err)
	}

	return decoded, nil
}

// Text returns the response body as a string
func (r *Response) Text() string {
	return string(r.Body)
}

// APIError is a 4xx or 5xx response from the Toggl API
type APIError struct {
	StatusCode   int
	ResponseText string
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("toggl API error %d: %s", e.StatusCode, e.ResponseText)
}

// IsNotFound reports whether the remote entry does not exist
func (e *APIError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}
