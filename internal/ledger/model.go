package ledger

import (
	"fmt"
	"time"
)

// Key identifies one synced day: the local date plus the Toggl coordinates
// the entry was written to. Changing any part of it makes a different day
// as far as deduplication is concerned.
type Key struct {
	Date        string // local date in the sync timezone, "2006-01-02"
	WorkspaceID int64
	ProjectID   int64
	Description string
}

// NewKey builds a Key for the given day and Toggl target
func NewKey(day time.Time, workspaceID, projectID int64, description string) Key {
	return Key{
		Date:        day.Format("2006-01-02"),
		WorkspaceID: workspaceID,
		ProjectID:   projectID,
		Description: description,
	}
}

// String renders the storage form of the key. The description goes last so
// colons inside it cannot be confused with the separators; the string is
// only ever compared whole, never split back into parts.
func (k Key) String() string {
	return fmt.Sprintf("%s:%d:%d:%s", k.Date, k.WorkspaceID, k.ProjectID, k.Description)
}

// Record is what the ledger remembers about one synced day
type Record struct {
	// Exists is false on the zero Record returned for unknown keys
	Exists bool `json:"-"`

	TargetDate  string `json:"target_date"`
	WorkspaceID int64  `json:"workspace_id"`
	ProjectID   int64  `json:"project_id"`
	Description string `json:"description"`
	SyncedAt    string `json:"synced_at"`

	StartTime       string `json:"start_time,omitempty"`
	DurationSeconds int64  `json:"duration_seconds,omitempty"`
	TogglID         *int64 `json:"toggl_id,omitempty"`
	Action          string `json:"action,omitempty"`
}
