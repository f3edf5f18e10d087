// Package sync reconciles today's Anki review time with its Toggl entry.
package sync

import (
	"context"
	"time"

	"github.com/gamagoat/anki-toggl/internal/anki"
	"github.com/gamagoat/anki-toggl/internal/toggl"
)

// Action represents what the engine decided to do with today's entry
type Action string

const (
	// ActionCreate means a new time entry was (or would be) created
	ActionCreate Action = "create"
	// ActionUpdate means an existing entry was (or would be) updated
	ActionUpdate Action = "update"
)

// EntryClient is the slice of the Toggl client the engine depends on
type EntryClient interface {
	CreateEntry(ctx context.Context, start time.Time, durationSeconds int64) (*toggl.Response, error)
	UpdateEntry(ctx context.Context, entryID int64, durationSeconds int64, start time.Time) (*toggl.Response, error)
	FindExistingEntry(ctx context.Context, targetDate time.Time) *toggl.TimeEntry
}

// SessionSource produces today's review activity
type SessionSource interface {
	Available() bool
	TodaySession(ctx context.Context, loc *time.Location) anki.ReviewSession
}

// Outcome is the result of one sync attempt
type Outcome struct {
	// Skipped is true when there was nothing to sync; SkipReason says why
	Skipped    bool
	SkipReason string

	// Action, TogglID and Response describe the remote write
	Action   Action
	TogglID  *int64
	Response *toggl.Response

	// Session and TargetDate describe what was synced
	Session    anki.ReviewSession
	TargetDate string
}
