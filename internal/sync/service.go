package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gamagoat/anki-toggl/internal/anki"
	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/ledger"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/timezone"
	"github.com/gamagoat/anki-toggl/internal/toggl"
)

const (
	// skipNoReviews is the user-facing reason when today has no review time
	skipNoReviews = "No review time logged for today in Anki."

	// skipNoCollection is the user-facing reason when the collection file
	// cannot be found
	skipNoCollection = "Anki collection is not available."
)

// Service drives one full sync: extract the session, decide create vs
// update, write to Toggl, record the result.
type Service struct {
	cfg     *config.Config
	client  EntryClient
	tracker SessionSource
	ledger  *ledger.Ledger
	logger  *loggy.Logger

	// mu serialises decide-and-record, so an automatic and a manual sync
	// for the same day cannot both decide "create"
	mu sync.Mutex
}

// NewService wires the engine with its collaborators
func NewService(cfg *config.Config, client EntryClient, tracker SessionSource, ldg *ledger.Ledger, logger *loggy.Logger) *Service {
	if logger == nil {
		logger = loggy.NewNoopLogger()
	}

	return &Service{
		cfg:     cfg,
		client:  client,
		tracker: tracker,
		ledger:  ldg,
		logger:  logger,
	}
}

// SyncReviewTime runs one reconciliation pass. tzName overrides the
// configured timezone when non-empty. A nil error with Outcome.Skipped set
// means there was nothing to do; every returned error is a *SyncError.
func (s *Service) SyncReviewTime(ctx context.Context, tzName string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, serr := s.resolveLocation(tzName)
	if serr != nil {
		return nil, serr
	}

	if !s.tracker.Available() {
		s.logger.Info("sync skipped", "reason", skipNoCollection)
		return &Outcome{Skipped: true, SkipReason: skipNoCollection}, nil
	}

	session := s.tracker.TodaySession(ctx, loc)

	if session.Empty() {
		s.logger.Info("sync skipped", "reason", skipNoReviews)
		return &Outcome{Skipped: true, SkipReason: skipNoReviews, Session: session}, nil
	}

	outcome, err := s.syncToToggl(ctx, session)
	if err != nil {
		return nil, s.classify(err)
	}

	// An EntryClient is allowed to hand back a failure status without
	// raising; treat it exactly like a raised API error
	if outcome.Response != nil && outcome.Response.StatusCode >= 400 {
		return nil, &SyncError{
			StatusCode:   outcome.Response.StatusCode,
			ResponseText: outcome.Response.Text(),
			Message:      fmt.Sprintf("Toggl API error: %d", outcome.Response.StatusCode),
		}
	}

	s.logger.Info("sync complete",
		"action", outcome.Action,
		"date", outcome.TargetDate,
		"duration_seconds", session.DurationSeconds,
	)

	return outcome, nil
}

// Preview reports what a sync would do right now, without calling Toggl or
// writing the ledger. The decision is ledger-only: a day that was synced
// before previews as an update even when the live run would have to fall
// back to a create.
func (s *Service) Preview(ctx context.Context, tzName string) (*Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, serr := s.resolveLocation(tzName)
	if serr != nil {
		return nil, serr
	}

	if !s.tracker.Available() {
		return &Outcome{Skipped: true, SkipReason: skipNoCollection}, nil
	}

	session := s.tracker.TodaySession(ctx, loc)
	if session.Empty() {
		return &Outcome{Skipped: true, SkipReason: skipNoReviews, Session: session}, nil
	}

	key := s.keyFor(session)
	outcome := &Outcome{
		Action:     ActionCreate,
		Session:    session,
		TargetDate: key.Date,
	}

	if s.ledger.HasBeenSynced(key) {
		outcome.Action = ActionUpdate
		if stored := s.ledger.GetSyncedEntry(key); stored.TogglID != nil {
			outcome.TogglID = stored.TogglID
		}
	}

	return outcome, nil
}

// Today returns the current session alongside whatever the ledger has for
// today's tuple, for the status view
func (s *Service) Today(ctx context.Context, tzName string) (anki.ReviewSession, ledger.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	loc, serr := s.resolveLocation(tzName)
	if serr != nil {
		return anki.ReviewSession{}, ledger.Record{}, serr
	}

	session := s.tracker.TodaySession(ctx, loc)
	return session, s.ledger.GetSyncedEntry(s.keyFor(session)), nil
}

// syncToToggl decides create vs update and performs the write. The order
// is load-bearing: the ledger is consulted first, and Toggl is only asked
// for an existing entry when the ledger knows the day but lost the id.
func (s *Service) syncToToggl(ctx context.Context, session anki.ReviewSession) (*Outcome, error) {
	key := s.keyFor(session)

	action := ActionCreate
	var preservedID *int64
	var resp *toggl.Response
	var err error

	if !s.ledger.HasBeenSynced(key) {
		s.logger.Debug("first sync for this day", "key", key.String())
		resp, err = s.client.CreateEntry(ctx, session.StartTime, session.DurationSeconds)
		if err != nil {
			return nil, err
		}
	} else {
		stored := s.ledger.GetSyncedEntry(key)

		// Keep the original entry start across same-day updates, so the
		// entry's duration grows without its start drifting
		updateStart := session.StartTime
		if stored.StartTime != "" {
			if parsed, perr := time.Parse(time.RFC3339, stored.StartTime); perr == nil {
				updateStart = parsed
			}
		}
		preservedID = stored.TogglID

		if stored.TogglID != nil {
			action = ActionUpdate
			resp, err = s.client.UpdateEntry(ctx, *stored.TogglID, session.DurationSeconds, updateStart)
			if err != nil {
				var apiErr *toggl.APIError
				if !errors.As(err, &apiErr) || !apiErr.IsNotFound() {
					return nil, err
				}

				// The remote entry was deleted out-of-band; forget it and
				// start the day over with a fresh create
				s.logger.Warn("stored entry no longer exists on Toggl, recreating", "entry_id", *stored.TogglID)
				if cerr := s.ledger.ClearStaleEntry(key); cerr != nil {
					return nil, cerr
				}
				preservedID = nil
				action = ActionCreate
				resp, err = s.client.CreateEntry(ctx, session.StartTime, session.DurationSeconds)
				if err != nil {
					return nil, err
				}
			}
		} else {
			// Synced before but the remote id was lost; ask Toggl whether
			// the day's entry is still there
			targetDate := timezone.StartOfDay(session.StartTime)
			existing := s.client.FindExistingEntry(ctx, targetDate)

			if existing != nil && existing.ID > 0 {
				action = ActionUpdate
				preservedID = &existing.ID
				resp, err = s.client.UpdateEntry(ctx, existing.ID, session.DurationSeconds, updateStart)
			} else {
				resp, err = s.client.CreateEntry(ctx, session.StartTime, session.DurationSeconds)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	togglID := preservedID
	if id, ok := s.extractEntryID(resp); ok {
		togglID = &id
	}

	// Recorded even when id extraction failed, so the ledger always
	// reflects the latest attempt
	if rerr := s.ledger.RecordSync(key, &session.StartTime, session.DurationSeconds, togglID, string(action)); rerr != nil {
		return nil, rerr
	}

	return &Outcome{
		Action:     action,
		TogglID:    togglID,
		Response:   resp,
		Session:    session,
		TargetDate: key.Date,
	}, nil
}

func (s *Service) keyFor(session anki.ReviewSession) ledger.Key {
	return ledger.NewKey(session.StartTime, s.cfg.Toggl.WorkspaceID, s.cfg.Toggl.ProjectID, s.cfg.Toggl.Description)
}

func (s *Service) resolveLocation(tzName string) (*time.Location, *SyncError) {
	if tzName == "" {
		tzName = s.cfg.Sync.Timezone
	}

	loc, err := timezone.Resolve(tzName)
	if err != nil {
		return nil, &SyncError{
			StatusCode: http.StatusBadRequest,
			Message:    fmt.Sprintf("Invalid input: %v", err),
		}
	}

	return loc, nil
}

// extractEntryID pulls the entry id out of a response body. Toggl always
// sends one, but a missing or odd-shaped id only costs the stored
// identifier, never the sync.
func (s *Service) extractEntryID(resp *toggl.Response) (int64, bool) {
	if resp == nil {
		return 0, false
	}

	decoded, err := resp.JSON()
	if err != nil {
		s.logger.Debug("could not decode entry response", "error", err)
		return 0, false
	}

	id, ok := decoded["id"].(float64)
	if !ok {
		s.logger.Debug("entry response carries no numeric id")
		return 0, false
	}

	return int64(id), true
}

// classify maps an engine error onto the caller-facing taxonomy: explicit
// API rejections keep their status, everything else is network trouble
func (s *Service) classify(err error) *SyncError {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr
	}

	var apiErr *toggl.APIError
	if errors.As(err, &apiErr) {
		return &SyncError{
			StatusCode:   apiErr.StatusCode,
			ResponseText: apiErr.ResponseText,
			Message:      fmt.Sprintf("Toggl API error: %d", apiErr.StatusCode),
		}
	}

	return &SyncError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    fmt.Sprintf("Network error: %v", err),
	}
}
