package sync

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamagoat/anki-toggl/internal/anki"
	"github.com/gamagoat/anki-toggl/internal/config"
	"github.com/gamagoat/anki-toggl/internal/ledger"
	"github.com/gamagoat/anki-toggl/internal/loggy"
	"github.com/gamagoat/anki-toggl/internal/toggl"
)

// fakeCall records one invocation of the entry client
type fakeCall struct {
	method   string
	entryID  int64
	start    time.Time
	duration int64
}

// fakeClient is a scriptable EntryClient that records every call
type fakeClient struct {
	calls []fakeCall

	createResp *toggl.Response
	createErr  error
	updateResp *toggl.Response
	updateErr  error
	found      *toggl.TimeEntry
}

func okResponse(body string) *toggl.Response {
	return &toggl.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

func (f *fakeClient) CreateEntry(ctx context.Context, start time.Time, durationSeconds int64) (*toggl.Response, error) {
	f.calls = append(f.calls, fakeCall{method: "create", start: start, duration: durationSeconds})
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.createResp != nil {
		return f.createResp, nil
	}
	return okResponse(`{"id": 555}`), nil
}

func (f *fakeClient) UpdateEntry(ctx context.Context, entryID int64, durationSeconds int64, start time.Time) (*toggl.Response, error) {
	f.calls = append(f.calls, fakeCall{method: "update", entryID: entryID, start: start, duration: durationSeconds})
	if f.updateErr != nil {
		// One-shot, so a 404 can be followed by a successful create
		err := f.updateErr
		f.updateErr = nil
		return nil, err
	}
	if f.updateResp != nil {
		return f.updateResp, nil
	}
	return okResponse(`{"id": 555}`), nil
}

func (f *fakeClient) FindExistingEntry(ctx context.Context, targetDate time.Time) *toggl.TimeEntry {
	f.calls = append(f.calls, fakeCall{method: "find", start: targetDate})
	return f.found
}

// methods flattens the recorded call sequence for easy comparison
func (f *fakeClient) methods() []string {
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.method)
	}
	return out
}

// fakeTracker is a canned SessionSource
type fakeTracker struct {
	available bool
	session   anki.ReviewSession
}

func (f *fakeTracker) Available() bool { return f.available }

func (f *fakeTracker) TodaySession(ctx context.Context, loc *time.Location) anki.ReviewSession {
	return f.session
}

func reviewSession(start time.Time, durationSeconds int64) anki.ReviewSession {
	end := start.Add(time.Duration(durationSeconds) * time.Second)
	return anki.ReviewSession{
		StartTime:       start,
		EndTime:         &end,
		DurationSeconds: durationSeconds,
		SessionCount:    42,
	}
}

func emptyReviewSession() anki.ReviewSession {
	return anki.ReviewSession{StartTime: time.Now().UTC()}
}

func newTestService(t *testing.T, client EntryClient, tracker SessionSource) *Service {
	t.Helper()

	cfg := config.New()
	cfg.Toggl.WorkspaceID = 100
	cfg.Toggl.ProjectID = 200
	cfg.Toggl.Description = "Anki Review Session"
	cfg.Sync.Timezone = "UTC"

	ldg := ledger.New(filepath.Join(t.TempDir(), "sync_state.json"), loggy.NewNoopLogger())
	return NewService(cfg, client, tracker, ldg, loggy.NewNoopLogger())
}

var sessionStart = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestFirstSyncCreatesEntry(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	assert.False(t, outcome.Skipped)
	assert.Equal(t, ActionCreate, outcome.Action)
	assert.Equal(t, "2024-01-01", outcome.TargetDate)
	require.NotNil(t, outcome.TogglID)
	assert.Equal(t, int64(555), *outcome.TogglID)

	require.Equal(t, []string{"create"}, client.methods())
	assert.True(t, client.calls[0].start.Equal(sessionStart))
	assert.Equal(t, int64(1800), client.calls[0].duration)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	rec := svc.ledger.GetSyncedEntry(key)
	require.True(t, rec.Exists)
	assert.Equal(t, "create", rec.Action)
	assert.Equal(t, int64(1800), rec.DurationSeconds)
	assert.Equal(t, "2024-01-01T09:00:00Z", rec.StartTime)
	require.NotNil(t, rec.TogglID)
	assert.Equal(t, int64(555), *rec.TogglID)
}

func TestSecondSyncUpdatesWithStoredStart(t *testing.T) {
	client := &fakeClient{updateResp: okResponse(`{"id": 555}`)}

	// The session the extractor sees now starts earlier than what was
	// recorded, to prove the stored start wins for the remote update
	laterStart := time.Date(2024, 1, 1, 8, 55, 0, 0, time.UTC)
	tracker := &fakeTracker{available: true, session: reviewSession(laterStart, 3600)}
	svc := newTestService(t, client, tracker)

	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, &storedID, "create"))

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, ActionUpdate, outcome.Action)
	require.Equal(t, []string{"update"}, client.methods())
	assert.Equal(t, int64(555), client.calls[0].entryID)
	assert.Equal(t, int64(3600), client.calls[0].duration)
	assert.True(t, client.calls[0].start.Equal(sessionStart), "update must keep the stored start")

	// The ledger now reflects the latest session, not the update payload
	rec := svc.ledger.GetSyncedEntry(key)
	require.True(t, rec.Exists)
	assert.Equal(t, "update", rec.Action)
	assert.Equal(t, int64(3600), rec.DurationSeconds)
	assert.Equal(t, "2024-01-01T08:55:00Z", rec.StartTime)
}

func TestStoredStartWithOffsetIsParsed(t *testing.T) {
	// A state file written in a non-UTC timezone stores the offset form
	// rather than Z; the update must still reuse that instant
	statePath := filepath.Join(t.TempDir(), "sync_state.json")
	state := `{
  "2024-01-01:100:200:Anki Review Session": {
    "target_date": "2024-01-01",
    "workspace_id": 100,
    "project_id": 200,
    "description": "Anki Review Session",
    "synced_at": "2024-01-01T09:30:00Z",
    "start_time": "2024-01-01T10:00:00+01:00",
    "duration_seconds": 1800,
    "toggl_id": 555,
    "action": "create"
  }
}`
	require.NoError(t, os.WriteFile(statePath, []byte(state), 0o644))

	cfg := config.New()
	cfg.Toggl.WorkspaceID = 100
	cfg.Toggl.ProjectID = 200
	cfg.Toggl.Description = "Anki Review Session"
	cfg.Sync.Timezone = "UTC"

	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart.Add(30*time.Minute), 3600)}
	svc := NewService(cfg, client, tracker, ledger.New(statePath, loggy.NewNoopLogger()), loggy.NewNoopLogger())

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, []string{"update"}, client.methods())
	assert.Equal(t, int64(555), client.calls[0].entryID)
	assert.True(t, client.calls[0].start.Equal(sessionStart), "10:00+01:00 is the same instant as 09:00Z")
}

func TestStoredIDWithoutStartUsesSessionStart(t *testing.T) {
	client := &fakeClient{updateResp: okResponse(`{"id": 555}`)}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	// A partial prior record: the id survived but the start did not
	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, nil, 1800, &storedID, "create"))

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, []string{"update"}, client.methods())
	assert.Equal(t, int64(555), client.calls[0].entryID)
	assert.True(t, client.calls[0].start.Equal(sessionStart), "with no stored start the session start is used")
}

func TestStaleEntryIsRecreated(t *testing.T) {
	client := &fakeClient{
		updateErr:  &toggl.APIError{StatusCode: http.StatusNotFound, ResponseText: "Time entry not found"},
		createResp: okResponse(`{"id": 777}`),
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 900, &storedID, "create"))

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	// Exactly one failed update then one create; the remote lookup is
	// never consulted on this path
	require.Equal(t, []string{"update", "create"}, client.methods())
	assert.Equal(t, int64(555), client.calls[0].entryID)
	assert.True(t, client.calls[1].start.Equal(sessionStart))

	assert.Equal(t, ActionCreate, outcome.Action)
	require.NotNil(t, outcome.TogglID)
	assert.Equal(t, int64(777), *outcome.TogglID)

	rec := svc.ledger.GetSyncedEntry(key)
	require.True(t, rec.Exists)
	assert.Equal(t, "create", rec.Action)
	require.NotNil(t, rec.TogglID)
	assert.Equal(t, int64(777), *rec.TogglID)
	assert.Equal(t, 1, svc.ledger.Count())
}

func TestStaleIDNeverSurvivesRecovery(t *testing.T) {
	client := &fakeClient{
		updateErr:  &toggl.APIError{StatusCode: http.StatusNotFound, ResponseText: "Time entry not found"},
		createResp: okResponse(`not json`),
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 900, &storedID, "create"))

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	// The cleared id must not be resurrected when the create response
	// cannot be decoded
	rec := svc.ledger.GetSyncedEntry(key)
	require.True(t, rec.Exists)
	assert.Nil(t, rec.TogglID)
	assert.Equal(t, "create", rec.Action)
}

func TestSkipWhenNoReviews(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: emptyReviewSession()}
	svc := newTestService(t, client, tracker)

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.Equal(t, "No review time logged for today in Anki.", outcome.SkipReason)
	assert.Empty(t, client.calls, "a skipped sync must not touch Toggl")
	assert.Equal(t, 0, svc.ledger.Count(), "a skipped sync must not touch the ledger")

	_, statErr := os.Stat(svc.ledger.Path())
	assert.True(t, os.IsNotExist(statErr), "a skipped sync must not create the state file")
}

func TestSkipWhenCollectionUnavailable(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: false}
	svc := newTestService(t, client, tracker)

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	assert.True(t, outcome.Skipped)
	assert.Equal(t, "Anki collection is not available.", outcome.SkipReason)
	assert.Empty(t, client.calls)
}

func TestLostIDFoundRemotely(t *testing.T) {
	client := &fakeClient{
		found:      &toggl.TimeEntry{ID: 444, ProjectID: 200, Description: "Anki Review Session"},
		updateResp: okResponse(`{"id": 444}`),
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, nil, "create"))

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, []string{"find", "update"}, client.methods())
	assert.Equal(t, int64(444), client.calls[1].entryID)
	assert.Equal(t, ActionUpdate, outcome.Action)

	rec := svc.ledger.GetSyncedEntry(key)
	require.NotNil(t, rec.TogglID)
	assert.Equal(t, int64(444), *rec.TogglID)
}

func TestLostIDFoundRemotelyKeepsFoundIDOnBadResponse(t *testing.T) {
	client := &fakeClient{
		found:      &toggl.TimeEntry{ID: 444, ProjectID: 200, Description: "Anki Review Session"},
		updateResp: okResponse(`not json`),
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, nil, "create"))

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	// The id found remotely is worth remembering even when the update
	// response cannot be decoded
	rec := svc.ledger.GetSyncedEntry(key)
	require.NotNil(t, rec.TogglID)
	assert.Equal(t, int64(444), *rec.TogglID)
}

func TestLostIDNotFoundCreates(t *testing.T) {
	client := &fakeClient{found: nil}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, nil, "create"))

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, []string{"find", "create"}, client.methods())
	assert.Equal(t, ActionCreate, outcome.Action)
}

func TestLostIDUnusableCreates(t *testing.T) {
	client := &fakeClient{found: &toggl.TimeEntry{ID: 0}}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, nil, "create"))

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.Equal(t, []string{"find", "create"}, client.methods())
}

func TestUpdateErrorPropagatesAndLedgerKeepsOldRecord(t *testing.T) {
	client := &fakeClient{
		updateErr: &toggl.APIError{StatusCode: http.StatusInternalServerError, ResponseText: "upstream exploded"},
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, &storedID, "create"))

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.Error(t, err)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, http.StatusInternalServerError, syncErr.StatusCode)
	assert.Equal(t, "upstream exploded", syncErr.ResponseText)
	assert.Equal(t, "Toggl API error: 500", syncErr.Message)

	require.Equal(t, []string{"update"}, client.methods(), "a non-404 failure must not fall through to create")

	rec := svc.ledger.GetSyncedEntry(key)
	assert.Equal(t, int64(1800), rec.DurationSeconds, "failed syncs must not rewrite the record")
	assert.Equal(t, "create", rec.Action)
}

func TestTransportErrorClassifiedAsNetwork(t *testing.T) {
	client := &fakeClient{createErr: errors.New("dial tcp: connection refused")}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.Error(t, err)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, http.StatusServiceUnavailable, syncErr.StatusCode)
	assert.Contains(t, syncErr.Message, "Network error: ")
}

func TestInvalidTimezoneRejected(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	_, err := svc.SyncReviewTime(context.Background(), "Narnia/Lantern_Waste")
	require.Error(t, err)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, http.StatusBadRequest, syncErr.StatusCode)
	assert.Contains(t, syncErr.Message, "Invalid input: ")
	assert.Empty(t, client.calls)
}

func TestFailureStatusWithoutErrorBecomesSyncError(t *testing.T) {
	client := &fakeClient{
		createResp: &toggl.Response{StatusCode: http.StatusPaymentRequired, Body: []byte("Payment required")},
	}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	_, err := svc.SyncReviewTime(context.Background(), "")
	require.Error(t, err)

	var syncErr *SyncError
	require.True(t, errors.As(err, &syncErr))
	assert.Equal(t, http.StatusPaymentRequired, syncErr.StatusCode)
	assert.Equal(t, "Payment required", syncErr.ResponseText)
}

func TestIDExtractionFailureKeepsStoredID(t *testing.T) {
	client := &fakeClient{updateResp: okResponse(`{"ok": true}`)}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 3600)}
	svc := newTestService(t, client, tracker)

	storedID := int64(555)
	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	require.NoError(t, svc.ledger.RecordSync(key, &sessionStart, 1800, &storedID, "create"))

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	require.NotNil(t, outcome.TogglID)
	assert.Equal(t, int64(555), *outcome.TogglID, "missing id in the response falls back to the stored one")

	rec := svc.ledger.GetSyncedEntry(key)
	require.NotNil(t, rec.TogglID)
	assert.Equal(t, int64(555), *rec.TogglID)
	assert.Equal(t, int64(3600), rec.DurationSeconds, "the sync is still recorded")
}

func TestIDExtractionFailureOnCreateRecordsNil(t *testing.T) {
	client := &fakeClient{createResp: okResponse(`not json`)}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	outcome, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	assert.Nil(t, outcome.TogglID)

	key := ledger.NewKey(sessionStart, 100, 200, "Anki Review Session")
	rec := svc.ledger.GetSyncedEntry(key)
	require.True(t, rec.Exists, "the day is recorded even without an id")
	assert.Nil(t, rec.TogglID)
}

func TestCreateThenUpdateJourney(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	first, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ActionCreate, first.Action)

	// More reviews happen; the extractor reports a longer day
	tracker.session = reviewSession(sessionStart, 5400)

	second, err := svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, second.Action)

	require.Equal(t, []string{"create", "update"}, client.methods())
	assert.Equal(t, int64(555), client.calls[1].entryID, "the id from the create response is reused")
	assert.Equal(t, int64(5400), client.calls[1].duration)
	assert.True(t, client.calls[1].start.Equal(sessionStart))
}

func TestPreviewTouchesNothing(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	outcome, err := svc.Preview(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, ActionCreate, outcome.Action)
	assert.Equal(t, "2024-01-01", outcome.TargetDate)
	assert.Empty(t, client.calls, "preview must not call Toggl")
	assert.Equal(t, 0, svc.ledger.Count(), "preview must not write the ledger")

	// After a real sync the preview flips to update
	_, err = svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	outcome, err = svc.Preview(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, outcome.Action)
	require.NotNil(t, outcome.TogglID)
	assert.Equal(t, int64(555), *outcome.TogglID)
}

func TestTodayDoesNotObserveMidDecisionState(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	// Status reads racing watch-mode syncs serialise on the service, so a
	// record is either absent or complete, never half-written
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			_, _ = svc.SyncReviewTime(context.Background(), "")
		}
	}()

	for i := 0; i < 10; i++ {
		_, rec, err := svc.Today(context.Background(), "")
		require.NoError(t, err)
		if rec.Exists {
			assert.Equal(t, int64(1800), rec.DurationSeconds)
			assert.NotEmpty(t, rec.Action)
		}
	}
	<-done
}

func TestToday(t *testing.T) {
	client := &fakeClient{}
	tracker := &fakeTracker{available: true, session: reviewSession(sessionStart, 1800)}
	svc := newTestService(t, client, tracker)

	session, rec, err := svc.Today(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, int64(1800), session.DurationSeconds)
	assert.False(t, rec.Exists)

	_, err = svc.SyncReviewTime(context.Background(), "")
	require.NoError(t, err)

	_, rec, err = svc.Today(context.Background(), "")
	require.NoError(t, err)
	require.True(t, rec.Exists)
	assert.Equal(t, int64(1800), rec.DurationSeconds)
}
