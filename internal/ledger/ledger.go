// Package ledger persists which days have already been pushed to Toggl, so
// repeated runs update the day's entry instead of creating duplicates.
package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gamagoat/anki-toggl/internal/loggy"
)

// Ledger is a flat JSON file keyed by Key.String(). All operations are
// safe for concurrent use.
type Ledger struct {
	path   string
	logger *loggy.Logger

	mu      sync.Mutex
	entries map[string]Record
}

// New loads the ledger at path. A missing or unreadable file starts empty:
// losing sync state costs at most a duplicate entry on Toggl, refusing to
// start costs the whole sync.
func New(path string, logger *loggy.Logger) *Ledger {
	if logger == nil {
		logger = loggy.NewNoopLogger()
	}

	l := &Ledger{
		path:    path,
		logger:  logger,
		entries: make(map[string]Record),
	}
	l.load()
	return l
}

// Path returns the location of the state file
func (l *Ledger) Path() string {
	return l.path
}

// HasBeenSynced reports whether the given day was already pushed
func (l *Ledger) HasBeenSynced(key Key) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.entries[key.String()]
	return ok
}

// GetSyncedEntry returns the stored record for the key. The zero Record
// with Exists false means the day has not been synced.
func (l *Ledger) GetSyncedEntry(key Key) Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.entries[key.String()]
	if !ok {
		return Record{}
	}

	rec.Exists = true
	return rec
}

// RecordSync stores or refreshes the record for the key and persists the
// file. start and togglID may be nil when the sync could not determine
// them; the day still counts as synced.
func (l *Ledger) RecordSync(key Key, start *time.Time, durationSeconds int64, togglID *int64, action string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec := Record{
		TargetDate:      key.Date,
		WorkspaceID:     key.WorkspaceID,
		ProjectID:       key.ProjectID,
		Description:     key.Description,
		SyncedAt:        time.Now().Format(time.RFC3339),
		DurationSeconds: durationSeconds,
		TogglID:         togglID,
		Action:          action,
	}
	if start != nil {
		rec.StartTime = start.Format(time.RFC3339)
	}
	l.entries[key.String()] = rec

	return l.save()
}

// ClearStaleEntry drops the record for a key whose Toggl entry turned out
// to no longer exist. Unknown keys are a no-op and do not touch the file.
func (l *Ledger) ClearStaleEntry(key Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.entries[key.String()]; !ok {
		return nil
	}

	delete(l.entries, key.String())
	return l.save()
}

// Count returns the number of synced days on record
func (l *Ledger) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}

func (l *Ledger) load() {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.Debug("no sync state file yet", "path", l.path)
		} else {
			l.logger.Warn("could not read sync state, starting empty", "path", l.path, "error", err)
		}
		return
	}

	if err := json.Unmarshal(data, &l.entries); err != nil {
		l.logger.Warn("sync state file is corrupt, starting empty", "path", l.path, "error", err)
		l.entries = make(map[string]Record)
	}

	// A file holding the JSON literal null decodes without error into a
	// nil map, which would make the next write panic
	if l.entries == nil {
		l.entries = make(map[string]Record)
	}
}

// save writes the state atomically: temp file in the same directory, flush,
// then rename over the old file. I/O failures are logged and swallowed so a
// full or read-only disk degrades to re-syncing instead of crashing;
// marshal failures are returned because they mean a bug.
func (l *Ledger) save() error {
	data, err := json.MarshalIndent(l.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling sync state: %w", err)
	}

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		l.logger.Error("could not create sync state directory", "dir", dir, "error", err)
		return nil
	}

	tmp, err := os.CreateTemp(dir, "sync_state-*.tmp")
	if err != nil {
		l.logger.Error("could not create temp sync state file", "dir", dir, "error", err)
		return nil
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		l.logger.Error("could not write sync state", "path", tmpName, "error", err)
		return nil
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		l.logger.Error("could not flush sync state", "path", tmpName, "error", err)
		return nil
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		l.logger.Error("could not close temp sync state file", "path", tmpName, "error", err)
		return nil
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		l.logger.Error("could not replace sync state file", "path", l.path, "error", err)
		return nil
	}

	return nil
}
