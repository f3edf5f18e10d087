package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamagoat/anki-toggl/internal/loggy"
)

func newTestWatcher(t *testing.T) (*Watcher, string) {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "collection.anki2")
	require.NoError(t, os.WriteFile(path, []byte("stub"), 0o644))

	w, err := New(path, 50*time.Millisecond, loggy.NewNoopLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, w.Start())
	return w, path
}

// waitEvent blocks until a notification arrives or the timeout passes
func waitEvent(w *Watcher, timeout time.Duration) bool {
	select {
	case <-w.Events():
		return true
	case <-time.After(timeout):
		return false
	}
}

func TestNewValidation(t *testing.T) {
	_, err := New("", time.Second, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collection path is required")

	_, err = New("/tmp/collection.anki2", 0, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "debounce must be positive")
}

func TestStartTwiceFails(t *testing.T) {
	w, _ := newTestWatcher(t)

	err := w.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}

func TestWriteTriggersNotification(t *testing.T) {
	w, path := newTestWatcher(t)

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	assert.True(t, waitEvent(w, 2*time.Second), "expected a notification after a write")
}

func TestBurstCoalescesToOneNotification(t *testing.T) {
	w, path := newTestWatcher(t)

	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	require.True(t, waitEvent(w, 2*time.Second), "expected one notification for the burst")
	assert.False(t, waitEvent(w, 300*time.Millisecond), "burst must coalesce into a single notification")
}

func TestWALCompanionTriggersNotification(t *testing.T) {
	w, path := newTestWatcher(t)

	require.NoError(t, os.WriteFile(path+"-wal", []byte("wal"), 0o644))

	assert.True(t, waitEvent(w, 2*time.Second), "expected a notification for the WAL companion")
}

func TestUnrelatedFileIsIgnored(t *testing.T) {
	w, path := newTestWatcher(t)

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "prefs.sqlite"), []byte("x"), 0o644))

	assert.False(t, waitEvent(w, 300*time.Millisecond), "unrelated files must not notify")
}

func TestCloseStopsLoop(t *testing.T) {
	w, path := newTestWatcher(t)

	require.NoError(t, w.Close())

	// Writes after Close never notify
	_ = os.WriteFile(path, []byte("late"), 0o644)
	assert.False(t, waitEvent(w, 200*time.Millisecond))

	// Closing again is harmless
	_ = w.Close()
}

func TestRelevant(t *testing.T) {
	w, err := New("/data/collection.anki2", time.Second, nil)
	require.NoError(t, err)
	defer w.Close()

	tests := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"write to collection", fsnotify.Event{Name: "/data/collection.anki2", Op: fsnotify.Write}, true},
		{"wal companion", fsnotify.Event{Name: "/data/collection.anki2-wal", Op: fsnotify.Write}, true},
		{"shm companion", fsnotify.Event{Name: "/data/collection.anki2-shm", Op: fsnotify.Create}, true},
		{"rename into place", fsnotify.Event{Name: "/data/collection.anki2", Op: fsnotify.Rename}, true},
		{"chmod only", fsnotify.Event{Name: "/data/collection.anki2", Op: fsnotify.Chmod}, false},
		{"other file", fsnotify.Event{Name: "/data/prefs.sqlite", Op: fsnotify.Write}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.relevant(tt.event))
		})
	}
}
