package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, roots map[string]string) <-chan []string {
	t.Helper()

	w, err := New(200 * time.Millisecond)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	for key, root := range roots {
		require.NoError(t, w.Add(key, root))
	}

	ctx, cancel := context.WithCancel(zerolog.New(zerolog.NewTestWriter(t)).WithContext(context.Background()))
	t.Cleanup(cancel)

	triggered := make(chan []string, 10)
	go func() {
		_ = w.Run(ctx, func(ctx context.Context, keys []string) error {
			triggered <- keys
			return nil
		})
	}()

	return triggered
}

func waitFor(t *testing.T, ch <-chan []string) []string {
	t.Helper()
	select {
	case keys := <-ch:
		return keys
	case <-time.After(5 * time.Second):
		t.Fatal("no trigger")
		return nil
	}
}

func TestWatcherTriggers(t *testing.T) {
	a, b := t.TempDir(), t.TempDir()
	triggered := startWatcher(t, map[string]string{"a": a, "b": b})

	require.NoError(t, os.WriteFile(filepath.Join(a, "run.gpx"), []byte("x"), 0o644))
	assert.Equal(t, []string{"a"}, waitFor(t, triggered))

	require.NoError(t, os.WriteFile(filepath.Join(a, "ride.tcx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "walk.gpx"), []byte("x"), 0o644))
	assert.Equal(t, []string{"a", "b"}, waitFor(t, triggered), "changes within the debounce window are batched")
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	triggered := startWatcher(t, map[string]string{"nas": root})

	sub := filepath.Join(root, "2024")
	require.NoError(t, os.Mkdir(sub, 0o755))
	assert.Equal(t, []string{"nas"}, waitFor(t, triggered))

	// give the watcher a moment to register the new directory
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "swim.gpx"), []byte("x"), 0o644))
	assert.Equal(t, []string{"nas"}, waitFor(t, triggered))
}

func TestRelevant(t *testing.T) {
	tests := []struct {
		name string
		ev   fsnotify.Event
		want bool
	}{
		{"activity_write", fsnotify.Event{Name: "/r/run.gpx", Op: fsnotify.Write}, true},
		{"activity_remove", fsnotify.Event{Name: "/r/run.TCX", Op: fsnotify.Remove}, true},
		{"other_write", fsnotify.Event{Name: "/r/notes.txt", Op: fsnotify.Write}, false},
		{"chmod_only", fsnotify.Event{Name: "/r/run.gpx", Op: fsnotify.Chmod}, false},
		{"dir_remove", fsnotify.Event{Name: "/r/2020", Op: fsnotify.Remove}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, relevant(tt.ev))
		})
	}
}

func TestKeyForDeepestRoot(t *testing.T) {
	w := &Watcher{roots: map[string]string{
		"/data":         "outer",
		"/data/private": "inner",
	}}

	key, ok := w.keyFor("/data/private/run.gpx")
	require.True(t, ok)
	assert.Equal(t, "inner", key)

	key, ok = w.keyFor("/data/run.gpx")
	require.True(t, ok)
	assert.Equal(t, "outer", key)

	_, ok = w.keyFor("/elsewhere/run.gpx")
	assert.False(t, ok)

	_, ok = w.keyFor("/database/run.gpx")
	assert.False(t, ok, "prefix must end at a separator")
}
