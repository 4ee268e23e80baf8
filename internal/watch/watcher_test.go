package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	calls := make(chan struct{}, 10)

	w := New(dir, ".zip", 50*time.Millisecond).
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(context.Context) error {
			calls <- struct{}{}
			return errors.New("handler errors do not stop the watcher")
		})
	}()

	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected an initial pass")
	}

	// partial downloads and foreign files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scene.zip.part"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))
	select {
	case <-calls:
		t.Fatal("unexpected pass for ignored files")
	case <-time.After(300 * time.Millisecond):
	}

	// a burst of archives results in one pass
	for _, name := range []string{"a.zip", "b.ZIP", "c.zip"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a pass after archives arrived")
	}
	select {
	case <-calls:
		t.Fatal("burst must be debounced into one pass")
	case <-time.After(300 * time.Millisecond):
	}

	// renamed into place, as downloads are
	require.NoError(t, os.Rename(filepath.Join(dir, "scene.zip.part"), filepath.Join(dir, "scene.zip")))
	select {
	case <-calls:
	case <-time.After(2 * time.Second):
		t.Fatal("expected a pass after rename")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestWatcher_MissingDirectory(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "absent"), ".zip", time.Second)
	err := w.Run(context.Background(), func(context.Context) error { return nil })
	assert.Error(t, err)
}
