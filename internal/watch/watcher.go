// Package watch triggers work when new scene archives arrive in a
// directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 30 * time.Second

// Handler is called after the directory has settled. Calls never overlap.
type Handler func(ctx context.Context) error

// Watcher watches one directory for files with a given extension.
type Watcher struct {
	dir      string
	ext      string
	debounce time.Duration
	logger   *slog.Logger
}

// New creates a watcher for files ending in ext (case-insensitive) inside
// dir.
func New(dir, ext string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		dir:      dir,
		ext:      strings.ToLower(ext),
		debounce: debounce,
		logger:   slog.Default(),
	}
}

// WithLogger sets a custom logger for the watcher.
func (w *Watcher) WithLogger(logger *slog.Logger) *Watcher {
	w.logger = logger
	return w
}

// Run calls fn once for the files already present, then again each time
// matching files appeared and the directory stayed quiet for the debounce
// period. Handler errors are logged; they do not stop the watcher. Run
// returns nil when ctx is cancelled.
func (w *Watcher) Run(ctx context.Context, fn Handler) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory",
		slog.String("dir", w.dir),
		slog.String("ext", w.ext),
		slog.Duration("debounce", w.debounce),
	)

	w.call(ctx, fn)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return errors.New("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			w.logger.Debug("archive arrived", slog.String("file", event.Name))
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-fsw.Errors:
			if !ok {
				return errors.New("watcher errors channel closed")
			}
			w.logger.Warn("watcher error", slog.String("error", err.Error()))

		case <-fire:
			fire = nil
			w.call(ctx, fn)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(strings.ToLower(name), w.ext)
}

func (w *Watcher) call(ctx context.Context, fn Handler) {
	if ctx.Err() != nil {
		return
	}
	if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
		w.logger.Error("watch pass failed", slog.String("error", err.Error()))
	}
}
