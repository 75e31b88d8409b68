// Package watch reloads theme files when they change on disk and pushes
// the new theme to a callback, usually LiveSession.SetTheme.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/themeforge/pkg/theme"
)

// DefaultDebounce is how long a file must stay quiet before it is reloaded.
// Editors write a file in several steps; reloading on the first event would
// parse a half-written file.
const DefaultDebounce = 300 * time.Millisecond

// ChangeFunc receives each successfully reloaded theme
type ChangeFunc func(ctx context.Context, t *theme.Theme) error

// Watcher watches one theme file
type Watcher struct {
	path     string
	debounce time.Duration
	onChange ChangeFunc
	log      *logrus.Logger

	mu      sync.Mutex
	pending time.Time
	last    *theme.Theme
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets the quiet period before a reload
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(log *logrus.Logger) Option {
	return func(w *Watcher) { w.log = log }
}

// New loads path once and returns a watcher for it. The initial theme is
// available from Current and is not passed to onChange.
func New(path string, onChange ChangeFunc, opts ...Option) (*Watcher, error) {
	if onChange == nil {
		return nil, errors.New("watch: onChange is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     abs,
		debounce: DefaultDebounce,
		onChange: onChange,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.log == nil {
		w.log = logrus.New()
	}

	initial, err := theme.LoadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	w.last = initial
	return w, nil
}

// Current returns the most recently loaded theme
func (w *Watcher) Current() *theme.Theme {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run watches until ctx is done. The parent directory is watched rather
// than the file so that editors replacing the file by rename are seen.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}
	w.log.WithField("file", w.path).Info("Watching theme file")

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.log.WithFields(logrus.Fields{"file": event.Name, "op": event.Op.String()}).Debug("Theme file event")
			w.mu.Lock()
			w.pending = time.Now()
			w.mu.Unlock()

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("Watcher error")

		case now := <-ticker.C:
			if w.due(now) {
				w.reload(ctx)
			}
		}
	}
}

// due reports whether a pending change has been quiet for the debounce
// period, clearing it if so
func (w *Watcher) due(now time.Time) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending.IsZero() || now.Sub(w.pending) < w.debounce {
		return false
	}
	w.pending = time.Time{}
	return true
}

// reload parses the file and hands a changed theme to onChange. A file that
// fails to parse keeps the previous theme.
func (w *Watcher) reload(ctx context.Context) {
	t, err := theme.LoadFile(w.path)
	if err != nil {
		w.log.WithError(err).WithField("file", w.path).Warn("Failed to reload theme, keeping previous")
		return
	}

	w.mu.Lock()
	unchanged := w.last != nil && w.last.Equal(t)
	if !unchanged {
		w.last = t
	}
	w.mu.Unlock()

	if unchanged {
		w.log.WithField("file", w.path).Debug("Theme file rewritten without changes")
		return
	}

	w.log.WithFields(logrus.Fields{"file": w.path, "theme": t.String()}).Info("Theme reloaded")
	if err := w.onChange(ctx, t); err != nil {
		w.log.WithError(err).Warn("Theme change callback failed")
	}
}
