package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/observability"
)

// Source hands out the catalog currently in force. Components read it once
// per request so a reload never changes the dictionaries mid-resolution.
type Source interface {
	Current() *Catalog
}

// Store is a Source whose catalog can be swapped atomically.
type Store struct {
	cur atomic.Pointer[Catalog]
}

// NewStore creates a store holding c.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.cur.Store(c)
	return s
}

// Current returns the catalog in force.
func (s *Store) Current() *Catalog {
	return s.cur.Load()
}

// Swap replaces the catalog and returns the previous one.
func (s *Store) Swap(c *Catalog) *Catalog {
	return s.cur.Swap(c)
}

// Watcher reloads an override catalog file into a Store when it changes.
// A file that fails to parse is logged and ignored; the previous catalog
// stays in force.
type Watcher struct {
	path     string
	store    *Store
	fs       *fsnotify.Watcher
	logger   *observability.Logger
	debounce time.Duration

	// OnReload, when set, is called after every successful swap.
	OnReload func(*Catalog)
}

// NewWatcher watches the directory holding path. Editors and config
// management replace files by rename, which a watch on the file itself misses.
func NewWatcher(path string, store *Store, logger *observability.Logger) (*Watcher, error) {
	if logger == nil {
		logger = observability.NopLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to resolve catalog path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	return &Watcher{
		path:     abs,
		store:    store,
		fs:       fw,
		logger:   logger.WithComponent("catalog"),
		debounce: 250 * time.Millisecond,
	}, nil
}

// Run processes file events until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("catalog watcher error")
		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		w.logger.Error().Err(err).Str("path", w.path).Msg("catalog reload failed, keeping previous version")
		return
	}
	prev := w.store.Swap(c)
	prevVersion := ""
	if prev != nil {
		prevVersion = prev.Version
	}
	w.logger.Info().
		Str("path", w.path).
		Str("version", c.Version).
		Str("previous_version", prevVersion).
		Msg("catalog reloaded")
	if w.OnReload != nil {
		w.OnReload(c)
	}
}

// Close stops the underlying file watch.
func (w *Watcher) Close() error {
	return w.fs.Close()
}
