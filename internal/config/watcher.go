// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"context"
	"crypto/sha1"
	"errors"
	"hash"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileDebounce is the default duration we wait for the contents to have
// stabilised to work around some editors writing an empty file and then the
// buffer.
const FileDebounce = 10 * time.Millisecond

// Change is a set of related configuration changes identified by Watch.
// A Change with a nil Config and Err indicates the configuration file
// was removed.
type Change struct {
	Event  []fsnotify.Event
	Config *Config
	Err    error
}

// Op returns an aggregated fsnotify.Op for all elements of the receivers'
// Event field.
func (c Change) Op() fsnotify.Op {
	switch len(c.Event) {
	case 0:
		return 0
	case 1:
		return c.Event[0].Op
	default:
		var op fsnotify.Op
		for _, o := range c.Event {
			op |= o.Op
		}
		return op
	}
}

// Watch watches the configuration file at path, sending semantically
// meaningful changes on the changes channel until ctx is cancelled. If the
// file exists when Watch is called, its configuration is sent as a create
// event. The directory holding path is created if it does not exist. The
// debounce parameter specifies how long to wait after the last write before
// reading the file. If it is less than zero, FileDebounce is used.
func Watch(ctx context.Context, path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w := newWatcher(path, changes, debounce, log)
	dir := filepath.Dir(w.path)
	err = os.MkdirAll(dir, 0o755)
	if err != nil {
		return err
	}
	err = watcher.Add(dir)
	if err != nil {
		return err
	}
	_, err = os.Stat(w.path)
	if err == nil {
		w.reload(ctx, []fsnotify.Event{{Name: w.path, Op: fsnotify.Create}})
	} else if !errors.Is(err, fs.ErrNotExist) {
		w.send(ctx, Change{Err: err})
	}
	return w.process(ctx, watcher)
}

// watcher collects raw fsnotify.Events for a single file and aggregates
// and filters for semantically meaningful configuration changes.
type watcher struct {
	path     string
	debounce time.Duration
	changes  chan<- Change
	hash     hash.Hash
	sum      Sum
	loaded   bool
	log      *slog.Logger
}

func newWatcher(path string, changes chan<- Change, debounce time.Duration, log *slog.Logger) *watcher {
	if debounce < 0 {
		debounce = FileDebounce
	}
	return &watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		changes:  changes,
		hash:     sha1.New(),
		log:      log.With(slog.String("component", "config_watcher")),
	}
}

// process watches the fsnotify.Watcher events performing aggregation and
// semantic filtering.
func (w *watcher) process(ctx context.Context, watcher *fsnotify.Watcher) error {
	var (
		pending []fsnotify.Event
		timer   *time.Timer
		fire    <-chan time.Time
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
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			switch {
			// Renames away from the watched name are treated as removals.
			// An editor replacing the file will follow with a create.
			case ev.Has(fsnotify.Remove | fsnotify.Rename):
				w.log.LogAttrs(ctx, slog.LevelDebug, "remove", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				pending = nil
				fire = nil
				if timer != nil {
					timer.Stop()
				}
				if !w.loaded {
					continue
				}
				w.loaded = false
				w.sum = Sum{}
				w.send(ctx, Change{Event: []fsnotify.Event{ev}})
			case ev.Has(fsnotify.Write | fsnotify.Create):
				w.log.LogAttrs(ctx, slog.LevelDebug, "write", slog.String("name", ev.Name), slog.String("op", ev.Op.String()))
				pending = append(pending, ev)
				if timer == nil {
					timer = time.NewTimer(w.debounce)
				} else {
					timer.Reset(w.debounce)
				}
				fire = timer.C
			}
		case <-fire:
			fire = nil
			events := pending
			pending = nil
			w.reload(ctx, events)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.send(ctx, Change{Err: err})
		}
	}
}

// reload reads the watched file and sends a change if its semantic
// hash differs from the last configuration sent.
func (w *watcher) reload(ctx context.Context, events []fsnotify.Event) {
	b, err := os.ReadFile(w.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		w.log.LogAttrs(ctx, slog.LevelError, "read file", slog.Any("error", err))
		w.send(ctx, Change{Event: events, Err: err})
		return
	}
	cfg, sum, err := unmarshal(w.hash, b)
	if cfg == nil {
		w.send(ctx, Change{Event: events, Err: err})
		return
	}
	if w.loaded && sum == w.sum {
		w.log.LogAttrs(ctx, slog.LevelDebug, "no change", slog.Any("sum", sum))
		return
	}
	w.log.LogAttrs(ctx, slog.LevelDebug, "set hash", slog.Any("sum", sum))
	w.sum = sum
	w.loaded = true
	w.send(ctx, Change{Event: events, Config: cfg, Err: err})
}

func (w *watcher) send(ctx context.Context, c Change) {
	select {
	case <-ctx.Done():
	case w.changes <- c:
	}
}
