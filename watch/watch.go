/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
// Package watch reports file changes under a directory tree as debounced
// batches of events.
package watch

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"bennypowers.dev/hotswap/internal/ctxlog"
)

// DefaultDebounce is how long the watcher waits for more changes before
// delivering a batch.
const DefaultDebounce = 30 * time.Millisecond

// DefaultIgnore excludes dependency and VCS directories.
var DefaultIgnore = []string{"**/node_modules/**", "**/.git/**"}

// Options configure a Watcher.
type Options struct {
	Root string
	// Include patterns select the files to report, relative to Root.
	// Empty means every file.
	Include []string
	// Ignore patterns exclude files and whole directories, relative to Root.
	Ignore []string
	// Debounce defaults to DefaultDebounce.
	Debounce time.Duration
	// Buffer is the number of batches queued before Run blocks. Defaults to 16.
	Buffer int
}

// Watcher watches Root recursively.
type Watcher struct {
	fsw     *fsnotify.Watcher
	opts    Options
	batches chan []Event
}

// New starts watching opts.Root and every directory below it that is not ignored.
func New(opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Buffer <= 0 {
		opts.Buffer = 16
	}
	for _, pattern := range append(append([]string(nil), opts.Include...), opts.Ignore...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid watch pattern %q", pattern)
		}
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, err
	}
	opts.Root = root

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		fsw:     fsw,
		opts:    opts,
		batches: make(chan []Event, opts.Buffer),
	}
	if err := w.addTree(root); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Batches delivers coalesced event batches. It is closed when Run returns.
func (w *Watcher) Batches() <-chan []Event {
	return w.batches
}

// Close stops watching. Run returns once the underlying watcher shuts down.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run collects events until ctx is cancelled or the watcher is closed,
// delivering one batch per quiet period of opts.Debounce.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.batches)
	logger := ctxlog.FromContext(ctx)

	timer := time.NewTimer(w.opts.Debounce)
	timer.Stop()
	var pending []Event

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			event, ok := w.translate(ctx, ev)
			if !ok {
				continue
			}
			logger.Debug("file changed", "type", event.Type, "path", event.Path)
			pending = append(pending, event)
			timer.Reset(w.opts.Debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error", "error", err)

		case <-timer.C:
			batch := Coalesce(pending)
			pending = nil
			if len(batch) == 0 {
				continue
			}
			select {
			case w.batches <- batch:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Match reports whether path, absolute or relative to Root, passes the
// include and ignore patterns.
func (w *Watcher) Match(path string) bool {
	return Match(w.opts.Root, path, w.opts.Include, w.opts.Ignore)
}

// Match reports whether path passes the include and ignore patterns,
// which are matched against path relative to root.
func Match(root, path string, include, ignore []string) bool {
	rel := path
	if filepath.IsAbs(path) {
		var err error
		rel, err = filepath.Rel(root, path)
		if err != nil {
			return false
		}
	}
	rel = filepath.ToSlash(rel)

	for _, pattern := range ignore {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
		// Directory patterns like **/node_modules/** also exclude the directory itself.
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return false
		}
	}
	if len(include) == 0 {
		return true
	}
	for _, pattern := range include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) translate(ctx context.Context, ev fsnotify.Event) (Event, bool) {
	var typ EventType
	switch {
	case ev.Has(fsnotify.Create):
		typ = Create
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				ctxlog.FromContext(ctx).Warn("cannot watch directory", "path", ev.Name, "error", err)
			}
			return Event{}, false
		}
	case ev.Has(fsnotify.Write):
		typ = Update
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		typ = Delete
	default:
		return Event{}, false
	}

	if !w.Match(ev.Name) {
		return Event{}, false
	}
	return Event{Type: typ, Path: ev.Name}, true
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.opts.Root && !Match(w.opts.Root, path, nil, w.opts.Ignore) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}
