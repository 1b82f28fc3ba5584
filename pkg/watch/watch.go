// Package watch analyzes images as they appear in a directory, one at a
// time, through a session's intake and upload flow.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/pdxmph/huskytrace/pkg/logging"
	"github.com/pdxmph/huskytrace/pkg/present"
	"github.com/pdxmph/huskytrace/pkg/session"
	"github.com/pdxmph/huskytrace/pkg/upload"
)

const (
	// DefaultStable is how long a file must go unchanged before upload
	DefaultStable = 300 * time.Millisecond
	// DefaultTick is how often pending files are checked
	DefaultTick = 250 * time.Millisecond
)

// Event is the outcome for one file
type Event struct {
	Path  string
	State upload.State
	View  *present.View
	Err   error
}

// Handler receives one Event per processed file
type Handler func(Event)

// Options tunes a Watcher
type Options struct {
	Stable time.Duration
	Tick   time.Duration
	// Existing also processes images already in the directory
	Existing bool
	Logger   *zap.Logger
}

// Watcher feeds new images in a directory to a session
type Watcher struct {
	dir    string
	sess   *session.Session
	opts   Options
	logger *zap.Logger
}

// New creates a new Watcher for dir
func New(dir string, sess *session.Session, opts Options) *Watcher {
	if opts.Stable <= 0 {
		opts.Stable = DefaultStable
	}
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	return &Watcher{
		dir:    dir,
		sess:   sess,
		opts:   opts,
		logger: logging.OrNop(opts.Logger).Named("watch"),
	}
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}
	w.logger.Info("watching directory", zap.String("dir", w.dir))

	if w.opts.Existing {
		for _, name := range listImages(w.dir) {
			if ctx.Err() != nil {
				return nil
			}
			handle(w.process(ctx, filepath.Join(w.dir, name)))
		}
	}

	// debounce: a file is ready once no event touched it for Stable
	pending := map[string]time.Time{}
	ticker := time.NewTicker(w.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isImage(ev.Name) {
				continue
			}
			pending[ev.Name] = time.Now()
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))
		case <-ticker.C:
			now := time.Now()
			for _, path := range ready(pending, now, w.opts.Stable) {
				delete(pending, path)
				if ctx.Err() != nil {
					return nil
				}
				handle(w.process(ctx, path))
			}
		}
	}
}

// process runs one file through select, submit and the results screen
func (w *Watcher) process(ctx context.Context, path string) Event {
	ev := Event{Path: path}
	logger := w.logger.With(zap.String("path", path))

	if _, err := w.sess.SelectPath(path); err != nil {
		logger.Info("skipping file", zap.Error(err))
		ev.Err = err
		return ev
	}

	state, err := w.sess.Submit(ctx)
	ev.State = state
	if err != nil {
		ev.Err = err
		return ev
	}
	if _, ok := state.(upload.Succeeded); !ok {
		return ev
	}

	ev.View, ev.Err = w.sess.Results(ctx)
	if err := w.sess.Back(); err != nil && !errors.Is(err, upload.ErrInFlight) {
		logger.Warn("failed to return to intake", zap.Error(err))
	}
	return ev
}

// ready returns the stable paths in name order
func ready(pending map[string]time.Time, now time.Time, stable time.Duration) []string {
	var out []string
	for path, t := range pending {
		if now.Sub(t) >= stable {
			out = append(out, path)
		}
	}
	sort.Strings(out)
	return out
}

func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out
}

func isImage(name string) bool {
	base := filepath.Base(name)
	// editors and browsers write hidden temp files next to the real one
	if strings.HasPrefix(base, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(base)) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}
