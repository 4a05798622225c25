package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a document must stay quiet before it is recompiled
const DefaultDebounce = 100 * time.Millisecond

// Event is reported after every recompile or removal triggered by the watcher
type Event struct {
	Path    string
	Result  ProcessResult
	Removed []string
}

// Watcher recompiles documents under the source root as they change
type Watcher struct {
	watcher   *fsnotify.Watcher
	processor *Processor
	root      string
	debounce  time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

func NewWatcher(p *Processor, debounce time.Duration) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:   fsWatcher,
		processor: p,
		root:      p.cfg.SrcRoot,
		debounce:  debounce,
		pending:   make(map[string]*time.Timer),
	}, nil
}

// Run watches until ctx is cancelled, sending an Event for every handled change.
// events is closed when Run returns.
func (w *Watcher) Run(ctx context.Context, events chan<- Event) error {
	defer close(events)
	defer w.wg.Wait()

	if err := w.watchDirRecursive(w.root); err != nil {
		return fmt.Errorf("watching %s: %w", w.root, err)
	}
	slog.Debug("watching documents", "root", w.root)

	for {
		select {
		case <-ctx.Done():
			w.stopPending()
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event, events)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// watchDirRecursive adds a directory and its subdirectories to the watch list
func (w *Watcher) watchDirRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event, events chan<- Event) {
	slog.Debug("watch event", "op", event.Op.String(), "path", event.Name)

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watchDirRecursive(event.Name); err != nil {
				slog.Error("failed to watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, fileExtension) {
		return
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		w.schedule(event.Name, func() {
			// a rename within the tree also shows up as a create of the new name
			if _, err := os.Stat(event.Name); err == nil {
				w.compile(ctx, event.Name, events)
				return
			}
			removed, err := w.processor.transformer.Remove(event.Name)
			w.send(ctx, events, Event{Path: event.Name, Removed: removed, Result: ProcessResult{Path: event.Name, Error: err}})
		})
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.schedule(event.Name, func() { w.compile(ctx, event.Name, events) })
	}
}

// schedule runs fn once path has been quiet for the debounce window
func (w *Watcher) schedule(path string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		fn()
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

func (w *Watcher) compile(ctx context.Context, path string, events chan<- Event) {
	// editors often replace the file, which keeps the modification time
	w.processor.transformer.Forget(path)
	res := w.processor.ProcessFile(ctx, path)
	if errors.Is(res.Error, context.Canceled) {
		return
	}
	w.send(ctx, events, Event{Path: path, Result: res})
}

func (w *Watcher) send(ctx context.Context, events chan<- Event, ev Event) {
	select {
	case events <- ev:
	case <-ctx.Done():
	}
}
