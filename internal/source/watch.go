package source

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must be quiet before it is reloaded.
const DefaultDebounce = 100 * time.Millisecond

// WatchOptions configure a Watcher.
type WatchOptions struct {
	Debounce time.Duration // default DefaultDebounce
	Logger   *zap.Logger

	// OnReload is called with the new content of a watched file, or with the error reading it (for example, because it was removed). It is called from the
	// Watcher's goroutines; callers that own an event loop should post it there.
	OnReload func(f File, err error)
}

// Watcher reloads files when they change on disk. Directories are watched rather than files, so that editors that save by renaming a new file over the old one
// are noticed too.
type Watcher struct {
	fsw    *fsnotify.Watcher
	opts   WatchOptions
	logger *zap.Logger

	watched map[string]bool // cleaned absolute paths

	mu     sync.Mutex
	timers map[string]*time.Timer
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// Watch starts watching paths until ctx is cancelled or Close is called.
func Watch(ctx context.Context, paths []string, opts WatchOptions) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	w := &Watcher{
		fsw:     fsw,
		opts:    opts,
		logger:  opts.Logger,
		watched: make(map[string]bool),
		timers:  make(map[string]*time.Timer),
		done:    make(chan struct{}),
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", p, err)
		}
		w.watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for d := range dirs {
		if err := fsw.Add(d); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", d, err)
		}
	}

	ctx, w.cancel = context.WithCancel(ctx)
	go w.loop(ctx)
	w.logger.Info("watching files", zap.Strings("paths", paths), zap.Duration("debounce", opts.Debounce))
	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	name := filepath.Clean(ev.Name)
	if !w.watched[name] {
		return
	}
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.timers[name]; ok {
		t.Stop()
	}
	w.timers[name] = time.AfterFunc(w.opts.Debounce, func() { w.reload(name) })
}

func (w *Watcher) reload(path string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.timers, path)
	w.mu.Unlock()

	f, err := Read(path)
	if err != nil {
		f.Path = path
		w.logger.Info("watched file unreadable", zap.String("path", path), zap.Error(err))
	} else {
		w.logger.Debug("watched file changed", zap.String("path", path), zap.Int("bytes", len(f.Text)))
	}
	if w.opts.OnReload != nil {
		w.opts.OnReload(f, err)
	}
}

// Close stops watching and waits for the event loop to exit. Pending reloads are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()

	w.cancel()
	err := w.fsw.Close()
	<-w.done
	return err
}
