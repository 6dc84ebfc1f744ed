package knowledge

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ErrWatcherFailed indicates the filesystem watcher could not be started.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

// DefaultDebounce coalesces the bursts of events an atomic rename produces.
const DefaultDebounce = 250 * time.Millisecond

// Watcher reports changes to a collection file made outside this process.
//
// The parent directory is watched rather than the file itself because
// writes replace the file by rename, which drops a watch on the old inode.
type Watcher struct {
	path     string
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	changes chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	stop    chan struct{}
	done    chan struct{}
}

// NewWatcher creates a watcher for the collection at path. A debounce of
// zero uses DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("%w: watching %s: %v", ErrWatcherFailed, filepath.Dir(abs), err)
	}

	return &Watcher{
		path:     abs,
		debounce: debounce,
		logger:   logger,
		watcher:  fw,
		changes:  make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Changes delivers one value per settled burst of writes. It is closed when
// the watcher stops.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Start processes filesystem events until ctx is done or Stop is called.
// Only the first call starts the loop, and Start after Stop does nothing.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started || w.stopped {
		return
	}
	w.started = true
	go w.run(ctx)
}

// Stop releases the underlying watcher and waits for the event loop to exit.
// It is safe to call more than once, and without Start.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.stop)
		_ = w.watcher.Close()
		if !w.started {
			close(w.changes)
			close(w.done)
		}
	}
	w.mu.Unlock()
	<-w.done
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.done)
	defer close(w.changes)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("knowledge watcher error", zap.Error(err))
		case <-timer.C:
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}
