package descriptor

import (
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/teranos/protoreg/errors"
	"github.com/teranos/protoreg/logger"
)

// ChangeCallback is called after descriptor files changed and the debounce
// period elapsed. changed holds the affected descriptor paths, sorted.
type ChangeCallback func(changed []string)

// Watcher watches descriptor set files and reports changes.
//
// Parent directories are watched rather than the files: protoc replaces the
// descriptor file on every compile, which drops a file-level watch.
type Watcher struct {
	watcher        *fsnotify.Watcher
	files          map[string]struct{}
	callback       ChangeCallback
	debouncePeriod time.Duration
	log            *zap.SugaredLogger

	mu            sync.Mutex
	pending       map[string]struct{}
	debounceTimer *time.Timer
	started       bool
	done          chan struct{}
}

// DefaultDebounce coalesces the burst of events a single compile produces.
const DefaultDebounce = 500 * time.Millisecond

// NewWatcher creates a watcher for the given descriptor paths.
func NewWatcher(paths []string, debounce time.Duration, callback ChangeCallback) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.NewInvalidRequestError("no descriptor paths to watch")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}

	w := &Watcher{
		watcher:        fsw,
		files:          make(map[string]struct{}),
		callback:       callback,
		debouncePeriod: debounce,
		log:            logger.ComponentLogger("descriptor.watcher"),
		pending:        make(map[string]struct{}),
		done:           make(chan struct{}),
	}

	dirs := make(map[string]struct{})
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fsw.Close()
			return nil, errors.Wrapf(err, "failed to resolve %s", p)
		}
		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}

	for dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, errors.WithHint(
				errors.Wrapf(err, "failed to watch %s", dir),
				"run the protobuf compile step once so the descriptor directory exists",
			)
		}
	}

	return w, nil
}

// Start begins watching in the background.
func (w *Watcher) Start() {
	w.mu.Lock()
	w.started = true
	w.mu.Unlock()
	go w.watchLoop()
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil {
				continue
			}
			if _, tracked := w.files[abs]; !tracked {
				continue
			}
			w.log.Debugw("Descriptor change detected",
				logger.FieldPath, abs,
				"op", event.Op.String())
			w.schedule(abs)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warnw("Descriptor watcher error", logger.FieldError, err)
		}
	}
}

// schedule records a change and restarts the debounce timer.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending[path] = struct{}{}
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debouncePeriod, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	changed := make([]string, 0, len(w.pending))
	for p := range w.pending {
		changed = append(changed, p)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)
	w.callback(changed)
}

// Stop stops watching and waits for the event loop to exit. A debounced
// callback already scheduled may still run.
func (w *Watcher) Stop() error {
	err := w.watcher.Close()
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.done
	}
	w.mu.Lock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.mu.Unlock()
	return err
}
