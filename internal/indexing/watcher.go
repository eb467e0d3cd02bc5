package indexing

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/scriptref/internal/config"
	"github.com/standardbeagle/scriptref/internal/debug"
)

// FileWatcher monitors the project tree and feeds document events to a Funnel
type FileWatcher struct {
	watcher   *fsnotify.Watcher
	config    *config.Config
	filter    *pathFilter
	funnel    *Funnel
	debouncer *eventDebouncer
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	stopOnce  sync.Once

	// Called when the root .gitignore changes
	onIgnoreChanged func()

	// Watch mode statistics
	eventsProcessed int64
	errorCount      int64
	watched         map[string]struct{}
	lastEventTime   time.Time
	statsMu         sync.RWMutex
}

// WatchStats contains statistics about file watching operations
type WatchStats struct {
	EventsProcessed int64     `json:"eventsProcessed"`
	ErrorCount      int64     `json:"errorCount"`
	WatchedDirs     int       `json:"watchedDirs"`
	LastEventTime   time.Time `json:"lastEventTime"`
	IsActive        bool      `json:"isActive"`
}

// NewFileWatcher creates a watcher for the enumerator's corpus
func NewFileWatcher(cfg *config.Config, enum *FSEnumerator, funnel *Funnel) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	fw := &FileWatcher{
		watcher: watcher,
		config:  cfg,
		filter:  enum.filter,
		funnel:  funnel,
		watched: make(map[string]struct{}),
		ctx:     ctx,
		cancel:  cancel,
	}
	if cfg.Index.WatchDebounceMs > 0 {
		fw.debouncer = newEventDebouncer(time.Duration(cfg.Index.WatchDebounceMs)*time.Millisecond, fw.dispatch)
	}
	return fw, nil
}

// SetIgnoreChangedCallback sets the callback invoked when the root .gitignore changes
func (fw *FileWatcher) SetIgnoreChangedCallback(fn func()) {
	fw.onIgnoreChanged = fn
}

// Start begins watching root recursively
func (fw *FileWatcher) Start(root string) error {
	debug.LogWatch("Starting file watcher for directory: %s\n", root)

	if err := fw.addWatches(root, false); err != nil {
		return fmt.Errorf("failed to add watches starting from %s: %w", root, err)
	}

	fw.wg.Add(1)
	go fw.processEvents()

	debug.LogWatch("File watcher started (%d directories)\n", fw.GetStats().WatchedDirs)
	return nil
}

// Stop stops the watcher. Pending debounced events are dropped.
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		fw.cancel()
		if fw.debouncer != nil {
			fw.debouncer.stop()
		}
		err = fw.watcher.Close()
		fw.wg.Wait()
		debug.LogWatch("File watcher stopped\n")
	})
	return err
}

// addWatches recursively adds watches to every directory under root that is not
// excluded. With emit set, documents already present are dispatched as creates; a
// directory moved into the tree arrives as one event for the directory only.
func (fw *FileWatcher) addWatches(root string, emit bool) error {
	// Track visited directories to prevent infinite loops from symlink cycles
	visitedDirs := make(map[string]bool)

	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}

		if !d.IsDir() {
			if emit && fw.filter.isDocument(path) {
				fw.enqueue(path, FileEventCreate)
			}
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return filepath.SkipDir
		}
		if visitedDirs[realPath] {
			return filepath.SkipDir
		}
		visitedDirs[realPath] = true

		if fw.filter.skipDir(path) {
			return filepath.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			log.Printf("Warning: failed to add watch for %s: %v", path, err)
			fw.incrementStats(0, 1)
			return nil
		}
		fw.statsMu.Lock()
		fw.watched[filepath.Clean(path)] = struct{}{}
		fw.statsMu.Unlock()
		return nil
	})
}

// processEvents processes file system events from fsnotify
func (fw *FileWatcher) processEvents() {
	defer fw.wg.Done()

	for {
		select {
		case <-fw.ctx.Done():
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handleEvent(event)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("File watcher error: %v", err)
			fw.incrementStats(0, 1)
		}
	}
}

// handleEvent handles a single file system event
func (fw *FileWatcher) handleEvent(event fsnotify.Event) {
	path := event.Name
	debug.LogWatch("received event %v for path %s\n", event.Op, path)

	eventType, ok := eventTypeFromOp(event.Op)
	if !ok || eventType == FileEventChmod {
		return
	}

	if fw.isRootGitignore(path) {
		if fw.onIgnoreChanged != nil {
			fw.onIgnoreChanged()
		}
		return
	}

	// The path is gone; it can only be matched by name
	if eventType == FileEventRemove || eventType == FileEventRename {
		if fw.filter.isDocument(path) {
			fw.enqueue(path, eventType)
			return
		}
		if fw.forgetTree(path) {
			fw.funnel.DispatchTreeRemoval(fw.ctx, path)
			fw.incrementStats(1, 0)
		}
		return
	}

	info, err := os.Stat(path)
	if err != nil {
		// Removed between the event and the stat; a remove event follows
		return
	}

	if info.IsDir() {
		if eventType == FileEventCreate && !fw.filter.skipDir(path) {
			if err := fw.addWatches(path, true); err != nil {
				log.Printf("Warning: failed to add watch for new directory %s: %v", path, err)
			}
		}
		return
	}

	if !fw.filter.isDocument(path) {
		debug.LogWatch("ignoring file %s (doesn't match patterns)\n", path)
		return
	}
	fw.enqueue(path, eventType)
}

// forgetTree drops the watches on dir and everything below it. Reports whether dir was
// a watched directory.
func (fw *FileWatcher) forgetTree(dir string) bool {
	dir = filepath.Clean(dir)
	prefix := dir + string(filepath.Separator)

	fw.statsMu.Lock()
	if _, ok := fw.watched[dir]; !ok {
		fw.statsMu.Unlock()
		return false
	}
	var gone []string
	for p := range fw.watched {
		if p == dir || strings.HasPrefix(p, prefix) {
			gone = append(gone, p)
			delete(fw.watched, p)
		}
	}
	fw.statsMu.Unlock()

	// A moved directory keeps its inotify watch, so drop it explicitly
	for _, p := range gone {
		_ = fw.watcher.Remove(p)
	}
	return true
}

func (fw *FileWatcher) isRootGitignore(path string) bool {
	if !fw.config.Index.RespectGitignore {
		return false
	}
	return filepath.Clean(path) == filepath.Join(fw.config.Project.Root, ".gitignore")
}

func (fw *FileWatcher) enqueue(path string, eventType FileEventType) {
	if fw.debouncer != nil {
		fw.debouncer.addEvent(path, eventType)
		return
	}
	fw.dispatch(path, eventType)
}

func (fw *FileWatcher) dispatch(path string, eventType FileEventType) {
	if fw.ctx.Err() != nil {
		return
	}
	fw.funnel.Dispatch(fw.ctx, path, eventType)
	fw.incrementStats(1, 0)
}

// eventDebouncer coalesces bursts of events per path; the latest event for a path wins
type eventDebouncer struct {
	events   map[string]FileEventType
	mutex    sync.Mutex
	debounce time.Duration
	timer    *time.Timer
	stopped  bool
	deliver  func(path string, eventType FileEventType)
}

func newEventDebouncer(debounce time.Duration, deliver func(string, FileEventType)) *eventDebouncer {
	return &eventDebouncer{
		events:   make(map[string]FileEventType),
		debounce: debounce,
		deliver:  deliver,
	}
}

// addEvent adds a file event to be debounced
func (d *eventDebouncer) addEvent(path string, eventType FileEventType) {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if d.stopped {
		return
	}
	d.events[path] = eventType

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.debounce, d.flush)
}

func (d *eventDebouncer) stop() {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.events = make(map[string]FileEventType)
}

// flush delivers accumulated events: removals first, then writes, then creates
func (d *eventDebouncer) flush() {
	d.mutex.Lock()
	if d.stopped {
		d.mutex.Unlock()
		return
	}
	events := d.events
	d.events = make(map[string]FileEventType)
	d.mutex.Unlock()

	if len(events) == 0 {
		return
	}
	debug.LogWatch("Processing %d debounced file events\n", len(events))

	var creates, removes, changes []string
	for path, eventType := range events {
		switch eventType {
		case FileEventCreate:
			creates = append(creates, path)
		case FileEventRemove, FileEventRename:
			removes = append(removes, path)
		case FileEventWrite:
			changes = append(changes, path)
		}
	}

	for _, path := range removes {
		d.deliver(path, events[path])
	}
	for _, path := range changes {
		d.deliver(path, FileEventWrite)
	}
	for _, path := range creates {
		d.deliver(path, FileEventCreate)
	}
}

// incrementStats updates watch mode statistics
func (fw *FileWatcher) incrementStats(events int64, errors int64) {
	fw.statsMu.Lock()
	defer fw.statsMu.Unlock()

	fw.eventsProcessed += events
	fw.errorCount += errors
	if events > 0 {
		fw.lastEventTime = time.Now()
	}
}

// GetStats returns current watch mode statistics
func (fw *FileWatcher) GetStats() WatchStats {
	fw.statsMu.RLock()
	defer fw.statsMu.RUnlock()

	return WatchStats{
		EventsProcessed: fw.eventsProcessed,
		ErrorCount:      fw.errorCount,
		WatchedDirs:     len(fw.watched),
		LastEventTime:   fw.lastEventTime,
		IsActive:        fw.ctx.Err() == nil,
	}
}
