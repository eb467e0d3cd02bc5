package indexing

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
)

// DebouncedRebuilder coalesces rebuild requests (e.g. a burst of .gitignore writes)
// into a single full rebuild after a quiet period.
type DebouncedRebuilder struct {
	rebuild func(ctx context.Context) error

	debounceTime time.Duration
	timer        *time.Timer
	mu           sync.Mutex
	pending      int
	closed       bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Optional callback for test synchronization
	onRebuildComplete func(err error)
}

// NewDebouncedRebuilder creates a rebuilder calling rebuild after debounceMs of quiet
func NewDebouncedRebuilder(rebuild func(ctx context.Context) error, debounceMs int) *DebouncedRebuilder {
	if debounceMs <= 0 {
		debounceMs = 50
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &DebouncedRebuilder{
		rebuild:      rebuild,
		debounceTime: time.Duration(debounceMs) * time.Millisecond,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// ScheduleRebuild requests a rebuild after the debounce period
func (dr *DebouncedRebuilder) ScheduleRebuild(reason string) {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	if dr.closed {
		return
	}
	dr.pending++

	if dr.timer != nil {
		dr.timer.Stop()
	}
	dr.timer = time.AfterFunc(dr.debounceTime, dr.performRebuild)

	debug.LogIndexing("Scheduled rebuild: %s (pending requests: %d)\n", reason, dr.pending)
}

func (dr *DebouncedRebuilder) performRebuild() {
	dr.mu.Lock()
	if dr.closed || dr.pending == 0 {
		dr.mu.Unlock()
		return
	}
	requests := dr.pending
	dr.pending = 0
	callback := dr.onRebuildComplete
	dr.wg.Add(1)
	dr.mu.Unlock()
	defer dr.wg.Done()

	debug.LogIndexing("Starting debounced rebuild for %d requests\n", requests)
	err := dr.rebuild(dr.ctx)
	if err != nil && !errors.Is(err, scerrors.ErrRebuildSuperseded) && !errors.Is(err, context.Canceled) {
		log.Printf("debounced rebuild failed: %v", err)
	}

	if callback != nil {
		callback(err)
	}
}

// Shutdown cancels any running rebuild and waits for it
func (dr *DebouncedRebuilder) Shutdown() {
	dr.mu.Lock()
	dr.closed = true
	if dr.timer != nil {
		dr.timer.Stop()
	}
	dr.mu.Unlock()

	dr.cancel()
	dr.wg.Wait()
}

// GetPendingCount returns the number of requests waiting for the timer
func (dr *DebouncedRebuilder) GetPendingCount() int {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.pending
}

// ForceRebuild immediately runs a pending rebuild without waiting for the debounce
func (dr *DebouncedRebuilder) ForceRebuild() {
	dr.mu.Lock()
	if dr.timer != nil {
		dr.timer.Stop()
	}
	dr.mu.Unlock()

	dr.performRebuild()
}

// SetOnRebuildComplete sets a callback invoked after each rebuild (for testing).
func (dr *DebouncedRebuilder) SetOnRebuildComplete(callback func(err error)) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.onRebuildComplete = callback
}
