package testhelpers

import (
	"context"
	"sync"
	"time"

	"github.com/standardbeagle/scriptref/internal/types"
)

// CompletionSignal lets a test wait for a callback without sleeping
type CompletionSignal struct {
	done chan struct{}
	once sync.Once
}

// NewCompletionSignal creates a new completion signal.
func NewCompletionSignal() *CompletionSignal {
	return &CompletionSignal{done: make(chan struct{})}
}

// Complete signals completion. Only the first call has an effect.
func (cs *CompletionSignal) Complete() {
	cs.once.Do(func() { close(cs.done) })
}

// Wait reports whether completion happened within timeout
func (cs *CompletionSignal) Wait(timeout time.Duration) bool {
	select {
	case <-cs.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns the completion channel for use in select statements.
func (cs *CompletionSignal) Done() <-chan struct{} {
	return cs.done
}

// ChangeRecorder is a change sink that keeps every change it receives, in order
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []types.Change
	notify  chan struct{}
}

// NewChangeRecorder creates an empty recorder
func NewChangeRecorder() *ChangeRecorder {
	return &ChangeRecorder{notify: make(chan struct{}, 1)}
}

// Apply records change
func (r *ChangeRecorder) Apply(_ context.Context, change types.Change) {
	r.mu.Lock()
	r.changes = append(r.changes, change)
	r.mu.Unlock()

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Changes returns a copy of what was recorded so far
func (r *ChangeRecorder) Changes() []types.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Change(nil), r.changes...)
}

// WaitFor blocks until at least n changes were recorded, returning false on timeout
func (r *ChangeRecorder) WaitFor(n int, timeout time.Duration) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		r.mu.Lock()
		got := len(r.changes)
		r.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-r.notify:
		case <-deadline.C:
			return false
		}
	}
}
