package indexing

import (
	"context"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/scriptref/internal/debug"
	"github.com/standardbeagle/scriptref/internal/types"
)

// FileEventType represents the type of file system event
type FileEventType int

const (
	FileEventCreate FileEventType = iota
	FileEventWrite
	FileEventRemove
	FileEventRename
	FileEventChmod
)

func (t FileEventType) String() string {
	switch t {
	case FileEventCreate:
		return "create"
	case FileEventWrite:
		return "write"
	case FileEventRemove:
		return "remove"
	case FileEventRename:
		return "rename"
	default:
		return "chmod"
	}
}

// eventTypeFromOp picks one event type for an fsnotify op. Removal wins over
// creation when both bits are set.
func eventTypeFromOp(op fsnotify.Op) (FileEventType, bool) {
	switch {
	case op.Has(fsnotify.Remove):
		return FileEventRemove, true
	case op.Has(fsnotify.Rename):
		return FileEventRename, true
	case op.Has(fsnotify.Create):
		return FileEventCreate, true
	case op.Has(fsnotify.Write):
		return FileEventWrite, true
	case op.Has(fsnotify.Chmod):
		return FileEventChmod, true
	default:
		return 0, false
	}
}

// ChangeSink receives classified changes
type ChangeSink interface {
	Apply(ctx context.Context, change types.Change)
}

// TreeSink is implemented by sinks that can drop every document under a directory
type TreeSink interface {
	RemoveTree(ctx context.Context, dir types.DocumentKey)
}

// ChangeSinkFunc adapts a function to ChangeSink
type ChangeSinkFunc func(ctx context.Context, change types.Change)

// Apply implements ChangeSink
func (f ChangeSinkFunc) Apply(ctx context.Context, change types.Change) {
	f(ctx, change)
}

// Funnel turns raw file events into upsert/delete changes for document files
type Funnel struct {
	extensions []string
	sink       ChangeSink

	forwarded atomic.Int64
	dropped   atomic.Int64
}

// NewFunnel creates a funnel accepting the given extensions (with dot, case-sensitive)
func NewFunnel(extensions []string, sink ChangeSink) *Funnel {
	return &Funnel{extensions: extensions, sink: sink}
}

// Classify maps a raw event to a change. Create and write become upserts, remove and
// rename become deletes; everything else, and any non-document path, is dropped.
func (f *Funnel) Classify(path string, ev FileEventType) (types.Change, bool) {
	if !types.HasExtension(path, f.extensions) {
		return types.Change{}, false
	}
	key := types.NewDocumentKey(path)
	switch ev {
	case FileEventCreate, FileEventWrite:
		return types.Upsert(key), true
	case FileEventRemove, FileEventRename:
		return types.Delete(key), true
	default:
		return types.Change{}, false
	}
}

// Dispatch classifies and forwards to the sink. Returns whether the event was forwarded.
func (f *Funnel) Dispatch(ctx context.Context, path string, ev FileEventType) bool {
	change, ok := f.Classify(path, ev)
	if !ok {
		f.dropped.Add(1)
		return false
	}
	debug.LogWatch("funnel: %s\n", change)
	f.forwarded.Add(1)
	f.sink.Apply(ctx, change)
	return true
}

// DispatchTreeRemoval forwards the removal of directory dir to the sink when it supports
// it. Returns whether the removal was forwarded.
func (f *Funnel) DispatchTreeRemoval(ctx context.Context, dir string) bool {
	ts, ok := f.sink.(TreeSink)
	if !ok {
		f.dropped.Add(1)
		return false
	}
	key := types.NewDocumentKey(dir)
	debug.LogWatch("funnel: remove tree %s\n", key)
	f.forwarded.Add(1)
	ts.RemoveTree(ctx, key)
	return true
}

// Counts returns the number of forwarded and dropped events
func (f *Funnel) Counts() (forwarded, dropped int64) {
	return f.forwarded.Load(), f.dropped.Load()
}
