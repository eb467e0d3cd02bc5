package indexing

import (
	"context"
	"errors"
	"log"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/index"
	"github.com/standardbeagle/scriptref/internal/scanner"
	"github.com/standardbeagle/scriptref/internal/types"
)

// DocumentScanner extracts identifiers from one document. Failures come back inside the result.
type DocumentScanner interface {
	ScanDocument(ctx context.Context, key types.DocumentKey) scanner.Result
}

type keySet map[types.DocumentKey]struct{}

// Coordinator owns the store's readiness and is the only writer to it.
//
// While Empty or Populating, change notifications are buffered. Once a rebuild has
// scanned every enumerated document it drains the buffers (fresh re-scan of buffered
// upserts, then deletes) until they stay empty and only then becomes Ready. A document
// delete-buffered at any point of a populating phase is never re-added by a buffered
// upsert of the same phase.
type Coordinator struct {
	store   *index.Store
	scanner DocumentScanner
	enum    Enumerator
	workers int

	// mu guards everything below and every store mutation
	mu             sync.RWMutex
	state          State
	generation     uint64
	cancelBuild    context.CancelFunc
	readyCh        chan struct{}
	pendingUpserts keySet
	pendingDeletes keySet
	phaseDeletes   keySet
	phaseTrees     []string // directory prefixes removed during the populating phase
	fingerprints   map[types.DocumentKey]uint64

	rebuilds       int64
	enumerated     int
	scanned        int64
	readFailures   int64
	unchangedSkips int64
	eventsApplied  int64
	eventsBuffered int64
	lastDuration   time.Duration
	lastRebuildAt  time.Time
	lastError      error

	// eventMu serializes Ready-path events so two scans of one key cannot reorder
	eventMu sync.Mutex
}

// NewCoordinator creates a coordinator in the Empty state. workers <= 0 uses NumCPU.
func NewCoordinator(store *index.Store, sc DocumentScanner, enum Enumerator, workers int) *Coordinator {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Coordinator{
		store:          store,
		scanner:        sc,
		enum:           enum,
		workers:        workers,
		state:          StateEmpty,
		readyCh:        make(chan struct{}),
		pendingUpserts: make(keySet),
		pendingDeletes: make(keySet),
		phaseDeletes:   make(keySet),
		fingerprints:   make(map[types.DocumentKey]uint64),
	}
}

// State returns the current readiness
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Store returns the underlying store. Callers must not mutate it.
func (c *Coordinator) Store() *index.Store {
	return c.store
}

// Rebuild repopulates the store from a full enumeration. A newer Rebuild supersedes an
// older one: the older returns ErrRebuildSuperseded and its results are discarded.
// If enumeration fails the index returns to Empty, buffered changes are kept and the
// error is returned.
func (c *Coordinator) Rebuild(ctx context.Context) error {
	start := time.Now()
	buildCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	gen := c.beginRebuild(cancel)
	debug.LogIndexing("rebuild %d started\n", gen)

	keys, err := c.enum.Enumerate(buildCtx)
	if err != nil {
		return c.failRebuild(gen, scerrors.NewIndexingError("enumerate", err))
	}

	c.mu.Lock()
	if c.generation == gen {
		c.enumerated = len(keys)
	}
	c.mu.Unlock()

	g, gctx := errgroup.WithContext(buildCtx)
	g.SetLimit(c.workers)
	for _, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := c.scanner.ScanDocument(gctx, key)
			// A failure caused by the build being cancelled says nothing about the document
			if err := gctx.Err(); err != nil {
				return err
			}

			c.mu.Lock()
			defer c.mu.Unlock()
			if c.generation != gen {
				return scerrors.ErrRebuildSuperseded
			}
			if c.deletedInPhaseLocked(key) {
				return nil
			}
			c.applyScanLocked(res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return c.failRebuild(gen, scerrors.NewIndexingError("scan", err))
	}
	if err := buildCtx.Err(); err != nil {
		return c.failRebuild(gen, scerrors.NewIndexingError("scan", err))
	}

	if err := c.drain(buildCtx, gen); err != nil {
		return c.failRebuild(gen, scerrors.NewIndexingError("drain", err))
	}

	c.mu.Lock()
	c.rebuilds++
	c.lastDuration = time.Since(start)
	c.lastRebuildAt = time.Now()
	c.lastError = nil
	docs := c.store.Stats().Documents
	c.mu.Unlock()

	log.Printf("index ready: %d documents (%v)", docs, time.Since(start).Round(time.Millisecond))
	return nil
}

func (c *Coordinator) beginRebuild(cancel context.CancelFunc) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancelBuild != nil {
		c.cancelBuild()
	}
	c.cancelBuild = cancel

	if c.state == StateReady {
		c.readyCh = make(chan struct{})
	}
	c.state = StatePopulating
	c.store.Clear()
	c.fingerprints = make(map[types.DocumentKey]uint64)
	c.enumerated = 0
	return c.generation
}

// failRebuild maps a failure to ErrRebuildSuperseded when a newer rebuild owns the
// index, otherwise drops back to Empty keeping the buffers.
func (c *Coordinator) failRebuild(gen uint64, err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen || errors.Is(err, scerrors.ErrRebuildSuperseded) {
		debug.LogIndexing("rebuild %d superseded\n", gen)
		return scerrors.ErrRebuildSuperseded
	}

	c.state = StateEmpty
	c.cancelBuild = nil
	c.store.Clear()
	c.fingerprints = make(map[types.DocumentKey]uint64)
	c.lastError = err
	log.Printf("rebuild failed, index not ready: %v", err)
	return err
}

// drain applies buffered changes until none are left, then flips to Ready
func (c *Coordinator) drain(ctx context.Context, gen uint64) error {
	for round := 1; ; round++ {
		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return scerrors.ErrRebuildSuperseded
		}
		if err := ctx.Err(); err != nil {
			c.mu.Unlock()
			return err
		}
		if len(c.pendingUpserts) == 0 && len(c.pendingDeletes) == 0 {
			c.state = StateReady
			c.cancelBuild = nil
			c.phaseDeletes = make(keySet)
			c.phaseTrees = nil
			close(c.readyCh)
			c.mu.Unlock()
			return nil
		}

		upserts := make([]types.DocumentKey, 0, len(c.pendingUpserts))
		for key := range c.pendingUpserts {
			if !c.deletedInPhaseLocked(key) {
				upserts = append(upserts, key)
			}
		}
		deletes := c.pendingDeletes
		c.pendingUpserts = make(keySet)
		c.pendingDeletes = make(keySet)
		c.mu.Unlock()

		debug.LogIndexing("rebuild %d drain round %d: %d upserts, %d deletes\n", gen, round, len(upserts), len(deletes))

		results, err := c.scanAll(ctx, upserts)
		if err != nil {
			c.restoreBuffers(gen, upserts, deletes)
			return err
		}

		c.mu.Lock()
		if c.generation != gen {
			c.mu.Unlock()
			return scerrors.ErrRebuildSuperseded
		}
		for _, res := range results {
			if c.deletedInPhaseLocked(res.Key) {
				continue
			}
			c.applyScanLocked(res)
		}
		for key := range deletes {
			c.removeLocked(key)
		}
		c.mu.Unlock()
	}
}

// restoreBuffers puts a drained batch back when its round could not finish
func (c *Coordinator) restoreBuffers(gen uint64, upserts []types.DocumentKey, deletes keySet) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}
	for _, key := range upserts {
		if !c.deletedInPhaseLocked(key) {
			c.pendingUpserts[key] = struct{}{}
		}
	}
	for key := range deletes {
		c.pendingDeletes[key] = struct{}{}
	}
}

// scanAll scans keys with bounded parallelism, outside any lock
func (c *Coordinator) scanAll(ctx context.Context, keys []types.DocumentKey) ([]scanner.Result, error) {
	results := make([]scanner.Result, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.scanner.ScanDocument(gctx, key)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// applyScanLocked writes one scan result to the store. A failed read counts as "no identifiers".
func (c *Coordinator) applyScanLocked(res scanner.Result) {
	c.scanned++
	if res.Failed() {
		c.readFailures++
		c.removeLocked(res.Key)
		return
	}
	if fp, ok := c.fingerprints[res.Key]; ok && fp == res.Fingerprint {
		c.unchangedSkips++
		return
	}
	c.store.Upsert(res.Key, res.Identifiers)
	c.fingerprints[res.Key] = res.Fingerprint
}

func (c *Coordinator) removeLocked(key types.DocumentKey) {
	c.store.Remove(key)
	delete(c.fingerprints, key)
}

// Apply routes a classified change
func (c *Coordinator) Apply(ctx context.Context, change types.Change) {
	switch change.Kind {
	case types.ChangeUpsert:
		c.OnDocumentChanged(ctx, change.Key)
	case types.ChangeDelete:
		c.OnDocumentDeleted(ctx, change.Key)
	}
}

// OnDocumentChanged re-scans key when Ready, otherwise buffers it for the running rebuild
func (c *Coordinator) OnDocumentChanged(ctx context.Context, key types.DocumentKey) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	if c.state != StateReady {
		c.bufferUpsertLocked(key)
		c.mu.Unlock()
		return
	}
	gen := c.generation
	c.mu.Unlock()

	res := c.scanner.ScanDocument(ctx, key)

	c.mu.Lock()
	defer c.mu.Unlock()
	// A rebuild started while scanning; let it pick the change up
	if c.state != StateReady || c.generation != gen {
		c.bufferUpsertLocked(key)
		return
	}
	if err := ctx.Err(); err != nil {
		// The caller went away mid-scan; the document itself may be fine
		debug.LogIndexing("dropped upsert %s: %v\n", key, err)
		return
	}
	c.applyScanLocked(res)
	c.eventsApplied++
	debug.LogIndexing("applied upsert %s\n", key)
}

// OnDocumentDeleted drops key when Ready, otherwise buffers the delete
func (c *Coordinator) OnDocumentDeleted(_ context.Context, key types.DocumentKey) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateReady {
		c.bufferDeleteLocked(key)
		return
	}
	c.removeLocked(key)
	c.eventsApplied++
	debug.LogIndexing("applied delete %s\n", key)
}

// RemoveTree drops every document under dir, for a directory that was deleted or moved
// away. Documents not yet indexed are left to the normal scan path, where a vanished file
// reads as empty.
func (c *Coordinator) RemoveTree(_ context.Context, dir types.DocumentKey) {
	c.eventMu.Lock()
	defer c.eventMu.Unlock()

	prefix := string(dir) + "/"
	c.mu.Lock()
	defer c.mu.Unlock()

	var keys []types.DocumentKey
	seen := make(keySet)
	collect := func(key types.DocumentKey) {
		if _, dup := seen[key]; dup || !strings.HasPrefix(string(key), prefix) {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	for _, key := range c.store.Documents() {
		collect(key)
	}
	for key := range c.fingerprints {
		collect(key)
	}
	for key := range c.pendingUpserts {
		collect(key)
	}

	ready := c.state == StateReady
	if !ready {
		c.phaseTrees = append(c.phaseTrees, prefix)
	}
	for _, key := range keys {
		if ready {
			c.removeLocked(key)
			c.eventsApplied++
		} else {
			c.bufferDeleteLocked(key)
		}
	}
	debug.LogIndexing("removed tree %s: %d documents\n", dir, len(keys))
}

// deletedInPhaseLocked reports whether key was deleted, alone or with its directory,
// during the current populating phase
func (c *Coordinator) deletedInPhaseLocked(key types.DocumentKey) bool {
	if _, ok := c.phaseDeletes[key]; ok {
		return true
	}
	for _, prefix := range c.phaseTrees {
		if strings.HasPrefix(string(key), prefix) {
			return true
		}
	}
	return false
}

func (c *Coordinator) bufferUpsertLocked(key types.DocumentKey) {
	c.pendingUpserts[key] = struct{}{}
	c.eventsBuffered++
	debug.LogIndexing("buffered upsert %s (%s)\n", key, c.state)
}

func (c *Coordinator) bufferDeleteLocked(key types.DocumentKey) {
	delete(c.pendingUpserts, key)
	c.pendingDeletes[key] = struct{}{}
	c.phaseDeletes[key] = struct{}{}
	c.eventsBuffered++
	debug.LogIndexing("buffered delete %s (%s)\n", key, c.state)
}

// DocumentsFor answers the reverse lookup, or ErrNotReady. The readiness check and the
// read happen under one read lock so the answer is never from a half-built store.
func (c *Coordinator) DocumentsFor(id types.Identifier) ([]types.DocumentKey, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return nil, scerrors.ErrNotReady
	}
	return c.store.QueryDocumentsFor(id), nil
}

// IdentifiersFor answers the forward lookup, or ErrNotReady
func (c *Coordinator) IdentifiersFor(key types.DocumentKey) (types.IdentifierSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateReady {
		return nil, scerrors.ErrNotReady
	}
	return c.store.IdentifiersFor(key), nil
}

// WaitReady blocks until the index is Ready or ctx is done
func (c *Coordinator) WaitReady(ctx context.Context) error {
	for {
		c.mu.RLock()
		ready := c.state == StateReady
		ch := c.readyCh
		c.mu.RUnlock()

		if ready {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// Reset cancels any rebuild, clears the store and buffers and returns to Empty
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.cancelBuild != nil {
		c.cancelBuild()
		c.cancelBuild = nil
	}
	if c.state == StateReady {
		c.readyCh = make(chan struct{})
	}
	c.state = StateEmpty
	c.store.Clear()
	c.fingerprints = make(map[types.DocumentKey]uint64)
	c.pendingUpserts = make(keySet)
	c.pendingDeletes = make(keySet)
	c.phaseDeletes = make(keySet)
	c.phaseTrees = nil
	c.enumerated = 0
	debug.LogIndexing("coordinator reset\n")
}

// Stats returns a snapshot of counters and store size
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := Stats{
		State:               c.state,
		Generation:          c.generation,
		PendingUpserts:      len(c.pendingUpserts),
		PendingDeletes:      len(c.pendingDeletes),
		Rebuilds:            c.rebuilds,
		DocumentsEnumerated: c.enumerated,
		DocumentsScanned:    c.scanned,
		ReadFailures:        c.readFailures,
		UnchangedSkips:      c.unchangedSkips,
		EventsApplied:       c.eventsApplied,
		EventsBuffered:      c.eventsBuffered,
		LastRebuildDuration: c.lastDuration,
		LastRebuildAt:       c.lastRebuildAt,
		Store:               c.store.Stats(),
	}
	if c.lastError != nil {
		s.LastError = c.lastError.Error()
	}
	return s
}
