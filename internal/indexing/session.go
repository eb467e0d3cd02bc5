package indexing

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/standardbeagle/scriptref/internal/config"
	"github.com/standardbeagle/scriptref/internal/debug"
	scerrors "github.com/standardbeagle/scriptref/internal/errors"
	"github.com/standardbeagle/scriptref/internal/index"
	"github.com/standardbeagle/scriptref/internal/scanner"
)

// Session owns one index over one project root: store, scanner, coordinator, query
// facade and, in watch mode, the file watcher.
type Session struct {
	cfg       *config.Config
	store     *index.Store
	scanner   *scanner.Scanner
	enum      *FSEnumerator
	coord     *Coordinator
	query     *Query
	funnel    *Funnel
	watcher   *FileWatcher
	rebuilder *DebouncedRebuilder

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	closed  bool
}

// Status is the session-wide view used by the status command and the MCP tool
type Status struct {
	Root     string        `json:"root"`
	Index    Stats         `json:"index"`
	Scanner  scanner.Stats `json:"scanner"`
	Watching bool          `json:"watching"`
	Watch    *WatchStats   `json:"watch,omitempty"`

	EventsForwarded int64 `json:"eventsForwarded"`
	EventsDropped   int64 `json:"eventsDropped"`
}

// NewSession wires the components for cfg. Nothing runs until Init or Start.
func NewSession(cfg *config.Config) *Session {
	return NewSessionWithReader(cfg, nil)
}

// NewSessionWithReader is NewSession with a custom document reader
func NewSessionWithReader(cfg *config.Config, reader scanner.DocumentReader) *Session {
	sc := scanner.New(reader, scanner.Options{
		MaxLineBytes:    cfg.Index.MaxLineBytes,
		DocumentTimeout: time.Duration(cfg.Index.DocumentTimeoutMs) * time.Millisecond,
		MetaExtension:   cfg.Companion.MetaExtension,
	})
	store := index.NewStore()
	enum := NewFSEnumerator(cfg)
	coord := NewCoordinator(store, sc, enum, cfg.Performance.ParallelFileWorkers)

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		cfg:     cfg,
		store:   store,
		scanner: sc,
		enum:    enum,
		coord:   coord,
		query:   NewQuery(coord, sc, cfg.Project.Root, cfg.Companion.SourceExtensions),
		funnel:  NewFunnel(cfg.Index.Extensions, coord),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.rebuilder = NewDebouncedRebuilder(coord.Rebuild, cfg.Index.WatchDebounceMs)
	return s
}

// Init starts the watcher (in watch mode) and runs a full rebuild, returning when the
// index is ready or the rebuild failed. The watcher starts first so that changes made
// while populating are buffered rather than missed.
func (s *Session) Init(ctx context.Context) error {
	if err := s.startWatcher(); err != nil {
		return err
	}
	return s.coord.Rebuild(ctx)
}

// Start is Init with the rebuild running in the background; use WaitReady to block.
func (s *Session) Start() error {
	if err := s.startWatcher(); err != nil {
		return err
	}
	s.RebuildAsync()
	return nil
}

func (s *Session) startWatcher() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New("session is closed")
	}
	if s.started {
		return nil
	}
	s.started = true

	if !s.cfg.Index.WatchMode {
		debug.LogWatch("File watching disabled in configuration\n")
		return nil
	}

	fw, err := NewFileWatcher(s.cfg, s.enum, s.funnel)
	if err != nil {
		return scerrors.NewIndexingError("watch", err).WithFile(s.cfg.Project.Root)
	}
	fw.SetIgnoreChangedCallback(func() {
		s.rebuilder.ScheduleRebuild(".gitignore changed")
	})
	if err := fw.Start(s.cfg.Project.Root); err != nil {
		_ = fw.Stop()
		return scerrors.NewIndexingError("watch", err).WithFile(s.cfg.Project.Root)
	}
	s.watcher = fw
	return nil
}

// Rebuild runs a full rebuild and blocks until it finishes
func (s *Session) Rebuild(ctx context.Context) error {
	return s.coord.Rebuild(ctx)
}

// RebuildAsync starts a full rebuild bound to the session lifetime
func (s *Session) RebuildAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err := s.coord.Rebuild(s.ctx)
		if err != nil && !errors.Is(err, scerrors.ErrRebuildSuperseded) && !errors.Is(err, context.Canceled) {
			log.Printf("background rebuild failed: %v", err)
		}
	}()
}

// WaitReady blocks until the index is ready or ctx is done
func (s *Session) WaitReady(ctx context.Context) error {
	return s.coord.WaitReady(ctx)
}

// Query returns the query facade
func (s *Session) Query() *Query { return s.query }

// Coordinator returns the build coordinator
func (s *Session) Coordinator() *Coordinator { return s.coord }

// Funnel returns the change funnel, for feeding events from outside the watcher
func (s *Session) Funnel() *Funnel { return s.funnel }

// Config returns the session configuration
func (s *Session) Config() *config.Config { return s.cfg }

// Status reports index, scanner and watcher state
func (s *Session) Status() Status {
	forwarded, dropped := s.funnel.Counts()
	st := Status{
		Root:            s.cfg.Project.Root,
		Index:           s.coord.Stats(),
		Scanner:         s.scanner.Stats(),
		EventsForwarded: forwarded,
		EventsDropped:   dropped,
	}

	s.mu.Lock()
	fw := s.watcher
	s.mu.Unlock()
	if fw != nil {
		ws := fw.GetStats()
		st.Watching = ws.IsActive
		st.Watch = &ws
	}
	return st
}

// Verify checks the store's bidirectional invariant
func (s *Session) Verify() error {
	if err := s.store.CheckConsistency(); err != nil {
		return fmt.Errorf("index inconsistent: %w", err)
	}
	return nil
}

// Reset clears the index and marks it not ready. The watcher keeps running and its
// events are buffered until the next rebuild.
func (s *Session) Reset() {
	s.coord.Reset()
}

// Close stops the watcher and any rebuild, then resets the index
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	fw := s.watcher
	s.watcher = nil
	s.mu.Unlock()

	var errs []error
	if fw != nil {
		if err := fw.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	s.rebuilder.Shutdown()
	s.cancel()
	s.wg.Wait()
	s.coord.Reset()

	return scerrors.NewMultiError(errs).ErrorOrNil()
}
