// Package store implements the daemon's single-file embedded relational
// store: lanes, tasks, agents, teams, pipelines, pipeline runs, status
// history, comments, tags, subtask edges, dependency edges, roles, backend
// mappings, and sync errors, fronted by synchronous accessor methods that
// return fully-populated entity records.
//
// Grounded on internal/plugins/notes/store.go (schema-on-open over
// database/sql + mattn/go-sqlite3, soft-delete/cascade idiom) and
// internal/state/state.go (package-level mutex-guarded in-memory image with
// a debounced Save), generalized from one entity and one JSON blob,
// respectively, into a full relational in-memory image with a trailing
// flush timer.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const flushDelay = 500 * time.Millisecond

// Store is a single-writer, single-reader embedded store. All reads and
// writes go through its in-memory image; a debounced timer flushes dirty
// entities to the SQLite file on disk.
type Store struct {
	log *slog.Logger
	db  *sql.DB

	mu           sync.RWMutex
	lanes        map[string]*Lane
	tasks        map[string]*Task
	agents       map[string]*Agent
	roles        map[string]*Role
	backends     map[string]*BackendMapping
	syncErrors   map[string]*SyncError
	teams        map[string]*Team
	pipelines    map[string]*Pipeline
	pipelineRuns map[string]*PipelineRun

	flushMu    sync.Mutex
	dirtyLanes map[string]bool
	dirtyTasks map[string]bool
	dirtyAgents map[string]bool
	deletedTasks map[string]bool
	flushTimer *time.Timer
	closed     bool
}

// Open opens (or creates) the SQLite file at path, runs schema setup and
// migrations, and loads the full entity image into memory. An open-time
// disk read failure is logged and the store falls back to an empty
// in-memory image backed by a fresh in-memory database, per spec §4.1.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		log:          log,
		lanes:        make(map[string]*Lane),
		tasks:        make(map[string]*Task),
		agents:       make(map[string]*Agent),
		roles:        make(map[string]*Role),
		backends:     make(map[string]*BackendMapping),
		syncErrors:   make(map[string]*SyncError),
		teams:        make(map[string]*Team),
		pipelines:    make(map[string]*Pipeline),
		pipelineRuns: make(map[string]*PipelineRun),
		dirtyLanes:   make(map[string]bool),
		dirtyTasks:   make(map[string]bool),
		dirtyAgents:  make(map[string]bool),
		deletedTasks: make(map[string]bool),
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		log.Warn("store: open failed, falling back to empty in-memory image", "path", path, "error", err)
		return s.fallbackToMemory()
	}
	s.db = db
	if err := s.initAndLoad(); err != nil {
		log.Warn("store: init/load failed, falling back to empty in-memory image", "path", path, "error", err)
		db.Close()
		return s.fallbackToMemory()
	}
	return s, nil
}

func (s *Store) fallbackToMemory() (*Store, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open fallback in-memory store: %w", err)
	}
	s.db = db
	if err := s.initAndLoad(); err != nil {
		return nil, fmt.Errorf("init fallback in-memory store: %w", err)
	}
	return s, nil
}

func (s *Store) initAndLoad() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	if err := s.ensureColumns(); err != nil {
		return fmt.Errorf("ensure columns: %w", err)
	}
	if err := s.runMigrations(); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	return s.loadAll()
}

// Ping runs a trivial query against the backing database, for the health
// checker's latency sample. It does not touch the in-memory image.
func (s *Store) Ping(ctx context.Context) error {
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// Close flushes any pending writes synchronously and closes the database.
func (s *Store) Close() error {
	s.flushMu.Lock()
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.closed = true
	s.flushMu.Unlock()

	if err := s.flushNow(); err != nil {
		s.log.Error("store: final flush failed", "error", err)
	}
	return s.db.Close()
}

// scheduleFlush (re)starts the trailing debounce timer. Called after every
// mutating operation; concurrent mutations within the debounce window
// collapse into a single flush.
func (s *Store) scheduleFlush() {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()
	if s.closed {
		return
	}
	if s.flushTimer != nil {
		s.flushTimer.Stop()
	}
	s.flushTimer = time.AfterFunc(flushDelay, func() {
		if err := s.flushNow(); err != nil {
			s.log.Error("store: debounced flush failed", "error", err)
		}
	})
}

// flushNow writes every dirty entity to disk in one transaction. Write
// errors are logged but never propagated to mutators: the in-memory image
// remains the source of truth and stays consistent regardless of disk
// failures (spec §4.1 failure semantics).
func (s *Store) flushNow() error {
	s.flushMu.Lock()
	lanes := s.dirtyLanes
	tasks := s.dirtyTasks
	agents := s.dirtyAgents
	deleted := s.deletedTasks
	s.dirtyLanes = make(map[string]bool)
	s.dirtyTasks = make(map[string]bool)
	s.dirtyAgents = make(map[string]bool)
	s.deletedTasks = make(map[string]bool)
	s.flushMu.Unlock()

	if len(lanes) == 0 && len(tasks) == 0 && len(agents) == 0 && len(deleted) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	s.mu.RLock()
	for id := range deleted {
		if err := cascadeDeleteTaskTx(tx, id); err != nil {
			s.mu.RUnlock()
			return err
		}
	}
	for id := range lanes {
		if l, ok := s.lanes[id]; ok {
			if err := writeLaneTx(tx, l); err != nil {
				s.mu.RUnlock()
				return err
			}
		}
	}
	for id := range tasks {
		if t, ok := s.tasks[id]; ok {
			if err := writeTaskTx(tx, t); err != nil {
				s.mu.RUnlock()
				return err
			}
		}
	}
	for id := range agents {
		if a, ok := s.agents[id]; ok {
			if err := writeAgentTx(tx, a); err != nil {
				s.mu.RUnlock()
				return err
			}
		}
	}
	s.mu.RUnlock()

	return tx.Commit()
}

// markLaneDirty / markTaskDirty / markAgentDirty flag an entity for the
// next debounced flush. Callers must hold s.mu for the mutation itself;
// these are safe to call either way since they take their own lock.
func (s *Store) markLaneDirty(id string) {
	s.flushMu.Lock()
	s.dirtyLanes[id] = true
	s.flushMu.Unlock()
	s.scheduleFlush()
}

func (s *Store) markTaskDirty(id string) {
	s.flushMu.Lock()
	s.dirtyTasks[id] = true
	s.flushMu.Unlock()
	s.scheduleFlush()
}

func (s *Store) markAgentDirty(id string) {
	s.flushMu.Lock()
	s.dirtyAgents[id] = true
	s.flushMu.Unlock()
	s.scheduleFlush()
}

func (s *Store) markTaskDeleted(id string) {
	s.flushMu.Lock()
	delete(s.dirtyTasks, id)
	s.deletedTasks[id] = true
	s.flushMu.Unlock()
	s.scheduleFlush()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
