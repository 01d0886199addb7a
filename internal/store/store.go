// Package store holds the canonical task graph and applies every mutation
// to it. Each successful mutation runs the registered hooks synchronously
// with the snapshots taken before and after, then schedules a debounced save.
package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// DefaultMaxDepth bounds how many levels of hook-issued mutations are
// dispatched before hooks are skipped.
const DefaultMaxDepth = 8

// Repository is the persistence collaborator for task state.
type Repository interface {
	SaveTasks(ctx context.Context, projects []*task.Project, personal []*task.Task) error
	LoadTasks(ctx context.Context) ([]*task.Project, []*task.Task, error)
}

// Store is the canonical collection of projects and personal tasks.
type Store struct {
	// opMu serializes top-level mutation cycles, hooks included.
	opMu sync.Mutex

	mu        sync.RWMutex
	projects  []*task.Project
	personal  []*task.Task
	schedules map[string][]string
	version   uint64
	outbox    []notify.Notification

	hookMu  sync.RWMutex
	hooks   []namedHook
	pending []change

	repo      Repository
	persister *Persister
	notifier  notify.Gateway
	logger    *slog.Logger
	now       func() time.Time
	newID     task.IDGenerator
	maxDepth  int
	debounce  time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRepository sets the persistence collaborator.
func WithRepository(repo Repository) Option {
	return func(s *Store) { s.repo = repo }
}

// WithNotifier sets the notification gateway.
func WithNotifier(n notify.Gateway) Option {
	return func(s *Store) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides identity generation.
func WithIDGenerator(gen task.IDGenerator) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithDebounce sets the persistence debounce delay. Zero saves synchronously.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithMaxDepth sets the hook nesting limit.
func WithMaxDepth(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.maxDepth = n
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		schedules: make(map[string][]string),
		notifier:  notify.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
		newID:     task.NewID,
		maxDepth:  DefaultMaxDepth,
		debounce:  time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.repo != nil {
		s.persister = NewPersister(s.debounce, s.save, s.logger)
	}
	return s
}

// Load replaces the in-memory state with the repository's contents.
// A read failure is logged and leaves the store empty.
func (s *Store) Load(ctx context.Context) {
	if s.repo == nil {
		return
	}
	projects, personal, err := s.repo.LoadTasks(ctx)
	if err != nil {
		s.logger.Warn("load tasks failed, starting empty", "error", err)
		projects, personal = nil, nil
	}
	for _, p := range projects {
		if p.Color == "" {
			p.Color = task.DefaultColor
		}
		for _, t := range p.Tasks {
			task.Normalize(t)
		}
	}
	for _, t := range personal {
		task.Normalize(t)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = projects
	s.personal = personal
	s.schedules = make(map[string][]string)
	s.version++
	s.logger.Debug("store loaded", "projects", len(projects), "personal", len(personal))
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newSnapshot(s.version, s.projects, s.personal)
}

// Version increases with every successful mutation.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Now returns the store's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Today returns the current calendar date.
func (s *Store) Today() string {
	return task.Today(s.now())
}

// Flush writes pending state immediately.
func (s *Store) Flush(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Flush(ctx)
}

// Close flushes pending state and stops the debounce timer.
func (s *Store) Close(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	return s.persister.Close(ctx)
}

func (s *Store) save(ctx context.Context) error {
	snap := s.Snapshot()
	return s.repo.SaveTasks(ctx, snap.Projects, snap.Personal)
}

// notifyLocked queues a notification for delivery once the mutation releases the lock.
func (s *Store) notifyLocked(n notify.Notification) {
	s.outbox = append(s.outbox, n)
}

func (s *Store) deliver(ctx context.Context) {
	s.mu.Lock()
	out := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, n := range out {
		s.notifier.Notify(ctx, n)
	}
}

// findProject returns the project with id; callers hold mu.
func (s *Store) findProject(id string) (*task.Project, int) {
	for i, p := range s.projects {
		if p.ID == id {
			return p, i
		}
	}
	return nil, -1
}

// locate finds a task, optionally restricted to one project; callers hold mu.
// An empty projectID searches everywhere.
func (s *Store) locate(projectID, taskID string) (*task.Task, string) {
	switch projectID {
	case "":
		for _, p := range s.projects {
			if t, _ := p.FindTask(taskID); t != nil {
				return t, p.ID
			}
		}
		fallthrough
	case task.PersonalProjectID:
		for _, t := range s.personal {
			if t.ID == taskID {
				return t, task.PersonalProjectID
			}
		}
		return nil, ""
	default:
		p, _ := s.findProject(projectID)
		if p == nil {
			return nil, ""
		}
		if t, _ := p.FindTask(taskID); t != nil {
			return t, p.ID
		}
		return nil, ""
	}
}

// forEachTask visits every task; callers hold mu.
func (s *Store) forEachTask(fn func(t *task.Task)) {
	for _, p := range s.projects {
		for _, t := range p.Tasks {
			fn(t)
		}
	}
	for _, t := range s.personal {
		fn(t)
	}
}

// allTasks returns the live task pointers; callers hold mu.
func (s *Store) allTasks() []*task.Task {
	var out []*task.Task
	s.forEachTask(func(t *task.Task) { out = append(out, t) })
	return out
}
