package recurrence

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// DefaultInterval is how often Run re-evaluates templates.
const DefaultInterval = time.Hour

// Store is the subset of the task store the scheduler needs.
type Store interface {
	Snapshot() *store.Snapshot
	AddTask(ctx context.Context, projectID string, draft task.Draft) (*task.Task, error)
}

// Repository persists templates.
type Repository interface {
	SaveTemplates(ctx context.Context, templates []*Template) error
	LoadTemplates(ctx context.Context) ([]*Template, error)
}

// Scheduler owns the recurring templates and materializes their tasks.
type Scheduler struct {
	store    Store
	repo     Repository
	logger   *slog.Logger
	now      func() time.Time
	newID    task.IDGenerator
	interval time.Duration

	// evalMu serializes Evaluate so two ticks cannot both pass the
	// LastCreated guard for the same template.
	evalMu sync.Mutex

	mu        sync.RWMutex
	templates []*Template
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRepository sets template persistence.
func WithRepository(repo Repository) Option {
	return func(s *Scheduler) { s.repo = repo }
}

// WithClock overrides the time source used by Run.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides template identity generation.
func WithIDGenerator(gen task.IDGenerator) Option {
	return func(s *Scheduler) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithInterval sets the Run period.
func WithInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.interval = d
		}
	}
}

// New creates a scheduler.
func New(st Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    st,
		logger:   slog.Default(),
		now:      time.Now,
		newID:    task.NewID,
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the templates with the repository's contents.
// A read failure is logged and leaves the set empty.
func (s *Scheduler) Load(ctx context.Context) {
	if s.repo == nil {
		return
	}
	loaded, err := s.repo.LoadTemplates(ctx)
	if err != nil {
		s.logger.Warn("load templates failed, starting with none", "error", err)
		loaded = nil
	}
	kept := make([]*Template, 0, len(loaded))
	for _, t := range loaded {
		t.Normalize()
		if err := t.Validate(); err != nil {
			s.logger.Warn("skipping invalid stored template", "template", t.ID, "error", err)
			continue
		}
		kept = append(kept, t)
	}
	s.mu.Lock()
	s.templates = kept
	s.mu.Unlock()
}

// Add validates and stores a new template.
func (s *Scheduler) Add(ctx context.Context, tmpl Template) (*Template, error) {
	t := tmpl.Clone()
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = s.newID()
	}
	t.CreatedAt = s.now()
	t.LastCreated = ""

	s.mu.Lock()
	if s.find(t.ID) != nil {
		s.mu.Unlock()
		return nil, tgerrors.ErrInvalidInput("id", "a template with this ID already exists")
	}
	s.templates = append(s.templates, t)
	s.mu.Unlock()

	s.persist(ctx)
	return t.Clone(), nil
}

// Update replaces a template's definition. The LastCreated marker and
// creation time are kept so an edit cannot cause a second task today.
func (s *Scheduler) Update(ctx context.Context, id string, tmpl Template) (*Template, error) {
	next := tmpl.Clone()
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cur := s.find(id)
	if cur == nil {
		s.mu.Unlock()
		return nil, tgerrors.ErrTemplateNotFound(id)
	}
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.LastCreated = cur.LastCreated
	*cur = *next
	out := cur.Clone()
	s.mu.Unlock()

	s.persist(ctx)
	return out, nil
}

// Toggle flips a template's active flag and returns the new state.
func (s *Scheduler) Toggle(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	t := s.find(id)
	if t == nil {
		s.mu.Unlock()
		return false, tgerrors.ErrTemplateNotFound(id)
	}
	t.IsActive = !t.IsActive
	active := t.IsActive
	s.mu.Unlock()

	s.persist(ctx)
	return active, nil
}

// SetActive sets a template's active flag.
func (s *Scheduler) SetActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	t := s.find(id)
	if t == nil {
		s.mu.Unlock()
		return tgerrors.ErrTemplateNotFound(id)
	}
	changed := t.IsActive != active
	t.IsActive = active
	s.mu.Unlock()

	if changed {
		s.persist(ctx)
	}
	return nil
}

// Delete removes a template. Tasks it already created are kept.
func (s *Scheduler) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := slices.IndexFunc(s.templates, func(t *Template) bool { return t.ID == id })
	if idx < 0 {
		s.mu.Unlock()
		return tgerrors.ErrTemplateNotFound(id)
	}
	s.templates = slices.Delete(s.templates, idx, idx+1)
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// List returns copies of all templates.
func (s *Scheduler) List() []*Template {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Template, len(s.templates))
	for i, t := range s.templates {
		out[i] = t.Clone()
	}
	return out
}

// Get returns a copy of one template.
func (s *Scheduler) Get(id string) (*Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t := s.find(id); t != nil {
		return t.Clone(), nil
	}
	return nil, tgerrors.ErrTemplateNotFound(id)
}

// Evaluate materializes one task for every active template due on now's
// date whose LastCreated marker is not already that date. Templates that
// target a project that no longer exists create personal tasks.
func (s *Scheduler) Evaluate(ctx context.Context, now time.Time) []*task.Task {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	today := task.Today(now)

	s.mu.RLock()
	var due []*Template
	for _, t := range s.templates {
		if t.IsActive && t.LastCreated != today && t.DueOn(now) {
			due = append(due, t.Clone())
		}
	}
	s.mu.RUnlock()

	if len(due) == 0 {
		return nil
	}

	snap := s.store.Snapshot()
	var created []*task.Task
	for _, t := range due {
		projectID := t.ProjectID
		if projectID != "" && projectID != task.PersonalProjectID && snap.Project(projectID) == nil {
			s.logger.Warn("template project missing, creating personal task",
				"template", t.ID,
				"project", projectID)
			projectID = task.PersonalProjectID
		}

		tk, err := s.store.AddTask(ctx, projectID, t.draft(today))
		if err != nil {
			s.logger.Warn("materialize recurring task failed", "template", t.ID, "error", err)
			continue
		}

		s.mu.Lock()
		if live := s.find(t.ID); live != nil {
			live.LastCreated = today
		}
		s.mu.Unlock()

		s.logger.Info("recurring task created",
			"template", t.ID,
			"task", tk.ID,
			"date", today)
		created = append(created, tk)
	}

	if len(created) > 0 {
		s.persist(ctx)
	}
	return created
}

// Run evaluates once immediately and then every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Evaluate(ctx, s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("recurrence scheduler stopping")
			return nil
		case <-ticker.C:
			s.Evaluate(ctx, s.now())
		}
	}
}

// find returns the live template; callers hold mu.
func (s *Scheduler) find(id string) *Template {
	for _, t := range s.templates {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (s *Scheduler) persist(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveTemplates(ctx, s.List()); err != nil {
		s.logger.Warn("persist templates failed", "error", err)
	}
}
