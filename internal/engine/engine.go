// Package engine composes the task graph store with the components that
// react to it: dependency cascade, automation rules, recurring templates,
// deadline monitoring, risk analysis and scheduling.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/randalmurphal/taskgraph/internal/automation"
	"github.com/randalmurphal/taskgraph/internal/cascade"
	"github.com/randalmurphal/taskgraph/internal/config"
	"github.com/randalmurphal/taskgraph/internal/deadline"
	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/recurrence"
	"github.com/randalmurphal/taskgraph/internal/risk"
	"github.com/randalmurphal/taskgraph/internal/schedule"
	"github.com/randalmurphal/taskgraph/internal/storage"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
	"github.com/randalmurphal/taskgraph/internal/watcher"
)

// Hook names registered on the store, in dispatch order.
const (
	HookCascade    = "cascade"
	HookAutomation = "automation"
	HookEvents     = "events"
)

// Engine owns the store and every component wired to it.
type Engine struct {
	cfg       *config.Config
	backend   storage.Backend
	logger    *slog.Logger
	now       func() time.Time
	newID     task.IDGenerator
	publisher *events.MemoryPublisher
	inbox     *notify.Inbox
	notifier  notify.Gateway

	store      *store.Store
	cascade    *cascade.Resolver
	rules      *automation.Service
	recurrence *recurrence.Scheduler
	deadlines  *deadline.Monitor
	analyzer   risk.Analyzer
	estimator  schedule.Estimator

	riskGroup singleflight.Group
	riskMu    sync.Mutex
	riskKey   string
	riskList  []risk.Assessment

	openOnce  sync.Once
	closeOnce sync.Once
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source for every component.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides identity generation for every component.
func WithIDGenerator(gen task.IDGenerator) Option {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithPublisher sets the event publisher. The engine closes it on Close.
func WithPublisher(p *events.MemoryPublisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// New builds an engine. Nothing is loaded until Open. gateway receives every
// notification in addition to the engine's inbox and event publisher; it may
// be nil.
func New(cfg *config.Config, backend storage.Backend, gateway notify.Gateway, logger *slog.Logger, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	if backend == nil {
		backend = storage.NewMemoryBackend()
	}
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:     cfg,
		backend: backend,
		logger:  logger,
		now:     time.Now,
		newID:   task.NewID,
		inbox:   notify.NewInbox(cfg.Notify.InboxSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.publisher == nil {
		e.publisher = events.NewMemoryPublisher()
	}

	gateways := notify.Multi{e.inbox, notify.NewPublisherGateway(e.publisher)}
	if gateway != nil {
		gateways = append(notify.Multi{gateway}, gateways...)
	}
	e.notifier = gateways

	e.store = store.New(
		store.WithRepository(backend),
		store.WithNotifier(e.notifier),
		store.WithLogger(logger.With("component", "store")),
		store.WithClock(e.now),
		store.WithIDGenerator(e.newID),
		store.WithDebounce(cfg.Storage.Debounce),
		store.WithMaxDepth(cfg.Automation.MaxCascadeDepth),
	)
	e.cascade = cascade.New(e.store, logger.With("component", "cascade"))
	e.rules = automation.NewService(e.store,
		automation.WithLogger(logger.With("component", "automation")),
		automation.WithCascader(e.cascade),
		automation.WithRepository(backend),
		automation.WithNotifier(e.notifier),
		automation.WithPublisher(e.publisher),
		automation.WithHistorySize(cfg.Automation.HistorySize),
		automation.WithClock(e.now),
		automation.WithIDGenerator(e.newID),
	)
	e.rules.SetEnabled(cfg.Automation.Enabled)

	e.recurrence = recurrence.New(e.store,
		recurrence.WithLogger(logger.With("component", "recurrence")),
		recurrence.WithRepository(backend),
		recurrence.WithClock(e.now),
		recurrence.WithIDGenerator(e.newID),
		recurrence.WithInterval(cfg.Monitor.RecurrenceInterval),
	)

	deadlineOpts := []deadline.Option{
		deadline.WithLogger(logger.With("component", "deadline")),
		deadline.WithClock(e.now),
		deadline.WithInterval(cfg.Monitor.DeadlineInterval),
	}
	if cfg.Automation.Enabled {
		deadlineOpts = append(deadlineOpts, deadline.WithRules(e.rules))
	}
	e.deadlines = deadline.NewMonitor(e.store, e.notifier, deadlineOpts...)

	e.analyzer = risk.Analyzer{DueSoonDays: cfg.Risk.DueSoonDays, DueWeekDays: cfg.Risk.DueWeekDays}
	e.estimator = schedule.Estimator{BaseDays: cfg.Schedule.BaseDurationDays}
	return e
}

// Open loads persisted state and registers the store hooks. Load failures
// are logged by each component and leave it empty. Calling Open twice is a no-op.
func (e *Engine) Open(ctx context.Context) {
	e.openOnce.Do(func() {
		e.store.Load(ctx)
		e.rules.Load(ctx)
		e.recurrence.Load(ctx)

		if e.cfg.Automation.CascadeOnComplete {
			e.store.AddHook(HookCascade, e.cascade.Hook())
		}
		e.store.AddHook(HookAutomation, e.rules.Hook())
		e.store.AddHook(HookEvents, changeHook(e.publisher))

		snap := e.store.Snapshot()
		e.logger.Debug("engine opened",
			"projects", len(snap.Projects),
			"tasks", snap.Len(),
			"rules", len(e.rules.Rules()),
			"templates", len(e.recurrence.List()),
		)
	})
}

// Run runs the deadline monitor and the recurrence scheduler until ctx is
// cancelled. Both evaluate once immediately. With the file backend, edits
// made to the data directory by other processes are reloaded.
func (e *Engine) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	if fb, ok := e.backend.(*storage.FileBackend); ok {
		w, err := e.watchFiles(fb)
		if err != nil {
			e.logger.Warn("file watcher unavailable, external edits will not be reloaded", "error", err)
		} else {
			defer fb.OnWrite(nil)
			g.Go(func() error {
				if err := w.Run(gctx); err != nil {
					return fmt.Errorf("file watcher: %w", err)
				}
				return nil
			})
		}
	}
	g.Go(func() error {
		if err := e.deadlines.Run(gctx); err != nil {
			return fmt.Errorf("deadline monitor: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := e.recurrence.Run(gctx); err != nil {
			return fmt.Errorf("recurrence scheduler: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func (e *Engine) watchFiles(fb *storage.FileBackend) (*watcher.Watcher, error) {
	w, err := watcher.New(watcher.Config{
		Dir:      fb.Dir(),
		Files:    []string{storage.TasksFile, storage.RulesFile, storage.TemplatesFile},
		OnChange: func(name string) { e.Reload(context.Background(), name) },
		Logger:   e.logger.With("component", "watcher"),
	})
	if err != nil {
		return nil, err
	}
	fb.OnWrite(w.Record)
	return w, nil
}

// Reload re-reads the state held in the named backend file.
func (e *Engine) Reload(ctx context.Context, name string) {
	switch name {
	case storage.TasksFile:
		e.store.Load(ctx)
	case storage.RulesFile:
		e.rules.Load(ctx)
	case storage.TemplatesFile:
		e.recurrence.Load(ctx)
	default:
		return
	}
	e.logger.Info("reloaded after external edit", "file", name)
}

// Flush writes pending task state to the backend immediately.
func (e *Engine) Flush(ctx context.Context) error {
	return e.store.Flush(ctx)
}

// Close flushes pending state and releases the backend and publisher.
func (e *Engine) Close(ctx context.Context) error {
	var err error
	e.closeOnce.Do(func() {
		var errs []error
		if cerr := e.store.Close(ctx); cerr != nil {
			errs = append(errs, fmt.Errorf("flush tasks: %w", cerr))
		}
		e.publisher.Close()
		if cerr := e.backend.Close(); cerr != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", cerr))
		}
		err = errors.Join(errs...)
	})
	return err
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the task graph store.
func (e *Engine) Store() *store.Store { return e.store }

// Rules returns the automation rule engine.
func (e *Engine) Rules() *automation.Service { return e.rules }

// Recurrence returns the recurring template scheduler.
func (e *Engine) Recurrence() *recurrence.Scheduler { return e.recurrence }

// Deadlines returns the deadline monitor.
func (e *Engine) Deadlines() *deadline.Monitor { return e.deadlines }

// Cascade returns the dependency cascade resolver.
func (e *Engine) Cascade() *cascade.Resolver { return e.cascade }

// Inbox returns the notifications kept for display.
func (e *Engine) Inbox() *notify.Inbox { return e.inbox }

// Events returns the event publisher.
func (e *Engine) Events() *events.MemoryPublisher { return e.publisher }

// Notify delivers n through every configured gateway.
func (e *Engine) Notify(ctx context.Context, n notify.Notification) {
	e.notifier.Notify(ctx, n)
}
