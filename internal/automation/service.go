package automation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

// Evaluator is the interface for trigger condition evaluation.
type Evaluator interface {
	// Type returns the trigger type this evaluator handles.
	Type() TriggerType

	// Evaluate reports whether the transition matches the trigger, with a
	// human-readable reason when it does.
	Evaluate(trigger Trigger, tr Transition) (bool, string)
}

// Store is the subset of the task store rules act on.
type Store interface {
	Snapshot() *store.Snapshot
	Today() string
	UpdateTaskStatus(ctx context.Context, projectID, taskID string, status task.Status) error
	UpdateTask(ctx context.Context, projectID, taskID string, patch task.Patch) (*task.Task, error)
	MoveTask(ctx context.Context, taskID, fromProjectID, toProjectID string) error
	AddTask(ctx context.Context, projectID string, draft task.Draft) (*task.Task, error)
}

// Cascader advances the dependents of a completed task.
type Cascader interface {
	OnTaskCompleted(ctx context.Context, taskID string) ([]string, error)
}

// Repository persists the rule set.
type Repository interface {
	SaveRules(ctx context.Context, rules []*Rule) error
	LoadRules(ctx context.Context) ([]*Rule, error)
}

// Service manages automation rules and their execution.
type Service struct {
	store      Store
	cascade    Cascader
	repo       Repository
	notifier   notify.Gateway
	publisher  events.Publisher
	evaluators map[TriggerType]Evaluator
	executors  map[ActionType]Executor
	history    *History
	logger     *slog.Logger
	now        func() time.Time
	newID      task.IDGenerator

	mu    sync.RWMutex
	rules []*Rule
	// fired holds date_reached markers: rule+task -> date fired.
	fired map[firedKey]string
	// disabled turns off evaluation without dropping rules.
	disabled bool
}

type firedKey struct {
	ruleID, taskID string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithCascader enables the "dependents" target of change_status.
func WithCascader(c Cascader) Option {
	return func(s *Service) { s.cascade = c }
}

// WithRepository sets rule persistence.
func WithRepository(repo Repository) Option {
	return func(s *Service) { s.repo = repo }
}

// WithNotifier sets the gateway used by send_notification.
func WithNotifier(n notify.Gateway) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithPublisher publishes a rule_fired event per execution.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithHistorySize sets how many executions are kept.
func WithHistorySize(n int) Option {
	return func(s *Service) { s.history = NewHistory(n) }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides rule identity generation.
func WithIDGenerator(gen task.IDGenerator) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewService creates a new automation service.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:      st,
		notifier:   notify.Nop{},
		publisher:  events.NopPublisher{},
		evaluators: make(map[TriggerType]Evaluator),
		executors:  make(map[ActionType]Executor),
		history:    NewHistory(DefaultHistorySize),
		logger:     slog.Default(),
		now:        time.Now,
		newID:      task.NewID,
		fired:      make(map[firedKey]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	// Register built-in evaluators
	s.RegisterEvaluator(&StatusChangeEvaluator{})
	s.RegisterEvaluator(&PriorityChangeEvaluator{})
	s.RegisterEvaluator(&TagAddedEvaluator{})
	s.RegisterEvaluator(&DateReachedEvaluator{})

	// Register built-in executors
	s.RegisterExecutor(&changeStatusExecutor{})
	s.RegisterExecutor(&changePriorityExecutor{})
	s.RegisterExecutor(&addTagExecutor{})
	s.RegisterExecutor(&moveProjectExecutor{})
	s.RegisterExecutor(&createTaskExecutor{})
	s.RegisterExecutor(&sendNotificationExecutor{})

	return s
}

// RegisterEvaluator registers a trigger evaluator.
func (s *Service) RegisterEvaluator(eval Evaluator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluators[eval.Type()] = eval
}

// RegisterExecutor registers an action executor.
func (s *Service) RegisterExecutor(exec Executor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executors[exec.Type()] = exec
}

// SetEnabled turns rule evaluation on or off.
func (s *Service) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disabled = !enabled
}

// Load replaces the rule set with the repository's contents.
// A read failure is logged and leaves the rule set empty.
func (s *Service) Load(ctx context.Context) {
	if s.repo == nil {
		return
	}
	rules, err := s.repo.LoadRules(ctx)
	if err != nil {
		s.logger.Warn("load rules failed, starting with none", "error", err)
		rules = nil
	}
	kept := make([]*Rule, 0, len(rules))
	for _, r := range rules {
		r.Normalize()
		if err := r.Validate(); err != nil {
			s.logger.Warn("skipping invalid stored rule", "rule", r.ID, "error", err)
			continue
		}
		kept = append(kept, r)
	}
	s.mu.Lock()
	s.rules = kept
	s.mu.Unlock()
}

// RegisterRule validates and adds a rule. A missing ID is generated.
func (s *Service) RegisterRule(ctx context.Context, r Rule) (*Rule, error) {
	rule := r.Clone()
	rule.Normalize()
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	if rule.ID == "" {
		rule.ID = s.newID()
	}
	rule.CreatedAt, rule.UpdatedAt = now, now
	rule.LastTriggeredAt, rule.TriggerCount = nil, 0

	s.mu.Lock()
	for _, existing := range s.rules {
		if existing.ID == rule.ID {
			s.mu.Unlock()
			return nil, tgerrors.ErrInvalidInput("id", "a rule with this ID already exists")
		}
	}
	s.rules = append(s.rules, rule)
	s.mu.Unlock()

	s.persist(ctx)
	s.logger.Info("rule registered", "rule", rule.ID, "trigger", rule.Trigger.Type)
	return rule.Clone(), nil
}

// UpdateRule replaces a rule's definition, keeping its identity and counters.
func (s *Service) UpdateRule(ctx context.Context, id string, r Rule) (*Rule, error) {
	next := r.Clone()
	next.Normalize()
	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	cur := s.find(id)
	if cur == nil {
		s.mu.Unlock()
		return nil, tgerrors.ErrRuleNotFound(id)
	}
	next.ID = cur.ID
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = s.now()
	next.LastTriggeredAt = cur.LastTriggeredAt
	next.TriggerCount = cur.TriggerCount
	*cur = *next
	out := cur.Clone()
	s.mu.Unlock()

	s.persist(ctx)
	return out, nil
}

// ToggleRule flips a rule's active flag and returns the new state.
func (s *Service) ToggleRule(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	r := s.find(id)
	if r == nil {
		s.mu.Unlock()
		return false, tgerrors.ErrRuleNotFound(id)
	}
	r.IsActive = !r.IsActive
	r.UpdatedAt = s.now()
	active := r.IsActive
	s.mu.Unlock()

	s.persist(ctx)
	return active, nil
}

// SetRuleActive sets a rule's active flag.
func (s *Service) SetRuleActive(ctx context.Context, id string, active bool) error {
	s.mu.Lock()
	r := s.find(id)
	if r == nil {
		s.mu.Unlock()
		return tgerrors.ErrRuleNotFound(id)
	}
	changed := r.IsActive != active
	r.IsActive = active
	if changed {
		r.UpdatedAt = s.now()
	}
	s.mu.Unlock()

	if changed {
		s.persist(ctx)
	}
	return nil
}

// DeleteRule removes a rule.
func (s *Service) DeleteRule(ctx context.Context, id string) error {
	s.mu.Lock()
	idx := -1
	for i, r := range s.rules {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return tgerrors.ErrRuleNotFound(id)
	}
	s.rules = append(s.rules[:idx], s.rules[idx+1:]...)
	for k := range s.fired {
		if k.ruleID == id {
			delete(s.fired, k)
		}
	}
	s.mu.Unlock()

	s.persist(ctx)
	return nil
}

// Rules returns copies of all rules in registration order.
func (s *Service) Rules() []*Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Rule, len(s.rules))
	for i, r := range s.rules {
		out[i] = r.Clone()
	}
	return out
}

// Rule returns a copy of one rule.
func (s *Service) Rule(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.find(id); r != nil {
		return r.Clone(), nil
	}
	return nil, tgerrors.ErrRuleNotFound(id)
}

// History returns up to limit recent executions, newest first.
func (s *Service) History(limit int) []Execution {
	return s.history.Recent(limit)
}

// Stats returns automation statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	st := Stats{TotalRules: len(s.rules)}
	for _, r := range s.rules {
		if r.IsActive {
			st.ActiveRules++
		}
	}
	s.mu.RUnlock()
	st.Executions, st.Failed = s.history.Counts()
	return st
}

// Hook returns the store hook that drives OnSnapshotChange.
func (s *Service) Hook() store.Hook {
	return s.OnSnapshotChange
}

// match is a rule matched against one task in a cycle.
type match struct {
	rule      *Rule
	task      *task.Task
	projectID string
	reason    string
}

// OnSnapshotChange evaluates every active rule against the tasks that
// changed between prev and curr and executes the actions of each match.
// Tasks absent from prev are compared against a zero task.
func (s *Service) OnSnapshotChange(ctx context.Context, prev, curr *store.Snapshot) {
	matches := s.evaluate(prev, curr, s.store.Today())
	if len(matches) == 0 {
		return
	}
	for _, m := range matches {
		s.fire(ctx, m)
	}
	s.persist(ctx)
}

// CheckDates fires date_reached rules for the current state without a
// mutation. The deadline monitor calls it on every tick.
func (s *Service) CheckDates(ctx context.Context) {
	snap := s.store.Snapshot()
	s.OnSnapshotChange(ctx, snap, snap)
}

func (s *Service) evaluate(prev, curr *store.Snapshot, today string) []match {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disabled {
		return nil
	}

	// Markers from earlier days can never match again.
	for k, date := range s.fired {
		if date != today {
			delete(s.fired, k)
		}
	}

	var matches []match
	for _, rule := range s.rules {
		if !rule.IsActive {
			continue
		}
		eval, ok := s.evaluators[rule.Trigger.Type]
		if !ok {
			s.logger.Warn("no evaluator for trigger type",
				"rule", rule.ID,
				"type", rule.Trigger.Type)
			continue
		}

		for _, t := range curr.Tasks() {
			_, projectID, _ := curr.Task(t.ID)
			if rule.Trigger.ProjectID != "" && rule.Trigger.ProjectID != projectID {
				continue
			}
			old, _, existed := prev.Task(t.ID)
			if !existed {
				old = &task.Task{ID: t.ID}
			}
			ok, reason := eval.Evaluate(rule.Trigger, Transition{Prev: old, Curr: t, ProjectID: projectID, Today: today})
			if !ok {
				continue
			}
			if rule.Trigger.Type == TriggerDateReached {
				key := firedKey{ruleID: rule.ID, taskID: t.ID}
				if s.fired[key] == today {
					continue
				}
				s.fired[key] = today
			}
			matches = append(matches, match{rule: rule.Clone(), task: t, projectID: projectID, reason: reason})
		}
	}
	return matches
}

// fire runs a matched rule's actions in declared order. A failing action is
// recorded and the remaining actions still run.
func (s *Service) fire(ctx context.Context, m match) {
	now := s.now()
	s.logger.Info("rule fired",
		"rule", m.rule.ID,
		"task", m.task.ID,
		"reason", m.reason)

	exec := Execution{
		RuleID:      m.rule.ID,
		RuleName:    m.rule.Name,
		TaskID:      m.task.ID,
		ProjectID:   m.projectID,
		TriggeredAt: now,
		Reason:      m.reason,
		Status:      StatusCompleted,
	}

	target := Target{Rule: m.rule, Task: m.task, ProjectID: m.projectID}
	for i, a := range m.rule.Actions {
		s.mu.RLock()
		executor, ok := s.executors[a.Type]
		s.mu.RUnlock()
		if !ok {
			s.logger.Warn("no executor for action type", "rule", m.rule.ID, "action", a.Type)
			continue
		}
		if err := executor.Execute(ctx, s, a, target); err != nil {
			s.logger.Warn("rule action failed",
				"rule", m.rule.ID,
				"task", m.task.ID,
				"action", a.Type,
				"index", i,
				"error", err)
			exec.Status = StatusFailed
			if exec.Error == "" {
				exec.Error = err.Error()
			}
			continue
		}
		exec.Actions++
	}

	s.mu.Lock()
	if r := s.find(m.rule.ID); r != nil {
		r.TriggerCount++
		r.LastTriggeredAt = &now
	}
	s.mu.Unlock()

	s.history.Add(exec)
	s.publisher.Publish(events.NewEvent(events.EventRuleFired, m.projectID, m.task.ID, events.RuleFired{
		RuleID:   m.rule.ID,
		RuleName: m.rule.Name,
		Actions:  exec.Actions,
	}))
}

// find returns the live rule; callers hold mu.
func (s *Service) find(id string) *Rule {
	for _, r := range s.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}

func (s *Service) persist(ctx context.Context) {
	if s.repo == nil {
		return
	}
	if err := s.repo.SaveRules(ctx, s.Rules()); err != nil {
		s.logger.Warn("persist rules failed", "error", err)
	}
}
