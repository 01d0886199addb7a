package automation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/taskgraph/internal/cascade"
	tgerrors "github.com/randalmurphal/taskgraph/internal/errors"
	"github.com/randalmurphal/taskgraph/internal/events"
	"github.com/randalmurphal/taskgraph/internal/notify"
	"github.com/randalmurphal/taskgraph/internal/store"
	"github.com/randalmurphal/taskgraph/internal/task"
)

var testNow = time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC)

func idGen(prefix string) task.IDGenerator {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

type memRules struct {
	mu    sync.Mutex
	rules []*Rule
	saves int
	err   error
}

func (m *memRules) SaveRules(_ context.Context, rules []*Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.rules = rules
	return nil
}

func (m *memRules) LoadRules(context.Context) ([]*Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules, m.err
}

type fixture struct {
	store *store.Store
	svc   *Service
	inbox *notify.Inbox
	repo  *memRules
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clock := func() time.Time { return testNow }
	st := store.New(
		store.WithDebounce(0),
		store.WithClock(clock),
		store.WithIDGenerator(idGen("t")),
	)
	f := &fixture{store: st, inbox: notify.NewInbox(0), repo: &memRules{}}
	base := []Option{
		WithClock(clock),
		WithIDGenerator(idGen("rule")),
		WithNotifier(f.inbox),
		WithRepository(f.repo),
		WithCascader(cascade.New(st, nil)),
	}
	f.svc = NewService(st, append(base, opts...)...)
	st.AddHook("automation", f.svc.Hook())
	return f
}

func (f *fixture) task(t *testing.T, id string) *task.Task {
	t.Helper()
	tk, _, ok := f.store.Snapshot().Task(id)
	require.True(t, ok, "task %s not found", id)
	return tk
}

func tagCount(tk *task.Task, tag string) int {
	n := 0
	for _, tg := range tk.Tags {
		if tg == tag {
			n++
		}
	}
	return n
}

func TestStatusChangeAddTag_TagsOnlyTheTransitionedTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		Name:     "mark done",
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done"},
		Actions:  []Action{{Type: ActionAddTag, Value: "DONE"}},
	})
	require.NoError(t, err)

	p, err := f.store.AddProject(ctx, "Launch", "", []task.Draft{
		{Title: "Write", Status: task.StatusInProgress},
		{Title: "Review", Status: task.StatusInProgress},
	})
	require.NoError(t, err)
	target, other := p.Tasks[0].ID, p.Tasks[1].ID

	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, target, task.StatusDone))

	assert.Equal(t, 1, tagCount(f.task(t, target), "DONE"))
	assert.Equal(t, 0, tagCount(f.task(t, other), "DONE"))

	// Leaving and re-entering done must not duplicate the tag.
	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, target, task.StatusInProgress))
	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, target, task.StatusDone))
	assert.Equal(t, 1, tagCount(f.task(t, target), "DONE"))

	rule := f.svc.Rules()[0]
	assert.Equal(t, 2, rule.TriggerCount)
	require.NotNil(t, rule.LastTriggeredAt)
	assert.Equal(t, testNow, *rule.LastTriggeredAt)
}

func TestTagAdded_MatchesNewTask(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerTagAdded, Value: "#urgent"},
		Actions:  []Action{{Type: ActionChangePriority, Value: "high"}},
	})
	require.NoError(t, err)

	created, err := f.store.AddTask(ctx, "", task.Draft{Title: "Pay rent", Tags: []string{"urgent"}})
	require.NoError(t, err)

	assert.Equal(t, task.PriorityHigh, f.task(t, created.ID).Priority)
}

func TestDateReached_FiresOncePerDay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		Name:     "due",
		IsActive: true,
		Trigger:  Trigger{Type: TriggerDateReached},
		Actions:  []Action{{Type: ActionSendNotification, Value: "{task} is due", Params: map[string]string{ParamSeverity: "warning"}}},
	})
	require.NoError(t, err)

	_, err = f.store.AddTask(ctx, "", task.Draft{Title: "File taxes", EndDate: "2026-04-10"})
	require.NoError(t, err)
	_, err = f.store.AddTask(ctx, "", task.Draft{Title: "Later", EndDate: "2026-04-20"})
	require.NoError(t, err)

	f.svc.CheckDates(ctx)
	f.svc.CheckDates(ctx)

	all := f.inbox.All()
	require.Len(t, all, 1)
	assert.Equal(t, "File taxes is due", all[0].Message)
	assert.Equal(t, notify.SeverityWarning, all[0].Severity)
	assert.Equal(t, 1, f.svc.Rules()[0].TriggerCount)
}

func TestDateReached_SkipsDoneTasks(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerDateReached, Value: "end"},
		Actions:  []Action{{Type: ActionSendNotification}},
	})
	require.NoError(t, err)

	_, err = f.store.AddTask(ctx, "", task.Draft{Title: "Done already", Status: task.StatusDone, EndDate: "2026-04-10"})
	require.NoError(t, err)

	f.svc.CheckDates(ctx)
	assert.Empty(t, f.inbox.All())
}

func TestTriggerFilters(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p1, err := f.store.AddProject(ctx, "One", "", []task.Draft{{Title: "a"}, {Title: "b", Status: task.StatusInProgress}})
	require.NoError(t, err)
	p2, err := f.store.AddProject(ctx, "Two", "", []task.Draft{{Title: "c"}})
	require.NoError(t, err)

	_, err = f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done", From: "in-progress", ProjectID: p1.ID},
		Actions:  []Action{{Type: ActionAddTag, Value: "shipped"}},
	})
	require.NoError(t, err)

	a, b, c := p1.Tasks[0].ID, p1.Tasks[1].ID, p2.Tasks[0].ID
	require.NoError(t, f.store.UpdateTaskStatus(ctx, p1.ID, a, task.StatusDone)) // wrong From
	require.NoError(t, f.store.UpdateTaskStatus(ctx, p1.ID, b, task.StatusDone)) // matches
	require.NoError(t, f.store.UpdateTaskStatus(ctx, p2.ID, c, task.StatusDone)) // wrong project

	assert.False(t, f.task(t, a).HasTag("shipped"))
	assert.True(t, f.task(t, b).HasTag("shipped"))
	assert.False(t, f.task(t, c).HasTag("shipped"))
}

func TestInactiveRuleAndToggle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	r, err := f.svc.RegisterRule(ctx, Rule{
		Trigger: Trigger{Type: TriggerPriorityChange, Value: "high"},
		Actions: []Action{{Type: ActionAddTag, Value: "hot"}},
	})
	require.NoError(t, err)
	assert.False(t, r.IsActive)

	tk, err := f.store.AddTask(ctx, "", task.Draft{Title: "x", Priority: task.PriorityLow})
	require.NoError(t, err)
	high := task.PriorityHigh
	_, err = f.store.UpdateTask(ctx, "", tk.ID, task.Patch{Priority: &high})
	require.NoError(t, err)
	assert.False(t, f.task(t, tk.ID).HasTag("hot"))

	active, err := f.svc.ToggleRule(ctx, r.ID)
	require.NoError(t, err)
	assert.True(t, active)

	low := task.PriorityLow
	_, err = f.store.UpdateTask(ctx, "", tk.ID, task.Patch{Priority: &low})
	require.NoError(t, err)
	_, err = f.store.UpdateTask(ctx, "", tk.ID, task.Patch{Priority: &high})
	require.NoError(t, err)
	assert.True(t, f.task(t, tk.ID).HasTag("hot"))
}

func TestSetEnabled_SuspendsEvaluation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerTagAdded, Value: "x"},
		Actions:  []Action{{Type: ActionSendNotification}},
	})
	require.NoError(t, err)

	f.svc.SetEnabled(false)
	_, err = f.store.AddTask(ctx, "", task.Draft{Title: "t", Tags: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, f.inbox.All())
}

func TestCreateTask_LinksToTrigger(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.store.AddProject(ctx, "Release", "", []task.Draft{{Title: "Ship build"}})
	require.NoError(t, err)
	src := p.Tasks[0].ID

	_, err = f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done"},
		Actions: []Action{{
			Type:  ActionCreateTask,
			Value: "Announce {task}",
			Params: map[string]string{
				ParamDependsOnTrigger: "true",
				ParamTags:             "comms,followup",
				ParamPriority:         "high",
			},
		}},
	})
	require.NoError(t, err)

	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, src, task.StatusDone))

	tasks := f.store.Snapshot().TasksIn(p.ID)
	require.Len(t, tasks, 2)
	created := tasks[1]
	assert.Equal(t, "Announce Ship build", created.Title)
	assert.Equal(t, []string{src}, created.DependencyIDs)
	assert.Equal(t, []string{"comms", "followup"}, created.Tags)
	assert.Equal(t, task.PriorityHigh, created.Priority)
	// The new task is created after its dependency completed, so it stays todo.
	assert.Equal(t, task.StatusTodo, created.Status)
}

func TestChangeStatus_Dependents(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.store.AddProject(ctx, "Pipeline", "", []task.Draft{{Title: "Design"}})
	require.NoError(t, err)
	design := p.Tasks[0].ID
	build, err := f.store.AddTask(ctx, p.ID, task.Draft{Title: "Build", DependencyIDs: []string{design}})
	require.NoError(t, err)

	_, err = f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done"},
		Actions:  []Action{{Type: ActionChangeStatus, Params: map[string]string{ParamTarget: TargetDependents}}},
	})
	require.NoError(t, err)

	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, design, task.StatusDone))
	assert.Equal(t, task.StatusInProgress, f.task(t, build.ID).Status)
}

func TestChangeStatus_DependentsIgnoresExplicitStatus(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	p, err := f.store.AddProject(ctx, "Release", "", []task.Draft{{Title: "Code"}, {Title: "Docs"}})
	require.NoError(t, err)
	code, docs := p.Tasks[0].ID, p.Tasks[1].ID
	ship, err := f.store.AddTask(ctx, p.ID, task.Draft{Title: "Ship", DependencyIDs: []string{code, docs}})
	require.NoError(t, err)

	rule, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done"},
		Actions: []Action{{
			Type:   ActionChangeStatus,
			Value:  "done",
			Params: map[string]string{ParamTarget: TargetDependents},
		}},
	})
	require.NoError(t, err)
	assert.Empty(t, rule.Actions[0].Value, "dependents target carries no status")

	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, code, task.StatusDone))
	assert.Equal(t, task.StatusTodo, f.task(t, ship.ID).Status, "Docs is still open")

	require.NoError(t, f.store.UpdateTaskStatus(ctx, p.ID, docs, task.StatusDone))
	assert.Equal(t, task.StatusInProgress, f.task(t, ship.ID).Status)
}

func TestFailingActionDoesNotStopTheRest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerTagAdded, Value: "triage"},
		Actions: []Action{
			{Type: ActionMoveProject, Value: "missing-project"},
			{Type: ActionAddTag, Value: "seen"},
		},
	})
	require.NoError(t, err)

	tk, err := f.store.AddTask(ctx, "", task.Draft{Title: "Bug", Tags: []string{"triage"}})
	require.NoError(t, err)

	assert.True(t, f.task(t, tk.ID).HasTag("seen"))

	hist := f.svc.History(10)
	require.Len(t, hist, 1)
	assert.Equal(t, StatusFailed, hist[0].Status)
	assert.Equal(t, 1, hist[0].Actions)
	assert.Contains(t, hist[0].Error, "missing-project")

	stats := f.svc.Stats()
	assert.Equal(t, 1, stats.TotalRules)
	assert.Equal(t, 1, stats.ActiveRules)
	assert.Equal(t, 1, stats.Executions)
	assert.Equal(t, 1, stats.Failed)
}

func TestMoveProject(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	archive, err := f.store.AddProject(ctx, "Archive", "", nil)
	require.NoError(t, err)

	_, err = f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerStatusChange, Value: "done"},
		Actions:  []Action{{Type: ActionMoveProject, Value: archive.ID}},
	})
	require.NoError(t, err)

	tk, err := f.store.AddTask(ctx, "", task.Draft{Title: "Old chore"})
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateTaskStatus(ctx, "", tk.ID, task.StatusDone))

	_, projectID, ok := f.store.Snapshot().Task(tk.ID)
	require.True(t, ok)
	assert.Equal(t, archive.ID, projectID)
}

func TestRuleFiredEventPublished(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	pub := events.NewMemoryPublisher()
	defer pub.Close()
	sub := pub.Subscribe(events.GlobalTopic)

	f := newFixture(t, WithPublisher(pub))
	r, err := f.svc.RegisterRule(ctx, Rule{
		IsActive: true,
		Trigger:  Trigger{Type: TriggerTagAdded, Value: "x"},
		Actions:  []Action{{Type: ActionSendNotification}},
	})
	require.NoError(t, err)

	_, err = f.store.AddTask(ctx, "", task.Draft{Title: "t", Tags: []string{"x"}})
	require.NoError(t, err)

	select {
	case ev := <-sub:
		assert.Equal(t, events.EventRuleFired, ev.Type)
		fired, ok := ev.Data.(events.RuleFired)
		require.True(t, ok)
		assert.Equal(t, r.ID, fired.RuleID)
	case <-time.After(time.Second):
		t.Fatal("no rule_fired event")
	}
}

func TestRuleCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.RegisterRule(ctx, Rule{Trigger: Trigger{Type: "on_moon"}, Actions: []Action{{Type: ActionAddTag, Value: "x"}}})
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeInvalidInput))

	_, err = f.svc.RegisterRule(ctx, Rule{Trigger: Trigger{Type: TriggerTagAdded, Value: "x"}})
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeInvalidInput))

	r, err := f.svc.RegisterRule(ctx, Rule{
		Trigger: Trigger{Type: TriggerStatusChange, Value: "finished"},
		Actions: []Action{{Type: ActionChangePriority, Value: "urgent"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "rule-1", r.ID)
	assert.Equal(t, "done", r.Trigger.Value)
	assert.Equal(t, "high", r.Actions[0].Value)
	assert.Equal(t, "When status_change", r.Name)

	updated, err := f.svc.UpdateRule(ctx, r.ID, Rule{
		Name:    "renamed",
		Trigger: Trigger{Type: TriggerTagAdded, Value: "y"},
		Actions: []Action{{Type: ActionAddTag, Value: "z"}},
	})
	require.NoError(t, err)
	assert.Equal(t, r.ID, updated.ID)
	assert.Equal(t, "renamed", updated.Name)

	require.NoError(t, f.svc.SetRuleActive(ctx, r.ID, true))
	got, err := f.svc.Rule(r.ID)
	require.NoError(t, err)
	assert.True(t, got.IsActive)

	require.NoError(t, f.svc.DeleteRule(ctx, r.ID))
	_, err = f.svc.Rule(r.ID)
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeRuleNotFound))
	assert.True(t, tgerrors.HasCode(f.svc.DeleteRule(ctx, r.ID), tgerrors.CodeRuleNotFound))
	_, err = f.svc.ToggleRule(ctx, "nope")
	assert.True(t, tgerrors.HasCode(err, tgerrors.CodeRuleNotFound))

	assert.Empty(t, f.repo.rules)
	assert.Positive(t, f.repo.saves)
}

func TestLoad_SkipsInvalidRules(t *testing.T) {
	t.Parallel()
	repo := &memRules{rules: []*Rule{
		{ID: "good", IsActive: true, Trigger: Trigger{Type: TriggerTagAdded, Value: "a"}, Actions: []Action{{Type: ActionAddTag, Value: "b"}}},
		{ID: "bad", Trigger: Trigger{Type: TriggerStatusChange, Value: "sideways"}, Actions: []Action{{Type: ActionAddTag, Value: "b"}}},
	}}
	svc := NewService(store.New(store.WithDebounce(0)), WithRepository(repo))
	svc.Load(context.Background())

	rules := svc.Rules()
	require.Len(t, rules, 1)
	assert.Equal(t, "good", rules[0].ID)
}

func TestLoad_ErrorLeavesEmpty(t *testing.T) {
	t.Parallel()
	repo := &memRules{err: errors.New("disk gone")}
	svc := NewService(store.New(store.WithDebounce(0)), WithRepository(repo))
	svc.Load(context.Background())
	assert.Empty(t, svc.Rules())
}
